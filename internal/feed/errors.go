package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/eventfeed/internal/store"
)

// Error kinds. Every error returned by Service matches at most one of these
// under errors.Is, and its message names the operation and key.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// kindError tags a cause with one of the error kinds. It renders as
// "<subject> <kind>[: <cause>]".
type kindError struct {
	kind    error
	subject string
	cause   error
}

func (e *kindError) Error() string {
	s := e.kind.Error()
	if e.subject != "" {
		s = e.subject + " " + s
	}
	if e.cause != nil {
		s += ": " + e.cause.Error()
	}
	return s
}

func (e *kindError) Is(target error) bool { return target == e.kind }

func (e *kindError) Unwrap() error { return e.cause }

func notFound(subject string) error {
	return &kindError{kind: ErrNotFound, subject: subject}
}

func invalidArgument(cause error) error {
	return &kindError{kind: ErrInvalidArgument, cause: cause}
}

// storeErr classifies an error from the entity store. Context cancellation
// passes through untouched.
func storeErr(err error) error {
	var ke *kindError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ke):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, store.ErrNotFound):
		return &kindError{kind: ErrNotFound, cause: err}
	case errors.Is(err, store.ErrAlreadyExists):
		return &kindError{kind: ErrAlreadyExists, cause: err}
	default:
		return &kindError{kind: ErrStoreUnavailable, cause: err}
	}
}

// propsErr classifies an error from the property side table.
func propsErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &kindError{kind: ErrStoreUnavailable, cause: fmt.Errorf("property table: %w", err)}
	}
}
