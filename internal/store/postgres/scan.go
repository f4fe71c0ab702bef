package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/eventfeed/internal/model"
	"github.com/alfredjeanlab/eventfeed/internal/store"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanTopic scans a row in topicColumns order.
func scanTopic(row scannable) (*model.Topic, error) {
	var t model.Topic
	if err := row.Scan(&t.ID, &t.Label, &t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// scanSubscriber scans a row in subscriberColumns order.
func scanSubscriber(row scannable) (*model.Subscriber, error) {
	var s model.Subscriber
	if err := row.Scan(&s.ID, &s.UserName, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// scanEvent scans a row in eventColumns order.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	if err := row.Scan(&e.ID, &e.Description, &e.Occurred, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// scanEntry scans a timeline row: seq followed by eventColumns.
func scanEntry(row scannable) (*model.TimelineEntry, error) {
	var (
		seq int64
		e   model.Event
	)
	if err := row.Scan(&seq, &e.ID, &e.Description, &e.Occurred, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &model.TimelineEntry{Seq: seq, Event: &e}, nil
}

// PostgreSQL error codes the store translates.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// translate maps driver errors onto the store sentinels, naming subject.
// Other errors are returned unchanged.
func translate(err error, subject string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", subject, store.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w", subject, store.ErrAlreadyExists)
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %w", subject, store.ErrNotFound)
		}
	}
	return err
}
