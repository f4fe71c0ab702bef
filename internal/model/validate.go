package model

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, msg string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) err() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// ValidateTopicID checks that id is usable as a topic key: non-empty, free of
// whitespace and control characters, and parseable as a URI reference.
func ValidateTopicID(id string) error {
	var ve ValidationError
	checkTopicID(&ve, "topic_id", id)
	return ve.err()
}

func checkTopicID(ve *ValidationError, field, id string) {
	if id == "" {
		ve.add(field, "is required")
		return
	}
	if strings.IndexFunc(id, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		ve.add(field, "must not contain whitespace")
		return
	}
	if _, err := url.Parse(id); err != nil {
		ve.add(field, "must be a valid URI")
	}
}

// ValidateUserName checks that name is a usable subscriber key.
func ValidateUserName(name string) error {
	var ve ValidationError
	if strings.TrimSpace(name) == "" {
		ve.add("user_name", "is required")
	}
	return ve.err()
}

// ValidateEvent checks the fields supplied when raising an event. Description
// may be empty. Property values must be JSON-encodable.
func ValidateEvent(occurred time.Time, properties map[string]any) error {
	var ve ValidationError
	if occurred.IsZero() {
		ve.add("occurred", "is required")
	}
	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "" {
			ve.add("properties", "keys must be non-empty")
			continue
		}
		if _, err := json.Marshal(properties[k]); err != nil {
			ve.add("properties."+k, "must be JSON-encodable")
		}
	}
	return ve.err()
}
