package model

import "time"

// Topic is a named subject that events are classified under and that
// subscribers register interest in. ID is the caller's stable URI for it.
type Topic struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Differs reports whether label or description would change t.
func (t *Topic) Differs(label, description string) bool {
	return t.Label != label || t.Description != description
}

// Clone returns a copy of t.
func (t *Topic) Clone() *Topic {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
