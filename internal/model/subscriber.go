package model

import (
	"slices"
	"time"
)

// Subscriber is a user with a set of topics of interest. Topics holds topic
// ids sorted ascending.
type Subscriber struct {
	ID        string    `json:"id"`
	UserName  string    `json:"user_name"`
	Topics    []string  `json:"topics"`
	CreatedAt time.Time `json:"created_at"`
}

// HasTopic reports whether topicID is in the subscriber's topic set.
func (s *Subscriber) HasTopic(topicID string) bool {
	_, ok := slices.BinarySearch(s.Topics, topicID)
	return ok
}

// Clone returns a deep copy of s.
func (s *Subscriber) Clone() *Subscriber {
	if s == nil {
		return nil
	}
	c := *s
	c.Topics = slices.Clone(s.Topics)
	return &c
}
