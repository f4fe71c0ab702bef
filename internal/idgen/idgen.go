// Package idgen generates short, URL-safe ids for subscribers and events.
package idgen

import (
	"fmt"
	"sync"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// SubscriberPrefix is prepended to subscriber ids.
	SubscriberPrefix = "sub-"
	// EventPrefix is prepended to event ids.
	EventPrefix = "ev-"
)

// Alphabet is the character set for the random portion of an id.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters in an id, excluding the prefix.
var Length = 12

// Generator produces ids. Tests substitute deterministic generators.
type Generator interface {
	SubscriberID() (string, error)
	EventID() (string, error)
}

// Nanoid is the default Generator.
type Nanoid struct{}

func (Nanoid) SubscriberID() (string, error) { return GenerateWithPrefix(SubscriberPrefix) }
func (Nanoid) EventID() (string, error)      { return GenerateWithPrefix(EventPrefix) }

// GenerateWithPrefix returns a new random id with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// Sequence is a deterministic Generator that numbers ids in creation order.
type Sequence struct {
	mu           sync.Mutex
	subs, events int
}

func (s *Sequence) SubscriberID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs++
	return fmt.Sprintf("%s%d", SubscriberPrefix, s.subs), nil
}

func (s *Sequence) EventID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events++
	return fmt.Sprintf("%s%d", EventPrefix, s.events), nil
}
