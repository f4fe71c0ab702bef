package idgen

import (
	"regexp"
	"testing"
)

func TestNanoid_Prefixes(t *testing.T) {
	var g Nanoid
	for _, tc := range []struct {
		name   string
		gen    func() (string, error)
		prefix string
	}{
		{"subscriber", g.SubscriberID, SubscriberPrefix},
		{"event", g.EventID, EventPrefix},
	} {
		t.Run(tc.name, func(t *testing.T) {
			id, err := tc.gen()
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(tc.prefix) + `[a-zA-Z0-9]+$`)
			if !pattern.MatchString(id) {
				t.Errorf("id %q does not match %s", id, pattern)
			}
			if want := len(tc.prefix) + Length; len(id) != want {
				t.Errorf("len(%q) = %d, want %d", id, len(id), want)
			}
		})
	}
}

func TestGenerateWithPrefix_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := GenerateWithPrefix(EventPrefix)
		if err != nil {
			t.Fatalf("GenerateWithPrefix error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestSequence(t *testing.T) {
	var s Sequence
	a, _ := s.EventID()
	b, _ := s.EventID()
	c, _ := s.SubscriberID()
	if a != "ev-1" || b != "ev-2" || c != "sub-1" {
		t.Errorf("Sequence ids = %q %q %q", a, b, c)
	}
}
