package model

import (
	"slices"
	"time"
)

// Event is an immutable record of something that happened, classified under
// zero or more topics. Topics holds topic ids in classification order.
type Event struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Occurred    time.Time `json:"occurred"`
	Topics      []string  `json:"topics"`
	CreatedAt   time.Time `json:"created_at"`
}

// Clone returns a deep copy of e.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	c.Topics = slices.Clone(e.Topics)
	return &c
}

// TimelineEntry is an event as it sits on a timeline. Seq is the position at
// which the entry was appended and breaks ties between equal Occurred times.
type TimelineEntry struct {
	Seq   int64
	Event *Event
}

// SortTimeline orders entries ascending by Occurred, then by Seq.
func SortTimeline(entries []*TimelineEntry) {
	slices.SortStableFunc(entries, func(a, b *TimelineEntry) int {
		if c := a.Event.Occurred.Compare(b.Event.Occurred); c != 0 {
			return c
		}
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
}
