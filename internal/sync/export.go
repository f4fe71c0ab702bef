package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/alfredjeanlab/eventfeed/internal/model"
	"github.com/alfredjeanlab/eventfeed/internal/store"
)

// FormatVersion is written in the header record of every export.
const FormatVersion = "1"

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version         string    `json:"version"`
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	TopicCount      int       `json:"topic_count"`
	SubscriberCount int       `json:"subscriber_count"`
	EventCount      int       `json:"event_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// subscriberRecord is a subscriber with its timeline as event ids, oldest first.
type subscriberRecord struct {
	*model.Subscriber
	Timeline []string `json:"timeline"`
}

// ExportJSONL writes every topic, subscriber, and event in the store as JSONL
// to w. Topics are sorted by id, subscribers by user name, and events by
// occurrence time then id.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	topics, err := s.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	slices.SortFunc(topics, func(a, b *model.Topic) int {
		return strings.Compare(a.ID, b.ID)
	})

	subs, err := s.ListSubscribers(ctx)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}
	slices.SortFunc(subs, func(a, b *model.Subscriber) int {
		return strings.Compare(a.UserName, b.UserName)
	})

	subRecords := make([]subscriberRecord, 0, len(subs))
	for _, sub := range subs {
		entries, err := s.GetSubscriberTimeline(ctx, sub.ID, time.Time{})
		if err != nil {
			return fmt.Errorf("get timeline for %s: %w", sub.UserName, err)
		}
		ids := make([]string, len(entries))
		for i, en := range entries {
			ids[i] = en.Event.ID
		}
		subRecords = append(subRecords, subscriberRecord{Subscriber: sub, Timeline: ids})
	}

	events, err := s.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	slices.SortFunc(events, func(a, b *model.Event) int {
		if c := a.Occurred.Compare(b.Occurred); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:         FormatVersion,
		Type:            "header",
		Timestamp:       time.Now().UTC(),
		TopicCount:      len(topics),
		SubscriberCount: len(subRecords),
		EventCount:      len(events),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, t := range topics {
		if err := enc.Encode(record{Type: "topic", Data: t}); err != nil {
			return fmt.Errorf("encode topic %s: %w", t.ID, err)
		}
	}
	for _, sr := range subRecords {
		if err := enc.Encode(record{Type: "subscriber", Data: sr}); err != nil {
			return fmt.Errorf("encode subscriber %s: %w", sr.UserName, err)
		}
	}
	for _, e := range events {
		if err := enc.Encode(record{Type: "event", Data: e}); err != nil {
			return fmt.Errorf("encode event %s: %w", e.ID, err)
		}
	}

	return nil
}
