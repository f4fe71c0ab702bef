// Package store defines the persistence interface for the event feed.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/alfredjeanlab/eventfeed/internal/model"
)

var (
	// ErrNotFound is returned when a record addressed by key does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a create would duplicate a key.
	ErrAlreadyExists = errors.New("already exists")
	// ErrClosed is returned by a store after Close.
	ErrClosed = errors.New("store closed")
)

// LockMode selects how LockTopics holds topic rows until the enclosing
// transaction ends.
type LockMode int

const (
	// LockShared admits other shared holders. Fan-out takes it so that
	// concurrent raises on one topic do not serialize.
	LockShared LockMode = iota
	// LockExclusive excludes every other holder. Interest changes take it.
	LockExclusive
)

func (m LockMode) String() string {
	if m == LockExclusive {
		return "exclusive"
	}
	return "shared"
}

// Store defines the persistence interface for topics, subscribers, events
// and timelines. Records returned are copies owned by the caller.
type Store interface {
	// Topics
	CreateTopic(ctx context.Context, topic *model.Topic) error
	GetTopic(ctx context.Context, id string) (*model.Topic, error)
	UpdateTopic(ctx context.Context, topic *model.Topic) error
	ListTopics(ctx context.Context) ([]*model.Topic, error)
	// LockTopics locks the existing topics among ids and returns them in
	// first-seen request order with duplicates removed. Unknown ids are
	// skipped. Locks are taken in ascending id order.
	LockTopics(ctx context.Context, ids []string, mode LockMode) ([]*model.Topic, error)

	// Subscribers. CreateSubscriber stores the record only; topic links are
	// made with AddInterest. GetSubscriber populates Topics.
	CreateSubscriber(ctx context.Context, sub *model.Subscriber) error
	GetSubscriber(ctx context.Context, userName string) (*model.Subscriber, error)
	ListSubscribers(ctx context.Context) ([]*model.Subscriber, error)

	// Interests. Both mutations have set semantics.
	AddInterest(ctx context.Context, subscriberID, topicID string) error
	RemoveInterest(ctx context.Context, subscriberID, topicID string) error
	GetTopicSubscribers(ctx context.Context, topicID string) ([]string, error)

	// Events. CreateEvent stores the record only; ClassifyEvent links it to
	// a topic and appends it to that topic's timeline.
	CreateEvent(ctx context.Context, event *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ClassifyEvent(ctx context.Context, eventID, topicID string) error
	ListEvents(ctx context.Context) ([]*model.Event, error)

	// Timelines. AppendTimeline is a no-op when the event is already on the
	// subscriber's timeline. Queries return entries with Occurred after
	// since, ordered by model.SortTimeline. GetTopicTimeline returns no
	// entries for an unknown topic.
	AppendTimeline(ctx context.Context, subscriberID, eventID string) error
	GetSubscriberTimeline(ctx context.Context, subscriberID string, since time.Time) ([]*model.TimelineEntry, error)
	GetTopicTimeline(ctx context.Context, topicID string, since time.Time) ([]*model.TimelineEntry, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
