// Package memory implements store.Store in process memory. A transaction
// holds the store-wide write lock for its whole duration and is rolled back
// from an undo log when fn returns an error.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alfredjeanlab/eventfeed/internal/model"
	"github.com/alfredjeanlab/eventfeed/internal/store"
)

// MemoryStore implements store.Store in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	closed bool
	d      *data
}

// Compile-time check that MemoryStore implements store.Store.
var _ store.Store = (*MemoryStore)(nil)

// New returns an empty store.
func New() *MemoryStore {
	return &MemoryStore{d: newData()}
}

// Close marks the store closed. Later calls return store.ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) read(ctx context.Context, fn func(d *data) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}
	return fn(s.d)
}

// write runs a single mutation. A mutation that fails part way is undone so
// that each call is atomic on its own.
func (s *MemoryStore) write(ctx context.Context, fn func(d *data, u *undoLog) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	var u undoLog
	if err := fn(s.d, &u); err != nil {
		u.rollback()
		return err
	}
	return nil
}

// RunInTransaction executes fn while holding the write lock. If fn returns
// an error every mutation it made is reverted.
func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	tx := &txStore{d: s.d}
	if err := fn(tx); err != nil {
		tx.undo.rollback()
		return err
	}
	return nil
}

func (s *MemoryStore) CreateTopic(ctx context.Context, topic *model.Topic) error {
	return s.write(ctx, func(d *data, u *undoLog) error { return d.createTopic(topic, u) })
}

func (s *MemoryStore) GetTopic(ctx context.Context, id string) (t *model.Topic, err error) {
	err = s.read(ctx, func(d *data) error { t, err = d.getTopic(id); return err })
	return t, err
}

func (s *MemoryStore) UpdateTopic(ctx context.Context, topic *model.Topic) error {
	return s.write(ctx, func(d *data, u *undoLog) error { return d.updateTopic(topic, u) })
}

func (s *MemoryStore) ListTopics(ctx context.Context) (ts []*model.Topic, err error) {
	err = s.read(ctx, func(d *data) error { ts = d.listTopics(); return nil })
	return ts, err
}

// LockTopics resolves ids. Outside a transaction there is nothing to hold.
func (s *MemoryStore) LockTopics(ctx context.Context, ids []string, _ store.LockMode) (ts []*model.Topic, err error) {
	err = s.read(ctx, func(d *data) error { ts = d.resolveTopics(ids); return nil })
	return ts, err
}

func (s *MemoryStore) CreateSubscriber(ctx context.Context, sub *model.Subscriber) error {
	return s.write(ctx, func(d *data, u *undoLog) error { return d.createSubscriber(sub, u) })
}

func (s *MemoryStore) GetSubscriber(ctx context.Context, userName string) (sub *model.Subscriber, err error) {
	err = s.read(ctx, func(d *data) error { sub, err = d.getSubscriber(userName); return err })
	return sub, err
}

func (s *MemoryStore) ListSubscribers(ctx context.Context) (subs []*model.Subscriber, err error) {
	err = s.read(ctx, func(d *data) error { subs = d.listSubscribers(); return nil })
	return subs, err
}

func (s *MemoryStore) AddInterest(ctx context.Context, subscriberID, topicID string) error {
	return s.write(ctx, func(d *data, u *undoLog) error { return d.addInterest(subscriberID, topicID, u) })
}

func (s *MemoryStore) RemoveInterest(ctx context.Context, subscriberID, topicID string) error {
	return s.write(ctx, func(d *data, u *undoLog) error { return d.removeInterest(subscriberID, topicID, u) })
}

func (s *MemoryStore) GetTopicSubscribers(ctx context.Context, topicID string) (ids []string, err error) {
	err = s.read(ctx, func(d *data) error { ids = d.topicSubscribers(topicID); return nil })
	return ids, err
}

func (s *MemoryStore) CreateEvent(ctx context.Context, event *model.Event) error {
	return s.write(ctx, func(d *data, u *undoLog) error { return d.createEvent(event, u) })
}

func (s *MemoryStore) GetEvent(ctx context.Context, id string) (e *model.Event, err error) {
	err = s.read(ctx, func(d *data) error { e, err = d.getEvent(id); return err })
	return e, err
}

func (s *MemoryStore) ClassifyEvent(ctx context.Context, eventID, topicID string) error {
	return s.write(ctx, func(d *data, u *undoLog) error { return d.classifyEvent(eventID, topicID, u) })
}

func (s *MemoryStore) ListEvents(ctx context.Context) (es []*model.Event, err error) {
	err = s.read(ctx, func(d *data) error { es = d.listEvents(); return nil })
	return es, err
}

func (s *MemoryStore) AppendTimeline(ctx context.Context, subscriberID, eventID string) error {
	return s.write(ctx, func(d *data, u *undoLog) error { return d.appendTimeline(subscriberID, eventID, u) })
}

func (s *MemoryStore) GetSubscriberTimeline(ctx context.Context, subscriberID string, since time.Time) (es []*model.TimelineEntry, err error) {
	err = s.read(ctx, func(d *data) error { es, err = d.subscriberTimeline(subscriberID, since); return err })
	return es, err
}

func (s *MemoryStore) GetTopicTimeline(ctx context.Context, topicID string, since time.Time) (es []*model.TimelineEntry, err error) {
	err = s.read(ctx, func(d *data) error { es = d.topicTimeline(topicID, since); return nil })
	return es, err
}

// txStore runs operations against the data of a store whose write lock is
// already held by RunInTransaction.
type txStore struct {
	d    *data
	undo undoLog
}

var _ store.Store = (*txStore)(nil)

func (t *txStore) Close() error { return nil }

// RunInTransaction on a txStore runs fn in the enclosing transaction.
func (t *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

func (t *txStore) CreateTopic(ctx context.Context, topic *model.Topic) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.d.createTopic(topic, &t.undo)
}

func (t *txStore) GetTopic(ctx context.Context, id string) (*model.Topic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.d.getTopic(id)
}

func (t *txStore) UpdateTopic(ctx context.Context, topic *model.Topic) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.d.updateTopic(topic, &t.undo)
}

func (t *txStore) ListTopics(ctx context.Context) ([]*model.Topic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.d.listTopics(), nil
}

// LockTopics resolves ids. The store-wide write lock already excludes every
// other writer, so both modes are satisfied.
func (t *txStore) LockTopics(ctx context.Context, ids []string, _ store.LockMode) ([]*model.Topic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.d.resolveTopics(ids), nil
}

func (t *txStore) CreateSubscriber(ctx context.Context, sub *model.Subscriber) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.d.createSubscriber(sub, &t.undo)
}

func (t *txStore) GetSubscriber(ctx context.Context, userName string) (*model.Subscriber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.d.getSubscriber(userName)
}

func (t *txStore) ListSubscribers(ctx context.Context) ([]*model.Subscriber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.d.listSubscribers(), nil
}

func (t *txStore) AddInterest(ctx context.Context, subscriberID, topicID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.d.addInterest(subscriberID, topicID, &t.undo)
}

func (t *txStore) RemoveInterest(ctx context.Context, subscriberID, topicID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.d.removeInterest(subscriberID, topicID, &t.undo)
}

func (t *txStore) GetTopicSubscribers(ctx context.Context, topicID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.d.topicSubscribers(topicID), nil
}

func (t *txStore) CreateEvent(ctx context.Context, event *model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.d.createEvent(event, &t.undo)
}

func (t *txStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.d.getEvent(id)
}

func (t *txStore) ClassifyEvent(ctx context.Context, eventID, topicID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.d.classifyEvent(eventID, topicID, &t.undo)
}

func (t *txStore) ListEvents(ctx context.Context) ([]*model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.d.listEvents(), nil
}

func (t *txStore) AppendTimeline(ctx context.Context, subscriberID, eventID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.d.appendTimeline(subscriberID, eventID, &t.undo)
}

func (t *txStore) GetSubscriberTimeline(ctx context.Context, subscriberID string, since time.Time) ([]*model.TimelineEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.d.subscriberTimeline(subscriberID, since)
}

func (t *txStore) GetTopicTimeline(ctx context.Context, topicID string, since time.Time) ([]*model.TimelineEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.d.topicTimeline(topicID, since), nil
}
