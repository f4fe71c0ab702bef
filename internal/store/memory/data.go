package memory

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/alfredjeanlab/eventfeed/internal/model"
	"github.com/alfredjeanlab/eventfeed/internal/store"
)

type set map[string]struct{}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type entry struct {
	seq     int64
	eventID string
}

// data holds every record plus the indices kept in step on each mutation:
// subscriber->topics and topic->subscribers, event->topics and
// topic->events, subscriber->events.
type data struct {
	seq int64

	topics      map[string]*model.Topic
	subscribers map[string]*model.Subscriber // by user name
	subByID     map[string]string            // subscriber id -> user name
	events      map[string]*model.Event

	interests  map[string]set // subscriber id -> topic ids
	members    map[string]set // topic id -> subscriber ids
	classified map[string][]entry
	timelines  map[string][]entry
	onTimeline map[string]set // subscriber id -> event ids
}

func newData() *data {
	return &data{
		topics:      make(map[string]*model.Topic),
		subscribers: make(map[string]*model.Subscriber),
		subByID:     make(map[string]string),
		events:      make(map[string]*model.Event),
		interests:   make(map[string]set),
		members:     make(map[string]set),
		classified:  make(map[string][]entry),
		timelines:   make(map[string][]entry),
		onTimeline:  make(map[string]set),
	}
}

type undoLog []func()

func (u *undoLog) push(fn func()) {
	*u = append(*u, fn)
}

func (u *undoLog) rollback() {
	for i := len(*u) - 1; i >= 0; i-- {
		(*u)[i]()
	}
	*u = nil
}

func (d *data) nextSeq(u *undoLog) int64 {
	d.seq++
	u.push(func() { d.seq-- })
	return d.seq
}

func (d *data) createTopic(t *model.Topic, u *undoLog) error {
	if _, ok := d.topics[t.ID]; ok {
		return fmt.Errorf("topic %q: %w", t.ID, store.ErrAlreadyExists)
	}
	id := t.ID
	d.topics[id] = t.Clone()
	u.push(func() { delete(d.topics, id) })
	return nil
}

func (d *data) getTopic(id string) (*model.Topic, error) {
	t, ok := d.topics[id]
	if !ok {
		return nil, fmt.Errorf("topic %q: %w", id, store.ErrNotFound)
	}
	return t.Clone(), nil
}

func (d *data) updateTopic(t *model.Topic, u *undoLog) error {
	prev, ok := d.topics[t.ID]
	if !ok {
		return fmt.Errorf("topic %q: %w", t.ID, store.ErrNotFound)
	}
	next := t.Clone()
	next.CreatedAt = prev.CreatedAt
	d.topics[next.ID] = next
	u.push(func() { d.topics[prev.ID] = prev })
	return nil
}

func (d *data) listTopics() []*model.Topic {
	out := make([]*model.Topic, 0, len(d.topics))
	for _, t := range d.topics {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *data) resolveTopics(ids []string) []*model.Topic {
	seen := make(set, len(ids))
	var out []*model.Topic
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if t, ok := d.topics[id]; ok {
			out = append(out, t.Clone())
		}
	}
	return out
}

func (d *data) createSubscriber(s *model.Subscriber, u *undoLog) error {
	if _, ok := d.subscribers[s.UserName]; ok {
		return fmt.Errorf("subscriber %q: %w", s.UserName, store.ErrAlreadyExists)
	}
	if _, ok := d.subByID[s.ID]; ok {
		return fmt.Errorf("subscriber id %q: %w", s.ID, store.ErrAlreadyExists)
	}
	c := s.Clone()
	c.Topics = nil
	d.subscribers[c.UserName] = c
	d.subByID[c.ID] = c.UserName
	u.push(func() {
		delete(d.subscribers, c.UserName)
		delete(d.subByID, c.ID)
	})
	return nil
}

func (d *data) subscriberWithTopics(s *model.Subscriber) *model.Subscriber {
	c := s.Clone()
	c.Topics = d.interests[s.ID].sorted()
	return c
}

func (d *data) getSubscriber(userName string) (*model.Subscriber, error) {
	s, ok := d.subscribers[userName]
	if !ok {
		return nil, fmt.Errorf("subscriber %q: %w", userName, store.ErrNotFound)
	}
	return d.subscriberWithTopics(s), nil
}

func (d *data) listSubscribers() []*model.Subscriber {
	out := make([]*model.Subscriber, 0, len(d.subscribers))
	for _, s := range d.subscribers {
		out = append(out, d.subscriberWithTopics(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserName < out[j].UserName })
	return out
}

func (d *data) checkLink(subscriberID, topicID string) error {
	if _, ok := d.subByID[subscriberID]; !ok {
		return fmt.Errorf("subscriber id %q: %w", subscriberID, store.ErrNotFound)
	}
	if _, ok := d.topics[topicID]; !ok {
		return fmt.Errorf("topic %q: %w", topicID, store.ErrNotFound)
	}
	return nil
}

func addTo(idx map[string]set, key, val string, u *undoLog) {
	s, ok := idx[key]
	if !ok {
		s = make(set)
		idx[key] = s
	}
	if _, ok := s[val]; ok {
		return
	}
	s[val] = struct{}{}
	u.push(func() { delete(s, val) })
}

func removeFrom(idx map[string]set, key, val string, u *undoLog) {
	s, ok := idx[key]
	if !ok {
		return
	}
	if _, ok := s[val]; !ok {
		return
	}
	delete(s, val)
	u.push(func() { s[val] = struct{}{} })
}

func (d *data) addInterest(subscriberID, topicID string, u *undoLog) error {
	if err := d.checkLink(subscriberID, topicID); err != nil {
		return err
	}
	addTo(d.interests, subscriberID, topicID, u)
	addTo(d.members, topicID, subscriberID, u)
	return nil
}

func (d *data) removeInterest(subscriberID, topicID string, u *undoLog) error {
	if err := d.checkLink(subscriberID, topicID); err != nil {
		return err
	}
	removeFrom(d.interests, subscriberID, topicID, u)
	removeFrom(d.members, topicID, subscriberID, u)
	return nil
}

func (d *data) topicSubscribers(topicID string) []string {
	return d.members[topicID].sorted()
}

func (d *data) createEvent(e *model.Event, u *undoLog) error {
	if _, ok := d.events[e.ID]; ok {
		return fmt.Errorf("event %q: %w", e.ID, store.ErrAlreadyExists)
	}
	c := e.Clone()
	c.Topics = nil
	d.events[c.ID] = c
	u.push(func() { delete(d.events, c.ID) })
	return nil
}

func (d *data) getEvent(id string) (*model.Event, error) {
	e, ok := d.events[id]
	if !ok {
		return nil, fmt.Errorf("event %q: %w", id, store.ErrNotFound)
	}
	return e.Clone(), nil
}

func (d *data) classifyEvent(eventID, topicID string, u *undoLog) error {
	e, ok := d.events[eventID]
	if !ok {
		return fmt.Errorf("event %q: %w", eventID, store.ErrNotFound)
	}
	if _, ok := d.topics[topicID]; !ok {
		return fmt.Errorf("topic %q: %w", topicID, store.ErrNotFound)
	}
	if slices.Contains(e.Topics, topicID) {
		return nil
	}
	prevTopics := e.Topics
	e.Topics = append(slices.Clip(e.Topics), topicID)
	prevEntries := d.classified[topicID]
	d.classified[topicID] = append(slices.Clip(prevEntries), entry{seq: d.nextSeq(u), eventID: eventID})
	u.push(func() {
		e.Topics = prevTopics
		d.classified[topicID] = prevEntries
	})
	return nil
}

func (d *data) listEvents() []*model.Event {
	out := make([]*model.Event, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Occurred.Equal(out[j].Occurred) {
			return out[i].Occurred.Before(out[j].Occurred)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (d *data) appendTimeline(subscriberID, eventID string, u *undoLog) error {
	if _, ok := d.subByID[subscriberID]; !ok {
		return fmt.Errorf("subscriber id %q: %w", subscriberID, store.ErrNotFound)
	}
	if _, ok := d.events[eventID]; !ok {
		return fmt.Errorf("event %q: %w", eventID, store.ErrNotFound)
	}
	if _, ok := d.onTimeline[subscriberID][eventID]; ok {
		return nil
	}
	addTo(d.onTimeline, subscriberID, eventID, u)
	prev := d.timelines[subscriberID]
	d.timelines[subscriberID] = append(slices.Clip(prev), entry{seq: d.nextSeq(u), eventID: eventID})
	u.push(func() { d.timelines[subscriberID] = prev })
	return nil
}

func (d *data) materialize(entries []entry, since time.Time) []*model.TimelineEntry {
	var out []*model.TimelineEntry
	for _, en := range entries {
		e := d.events[en.eventID]
		if !e.Occurred.After(since) {
			continue
		}
		out = append(out, &model.TimelineEntry{Seq: en.seq, Event: e.Clone()})
	}
	model.SortTimeline(out)
	return out
}

func (d *data) subscriberTimeline(subscriberID string, since time.Time) ([]*model.TimelineEntry, error) {
	if _, ok := d.subByID[subscriberID]; !ok {
		return nil, fmt.Errorf("subscriber id %q: %w", subscriberID, store.ErrNotFound)
	}
	return d.materialize(d.timelines[subscriberID], since), nil
}

func (d *data) topicTimeline(topicID string, since time.Time) []*model.TimelineEntry {
	return d.materialize(d.classified[topicID], since)
}
