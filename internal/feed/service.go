// Package feed maintains topic/subscriber relations, fans new events out to
// subscriber timelines, and answers timeline queries.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/alfredjeanlab/eventfeed/internal/events"
	"github.com/alfredjeanlab/eventfeed/internal/idgen"
	"github.com/alfredjeanlab/eventfeed/internal/model"
	"github.com/alfredjeanlab/eventfeed/internal/props"
	"github.com/alfredjeanlab/eventfeed/internal/store"
)

// Service is the event feed. It is safe for concurrent use.
type Service struct {
	store     store.Store
	props     props.Table
	publisher events.Publisher
	logger    *slog.Logger
	ids       idgen.Generator
	now       func() time.Time

	index    subscriptionIndex
	fanout   fanoutEngine
	timeline timelineQuery
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets where change notifications go. The default discards them.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the source of created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(g idgen.Generator) Option {
	return func(s *Service) { s.ids = g }
}

// New returns a Service over st and pt. The Service owns both and closes
// them in Close.
func New(st store.Store, pt props.Table, opts ...Option) *Service {
	s := &Service{
		store:     st,
		props:     pt,
		publisher: events.NoopPublisher{},
		logger:    slog.Default(),
		ids:       idgen.Nanoid{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// timePrecision is the finest resolution every store keeps for Occurred.
// Event times and since bounds are truncated to it so timeline filters
// agree across stores.
const timePrecision = time.Microsecond

// publish emits a notification. Failures are logged and never returned.
func (s *Service) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish notification", "topic", topic, "err", err)
	}
}

// AssertTopic creates the topic or, if it exists with a different label or
// description, updates it in place. Asserting identical values writes nothing.
func (s *Service) AssertTopic(ctx context.Context, topicID, label, description string) error {
	if err := model.ValidateTopicID(topicID); err != nil {
		return errors.Wrapf(invalidArgument(err), "assert topic %q", topicID)
	}

	var (
		topic   *model.Topic
		created bool
		changed bool
	)
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		existing, err := tx.LockTopics(ctx, []string{topicID}, store.LockExclusive)
		if err != nil {
			return storeErr(err)
		}
		now := s.now()
		if len(existing) == 0 {
			topic = &model.Topic{ID: topicID, Label: label, Description: description, CreatedAt: now, UpdatedAt: now}
			created = true
			return storeErr(tx.CreateTopic(ctx, topic))
		}
		topic = existing[0]
		if !topic.Differs(label, description) {
			return nil
		}
		topic.Label, topic.Description, topic.UpdatedAt = label, description, now
		changed = true
		return storeErr(tx.UpdateTopic(ctx, topic))
	})
	if err != nil {
		return errors.Wrapf(storeErr(err), "assert topic %q", topicID)
	}

	switch {
	case created:
		s.logger.Info("topic created", "topic_id", topicID)
	case changed:
		s.logger.Info("topic updated", "topic_id", topicID)
	default:
		s.logger.Debug("topic unchanged", "topic_id", topicID)
		return nil
	}
	s.publish(ctx, events.TopicTopicAsserted, events.TopicAsserted{Topic: topic, Created: created})
	return nil
}

// AssertSubscriber creates userName subscribed to the existing topics among
// topicIDs. Unknown topic ids are dropped. If the subscriber already exists
// nothing changes, including its topics.
func (s *Service) AssertSubscriber(ctx context.Context, userName string, topicIDs []string) error {
	if err := model.ValidateUserName(userName); err != nil {
		return errors.Wrapf(invalidArgument(err), "assert subscriber %q", userName)
	}

	var sub *model.Subscriber
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		_, err := tx.GetSubscriber(ctx, userName)
		if err == nil {
			return nil
		}
		if !isStoreNotFound(err) {
			return storeErr(err)
		}
		id, err := s.ids.SubscriberID()
		if err != nil {
			return &kindError{kind: ErrStoreUnavailable, cause: err}
		}
		created := &model.Subscriber{ID: id, UserName: userName, CreatedAt: s.now()}
		if err := tx.CreateSubscriber(ctx, created); err != nil {
			return storeErr(err)
		}
		if err := s.index.link(ctx, tx, created, topicIDs); err != nil {
			return err
		}
		sub = created
		return nil
	})
	if err != nil {
		return errors.Wrapf(storeErr(err), "assert subscriber %q", userName)
	}
	if sub == nil {
		s.logger.Debug("subscriber exists", "user_name", userName)
		return nil
	}

	s.logger.Info("subscriber created", "user_name", userName, "subscriber_id", sub.ID, "topics", len(sub.Topics))
	s.publish(ctx, events.TopicSubscriberAsserted, events.SubscriberAsserted{Subscriber: sub})
	return nil
}

// RaiseEvent records a new event classified under the existing topics among
// topicIDs and appends it to the timeline of every subscriber of any of
// them, once per subscriber. Unknown topic ids are dropped. properties, if
// any, are attached to the event in the property table. occurred is kept to
// the microsecond.
//
// Properties are written first under the new event's id and removed again
// if the event cannot be committed, so a failed raise leaves nothing behind.
func (s *Service) RaiseEvent(ctx context.Context, description string, occurred time.Time, topicIDs []string, properties map[string]any) (*model.Event, error) {
	if err := model.ValidateEvent(occurred, properties); err != nil {
		return nil, errors.Wrapf(invalidArgument(err), "raise event %q", description)
	}
	id, err := s.ids.EventID()
	if err != nil {
		return nil, errors.Wrapf(&kindError{kind: ErrStoreUnavailable, cause: err}, "raise event %q", description)
	}

	if err := props.SetAll(ctx, s.props, id, properties); err != nil {
		s.discardProperties(id)
		return nil, errors.Wrapf(propsErr(err), "raise event %q (%s)", description, id)
	}

	ev := &model.Event{ID: id, Description: description, Occurred: occurred.Truncate(timePrecision), CreatedAt: s.now()}
	var reached int
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		n, err := s.fanout.raise(ctx, tx, ev, topicIDs)
		reached = n
		return err
	})
	if err != nil {
		if len(properties) > 0 {
			s.discardProperties(id)
		}
		return nil, errors.Wrapf(storeErr(err), "raise event %q (%s)", description, id)
	}

	s.logger.Info("event raised", "event_id", id, "topics", len(ev.Topics), "reached", reached)
	s.publish(ctx, events.TopicEventRaised, events.EventRaised{Event: ev.Clone(), Reached: reached})
	return ev, nil
}

func (s *Service) discardProperties(eventID string) {
	// The caller's context may already be done.
	if err := s.props.Delete(context.Background(), eventID); err != nil {
		s.logger.Warn("failed to discard properties of uncommitted event", "event_id", eventID, "err", err)
	}
}

// RegisterInterest adds topicID to userName's topics. Both must exist.
func (s *Service) RegisterInterest(ctx context.Context, userName, topicID string) error {
	var added bool
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		added, err = s.index.add(ctx, tx, userName, topicID)
		return err
	})
	if err != nil {
		return errors.Wrapf(storeErr(err), "register interest %q -> %q", userName, topicID)
	}
	if !added {
		s.logger.Debug("interest already registered", "user_name", userName, "topic_id", topicID)
		return nil
	}
	s.logger.Info("interest registered", "user_name", userName, "topic_id", topicID)
	s.publish(ctx, events.TopicInterestRegistered, events.InterestRegistered{UserName: userName, TopicID: topicID})
	return nil
}

// RemoveInterest removes topicID from userName's topics. Both must exist.
// Events already on the subscriber's timeline stay there.
func (s *Service) RemoveInterest(ctx context.Context, userName, topicID string) error {
	var removed bool
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		removed, err = s.index.remove(ctx, tx, userName, topicID)
		return err
	})
	if err != nil {
		return errors.Wrapf(storeErr(err), "remove interest %q -> %q", userName, topicID)
	}
	if !removed {
		s.logger.Debug("interest not registered", "user_name", userName, "topic_id", topicID)
		return nil
	}
	s.logger.Info("interest removed", "user_name", userName, "topic_id", topicID)
	s.publish(ctx, events.TopicInterestRemoved, events.InterestRemoved{UserName: userName, TopicID: topicID})
	return nil
}

// GetSubscriberTimeline returns the events on userName's timeline that
// occurred after since, oldest first.
func (s *Service) GetSubscriberTimeline(ctx context.Context, userName string, since time.Time) ([]*model.Event, error) {
	evs, err := s.timeline.subscriber(ctx, s.store, userName, since.Truncate(timePrecision))
	if err != nil {
		return nil, errors.Wrapf(err, "get subscriber timeline %q", userName)
	}
	return evs, nil
}

// GetTopicTimeline returns the events classified under topicID that
// occurred after since, oldest first. An unknown topic has no events.
func (s *Service) GetTopicTimeline(ctx context.Context, topicID string, since time.Time) ([]*model.Event, error) {
	evs, err := s.timeline.topic(ctx, s.store, topicID, since.Truncate(timePrecision))
	if err != nil {
		return nil, errors.Wrapf(err, "get topic timeline %q", topicID)
	}
	return evs, nil
}

// GetEventData returns the properties attached to event, or an empty map.
func (s *Service) GetEventData(ctx context.Context, event *model.Event) (map[string]any, error) {
	if event == nil || event.ID == "" {
		return nil, errors.Wrap(invalidArgument(errors.New("event is required")), "get event data")
	}
	data, err := s.props.GetAll(ctx, event.ID)
	if err != nil {
		return nil, errors.Wrapf(propsErr(err), "get event data %q", event.ID)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

// GetTopic returns the topic with id topicID.
func (s *Service) GetTopic(ctx context.Context, topicID string) (*model.Topic, error) {
	t, err := s.store.GetTopic(ctx, topicID)
	if err != nil {
		if isStoreNotFound(err) {
			return nil, errors.Wrapf(notFound("topic"), "get topic %q", topicID)
		}
		return nil, errors.Wrapf(storeErr(err), "get topic %q", topicID)
	}
	return t, nil
}

// GetSubscriber returns the subscriber named userName with its topics.
func (s *Service) GetSubscriber(ctx context.Context, userName string) (*model.Subscriber, error) {
	sub, err := s.store.GetSubscriber(ctx, userName)
	if err != nil {
		if isStoreNotFound(err) {
			return nil, errors.Wrapf(notFound("subscriber"), "get subscriber %q", userName)
		}
		return nil, errors.Wrapf(storeErr(err), "get subscriber %q", userName)
	}
	return sub, nil
}

// GetEvent returns the event with id eventID.
func (s *Service) GetEvent(ctx context.Context, eventID string) (*model.Event, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		if isStoreNotFound(err) {
			return nil, errors.Wrapf(notFound("event"), "get event %q", eventID)
		}
		return nil, errors.Wrapf(storeErr(err), "get event %q", eventID)
	}
	return ev, nil
}

// Store returns the underlying entity store, for export and maintenance.
func (s *Service) Store() store.Store {
	return s.store
}

// Close closes the publisher, the property table and the store, returning
// the first error.
func (s *Service) Close() error {
	var firstErr error
	for _, c := range []interface{ Close() error }{s.publisher, s.props, s.store} {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
