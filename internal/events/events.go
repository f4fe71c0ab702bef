// Package events publishes feed change notifications to NATS.
package events

import (
	"context"

	"github.com/alfredjeanlab/eventfeed/internal/model"
)

// Subject constants. TopicAll matches every feed subject.
const (
	TopicAll = "feed.>"

	TopicTopicAsserted      = "feed.topic.asserted"
	TopicSubscriberAsserted = "feed.subscriber.asserted"
	TopicInterestRegistered = "feed.interest.registered"
	TopicInterestRemoved    = "feed.interest.removed"
	TopicEventRaised        = "feed.event.raised"
)

// Notification payloads

type TopicAsserted struct {
	Topic   *model.Topic `json:"topic"`
	Created bool         `json:"created"`
}

type SubscriberAsserted struct {
	Subscriber *model.Subscriber `json:"subscriber"`
}

type InterestRegistered struct {
	UserName string `json:"user_name"`
	TopicID  string `json:"topic_id"`
}

type InterestRemoved struct {
	UserName string `json:"user_name"`
	TopicID  string `json:"topic_id"`
}

type EventRaised struct {
	Event *model.Event `json:"event"`
	// Reached is the number of subscriber timelines the event was added to.
	Reached int `json:"reached"`
}

// Publisher is the interface for emitting notifications.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
