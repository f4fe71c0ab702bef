package feed

import (
	"context"
	"errors"
	"time"

	"github.com/alfredjeanlab/eventfeed/internal/model"
	"github.com/alfredjeanlab/eventfeed/internal/store"
)

// timelineQuery reads subscriber and topic timelines. Results hold only
// events that occurred strictly after since, ascending by occurrence, with
// ties in the order the events reached the timeline.
type timelineQuery struct{}

func (timelineQuery) subscriber(ctx context.Context, st store.Store, userName string, since time.Time) ([]*model.Event, error) {
	sub, err := st.GetSubscriber(ctx, userName)
	if err != nil {
		if isStoreNotFound(err) {
			return nil, notFound("subscriber")
		}
		return nil, storeErr(err)
	}
	entries, err := st.GetSubscriberTimeline(ctx, sub.ID, since)
	if err != nil {
		return nil, storeErr(err)
	}
	return collect(entries, since), nil
}

// topic returns an empty result for an unknown topic.
func (timelineQuery) topic(ctx context.Context, st store.Store, topicID string, since time.Time) ([]*model.Event, error) {
	entries, err := st.GetTopicTimeline(ctx, topicID, since)
	if err != nil {
		return nil, storeErr(err)
	}
	return collect(entries, since), nil
}

func collect(entries []*model.TimelineEntry, since time.Time) []*model.Event {
	kept := entries[:0:0]
	for _, e := range entries {
		if e.Event.Occurred.After(since) {
			kept = append(kept, e)
		}
	}
	model.SortTimeline(kept)
	out := make([]*model.Event, len(kept))
	for i, e := range kept {
		out[i] = e.Event
	}
	return out
}

func isStoreNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
