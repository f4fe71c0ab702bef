package feed

import (
	"context"

	"github.com/alfredjeanlab/eventfeed/internal/model"
	"github.com/alfredjeanlab/eventfeed/internal/store"
)

// fanoutEngine records a new event and delivers it to subscriber timelines.
// It must run inside a transaction: the shared topic locks it takes are what
// keep interest changes on those topics from interleaving with delivery.
type fanoutEngine struct{}

// raise stores ev, classifies it under the existing topics among topicIDs
// and appends it once to the timeline of every member of those topics. It
// fills ev.Topics and returns the number of timelines reached.
func (fanoutEngine) raise(ctx context.Context, tx store.Store, ev *model.Event, topicIDs []string) (int, error) {
	topics, err := tx.LockTopics(ctx, topicIDs, store.LockShared)
	if err != nil {
		return 0, storeErr(err)
	}
	ev.Topics = make([]string, 0, len(topics))
	if err := tx.CreateEvent(ctx, ev); err != nil {
		return 0, storeErr(err)
	}

	reached := make(map[string]struct{})
	for _, t := range topics {
		if err := tx.ClassifyEvent(ctx, ev.ID, t.ID); err != nil {
			return 0, storeErr(err)
		}
		ev.Topics = append(ev.Topics, t.ID)

		members, err := tx.GetTopicSubscribers(ctx, t.ID)
		if err != nil {
			return 0, storeErr(err)
		}
		for _, subID := range members {
			if _, ok := reached[subID]; ok {
				continue
			}
			if err := tx.AppendTimeline(ctx, subID, ev.ID); err != nil {
				return 0, storeErr(err)
			}
			reached[subID] = struct{}{}
		}
	}
	return len(reached), nil
}
