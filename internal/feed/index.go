package feed

import (
	"context"
	"sort"

	"github.com/alfredjeanlab/eventfeed/internal/model"
	"github.com/alfredjeanlab/eventfeed/internal/store"
)

// subscriptionIndex maintains the subscriber<->topic relation in both
// directions. Every mutation locks the affected topic rows exclusively so
// that it cannot interleave with a fan-out reading the same topic's members.
type subscriptionIndex struct{}

// link sets sub's topics to the existing topics among topicIDs. Unknown ids
// are dropped. sub must be newly created.
func (subscriptionIndex) link(ctx context.Context, tx store.Store, sub *model.Subscriber, topicIDs []string) error {
	topics, err := tx.LockTopics(ctx, topicIDs, store.LockExclusive)
	if err != nil {
		return storeErr(err)
	}
	ids := make([]string, 0, len(topics))
	for _, t := range topics {
		if err := tx.AddInterest(ctx, sub.ID, t.ID); err != nil {
			return storeErr(err)
		}
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	sub.Topics = ids
	return nil
}

// resolve locks topicID and loads the subscriber, checking topic first.
func (subscriptionIndex) resolve(ctx context.Context, tx store.Store, userName, topicID string) (*model.Subscriber, error) {
	topics, err := tx.LockTopics(ctx, []string{topicID}, store.LockExclusive)
	if err != nil {
		return nil, storeErr(err)
	}
	if len(topics) == 0 {
		return nil, notFound("topic")
	}
	sub, err := tx.GetSubscriber(ctx, userName)
	if err != nil {
		if isStoreNotFound(err) {
			return nil, notFound("subscriber")
		}
		return nil, storeErr(err)
	}
	return sub, nil
}

// add links userName to topicID and reports whether the link is new.
func (x subscriptionIndex) add(ctx context.Context, tx store.Store, userName, topicID string) (bool, error) {
	sub, err := x.resolve(ctx, tx, userName, topicID)
	if err != nil {
		return false, err
	}
	if sub.HasTopic(topicID) {
		return false, nil
	}
	if err := tx.AddInterest(ctx, sub.ID, topicID); err != nil {
		return false, storeErr(err)
	}
	return true, nil
}

// remove unlinks userName from topicID and reports whether a link existed.
func (x subscriptionIndex) remove(ctx context.Context, tx store.Store, userName, topicID string) (bool, error) {
	sub, err := x.resolve(ctx, tx, userName, topicID)
	if err != nil {
		return false, err
	}
	if !sub.HasTopic(topicID) {
		return false, nil
	}
	if err := tx.RemoveInterest(ctx, sub.ID, topicID); err != nil {
		return false, storeErr(err)
	}
	return true, nil
}
