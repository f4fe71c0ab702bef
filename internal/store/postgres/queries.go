package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/eventfeed/internal/model"
	"github.com/alfredjeanlab/eventfeed/internal/store"
)

const (
	topicColumns      = `id, label, description, created_at, updated_at`
	subscriberColumns = `id, user_name, created_at`
	eventColumns      = `id, description, occurred, created_at`
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// --- Topics ---

func queryCreateTopic(ctx context.Context, db executor, t *model.Topic) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO topics (id, label, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.Label, t.Description, t.CreatedAt, t.UpdatedAt,
	)
	return translate(err, fmt.Sprintf("topic %q", t.ID))
}

func queryGetTopic(ctx context.Context, db executor, id string) (*model.Topic, error) {
	row := db.QueryRowContext(ctx, `SELECT `+topicColumns+` FROM topics WHERE id = $1`, id)
	t, err := scanTopic(row)
	if err != nil {
		return nil, translate(err, fmt.Sprintf("topic %q", id))
	}
	return t, nil
}

func queryUpdateTopic(ctx context.Context, db executor, t *model.Topic) error {
	res, err := db.ExecContext(ctx, `
		UPDATE topics SET label = $2, description = $3, updated_at = $4
		WHERE id = $1`,
		t.ID, t.Label, t.Description, t.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("topic %q: %w", t.ID, store.ErrNotFound)
	}
	return nil
}

func queryListTopics(ctx context.Context, db executor) ([]*model.Topic, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+topicColumns+` FROM topics ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []*model.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// queryLockTopics selects the topics among ids with a row lock. Rows are
// locked in id order so that concurrent lockers cannot deadlock, then
// returned in first-seen request order.
func queryLockTopics(ctx context.Context, db executor, ids []string, mode store.LockMode) ([]*model.Topic, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	lock := "FOR SHARE"
	if mode == store.LockExclusive {
		lock = "FOR UPDATE"
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE id = ANY($1) ORDER BY id `+lock,
		pq.Array(ids),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]*model.Topic, len(ids))
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		found[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*model.Topic, 0, len(found))
	for _, id := range ids {
		if t, ok := found[id]; ok {
			out = append(out, t)
			delete(found, id)
		}
	}
	return out, nil
}

// --- Subscribers ---

func queryCreateSubscriber(ctx context.Context, db executor, s *model.Subscriber) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO subscribers (id, user_name, created_at) VALUES ($1, $2, $3)`,
		s.ID, s.UserName, s.CreatedAt,
	)
	return translate(err, fmt.Sprintf("subscriber %q", s.UserName))
}

func queryGetSubscriber(ctx context.Context, db executor, userName string) (*model.Subscriber, error) {
	row := db.QueryRowContext(ctx, `SELECT `+subscriberColumns+` FROM subscribers WHERE user_name = $1`, userName)
	s, err := scanSubscriber(row)
	if err != nil {
		return nil, translate(err, fmt.Sprintf("subscriber %q", userName))
	}

	rows, err := db.QueryContext(ctx, `SELECT topic_id FROM interests WHERE subscriber_id = $1 ORDER BY topic_id`, s.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s.Topics = []string{}
	for rows.Next() {
		var topicID string
		if err := rows.Scan(&topicID); err != nil {
			return nil, err
		}
		s.Topics = append(s.Topics, topicID)
	}
	return s, rows.Err()
}

func queryListSubscribers(ctx context.Context, db executor) ([]*model.Subscriber, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+subscriberColumns+` FROM subscribers ORDER BY user_name`)
	if err != nil {
		return nil, err
	}
	var subs []*model.Subscriber
	byID := make(map[string]*model.Subscriber)
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		s.Topics = []string{}
		subs = append(subs, s)
		byID[s.ID] = s
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.QueryContext(ctx, `SELECT subscriber_id, topic_id FROM interests ORDER BY subscriber_id, topic_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var subID, topicID string
		if err := rows.Scan(&subID, &topicID); err != nil {
			return nil, err
		}
		if s, ok := byID[subID]; ok {
			s.Topics = append(s.Topics, topicID)
		}
	}
	return subs, rows.Err()
}

// --- Interests ---

func queryAddInterest(ctx context.Context, db executor, subscriberID, topicID string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO interests (subscriber_id, topic_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		subscriberID, topicID,
	)
	return translate(err, fmt.Sprintf("interest %q -> %q", subscriberID, topicID))
}

// queryRemoveInterest deletes the link. When nothing was deleted it reports
// ErrNotFound only if the subscriber or topic itself is missing.
func queryRemoveInterest(ctx context.Context, db executor, subscriberID, topicID string) error {
	res, err := db.ExecContext(ctx,
		`DELETE FROM interests WHERE subscriber_id = $1 AND topic_id = $2`,
		subscriberID, topicID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var subExists, topicExists bool
	err = db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM subscribers WHERE id = $1),
		       EXISTS (SELECT 1 FROM topics WHERE id = $2)`,
		subscriberID, topicID,
	).Scan(&subExists, &topicExists)
	if err != nil {
		return err
	}
	switch {
	case !subExists:
		return fmt.Errorf("subscriber id %q: %w", subscriberID, store.ErrNotFound)
	case !topicExists:
		return fmt.Errorf("topic %q: %w", topicID, store.ErrNotFound)
	}
	return nil
}

func queryGetTopicSubscribers(ctx context.Context, db executor, topicID string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT subscriber_id FROM interests WHERE topic_id = $1 ORDER BY subscriber_id`, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- Events ---

func queryCreateEvent(ctx context.Context, db executor, e *model.Event) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO events (id, description, occurred, created_at) VALUES ($1, $2, $3, $4)`,
		e.ID, e.Description, e.Occurred, e.CreatedAt,
	)
	return translate(err, fmt.Sprintf("event %q", e.ID))
}

func queryGetEvent(ctx context.Context, db executor, id string) (*model.Event, error) {
	row := db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		return nil, translate(err, fmt.Sprintf("event %q", id))
	}
	if err := fillEventTopics(ctx, db, []*model.Event{e}); err != nil {
		return nil, err
	}
	return e, nil
}

func queryClassifyEvent(ctx context.Context, db executor, eventID, topicID string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO event_topics (event_id, topic_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		eventID, topicID,
	)
	return translate(err, fmt.Sprintf("classify %q under %q", eventID, topicID))
}

func queryListEvents(ctx context.Context, db executor) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY occurred, id`)
	if err != nil {
		return nil, err
	}
	var evs []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		evs = append(evs, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := fillEventTopics(ctx, db, evs); err != nil {
		return nil, err
	}
	return evs, nil
}

// fillEventTopics sets Topics on each event, in classification order.
func fillEventTopics(ctx context.Context, db executor, evs []*model.Event) error {
	if len(evs) == 0 {
		return nil
	}
	byID := make(map[string]*model.Event, len(evs))
	ids := make([]string, 0, len(evs))
	for _, e := range evs {
		e.Topics = []string{}
		if _, dup := byID[e.ID]; !dup {
			ids = append(ids, e.ID)
		}
		byID[e.ID] = e
	}

	rows, err := db.QueryContext(ctx,
		`SELECT event_id, topic_id FROM event_topics WHERE event_id = ANY($1) ORDER BY seq`,
		pq.Array(ids),
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var eventID, topicID string
		if err := rows.Scan(&eventID, &topicID); err != nil {
			return err
		}
		if e, ok := byID[eventID]; ok {
			e.Topics = append(e.Topics, topicID)
		}
	}
	return rows.Err()
}

// --- Timelines ---

func queryAppendTimeline(ctx context.Context, db executor, subscriberID, eventID string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO timelines (subscriber_id, event_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		subscriberID, eventID,
	)
	return translate(err, fmt.Sprintf("timeline %q <- %q", subscriberID, eventID))
}

func queryGetSubscriberTimeline(ctx context.Context, db executor, subscriberID string, since time.Time) ([]*model.TimelineEntry, error) {
	var exists bool
	if err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM subscribers WHERE id = $1)`, subscriberID,
	).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("subscriber id %q: %w", subscriberID, store.ErrNotFound)
	}
	return queryTimeline(ctx, db, `
		SELECT tl.seq, e.id, e.description, e.occurred, e.created_at
		FROM timelines tl JOIN events e ON e.id = tl.event_id
		WHERE tl.subscriber_id = $1 AND e.occurred > $2
		ORDER BY e.occurred, tl.seq`, subscriberID, since)
}

func queryGetTopicTimeline(ctx context.Context, db executor, topicID string, since time.Time) ([]*model.TimelineEntry, error) {
	return queryTimeline(ctx, db, `
		SELECT et.seq, e.id, e.description, e.occurred, e.created_at
		FROM event_topics et JOIN events e ON e.id = et.event_id
		WHERE et.topic_id = $1 AND e.occurred > $2
		ORDER BY e.occurred, et.seq`, topicID, since)
}

func queryTimeline(ctx context.Context, db executor, query, key string, since time.Time) ([]*model.TimelineEntry, error) {
	rows, err := db.QueryContext(ctx, query, key, since)
	if err != nil {
		return nil, err
	}
	var entries []*model.TimelineEntry
	for rows.Next() {
		en, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		entries = append(entries, en)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	evs := make([]*model.Event, len(entries))
	for i, en := range entries {
		evs[i] = en.Event
	}
	if err := fillEventTopics(ctx, db, evs); err != nil {
		return nil, err
	}
	return entries, nil
}
