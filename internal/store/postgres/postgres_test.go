package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/alfredjeanlab/eventfeed/internal/model"
	"github.com/alfredjeanlab/eventfeed/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var (
	topicRowColumns = []string{"id", "label", "description", "created_at", "updated_at"}
	subRowColumns   = []string{"id", "user_name", "created_at"}
	eventRowColumns = []string{"id", "description", "occurred", "created_at"}
	entryRowColumns = []string{"seq", "id", "description", "occurred", "created_at"}
)

func TestTranslate(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   error
		want error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"unique violation", &pq.Error{Code: codeUniqueViolation}, store.ErrAlreadyExists},
		{"fk violation", &pq.Error{Code: codeForeignKeyViolation}, store.ErrNotFound},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := translate(tc.in, `topic "t1"`)
			if !errors.Is(err, tc.want) {
				t.Fatalf("translate(%v) = %v, want %v", tc.in, err, tc.want)
			}
			if !strings.HasPrefix(err.Error(), `topic "t1": `) {
				t.Fatalf("error %q does not name the subject", err)
			}
		})
	}

	other := errors.New("connection reset")
	if got := translate(other, "x"); got != other {
		t.Fatalf("translate passed through %v, got %v", other, got)
	}
	if translate(nil, "x") != nil {
		t.Fatal("translate(nil) should be nil")
	}
}

func TestQueryCreateTopic(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	topic := &model.Topic{ID: "urn:t1", Label: "One", Description: "first", CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec("INSERT INTO topics").
		WithArgs("urn:t1", "One", "first", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryCreateTopic(context.Background(), db, topic); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryCreateTopic_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO topics").
		WillReturnError(&pq.Error{Code: codeUniqueViolation})

	err := queryCreateTopic(context.Background(), db, &model.Topic{ID: "urn:t1", CreatedAt: now, UpdatedAt: now})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestQueryGetTopic(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM topics WHERE id = \\$1").WithArgs("urn:t1").
		WillReturnRows(sqlmock.NewRows(topicRowColumns).AddRow("urn:t1", "One", "first", now, now))

	topic, err := queryGetTopic(context.Background(), db, "urn:t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if topic.ID != "urn:t1" || topic.Label != "One" || topic.Description != "first" {
		t.Fatalf("got %+v", topic)
	}
}

func TestQueryGetTopic_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM topics WHERE id = \\$1").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(topicRowColumns))

	_, err := queryGetTopic(context.Background(), db, "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryUpdateTopic(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	topic := &model.Topic{ID: "urn:t1", Label: "Renamed", Description: "d", UpdatedAt: now}

	mock.ExpectExec("UPDATE topics SET").
		WithArgs("urn:t1", "Renamed", "d", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := queryUpdateTopic(context.Background(), db, topic); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec("UPDATE topics SET").
		WithArgs("urn:t1", "Renamed", "d", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := queryUpdateTopic(context.Background(), db, topic); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryListTopics(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM topics ORDER BY id").
		WillReturnRows(sqlmock.NewRows(topicRowColumns).
			AddRow("a", "A", "", now, now).
			AddRow("b", "B", "", now, now))

	topics, err := queryListTopics(context.Background(), db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(topics) != 2 || topics[0].ID != "a" || topics[1].ID != "b" {
		t.Fatalf("got %+v", topics)
	}
}

func TestQueryLockTopics(t *testing.T) {
	now := time.Now().UTC()
	for _, tc := range []struct {
		mode   store.LockMode
		clause string
	}{
		{store.LockShared, "FOR SHARE"},
		{store.LockExclusive, "FOR UPDATE"},
	} {
		t.Run(tc.mode.String(), func(t *testing.T) {
			db, mock := newMockDB(t)
			ids := []string{"t2", "missing", "t1", "t2"}
			mock.ExpectQuery("SELECT .+ FROM topics WHERE id = ANY\\(\\$1\\) ORDER BY id " + tc.clause).
				WithArgs(pq.Array(ids)).
				WillReturnRows(sqlmock.NewRows(topicRowColumns).
					AddRow("t1", "", "", now, now).
					AddRow("t2", "", "", now, now))

			topics, err := queryLockTopics(context.Background(), db, ids, tc.mode)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(topics) != 2 || topics[0].ID != "t2" || topics[1].ID != "t1" {
				t.Fatalf("expected [t2 t1] in request order, got %+v", topics)
			}
		})
	}
}

func TestQueryLockTopics_Empty(t *testing.T) {
	db, _ := newMockDB(t)
	topics, err := queryLockTopics(context.Background(), db, nil, store.LockShared)
	if err != nil || topics != nil {
		t.Fatalf("expected no query for empty ids, got %v, %v", topics, err)
	}
}

func TestQueryCreateSubscriber_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO subscribers").
		WithArgs("sub-1", "alice", now).
		WillReturnError(&pq.Error{Code: codeUniqueViolation})

	err := queryCreateSubscriber(context.Background(), db, &model.Subscriber{ID: "sub-1", UserName: "alice", CreatedAt: now})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if !strings.Contains(err.Error(), `"alice"`) {
		t.Fatalf("error %q should name the user", err)
	}
}

func TestQueryGetSubscriber(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM subscribers WHERE user_name = \\$1").WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(subRowColumns).AddRow("sub-1", "alice", now))
	mock.ExpectQuery("SELECT topic_id FROM interests WHERE subscriber_id = \\$1").WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows([]string{"topic_id"}).AddRow("t1").AddRow("t2"))

	sub, err := queryGetSubscriber(context.Background(), db, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.ID != "sub-1" || len(sub.Topics) != 2 || sub.Topics[0] != "t1" {
		t.Fatalf("got %+v", sub)
	}
}

func TestQueryGetSubscriber_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM subscribers WHERE user_name = \\$1").WithArgs("Alice").
		WillReturnError(sql.ErrNoRows)

	if _, err := queryGetSubscriber(context.Background(), db, "Alice"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryListSubscribers(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM subscribers ORDER BY user_name").
		WillReturnRows(sqlmock.NewRows(subRowColumns).
			AddRow("sub-2", "alice", now).
			AddRow("sub-1", "bob", now))
	mock.ExpectQuery("SELECT subscriber_id, topic_id FROM interests").
		WillReturnRows(sqlmock.NewRows([]string{"subscriber_id", "topic_id"}).
			AddRow("sub-1", "t1").
			AddRow("sub-2", "t2").
			AddRow("sub-2", "t3"))

	subs, err := queryListSubscribers(context.Background(), db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 2 || subs[0].UserName != "alice" || len(subs[0].Topics) != 2 || len(subs[1].Topics) != 1 {
		t.Fatalf("got %+v %+v", subs[0], subs[1])
	}
}

func TestQueryAddInterest(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO interests .+ ON CONFLICT DO NOTHING").
		WithArgs("sub-1", "t1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := queryAddInterest(context.Background(), db, "sub-1", "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryAddInterest_MissingTopic(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO interests").
		WithArgs("sub-1", "t404").
		WillReturnError(&pq.Error{Code: codeForeignKeyViolation})

	if err := queryAddInterest(context.Background(), db, "sub-1", "t404"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryRemoveInterest(t *testing.T) {
	existsQuery := "SELECT EXISTS \\(SELECT 1 FROM subscribers WHERE id = \\$1\\)"

	t.Run("deleted", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("DELETE FROM interests").WithArgs("sub-1", "t1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		if err := queryRemoveInterest(context.Background(), db, "sub-1", "t1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("absent link", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("DELETE FROM interests").WithArgs("sub-1", "t1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(existsQuery).WithArgs("sub-1", "t1").
			WillReturnRows(sqlmock.NewRows([]string{"sub", "topic"}).AddRow(true, true))
		if err := queryRemoveInterest(context.Background(), db, "sub-1", "t1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("missing topic", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("DELETE FROM interests").WithArgs("sub-1", "t404").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(existsQuery).WithArgs("sub-1", "t404").
			WillReturnRows(sqlmock.NewRows([]string{"sub", "topic"}).AddRow(true, false))
		err := queryRemoveInterest(context.Background(), db, "sub-1", "t404")
		if !errors.Is(err, store.ErrNotFound) || !strings.Contains(err.Error(), "t404") {
			t.Fatalf("expected ErrNotFound naming t404, got %v", err)
		}
	})
}

func TestQueryGetTopicSubscribers(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT subscriber_id FROM interests WHERE topic_id = \\$1").WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"subscriber_id"}).AddRow("sub-1").AddRow("sub-2"))

	ids, err := queryGetTopicSubscribers(context.Background(), db, "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "sub-1" {
		t.Fatalf("got %v", ids)
	}
}

func TestQueryCreateEvent(t *testing.T) {
	db, mock := newMockDB(t)
	occurred := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO events").
		WithArgs("ev-1", "deploy", occurred, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ev := &model.Event{ID: "ev-1", Description: "deploy", Occurred: occurred, CreatedAt: now}
	if err := queryCreateEvent(context.Background(), db, ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryGetEvent(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM events WHERE id = \\$1").WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows(eventRowColumns).AddRow("ev-1", "deploy", now, now))
	mock.ExpectQuery("SELECT event_id, topic_id FROM event_topics WHERE event_id = ANY\\(\\$1\\) ORDER BY seq").
		WithArgs(pq.Array([]string{"ev-1"})).
		WillReturnRows(sqlmock.NewRows([]string{"event_id", "topic_id"}).AddRow("ev-1", "t2").AddRow("ev-1", "t1"))

	ev, err := queryGetEvent(context.Background(), db, "ev-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Description != "deploy" || len(ev.Topics) != 2 || ev.Topics[0] != "t2" {
		t.Fatalf("got %+v", ev)
	}
}

func TestQueryClassifyEvent(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO event_topics .+ ON CONFLICT DO NOTHING").
		WithArgs("ev-1", "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryClassifyEvent(context.Background(), db, "ev-1", "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryAppendTimeline(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO timelines .+ ON CONFLICT DO NOTHING").
		WithArgs("sub-1", "ev-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryAppendTimeline(context.Background(), db, "sub-1", "ev-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryGetSubscriberTimeline(t *testing.T) {
	db, mock := newMockDB(t)
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := since.Add(time.Hour)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM subscribers WHERE id = \\$1\\)").WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("FROM timelines tl JOIN events e .+ ORDER BY e.occurred, tl.seq").
		WithArgs("sub-1", since).
		WillReturnRows(sqlmock.NewRows(entryRowColumns).
			AddRow(int64(3), "ev-a", "a", t1, now).
			AddRow(int64(7), "ev-b", "b", t1, now))
	mock.ExpectQuery("SELECT event_id, topic_id FROM event_topics").
		WithArgs(pq.Array([]string{"ev-a", "ev-b"})).
		WillReturnRows(sqlmock.NewRows([]string{"event_id", "topic_id"}).AddRow("ev-a", "t1").AddRow("ev-b", "t1"))

	entries, err := queryGetSubscriberTimeline(context.Background(), db, "sub-1", since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 || entries[0].Seq != 3 || entries[1].Event.ID != "ev-b" {
		t.Fatalf("got %+v", entries)
	}
	if len(entries[0].Event.Topics) != 1 || entries[0].Event.Topics[0] != "t1" {
		t.Fatalf("topics not filled: %+v", entries[0].Event)
	}
}

func TestQueryGetSubscriberTimeline_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT EXISTS").WithArgs("sub-404").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := queryGetSubscriberTimeline(context.Background(), db, "sub-404", time.Time{})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryGetTopicTimeline_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM event_topics et JOIN events e .+ ORDER BY e.occurred, et.seq").
		WithArgs("unknown", time.Time{}).
		WillReturnRows(sqlmock.NewRows(entryRowColumns))

	entries, err := queryGetTopicTimeline(context.Background(), db, "unknown", time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty timeline, got %+v", entries)
	}
}

func TestRunInTransaction_Commit(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewFromDB(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM topics WHERE id = ANY\\(\\$1\\) ORDER BY id FOR SHARE").
		WithArgs(pq.Array([]string{"t1"})).
		WillReturnRows(sqlmock.NewRows(topicRowColumns).AddRow("t1", "", "", now, now))
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		if _, err := tx.LockTopics(context.Background(), []string{"t1"}, store.LockShared); err != nil {
			return err
		}
		return tx.CreateEvent(context.Background(), &model.Event{ID: "ev-1", Occurred: now, CreatedAt: now})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunInTransaction_Rollback(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewFromDB(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO timelines").WithArgs("sub-1", "ev-1").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return tx.AppendTimeline(context.Background(), "sub-1", "ev-1")
	})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected driver error, got %v", err)
	}
}

func TestTxStore_NestedTransactionReusesTx(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewFromDB(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return tx.RunInTransaction(context.Background(), func(inner store.Store) error {
			calls++
			if inner != tx {
				t.Error("nested transaction should reuse the outer store")
			}
			return nil
		})
	})
	if err != nil || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}
