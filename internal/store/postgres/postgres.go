// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/eventfeed/internal/model"
	"github.com/alfredjeanlab/eventfeed/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewFromDB wraps an already open database without migrating it.
func NewFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "feed_schema_migrations"})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateTopic(ctx context.Context, topic *model.Topic) error {
	return queryCreateTopic(ctx, s.db, topic)
}

func (s *PostgresStore) GetTopic(ctx context.Context, id string) (*model.Topic, error) {
	return queryGetTopic(ctx, s.db, id)
}

func (s *PostgresStore) UpdateTopic(ctx context.Context, topic *model.Topic) error {
	return queryUpdateTopic(ctx, s.db, topic)
}

func (s *PostgresStore) ListTopics(ctx context.Context) ([]*model.Topic, error) {
	return queryListTopics(ctx, s.db)
}

// LockTopics outside a transaction only resolves ids; row locks end with
// the implicit single-statement transaction.
func (s *PostgresStore) LockTopics(ctx context.Context, ids []string, mode store.LockMode) ([]*model.Topic, error) {
	return queryLockTopics(ctx, s.db, ids, mode)
}

func (s *PostgresStore) CreateSubscriber(ctx context.Context, sub *model.Subscriber) error {
	return queryCreateSubscriber(ctx, s.db, sub)
}

func (s *PostgresStore) GetSubscriber(ctx context.Context, userName string) (*model.Subscriber, error) {
	return queryGetSubscriber(ctx, s.db, userName)
}

func (s *PostgresStore) ListSubscribers(ctx context.Context) ([]*model.Subscriber, error) {
	return queryListSubscribers(ctx, s.db)
}

func (s *PostgresStore) AddInterest(ctx context.Context, subscriberID, topicID string) error {
	return queryAddInterest(ctx, s.db, subscriberID, topicID)
}

func (s *PostgresStore) RemoveInterest(ctx context.Context, subscriberID, topicID string) error {
	return queryRemoveInterest(ctx, s.db, subscriberID, topicID)
}

func (s *PostgresStore) GetTopicSubscribers(ctx context.Context, topicID string) ([]string, error) {
	return queryGetTopicSubscribers(ctx, s.db, topicID)
}

func (s *PostgresStore) CreateEvent(ctx context.Context, event *model.Event) error {
	return queryCreateEvent(ctx, s.db, event)
}

func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return queryGetEvent(ctx, s.db, id)
}

func (s *PostgresStore) ClassifyEvent(ctx context.Context, eventID, topicID string) error {
	return queryClassifyEvent(ctx, s.db, eventID, topicID)
}

func (s *PostgresStore) ListEvents(ctx context.Context) ([]*model.Event, error) {
	return queryListEvents(ctx, s.db)
}

func (s *PostgresStore) AppendTimeline(ctx context.Context, subscriberID, eventID string) error {
	return queryAppendTimeline(ctx, s.db, subscriberID, eventID)
}

func (s *PostgresStore) GetSubscriberTimeline(ctx context.Context, subscriberID string, since time.Time) ([]*model.TimelineEntry, error) {
	return queryGetSubscriberTimeline(ctx, s.db, subscriberID, since)
}

func (s *PostgresStore) GetTopicTimeline(ctx context.Context, topicID string, since time.Time) ([]*model.TimelineEntry, error) {
	return queryGetTopicTimeline(ctx, s.db, topicID, since)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&txStore{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateTopic(ctx context.Context, topic *model.Topic) error {
	return queryCreateTopic(ctx, s.tx, topic)
}

func (s *txStore) GetTopic(ctx context.Context, id string) (*model.Topic, error) {
	return queryGetTopic(ctx, s.tx, id)
}

func (s *txStore) UpdateTopic(ctx context.Context, topic *model.Topic) error {
	return queryUpdateTopic(ctx, s.tx, topic)
}

func (s *txStore) ListTopics(ctx context.Context) ([]*model.Topic, error) {
	return queryListTopics(ctx, s.tx)
}

// LockTopics holds the row locks until the transaction ends.
func (s *txStore) LockTopics(ctx context.Context, ids []string, mode store.LockMode) ([]*model.Topic, error) {
	return queryLockTopics(ctx, s.tx, ids, mode)
}

func (s *txStore) CreateSubscriber(ctx context.Context, sub *model.Subscriber) error {
	return queryCreateSubscriber(ctx, s.tx, sub)
}

func (s *txStore) GetSubscriber(ctx context.Context, userName string) (*model.Subscriber, error) {
	return queryGetSubscriber(ctx, s.tx, userName)
}

func (s *txStore) ListSubscribers(ctx context.Context) ([]*model.Subscriber, error) {
	return queryListSubscribers(ctx, s.tx)
}

func (s *txStore) AddInterest(ctx context.Context, subscriberID, topicID string) error {
	return queryAddInterest(ctx, s.tx, subscriberID, topicID)
}

func (s *txStore) RemoveInterest(ctx context.Context, subscriberID, topicID string) error {
	return queryRemoveInterest(ctx, s.tx, subscriberID, topicID)
}

func (s *txStore) GetTopicSubscribers(ctx context.Context, topicID string) ([]string, error) {
	return queryGetTopicSubscribers(ctx, s.tx, topicID)
}

func (s *txStore) CreateEvent(ctx context.Context, event *model.Event) error {
	return queryCreateEvent(ctx, s.tx, event)
}

func (s *txStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return queryGetEvent(ctx, s.tx, id)
}

func (s *txStore) ClassifyEvent(ctx context.Context, eventID, topicID string) error {
	return queryClassifyEvent(ctx, s.tx, eventID, topicID)
}

func (s *txStore) ListEvents(ctx context.Context) ([]*model.Event, error) {
	return queryListEvents(ctx, s.tx)
}

func (s *txStore) AppendTimeline(ctx context.Context, subscriberID, eventID string) error {
	return queryAppendTimeline(ctx, s.tx, subscriberID, eventID)
}

func (s *txStore) GetSubscriberTimeline(ctx context.Context, subscriberID string, since time.Time) ([]*model.TimelineEntry, error) {
	return queryGetSubscriberTimeline(ctx, s.tx, subscriberID, since)
}

func (s *txStore) GetTopicTimeline(ctx context.Context, topicID string, since time.Time) ([]*model.TimelineEntry, error) {
	return queryGetTopicTimeline(ctx, s.tx, topicID, since)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
