package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/eventfeed/internal/config"
	"github.com/alfredjeanlab/eventfeed/internal/events"
	"github.com/alfredjeanlab/eventfeed/internal/feed"
	"github.com/alfredjeanlab/eventfeed/internal/props"
	badgerprops "github.com/alfredjeanlab/eventfeed/internal/props/badger"
	redisprops "github.com/alfredjeanlab/eventfeed/internal/props/redis"
	"github.com/alfredjeanlab/eventfeed/internal/store"
	"github.com/alfredjeanlab/eventfeed/internal/store/memory"
	"github.com/alfredjeanlab/eventfeed/internal/store/postgres"
)

// openService assembles the feed from cfg. Partially opened components are
// closed on error.
func openService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*feed.Service, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	pt, err := openProps(ctx, cfg, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	var publisher events.Publisher
	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			pt.Close()
			st.Close()
			return nil, err
		}
		publisher = pub
		logger.Debug("events enabled", "nats_url", cfg.NATSURL)
	} else {
		publisher = events.NoopPublisher{}
		logger.Debug("events disabled (FEED_NATS_URL not set)")
	}

	return feed.New(st, pt, feed.WithPublisher(publisher), feed.WithLogger(logger)), nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("FEED_DATABASE_URL not set; using a process-local in-memory store")
		return memory.New(), nil
	}
	st, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}
	return st, nil
}

func openProps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (props.Table, error) {
	var pt props.Table
	switch cfg.PropsBackend {
	case config.PropsMemory:
		pt = props.NewMemory()
	case config.PropsBadger:
		t, err := badgerprops.Open(badgerprops.Config{
			Dir:      cfg.PropsDir,
			Logger:   logger,
			LogLevel: slog.LevelWarn,
		})
		if err != nil {
			return nil, err
		}
		pt = t
	case config.PropsRedis:
		t, err := redisprops.Open(ctx, redisprops.Config{
			Addr:        cfg.RedisAddr,
			DB:          cfg.RedisDB,
			DialTimeout: 5 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		pt = t
	default:
		return nil, fmt.Errorf("unknown property backend %q", cfg.PropsBackend)
	}

	if cfg.PropsCacheTTL > 0 {
		pt = props.NewCached(pt, cfg.PropsCacheTTL, logger)
	}
	return pt, nil
}
