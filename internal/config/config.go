// Package config loads feed settings from FEED_* environment variables and
// an optional TOML file named by FEED_CONFIG.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Property side-table backends.
const (
	PropsMemory = "memory"
	PropsBadger = "badger"
	PropsRedis  = "redis"
)

type Config struct {
	DatabaseURL string // FEED_DATABASE_URL (optional, empty = in-memory store)
	NATSURL     string // FEED_NATS_URL (optional, empty = no events)

	// Property side table
	PropsBackend  string        // FEED_PROPS_BACKEND (default "memory")
	PropsDir      string        // FEED_PROPS_DIR (default "./feed-props"; badger only)
	RedisAddr     string        // FEED_REDIS_ADDR (default "localhost:6379"; redis only)
	RedisDB       int           // FEED_REDIS_DB (default 0)
	PropsCacheTTL time.Duration // FEED_PROPS_CACHE_TTL (default 1m; 0 = no cache)

	// Sync settings
	SyncInterval   time.Duration // FEED_SYNC_INTERVAL (default 0 = disabled)
	SyncS3Bucket   string        // FEED_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // FEED_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // FEED_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // FEED_SYNC_S3_KEY (default "feed/backup.jsonl")
	SyncGitRepo    string        // FEED_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // FEED_SYNC_GIT_FILE (default "feed.jsonl")
	SyncGitBranch  string        // FEED_SYNC_GIT_BRANCH (default "main")
}

// File is the TOML layout of FEED_CONFIG. Environment variables override it.
type File struct {
	DatabaseURL string `toml:"database_url"`
	NATSURL     string `toml:"nats_url"`

	Props struct {
		Backend  string `toml:"backend"`
		Dir      string `toml:"dir"`
		CacheTTL string `toml:"cache_ttl"`
	} `toml:"props"`

	Redis struct {
		Addr string `toml:"addr"`
		DB   string `toml:"db"`
	} `toml:"redis"`

	Sync struct {
		Interval   string `toml:"interval"`
		S3Bucket   string `toml:"s3_bucket"`
		S3Endpoint string `toml:"s3_endpoint"`
		S3Region   string `toml:"s3_region"`
		S3Key      string `toml:"s3_key"`
		GitRepo    string `toml:"git_repo"`
		GitFile    string `toml:"git_file"`
		GitBranch  string `toml:"git_branch"`
	} `toml:"sync"`
}

func Load() (*Config, error) {
	var f File
	if path := os.Getenv("FEED_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &f); err != nil {
			return nil, fmt.Errorf("FEED_CONFIG %s: %w", path, err)
		}
	}

	c := &Config{
		DatabaseURL:    envOrDefault("FEED_DATABASE_URL", f.DatabaseURL),
		NATSURL:        envOrDefault("FEED_NATS_URL", f.NATSURL),
		PropsBackend:   envOrDefault("FEED_PROPS_BACKEND", orDefault(f.Props.Backend, PropsMemory)),
		PropsDir:       envOrDefault("FEED_PROPS_DIR", orDefault(f.Props.Dir, "./feed-props")),
		RedisAddr:      envOrDefault("FEED_REDIS_ADDR", orDefault(f.Redis.Addr, "localhost:6379")),
		SyncS3Bucket:   envOrDefault("FEED_SYNC_S3_BUCKET", f.Sync.S3Bucket),
		SyncS3Endpoint: envOrDefault("FEED_SYNC_S3_ENDPOINT", f.Sync.S3Endpoint),
		SyncS3Region:   envOrDefault("FEED_SYNC_S3_REGION", orDefault(f.Sync.S3Region, "us-east-1")),
		SyncS3Key:      envOrDefault("FEED_SYNC_S3_KEY", orDefault(f.Sync.S3Key, "feed/backup.jsonl")),
		SyncGitRepo:    envOrDefault("FEED_SYNC_GIT_REPO", f.Sync.GitRepo),
		SyncGitFile:    envOrDefault("FEED_SYNC_GIT_FILE", orDefault(f.Sync.GitFile, "feed.jsonl")),
		SyncGitBranch:  envOrDefault("FEED_SYNC_GIT_BRANCH", orDefault(f.Sync.GitBranch, "main")),
	}

	switch c.PropsBackend {
	case PropsMemory, PropsBadger, PropsRedis:
	default:
		return nil, fmt.Errorf("FEED_PROPS_BACKEND: unknown backend %q", c.PropsBackend)
	}

	if s := envOrDefault("FEED_REDIS_DB", f.Redis.DB); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("FEED_REDIS_DB: %w", err)
		}
		c.RedisDB = n
	}

	var err error
	if c.PropsCacheTTL, err = parseDuration("FEED_PROPS_CACHE_TTL", orDefault(f.Props.CacheTTL, "1m")); err != nil {
		return nil, err
	}
	if c.SyncInterval, err = parseDuration("FEED_SYNC_INTERVAL", orDefault(f.Sync.Interval, "0")); err != nil {
		return nil, err
	}

	return c, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %s", key, d)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
