package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/eventfeed/internal/config"
	feedsync "github.com/alfredjeanlab/eventfeed/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Back up the feed to S3 and/or git on FEED_SYNC_INTERVAL",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		once, _ := cmd.Flags().GetBool("once")

		dests, err := syncDestinations(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if len(dests) == 0 {
			return errors.New("no sync destination configured (set FEED_SYNC_S3_BUCKET or FEED_SYNC_GIT_REPO)")
		}

		scheduler := feedsync.NewScheduler(svc.Store(), dests, cfg.SyncInterval, logger)
		if once || cfg.SyncInterval <= 0 {
			return scheduler.SyncOnce(cmd.Context())
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("sync scheduler started", "interval", cfg.SyncInterval, "destinations", len(dests))
		scheduler.Run(ctx)
		logger.Info("sync scheduler stopped", "last_error", scheduler.Last().Err)
		return nil
	},
}

func syncDestinations(ctx context.Context, cfg *config.Config) ([]feedsync.Destination, error) {
	var dests []feedsync.Destination

	if cfg.SyncS3Bucket != "" {
		d, err := feedsync.NewS3Destination(ctx, feedsync.S3Config{
			Bucket:   cfg.SyncS3Bucket,
			Key:      cfg.SyncS3Key,
			Region:   cfg.SyncS3Region,
			Endpoint: cfg.SyncS3Endpoint,
		})
		if err != nil {
			return nil, err
		}
		dests = append(dests, d)
		logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
	}

	if cfg.SyncGitRepo != "" {
		dests = append(dests, feedsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
		logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}

	return dests, nil
}

func init() {
	syncCmd.Flags().Bool("once", false, "sync once and exit")
}
