// Command feedctl operates an event feed: topics, subscribers, interests,
// events, and timelines, on the store and side table named by FEED_* settings.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/eventfeed/internal/config"
	"github.com/alfredjeanlab/eventfeed/internal/feed"
	"github.com/alfredjeanlab/eventfeed/internal/ui"
)

var (
	jsonOutput bool
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
	svc    *feed.Service
)

var rootCmd = &cobra.Command{
	Use:           "feedctl <command>",
	Short:         "Manage an event feed",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setup(); err != nil {
			return err
		}
		s, err := openService(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		svc = s
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeService()
	},
}

// closeService closes the feed opened by PersistentPreRunE, if any. Cobra
// skips PersistentPostRun when a command fails, so main calls it too.
func closeService() {
	if svc == nil {
		return
	}
	if err := svc.Close(); err != nil {
		logger.Warn("close feed", "err", err)
	}
	svc = nil
}

// setup loads configuration and builds the logger. Commands that do not need
// the feed service call it from their own PersistentPreRunE.
func setup() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	c, err := config.Load()
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "feed", Title: "Feed:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Feed
	rootCmd.AddCommand(topicCmd)
	rootCmd.AddCommand(subscriberCmd)
	rootCmd.AddCommand(interestCmd)
	rootCmd.AddCommand(eventCmd)

	// Views
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(syncCmd)
}

func main() {
	ui.Configure()
	err := rootCmd.Execute()
	closeService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
