package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/eventfeed/internal/model"
)

var timelineCmd = &cobra.Command{
	Use:     "timeline",
	Short:   "Read subscriber and topic timelines",
	GroupID: "views",
}

var timelineSubscriberCmd = &cobra.Command{
	Use:   "subscriber <user-name>",
	Short: "Events delivered to a subscriber, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		since, err := sinceFlag(cmd)
		if err != nil {
			return err
		}
		evs, err := svc.GetSubscriberTimeline(cmd.Context(), args[0], since)
		if err != nil {
			return err
		}
		return printTimeline(cmd, evs)
	},
}

var timelineTopicCmd = &cobra.Command{
	Use:   "topic <topic-id>",
	Short: "Events classified under a topic, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		since, err := sinceFlag(cmd)
		if err != nil {
			return err
		}
		evs, err := svc.GetTopicTimeline(cmd.Context(), args[0], since)
		if err != nil {
			return err
		}
		return printTimeline(cmd, evs)
	},
}

// sinceFlag returns --since, or the zero time when unset.
func sinceFlag(cmd *cobra.Command) (time.Time, error) {
	s, _ := cmd.Flags().GetString("since")
	if s == "" {
		return time.Time{}, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--since: %w", err)
	}
	return t, nil
}

func printTimeline(cmd *cobra.Command, evs []*model.Event) error {
	if jsonOutput {
		if evs == nil {
			evs = []*model.Event{}
		}
		return printJSON(cmd.OutOrStdout(), evs)
	}
	printEventTable(cmd.OutOrStdout(), evs)
	return nil
}

func init() {
	for _, c := range []*cobra.Command{timelineSubscriberCmd, timelineTopicCmd} {
		c.Flags().String("since", "", "only events that occurred strictly after this time (RFC3339)")
		timelineCmd.AddCommand(c)
	}
}
