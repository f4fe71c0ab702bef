package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/eventfeed/internal/ui"
)

var interestCmd = &cobra.Command{
	Use:     "interest",
	Short:   "Change which topics a subscriber follows",
	GroupID: "feed",
}

var interestAddCmd = &cobra.Command{
	Use:   "add <user-name> <topic-id>",
	Short: "Register a subscriber's interest in a topic",
	Long: `Register a subscriber's interest in a topic. Only events raised from now on
reach the subscriber's timeline.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := svc.RegisterInterest(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		return reportInterest(cmd, args[0], args[1], true)
	},
}

var interestRemoveCmd = &cobra.Command{
	Use:   "remove <user-name> <topic-id>",
	Short: "Remove a subscriber's interest in a topic",
	Long: `Remove a subscriber's interest in a topic. Events already on the
subscriber's timeline stay there.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := svc.RemoveInterest(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		return reportInterest(cmd, args[0], args[1], false)
	},
}

func reportInterest(cmd *cobra.Command, userName, topicID string, interested bool) error {
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"user_name":  userName,
			"topic_id":   topicID,
			"interested": interested,
		})
	}
	verb := "now follows"
	if !interested {
		verb = "no longer follows"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", userName, verb, ui.RenderAccent(topicID))
	return nil
}

func init() {
	interestCmd.AddCommand(interestAddCmd)
	interestCmd.AddCommand(interestRemoveCmd)
}
