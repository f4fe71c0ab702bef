package main

import (
	"github.com/spf13/cobra"
)

var subscriberCmd = &cobra.Command{
	Use:     "subscriber",
	Short:   "Assert and inspect subscribers",
	GroupID: "feed",
}

var subscriberAssertCmd = &cobra.Command{
	Use:   "assert <user-name> [topic-id...]",
	Short: "Create a subscriber interested in the given topics",
	Long: `Create a subscriber interested in the given topics. Unknown topic ids are
ignored. An existing subscriber is left unchanged; use "interest add" and
"interest remove" to change its topics.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := svc.AssertSubscriber(ctx, args[0], args[1:]); err != nil {
			return err
		}
		sub, err := svc.GetSubscriber(ctx, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), sub)
		}
		printSubscriber(cmd.OutOrStdout(), sub)
		return nil
	},
}

var subscriberShowCmd = &cobra.Command{
	Use:   "show <user-name>",
	Short: "Show a subscriber and its topics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sub, err := svc.GetSubscriber(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), sub)
		}
		printSubscriber(cmd.OutOrStdout(), sub)
		return nil
	},
}

func init() {
	subscriberCmd.AddCommand(subscriberAssertCmd)
	subscriberCmd.AddCommand(subscriberShowCmd)
}
