package main

import (
	"github.com/spf13/cobra"
)

var topicCmd = &cobra.Command{
	Use:     "topic",
	Short:   "Assert and inspect topics",
	GroupID: "feed",
}

var topicAssertCmd = &cobra.Command{
	Use:   "assert <topic-id>",
	Short: "Create a topic, or update its label and description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label, _ := cmd.Flags().GetString("label")
		description, _ := cmd.Flags().GetString("description")

		ctx := cmd.Context()
		if err := svc.AssertTopic(ctx, args[0], label, description); err != nil {
			return err
		}
		t, err := svc.GetTopic(ctx, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), t)
		}
		printTopic(cmd.OutOrStdout(), t)
		return nil
	},
}

var topicShowCmd = &cobra.Command{
	Use:   "show <topic-id>",
	Short: "Show a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := svc.GetTopic(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), t)
		}
		printTopic(cmd.OutOrStdout(), t)
		return nil
	},
}

func init() {
	topicAssertCmd.Flags().String("label", "", "display label")
	topicAssertCmd.Flags().String("description", "", "description")

	topicCmd.AddCommand(topicAssertCmd)
	topicCmd.AddCommand(topicShowCmd)
}
