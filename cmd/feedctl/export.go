package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	feedsync "github.com/alfredjeanlab/eventfeed/internal/sync"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Write every topic, subscriber, and event as JSONL",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		if out == "" || out == "-" {
			return feedsync.ExportJSONL(cmd.Context(), svc.Store(), cmd.OutOrStdout())
		}

		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := feedsync.ExportJSONL(cmd.Context(), svc.Store(), f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "exported to %s\n", out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("out", "o", "", "output file (default stdout)")
}
