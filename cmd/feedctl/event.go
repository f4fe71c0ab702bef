package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/eventfeed/internal/ui"
)

var eventCmd = &cobra.Command{
	Use:     "event",
	Short:   "Raise events and read their properties",
	GroupID: "feed",
}

var eventRaiseCmd = &cobra.Command{
	Use:   "raise <description>",
	Short: "Raise an event under one or more topics",
	Long: `Raise an event under one or more topics. The event is appended to the
timeline of every subscriber following any of the topics. Unknown topic ids
are ignored.

Properties are given as key=value. A value that parses as JSON is stored as
that JSON value; anything else is stored as a string.`,
	Example: `  feedctl event raise "Invoice paid" --topic urn:acct:42 --prop amount=120.5 --prop currency=EUR`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringArray("topic")
		rawProps, _ := cmd.Flags().GetStringArray("prop")
		occurredStr, _ := cmd.Flags().GetString("occurred")

		occurred := time.Now().UTC()
		if occurredStr != "" {
			t, err := parseTime(occurredStr)
			if err != nil {
				return fmt.Errorf("--occurred: %w", err)
			}
			occurred = t
		}

		properties, err := parseProperties(rawProps)
		if err != nil {
			return err
		}

		ev, err := svc.RaiseEvent(cmd.Context(), args[0], occurred, topics, properties)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), ev)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Raised %s at %s\n", ui.RenderAccent(ev.ID), ui.RenderTime(ev.Occurred))
		if len(ev.Topics) == 0 {
			fmt.Fprintln(w, ui.RenderWarn("no known topics; the event reached no timeline"))
		} else {
			fmt.Fprintf(w, "Topics: %s\n", strings.Join(ev.Topics, ", "))
		}
		return nil
	},
}

var eventDataCmd = &cobra.Command{
	Use:   "data <event-id>",
	Short: "Show the properties attached to an event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ev, err := svc.GetEvent(ctx, args[0])
		if err != nil {
			return err
		}
		data, err := svc.GetEventData(ctx, ev)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), data)
		}
		printProperties(cmd.OutOrStdout(), data)
		return nil
	},
}

// parseProperties turns key=value pairs into a property map.
func parseProperties(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, raw, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q: expected key=value", p)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[key] = v
	}
	return out, nil
}

// parseTime accepts RFC3339 with or without fractional seconds, or a bare date.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not RFC3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

func init() {
	eventRaiseCmd.Flags().StringArrayP("topic", "t", nil, "topic id (repeatable)")
	eventRaiseCmd.Flags().StringArrayP("prop", "p", nil, "property key=value (repeatable)")
	eventRaiseCmd.Flags().String("occurred", "", "when the event occurred (RFC3339; default now)")

	eventCmd.AddCommand(eventRaiseCmd)
	eventCmd.AddCommand(eventDataCmd)
}
