package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/eventfeed/internal/model"
	"github.com/alfredjeanlab/eventfeed/internal/ui"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printTopic(w io.Writer, t *model.Topic) {
	fmt.Fprintf(w, "ID:          %s\n", ui.RenderAccent(t.ID))
	fmt.Fprintf(w, "Label:       %s\n", t.Label)
	if t.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", t.Description)
	}
	fmt.Fprintf(w, "Created At:  %s\n", ui.RenderTime(t.CreatedAt))
	fmt.Fprintf(w, "Updated At:  %s\n", ui.RenderTime(t.UpdatedAt))
}

func printSubscriber(w io.Writer, s *model.Subscriber) {
	fmt.Fprintf(w, "ID:          %s\n", ui.RenderAccent(s.ID))
	fmt.Fprintf(w, "User:        %s\n", s.UserName)
	if len(s.Topics) > 0 {
		fmt.Fprintf(w, "Topics:      %s\n", strings.Join(s.Topics, ", "))
	} else {
		fmt.Fprintf(w, "Topics:      %s\n", ui.RenderMuted("(none)"))
	}
	fmt.Fprintf(w, "Created At:  %s\n", ui.RenderTime(s.CreatedAt))
}

// printEventTable prints one row per event in the given order.
func printEventTable(w io.Writer, evs []*model.Event) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOCCURRED\tTOPICS\tDESCRIPTION")
	for _, e := range evs {
		desc := e.Description
		if len(desc) > 60 {
			desc = desc[:57] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.ID,
			e.Occurred.UTC().Format(ui.TimeLayout),
			strings.Join(e.Topics, ","),
			desc,
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d events\n", len(evs))
}

// printProperties prints properties sorted by key, values as JSON.
func printProperties(w io.Writer, data map[string]any) {
	if len(data) == 0 {
		fmt.Fprintln(w, ui.RenderMuted("(no properties)"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range slices.Sorted(maps.Keys(data)) {
		v, err := json.Marshal(data[k])
		if err != nil {
			v = []byte(fmt.Sprintf("%v", data[k]))
		}
		fmt.Fprintf(tw, "%s\t%s\n", k, v)
	}
	tw.Flush()
}
