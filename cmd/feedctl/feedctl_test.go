package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/eventfeed/internal/feed"
	"github.com/alfredjeanlab/eventfeed/internal/model"
	"github.com/alfredjeanlab/eventfeed/internal/ui"
)

func init() {
	ui.ForceNoColor()
}

func TestParseProperties(t *testing.T) {
	got, err := parseProperties([]string{
		"DocumentUrl=http://example.com/d/1",
		"amount=120.5",
		"tags=[\"a\",\"b\"]",
		"empty=",
		"note=a=b",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["DocumentUrl"] != "http://example.com/d/1" {
		t.Errorf("DocumentUrl = %#v", got["DocumentUrl"])
	}
	if got["amount"] != 120.5 {
		t.Errorf("amount = %#v", got["amount"])
	}
	if tags, ok := got["tags"].([]any); !ok || len(tags) != 2 {
		t.Errorf("tags = %#v", got["tags"])
	}
	if got["empty"] != "" {
		t.Errorf("empty = %#v", got["empty"])
	}
	if got["note"] != "a=b" {
		t.Errorf("note = %#v", got["note"])
	}

	for _, bad := range []string{"novalue", "=v"} {
		if _, err := parseProperties([]string{bad}); err == nil {
			t.Errorf("parseProperties(%q) should fail", bad)
		}
	}
	if got, err := parseProperties(nil); got != nil || err != nil {
		t.Errorf("parseProperties(nil) = %v, %v", got, err)
	}
}

func TestParseTime(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2024-05-01T12:00:00Z", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), false},
		{"2024-05-01T12:00:00.5Z", time.Date(2024, 5, 1, 12, 0, 0, 5e8, time.UTC), false},
		{"2024-05-01", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), false},
		{"yesterday", time.Time{}, true},
	} {
		got, err := parseTime(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseTime(%q) should fail", tc.in)
			}
			continue
		}
		if err != nil || !got.Equal(tc.want) {
			t.Errorf("parseTime(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
}

func TestPrintEventTable(t *testing.T) {
	var buf bytes.Buffer
	occurred := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	printEventTable(&buf, []*model.Event{
		{ID: "ev-1", Description: "deploy", Occurred: occurred, Topics: []string{"t1", "t2"}},
		{ID: "ev-2", Description: strings.Repeat("x", 80), Occurred: occurred},
	})

	out := buf.String()
	for _, want := range []string{"ID", "OCCURRED", "ev-1", "2024-05-01 12:00:00", "t1,t2", "...", "2 events"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintProperties(t *testing.T) {
	var buf bytes.Buffer
	printProperties(&buf, map[string]any{"b": 2.0, "a": "x"})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "a") || !strings.Contains(lines[0], `"x"`) {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}

	buf.Reset()
	printProperties(&buf, map[string]any{})
	if !strings.Contains(buf.String(), "no properties") {
		t.Fatalf("unexpected output for empty map: %q", buf.String())
	}
}

func TestPrintNotice(t *testing.T) {
	n := notice{Subject: "feed.event.raised", Payload: json.RawMessage(`{"reached":2}`)}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	if err := printNotice(&buf, n, at); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "2024-05-01 12:00:00 feed.event.raised {\"reached\":2}\n" {
		t.Fatalf("printNotice = %q", got)
	}
}

func TestColorizeHelpOutput_NoColorIsIdentity(t *testing.T) {
	in := "Feed:\n  topic       Assert and inspect topics\n\nFlags:\n      --since string   only events (default \"\")\n"
	if got := colorizeHelpOutput(in); got != in {
		t.Fatalf("colorizeHelpOutput changed text without color:\n%q", got)
	}
}

// execute runs feedctl against a fresh in-memory feed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"FEED_CONFIG", "FEED_DATABASE_URL", "FEED_NATS_URL", "FEED_PROPS_BACKEND"} {
		t.Setenv(key, "")
	}
	t.Setenv("FEED_PROPS_CACHE_TTL", "0")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--log-level=error"))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		jsonOutput = false
	})
	err := rootCmd.Execute()
	closeService()
	return out.String(), err
}

func TestExecute_TopicAssert(t *testing.T) {
	out, err := execute(t, "topic", "assert", "urn:team:eng", "--label", "Engineering", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var topic model.Topic
	if err := json.Unmarshal([]byte(out), &topic); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}
	if topic.ID != "urn:team:eng" || topic.Label != "Engineering" {
		t.Fatalf("got %+v", topic)
	}
}

func TestExecute_UnknownTopicTimelineIsEmpty(t *testing.T) {
	out, err := execute(t, "timeline", "topic", "urn:nothing", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("expected empty JSON array, got %q", out)
	}
}

func TestExecute_UnknownSubscriber(t *testing.T) {
	_, err := execute(t, "timeline", "subscriber", "ghost")
	if !errors.Is(err, feed.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExecute_RaiseWithoutTopics(t *testing.T) {
	out, err := execute(t, "event", "raise", "orphan", "--occurred", "2024-05-01T12:00:00Z", "--json=false")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Raised ev-") || !strings.Contains(out, "reached no timeline") {
		t.Fatalf("unexpected output: %q", out)
	}
}
