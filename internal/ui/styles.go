// Package ui styles feedctl terminal output.
package ui

import (
	"fmt"
	"time"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorWarn   = 179 // amber
)

// TimeLayout is how timestamps appear in tables.
const TimeLayout = "2006-01-02 15:04:05"

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color. Used for ids.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderWarn returns s in the warning (amber) color.
func RenderWarn(s string) string { return render(colorWarn, s) }

// RenderTime formats t in UTC with TimeLayout, muted. The zero time renders as "-".
func RenderTime(t time.Time) string {
	if t.IsZero() {
		return RenderMuted("-")
	}
	return RenderMuted(t.UTC().Format(TimeLayout))
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// Configure disables color unless ShouldUseColor reports a capable terminal.
func Configure() {
	if !ShouldUseColor() {
		ForceNoColor()
	}
}
