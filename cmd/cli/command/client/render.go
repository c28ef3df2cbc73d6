package client

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"linetest/internal/eventclient"
	"linetest/internal/routing"
)

var (
	passColor    = color.New(color.FgGreen, color.Bold)
	failColor    = color.New(color.FgRed, color.Bold)
	testingColor = color.New(color.FgYellow)
	pendingColor = color.New(color.FgHiBlack)
)

func statusColor(s routing.Status) *color.Color {
	switch s {
	case routing.StatusPass:
		return passColor
	case routing.StatusFail:
		return failColor
	case routing.StatusTesting:
		return testingColor
	default:
		return pendingColor
	}
}

// RenderBoard prints the stage table of serial followed by the verdict
func RenderBoard(w io.Writer, serial string, snap map[routing.Stage]routing.Status) {
	if serial == "" {
		serial = "(none)"
	}
	fmt.Fprintf(w, "\nSerial: %s\n", serial)
	fmt.Fprintln(w, strings.Repeat("-", 24))
	for _, stage := range routing.Stages {
		status := snap[stage]
		if status == "" {
			status = routing.StatusPending
		}
		fmt.Fprintf(w, "%-12s ", stage)
		statusColor(status).Fprintln(w, strings.ToUpper(string(status)))
	}
	fmt.Fprintln(w, strings.Repeat("-", 24))

	verdict := routing.VerdictOf(snap)
	fmt.Fprint(w, "Result       ")
	statusColor(verdict).Fprintln(w, strings.ToUpper(string(verdict)))
}

// RenderState prints a connectivity change of the feed
func RenderState(w io.Writer, s eventclient.State) {
	switch s {
	case eventclient.Connected:
		color.New(color.FgGreen).Fprintln(w, "● connected")
	case eventclient.Connecting:
		color.New(color.FgYellow).Fprintln(w, "◌ connecting...")
	default:
		color.New(color.FgRed).Fprintln(w, "○ disconnected, retrying")
	}
}

func RenderUID(w io.Writer, uid string) {
	color.New(color.FgCyan).Fprintf(w, "🔎 UID: %s\n", uid)
}
