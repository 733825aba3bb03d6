package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/jubilee/angel"
	"github.com/hupe1980/jubilee/core"
)

// render prints one event. Progress events are only shown when verbose.
func render(w io.Writer, ev core.Event, verbose bool) {
	prefix := ""
	if ev.Source != "" {
		prefix = "[" + ev.Source + "] "
	}
	switch ev.Type {
	case core.EventThinking:
		if verbose {
			fmt.Fprintf(w, "%s… %s\n", prefix, ev.Message)
		}
	case core.EventToolStart:
		if verbose {
			fmt.Fprintf(w, "%s→ %s\n", prefix, ev.Tool)
		}
	case core.EventToolEnd:
		if verbose {
			fmt.Fprintf(w, "%s← %s: %s\n", prefix, ev.Tool, firstLine(ev.Result))
		}
	case core.EventToolError:
		if verbose {
			fmt.Fprintf(w, "%s✗ %s: %s\n", prefix, ev.Tool, ev.Error)
		}
	case core.EventDone:
		fmt.Fprintln(w, ev.Answer)
		if verbose {
			fmt.Fprintf(w, "(%d iterations, %dms)\n", ev.Iterations, ev.TotalTimeMs)
		}
	case core.EventError:
		fmt.Fprintln(w, "error:", ev.Message)
	case core.EventAborted:
		fmt.Fprintln(w, "aborted:", ev.Message)
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	if len(line) > 120 {
		line = line[:120] + "…"
	}
	return line
}

func printRoles(w io.Writer, roles angel.Roles, modes angel.Modes) {
	for _, key := range roles.Keys() {
		r, _ := roles.Get(key)
		status := "available"
		if !modes.Allows(r.RequiredMode) {
			status = "requires " + string(r.RequiredMode) + " mode"
		}
		caps := make([]string, len(r.Capabilities))
		for i, c := range r.Capabilities {
			caps[i] = string(c)
		}
		fmt.Fprintf(w, "%s %s (%s)\n  domain: %s\n  tools: %s\n", r.Emoji, key, status, r.Domain, strings.Join(caps, ", "))
	}
}
