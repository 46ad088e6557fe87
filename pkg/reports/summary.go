package reports

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/nscon-gmbh/umbrella-reporting/pkg/entity"
)

// VerdictSummary counts activity events per verdict.
type VerdictSummary struct {
	Allowed int
	Blocked int
	Proxied int
	Other   int
}

// CountVerdicts tallies the verdict of every event.
func CountVerdicts(items []entity.ActivityItem) VerdictSummary {
	var s VerdictSummary
	for _, it := range items {
		switch strings.ToLower(it.Verdict) {
		case "allowed":
			s.Allowed++
		case "blocked":
			s.Blocked++
		case "proxied":
			s.Proxied++
		default:
			s.Other++
		}
	}
	return s
}

// Total is the number of counted events.
func (s VerdictSummary) Total() int {
	return s.Allowed + s.Blocked + s.Proxied + s.Other
}

// Counts returns the non-zero verdict counts keyed by verdict name.
func (s VerdictSummary) Counts() map[string]int {
	out := map[string]int{}
	for name, n := range map[string]int{"allowed": s.Allowed, "blocked": s.Blocked, "proxied": s.Proxied, "other": s.Other} {
		if n > 0 {
			out[name] = n
		}
	}
	return out
}

// Display writes a one-line summary, blocked in red and allowed in green.
func (s VerdictSummary) Display(w io.Writer) {
	fmt.Fprintf(w, "Events: %d, ", s.Total())
	color.New(color.FgRed).Fprintf(w, "blocked: %d", s.Blocked)
	fmt.Fprint(w, ", ")
	color.New(color.FgGreen).Fprintf(w, "allowed: %d", s.Allowed)
	fmt.Fprintf(w, ", proxied: %d", s.Proxied)
	if s.Other > 0 {
		fmt.Fprintf(w, ", other: %d", s.Other)
	}
	fmt.Fprintln(w)
}
