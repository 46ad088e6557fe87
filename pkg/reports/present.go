package reports

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nscon-gmbh/umbrella-reporting/pkg/entity"
)

const (
	unknownIdentity = "Unknown"
	unknownDomain   = "N/A"
)

var (
	DeploymentHeader = []string{"Label", "Active", "Count"}
	ActivityHeader   = []string{"Identity", "Domain", "Count", "Category", "Last Seen"}
)

// Present decodes raw items of the given report type and shapes them.
func Present(kind ReportType, raw []json.RawMessage) (*Table, error) {
	switch kind {
	case Deployment:
		items, err := entity.DecodeDeployments(raw)
		if err != nil {
			return nil, err
		}
		return PresentDeployment(items), nil
	case Activity:
		items, err := entity.DecodeActivity(raw)
		if err != nil {
			return nil, err
		}
		return PresentActivity(items), nil
	}
	return nil, fmt.Errorf("unsupported report type %q", kind)
}

// PresentDeployment emits one row per item: label, active count, count.
func PresentDeployment(items []entity.DeploymentItem) *Table {
	t := &Table{Title: Deployment.Title(), Header: DeploymentHeader}
	for _, it := range items {
		t.Rows = append(t.Rows, []any{it.Label(), it.Active(), it.Total()})
	}
	return t
}

// ActivityRow aggregates all events of one (identity, domain) pair.
type ActivityRow struct {
	Identity   string
	Domain     string
	Count      int
	Categories []string
	LastSeen   string

	lastSeenAt time.Time
}

// PresentActivity aggregates events by (identity, domain).
func PresentActivity(items []entity.ActivityItem) *Table {
	t := &Table{Title: Activity.Title(), Header: ActivityHeader}
	for _, r := range AggregateActivity(items) {
		t.Rows = append(t.Rows, []any{r.Identity, r.Domain, r.Count, strings.Join(r.Categories, ", "), r.LastSeen})
	}
	return t
}

// AggregateActivity groups events by (identity, domain), defaulting a missing
// identity to "Unknown" and a missing domain to "N/A". Rows are ordered by
// count descending, then identity, then domain.
func AggregateActivity(items []entity.ActivityItem) []ActivityRow {
	type key struct{ identity, domain string }
	index := map[key]int{}
	var rows []ActivityRow

	for _, it := range items {
		k := key{identity: it.PrimaryIdentity(), domain: it.Domain}
		if k.identity == "" {
			k.identity = unknownIdentity
		}
		if k.domain == "" {
			k.domain = unknownDomain
		}
		i, ok := index[k]
		if !ok {
			i = len(rows)
			index[k] = i
			rows = append(rows, ActivityRow{Identity: k.identity, Domain: k.domain})
		}
		row := &rows[i]
		row.Count++
		for _, c := range it.Categories {
			if !contains(row.Categories, c.Label) {
				row.Categories = append(row.Categories, c.Label)
			}
		}
		seen, at := displayDate(it), eventTime(it)
		if row.Count == 1 || later(at, seen, row.lastSeenAt, row.LastSeen) {
			row.LastSeen, row.lastSeenAt = seen, at
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		if rows[i].Identity != rows[j].Identity {
			return rows[i].Identity < rows[j].Identity
		}
		return rows[i].Domain < rows[j].Domain
	})
	return rows
}

// later compares chronologically when both events have a parsed time and
// falls back to comparing the displayed date strings.
func later(at time.Time, seen string, curAt time.Time, cur string) bool {
	if !at.IsZero() && !curAt.IsZero() {
		return at.After(curAt)
	}
	return seen > cur
}

var eventLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// eventTime is the event's instant, or the zero time when it cannot be
// determined. Umbrella timestamps are epoch milliseconds.
func eventTime(it entity.ActivityItem) time.Time {
	if it.Date != "" {
		candidates := []string{it.Date}
		if it.Time != "" {
			candidates = []string{it.Date + " " + it.Time, it.Date + "T" + it.Time + "Z", it.Date}
		}
		for _, c := range candidates {
			for _, layout := range eventLayouts {
				if t, err := time.Parse(layout, c); err == nil {
					return t
				}
			}
		}
	}
	if it.Timestamp > 0 {
		return time.UnixMilli(it.Timestamp).UTC()
	}
	return time.Time{}
}

func displayDate(it entity.ActivityItem) string {
	if it.Date != "" {
		return it.Date
	}
	if it.Timestamp > 0 {
		return time.UnixMilli(it.Timestamp).UTC().Format("2006-01-02")
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
