// Package reports shapes raw report items into tables and renders them for
// the console, as JSON, or as an HTML file.
package reports

import (
	"fmt"
	"strings"

	"github.com/nscon-gmbh/umbrella-reporting/pkg/errs"
)

// ReportType selects the reporting endpoint and the shaping of its items.
type ReportType string

const (
	Deployment ReportType = "deployment"
	Activity   ReportType = "activity"
)

// ReportTypes lists the accepted values of --report_type.
var ReportTypes = []ReportType{Deployment, Activity}

// ParseReportType accepts "deployment" or "activity", case-insensitively.
func ParseReportType(s string) (ReportType, error) {
	switch rt := ReportType(strings.ToLower(strings.TrimSpace(s))); rt {
	case Deployment, Activity:
		return rt, nil
	}
	return "", fmt.Errorf("%w: report type %q, expected one of %s", errs.ErrInvalidArgument, s, ReportTypeNames())
}

// ReportTypeNames joins ReportTypes for help and error text.
func ReportTypeNames() string {
	names := make([]string, len(ReportTypes))
	for i, rt := range ReportTypes {
		names[i] = string(rt)
	}
	return strings.Join(names, ", ")
}

// Endpoint is the reporting API path of the report.
func (r ReportType) Endpoint() string {
	if r == Activity {
		return "activity"
	}
	return "deployment-status"
}

// Title is the human-readable report name.
func (r ReportType) Title() string {
	if r == Activity {
		return "Activity"
	}
	return "Deployment Status"
}

// Table is a shaped report. Rows hold typed values (string, int) in Header
// order; renderers format them.
type Table struct {
	Title  string
	Header []string
	Rows   [][]any
}

// StringRows formats every cell with %v.
func (t *Table) StringRows() [][]string {
	out := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		out[i] = cells
	}
	return out
}
