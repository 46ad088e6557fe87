package reports

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aquasecurity/table"
	"github.com/fatih/color"

	"github.com/nscon-gmbh/umbrella-reporting/pkg/errs"
)

// Format selects how a Table is written to the console.
type Format string

const (
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat accepts table, markdown or json. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatMarkdown, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("%w: output format %q, expected table, markdown or json", errs.ErrInvalidArgument, s)
}

// Heading is the line printed above a report, e.g.
// "Activity between 1700000000 and 1700086400".
func Heading(kind ReportType, from, to string) string {
	return fmt.Sprintf("%s between %s and %s", kind.Title(), from, to)
}

type jsonReport struct {
	Title  string   `json:"title"`
	Header []string `json:"header"`
	Rows   [][]any  `json:"rows"`
}

// Render writes t to w in the given format. Table and markdown output start
// with the bold title line.
func Render(w io.Writer, t *Table, format Format) error {
	switch format {
	case FormatJSON:
		rows := t.Rows
		if rows == nil {
			rows = [][]any{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(jsonReport{Title: t.Title, Header: t.Header, Rows: rows}); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return nil
	case FormatMarkdown:
		fmt.Fprintf(w, "## %s\n\n", t.Title)
		tw := table.New(w)
		tw.SetDividers(table.MarkdownDividers)
		tw.SetBorderTop(false)
		tw.SetBorderBottom(false)
		tw.SetRowLines(false)
		fill(tw, t)
		tw.Render()
		return nil
	case FormatTable, "":
		color.New(color.Bold).Fprintln(w, t.Title)
		if len(t.Rows) == 0 {
			fmt.Fprintln(w, "No results.")
			return nil
		}
		tw := table.New(w)
		tw.SetDividers(table.UnicodeRoundedDividers)
		tw.SetHeaderStyle(table.StyleBold)
		tw.SetRowLines(false)
		fill(tw, t)
		tw.Render()
		return nil
	}
	return fmt.Errorf("%w: output format %q", errs.ErrInvalidArgument, format)
}

func fill(tw *table.Table, t *Table) {
	tw.SetHeaders(t.Header...)
	for _, row := range t.StringRows() {
		tw.AddRow(row...)
	}
}
