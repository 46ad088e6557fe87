package reports

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"time"
)

//go:embed templates/report.html
var templatesFS embed.FS

// HTMLView is the data handed to the HTML template.
type HTMLView struct {
	Title       string
	GeneratedAt string
	Header      []string
	Rows        [][]string
	Total       int
	Verdicts    map[string]int
}

// BuildHTMLView prepares t for the HTML template. summary may be nil.
func BuildHTMLView(t *Table, summary *VerdictSummary, now time.Time) HTMLView {
	v := HTMLView{
		Title:       t.Title,
		GeneratedAt: now.Format(time.RFC1123),
		Header:      t.Header,
		Rows:        t.StringRows(),
		Total:       len(t.Rows),
	}
	if summary != nil {
		v.Verdicts = summary.Counts()
		v.Total = summary.Total()
	}
	return v
}

func parseTemplate() (*template.Template, error) {
	tpl, err := template.New("report.html").Funcs(template.FuncMap{
		"pct": func(part, total int) int {
			if total <= 0 {
				return 0
			}
			return int(float64(part) / float64(total) * 100.0)
		},
	}).ParseFS(templatesFS, "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return tpl, nil
}

// WriteHTML renders view to w.
func WriteHTML(w io.Writer, view HTMLView) error {
	tpl, err := parseTemplate()
	if err != nil {
		return err
	}
	if err := tpl.Execute(w, view); err != nil {
		return fmt.Errorf("render template: %w", err)
	}
	return nil
}

// GenerateHTMLReport writes view to outputPath, replacing any existing file.
func GenerateHTMLReport(view HTMLView, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := WriteHTML(f, view); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report file: %w", err)
	}
	return nil
}
