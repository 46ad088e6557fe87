package cmd

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nscon-gmbh/umbrella-reporting/pkg/categories"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/entity"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/errs"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/logger"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/reports"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/umbrella"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/validate"
)

type reportOptions struct {
	from       string
	to         string
	reportType string
	verdict    string
	limit      int
	maxPages   int
	html       string
}

func createReportCmd(a *app) *cobra.Command {
	var o reportOptions
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a deployment-status or activity report",
		Long: `Queries a report for the window between --from_date and --to_date and prints it.

Dates are either relative (e.g. -7days, now) or epoch seconds; both ends must
be of the same kind. Activity reports are restricted to security categories.`,
		Example: `  umbrella report -r deployment -f -7days
  umbrella report -r activity -f 1704067200 -t 1704153600 --verdict blocked`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runReport(cmd, o)
		},
	}
	cmd.Flags().StringVarP(&o.from, "from_date", "f", "", "Start of the window (required)")
	cmd.Flags().StringVarP(&o.to, "to_date", "t", "now", "End of the window")
	cmd.Flags().StringVarP(&o.reportType, "report_type", "r", "", "Report type: "+reports.ReportTypeNames()+" (required)")
	cmd.Flags().StringVar(&o.verdict, "verdict", "", "Comma-separated verdict filter for activity: allowed, blocked, proxied")
	cmd.Flags().IntVar(&o.limit, "limit", 0, "Page size (default PAGE_LIMIT)")
	cmd.Flags().IntVar(&o.maxPages, "max-pages", 0, "Stop after this many pages, 0 for no limit")
	cmd.Flags().StringVar(&o.html, "html", "", "Also write an HTML report to this path")
	return cmd
}

// checkReportOptions rejects bad arguments before any network call.
func (a *app) checkReportOptions(o *reportOptions) (reports.ReportType, error) {
	if strings.TrimSpace(o.from) == "" {
		return "", fmt.Errorf("%w: --from_date is required", errs.ErrInvalidArgument)
	}
	if strings.TrimSpace(o.reportType) == "" {
		return "", fmt.Errorf("%w: --report_type is required", errs.ErrInvalidArgument)
	}
	kind, err := reports.ParseReportType(o.reportType)
	if err != nil {
		return "", err
	}
	if err := validate.ValidateDates(o.from, o.to); err != nil {
		return "", err
	}
	// Both ends passed CheckDate above; keep the normalized form.
	o.from, _ = validate.CheckDate(o.from)
	o.to, _ = validate.CheckDate(o.to)
	if o.verdict, err = validate.ValidateVerdict(o.verdict); err != nil {
		return "", err
	}
	if o.limit < 0 || o.maxPages < 0 {
		return "", fmt.Errorf("%w: --limit and --max-pages must not be negative", errs.ErrInvalidArgument)
	}
	if o.limit == 0 {
		o.limit = a.cfg.PageLimit
	}
	return kind, nil
}

func (a *app) runReport(cmd *cobra.Command, o reportOptions) error {
	kind, err := a.checkReportOptions(&o)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	client := a.reportClient(a.tokenProvider(), umbrella.WithMaxPages(o.maxPages))

	params := url.Values{}
	params.Set("from", o.from)
	params.Set("to", o.to)
	if kind == reports.Activity {
		if err := a.activityParams(ctx, client, params, o.verdict); err != nil {
			return err
		}
	} else if o.verdict != "" {
		a.log.Warn("verdict filter ignored for deployment report")
	}

	raw, err := client.FetchAll(ctx, kind.Endpoint(), params, o.limit)
	if err != nil {
		return fmt.Errorf("fetch %s report: %w", kind, err)
	}

	var (
		table   *reports.Table
		summary *reports.VerdictSummary
	)
	if kind == reports.Activity {
		items, err := entity.DecodeActivity(raw)
		if err != nil {
			return err
		}
		table = reports.PresentActivity(items)
		s := reports.CountVerdicts(items)
		summary = &s
	} else if table, err = reports.Present(kind, raw); err != nil {
		return err
	}
	table.Title = reports.Heading(kind, o.from, o.to)

	out := cmd.OutOrStdout()
	if err := reports.Render(out, table, a.format); err != nil {
		return err
	}
	if summary != nil && a.format != reports.FormatJSON {
		summary.Display(out)
	}

	if o.html != "" {
		if err := reports.GenerateHTMLReport(reports.BuildHTMLView(table, summary, time.Now()), o.html); err != nil {
			return fmt.Errorf("write HTML report: %w", err)
		}
		a.log.Info("HTML report written", logger.Endpoint(kind.Endpoint()), logger.Count(len(table.Rows)))
		if a.format != reports.FormatJSON {
			color.New(color.FgGreen).Fprintf(out, "HTML report written to %s\n", o.html)
		}
	}
	return nil
}

// activityParams restricts the activity query to security categories and
// the verdict filter.
func (a *app) activityParams(ctx context.Context, q categories.Querier, params url.Values, verdict string) error {
	ids, err := categories.NewResolver(q, a.cfg.CategoriesEndpoint(), logger.Named("categories")).SecurityCategoryIDs(ctx)
	if err != nil {
		return fmt.Errorf("resolve categories: %w", err)
	}
	if len(ids) == 0 {
		a.log.Warn("no security categories found, activity is not filtered by category")
	} else {
		params.Set("categories", categories.FilterParam(ids))
	}
	if verdict != "" {
		params.Set("verdict", verdict)
	}
	return nil
}
