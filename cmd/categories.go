package cmd

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/nscon-gmbh/umbrella-reporting/pkg/categories"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/entity"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/logger"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/reports"
)

func createCategoriesCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List the categories used to filter activity reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a.reportClient(a.tokenProvider())
			cats, err := categories.NewResolver(client, a.cfg.CategoriesEndpoint(), logger.Named("categories")).Categories(cmd.Context())
			if err != nil {
				return err
			}
			return reports.Render(cmd.OutOrStdout(), categoryTable(cats, all), a.format)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "List every category, not only security categories")
	return cmd
}

func categoryTable(cats []entity.Category, all bool) *reports.Table {
	t := &reports.Table{Title: "Security categories", Header: []string{"ID", "Label"}}
	if all {
		t.Title = "Categories"
		t.Header = []string{"ID", "Label", "Type"}
	}
	sorted := make([]entity.Category, 0, len(cats))
	for _, c := range cats {
		if all || c.IsSecurity() {
			sorted = append(sorted, c)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, c := range sorted {
		row := []any{c.ID, c.Label}
		if all {
			row = append(row, c.Type)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
