// ABOUTME: Record CLI commands
// ABOUTME: list, values, create, edit, and delete for every entity type
package cli

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/harperreed/agencycrm/client"
	"github.com/harperreed/agencycrm/models"
	"github.com/harperreed/agencycrm/query"
	"github.com/spf13/cobra"
)

func (a *app) listCommand() *cobra.Command {
	var (
		search  string
		filters []string
		sortBy  string
		desc    bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "list <entity>",
		Short: "List records with fuzzy search, filters, and sorting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := parseEntity(args[0])
			if err != nil {
				return err
			}

			q := query.Query{
				Search:       search,
				SearchFields: models.SearchFields(entity),
				Filters:      query.FilterSet{},
				Cap:          limit,
			}
			for _, f := range filters {
				field, value, ok := strings.Cut(f, "=")
				if !ok {
					return fmt.Errorf("expected --filter field=value, got %q", f)
				}
				q.Filters[field] = value
			}
			if sortBy != "" {
				q.Sort = &query.SortSpec{Field: sortBy, Desc: desc}
			}

			records, err := a.client().Records(cmd.Context(), entity)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", entity, err)
			}
			res := query.Run(records, q)

			out := cmd.OutOrStdout()
			if res.Displayed == 0 {
				fmt.Fprintf(out, "No %s found\n", entity)
				return nil
			}

			columns := listColumns(entity)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			header := make([]string, len(columns))
			rule := make([]string, len(columns))
			for i, c := range columns {
				header[i] = strings.ToUpper(c)
				rule[i] = strings.Repeat("-", len(c))
			}
			fmt.Fprintln(w, strings.Join(header, "\t"))
			fmt.Fprintln(w, strings.Join(rule, "\t"))
			for _, r := range res.Records {
				row := make([]string, len(columns))
				for i, c := range columns {
					row[i] = dash(query.Stringify(r.Field(c)))
				}
				fmt.Fprintln(w, strings.Join(row, "\t"))
			}
			w.Flush()

			fmt.Fprintf(out, "\n%s\n", res.Summary())
			return nil
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Fuzzy search text")
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "Exact filter as field=value (repeatable)")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Field to sort by")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum records to show (default 10000)")
	return cmd
}

// listColumns is id, the search fields, then status for pipeline entities.
func listColumns(entity models.EntityType) []string {
	cols := append([]string{"id"}, models.SearchFields(entity)...)
	if (models.HasPipeline(entity) || entity == models.EntityInvoices) && !slices.Contains(cols, "status") {
		cols = append(cols, "status")
	}
	return cols
}

func (a *app) valuesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "values <entity> [field]",
		Short: "Show the distinct values offered as filters",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := parseEntity(args[0])
			if err != nil {
				return err
			}
			fields := models.FilterFields(entity)
			if len(args) == 2 {
				fields = []string{args[1]}
			}

			records, err := a.client().Records(cmd.Context(), entity)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", entity, err)
			}

			out := cmd.OutOrStdout()
			for _, f := range fields {
				values := query.UniqueValues(records, f)
				fmt.Fprintf(out, "%s (%d):\n", f, len(values))
				for _, v := range values {
					fmt.Fprintf(out, "  %s\n", v)
				}
			}
			return nil
		},
	}
}

func (a *app) createCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create <entity> field=value...",
		Short: "Create a record from field assignments",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := parseEntity(args[0])
			if err != nil {
				return err
			}
			fields, _, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}

			created, err := client.CreateRecord[map[string]any](cmd.Context(), a.client(), entity, fields)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", entity, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s %v\n", entity, created["id"])
			return nil
		},
	}
}

func (a *app) editCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <entity> <id> field=value...",
		Short: "Save one or more fields, in order, stopping at the first failure",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := parseEntity(args[0])
			if err != nil {
				return err
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			fields, order, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}

			updates := make([]models.FieldUpdate, len(order))
			for i, name := range order {
				updates[i] = models.FieldUpdate{Field: name, Value: fields[name]}
			}

			saved, err := a.client().SaveFields(cmd.Context(), entity, id, updates)
			out := cmd.OutOrStdout()
			for _, name := range saved {
				fmt.Fprintf(out, "✓ %s saved\n", name)
			}
			if err != nil {
				return fmt.Errorf("saved %d of %d fields: %w", len(saved), len(updates), err)
			}
			return nil
		},
	}
}

func (a *app) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entity> <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := parseEntity(args[0])
			if err != nil {
				return err
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			if err := a.client().DeleteRecord(cmd.Context(), entity, id); err != nil {
				return fmt.Errorf("failed to delete %s %d: %w", entity, id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s %d\n", entity, id)
			return nil
		},
	}
}
