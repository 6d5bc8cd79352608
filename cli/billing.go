// ABOUTME: Billing CLI commands
// ABOUTME: invoices, harvest status/sync/unmatched/link, and the client rollup
package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/harperreed/agencycrm/billing"
	"github.com/harperreed/agencycrm/client"
	"github.com/harperreed/agencycrm/models"
	"github.com/spf13/cobra"
)

func (a *app) invoicesCommand() *cobra.Command {
	var (
		clientID int64
		xlsxPath string
	)

	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "List invoices, optionally for one client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api := a.client()
			var invoices []models.Invoice
			if clientID > 0 {
				view, err := api.ClientInvoices(cmd.Context(), clientID)
				if err != nil {
					return fmt.Errorf("failed to get client invoices: %w", err)
				}
				invoices = view.Invoices
			} else {
				var err error
				if invoices, err = api.Invoices(cmd.Context()); err != nil {
					return fmt.Errorf("failed to get invoices: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			if xlsxPath != "" {
				return exportInvoices(out, xlsxPath, invoices)
			}
			if len(invoices) == 0 {
				fmt.Fprintln(out, "No invoices found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NUMBER\tCOUNTERPARTY\tAMOUNT\tSTATUS\tISSUED\tCLIENT")
			fmt.Fprintln(w, "------\t------------\t------\t------\t------\t------")
			for _, inv := range invoices {
				linked := "-"
				if inv.ClientID != nil {
					linked = fmt.Sprintf("%d", *inv.ClientID)
				}
				fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\t%s\n",
					dash(inv.Number), inv.HarvestClientName, inv.Amount.StringFixed(2), inv.Currency,
					inv.Status, dash(inv.IssueDate), linked)
			}
			w.Flush()

			writeSummary(out, billing.Summarize(invoices))
			return nil
		},
	}

	cmd.Flags().Int64Var(&clientID, "client", 0, "Only invoices linked to this client ID")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write the invoices to an Excel workbook instead of printing them")
	return cmd
}

func exportInvoices(out io.Writer, path string, invoices []models.Invoice) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := billing.ExportXLSX(f, invoices); err != nil {
		f.Close()
		return fmt.Errorf("failed to export invoices: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Wrote %d invoice(s) to %s\n", len(invoices), path)
	return nil
}

func writeSummary(out io.Writer, s models.FinancialSummary) {
	fmt.Fprintf(out, "\nTotal: %d invoice(s)  invoiced $%s  paid $%s  outstanding $%s\n",
		s.Count, s.TotalInvoiced.StringFixed(2), s.TotalPaid.StringFixed(2), s.Outstanding.StringFixed(2))
}

func (a *app) harvestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Harvest invoice sync and counterparty reconciliation",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show invoice sync status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				status, err := a.client().HarvestStatus(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to get sync status: %w", err)
				}

				out := cmd.OutOrStdout()
				if !status.Configured {
					fmt.Fprintln(out, "Harvest is not configured (set HARVEST_ACCOUNT_ID and HARVEST_ACCESS_TOKEN)")
					return nil
				}
				fmt.Fprintf(out, "Status: %s\n", status.Status)
				if status.LastSyncTime != nil {
					fmt.Fprintf(out, "Last sync: %s\n", status.LastSyncTime.Local().Format(time.DateTime))
				} else {
					fmt.Fprintln(out, "Last sync: never")
				}
				if status.ErrorMessage != "" {
					fmt.Fprintf(out, "Error: %s\n", status.ErrorMessage)
				}
				fmt.Fprintf(out, "Invoices: %d\n", status.InvoiceCount)
				return nil
			},
		},
		&cobra.Command{
			Use:   "sync",
			Short: "Pull every invoice from Harvest and match counterparties",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				result, err := a.client().HarvestSync(cmd.Context())
				if err != nil {
					return fmt.Errorf("invoice sync failed: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "✓ Synced %d invoices\n", result.InvoicesSynced)
				fmt.Fprintf(out, "  Clients matched: %d\n", result.ClientsMatched)
				if result.ClientsUnmatched > 0 {
					fmt.Fprintf(out, "  ⚠️  Clients unmatched: %d (see: agencycrm harvest unmatched)\n", result.ClientsUnmatched)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "unmatched",
			Short: "List Harvest clients not linked to a CRM client",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				unmatched, err := a.client().Unmatched(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list unmatched counterparties: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(unmatched) == 0 {
					fmt.Fprintln(out, "✓ Every Harvest client is linked")
					return nil
				}

				clients, err := client.ListRecords[*models.Client](cmd.Context(), a.client(), models.EntityClients)
				if err != nil {
					return fmt.Errorf("failed to fetch clients: %w", err)
				}
				matcher := billing.NewClientMatcher(clients)

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "HARVEST ID\tNAME\tINVOICES\tTOTAL\tSUGGESTED CLIENT")
				fmt.Fprintln(w, "----------\t----\t--------\t-----\t----------------")
				for _, u := range unmatched {
					suggested := "-"
					if c, ok := matcher.FindMatch(u.HarvestClientName); ok {
						suggested = fmt.Sprintf("%s (%d)", c.Name, c.ID)
					}
					fmt.Fprintf(w, "%d\t%s\t%d\t$%s\t%s\n", u.HarvestClientID, u.HarvestClientName, u.InvoiceCount, u.TotalAmount.StringFixed(2), suggested)
				}
				w.Flush()

				fmt.Fprintf(out, "\nTotal: %d unmatched counterparty(ies)\n", len(unmatched))
				return nil
			},
		},
		&cobra.Command{
			Use:   "link <harvest-client-id> <client-id>",
			Short: "Link a Harvest client to a CRM client and attach its invoices",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				harvestID, err := parseID(args[0])
				if err != nil {
					return err
				}
				clientID, err := parseID(args[1])
				if err != nil {
					return err
				}

				updated, err := a.client().LinkHarvestClient(cmd.Context(), harvestID, clientID)
				if err != nil {
					return fmt.Errorf("failed to link counterparty: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Linked Harvest client %d to client %d (%d invoices updated)\n", harvestID, clientID, updated)
				return nil
			},
		},
	)
	return cmd
}

func (a *app) rollupCommand() *cobra.Command {
	var (
		save  bool
		edits billing.Edits
	)
	editFlags := []struct {
		name, usage string
		dst         **string
	}{
		{"lifetime-value", "Use this lifetime value instead of the computed one", &edits.LifetimeValue},
		{"avg-annual-revenue", "Use this average annual revenue instead of the computed one", &edits.AvgAnnualRevenue},
		{"contract-start", "Use this contract start date (YYYY-MM-DD)", &edits.ContractStart},
		{"contract-value", "Use this contract value instead of the computed one", &edits.ContractValue},
	}

	cmd := &cobra.Command{
		Use:   "rollup <client-id>",
		Short: "Compute a client's lifetime value and average annual revenue from invoices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseID(args[0])
			if err != nil {
				return err
			}

			api := a.client()
			c, err := client.GetRecord[*models.Client](cmd.Context(), api, models.EntityClients, clientID)
			if err != nil {
				return fmt.Errorf("failed to get client: %w", err)
			}
			view, err := api.ClientInvoices(cmd.Context(), clientID)
			if err != nil {
				return fmt.Errorf("failed to get client invoices: %w", err)
			}

			// An explicitly empty flag blanks the field so it is not saved.
			for _, f := range editFlags {
				if cmd.Flags().Changed(f.name) {
					v, _ := cmd.Flags().GetString(f.name)
					*f.dst = &v
				}
			}

			rollup := billing.ComputeRollup(view.Invoices, c.ContractStart, time.Now())
			draft := rollup.Draft().Apply(edits)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%d invoices)\n", c.Name, len(view.Invoices))
			fmt.Fprintf(out, "  Lifetime value:      %s\n", dollars(draft.LifetimeValue))
			fmt.Fprintf(out, "  Avg annual revenue:  %s\n", dollars(draft.AvgAnnualRevenue))
			fmt.Fprintf(out, "  Contract start:      %s\n", dash(draft.ContractStart))
			fmt.Fprintf(out, "  Contract value:      %s\n", dollars(draft.ContractValue))

			if !save {
				return nil
			}
			updates, err := draft.Updates()
			if err != nil {
				return err
			}
			saved, err := api.SaveFields(cmd.Context(), models.EntityClients, clientID, updates)
			for _, name := range saved {
				fmt.Fprintf(out, "✓ %s saved\n", name)
			}
			if err != nil {
				return fmt.Errorf("saved %d of %d fields: %w", len(saved), len(updates), err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Write the values onto the client; blank values are skipped")
	for _, f := range editFlags {
		cmd.Flags().String(f.name, "", f.usage)
	}
	return cmd
}

func dollars(s string) string {
	if s == "" {
		return "- (unchanged)"
	}
	return "$" + s
}
