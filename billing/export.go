// ABOUTME: Excel export of invoices
// ABOUTME: Writes an invoice sheet plus a summary sheet to any writer
package billing

import (
	"fmt"
	"io"

	"github.com/harperreed/agencycrm/models"
	"github.com/xuri/excelize/v2"
)

const (
	invoiceSheet = "Invoices"
	summarySheet = "Summary"
)

var invoiceHeader = []any{"Number", "Counterparty", "Harvest Client ID", "Client ID", "Amount", "Currency", "Status", "Issue Date", "Due Date", "Paid Date", "Subject"}

// ExportXLSX writes invoices as a workbook. Amounts are numeric cells.
func ExportXLSX(w io.Writer, invoices []models.Invoice) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", invoiceSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(invoiceSheet, "A1", &invoiceHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, inv := range invoices {
		var clientID any
		if inv.ClientID != nil {
			clientID = *inv.ClientID
		}
		row := []any{
			inv.Number, inv.HarvestClientName, inv.HarvestClientID, clientID,
			inv.Amount.InexactFloat64(), inv.Currency, inv.Status,
			inv.IssueDate, inv.DueDate, inv.PaidDate, inv.Subject,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(invoiceSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write invoice %d: %w", inv.HarvestInvoiceID, err)
		}
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}
	if err := f.SetColStyle(invoiceSheet, "E", money); err != nil {
		return err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to add summary sheet: %w", err)
	}
	s := Summarize(invoices)
	rows := [][]any{
		{"Invoices", s.Count},
		{"Total Invoiced", s.TotalInvoiced.InexactFloat64()},
		{"Total Paid", s.TotalPaid.InexactFloat64()},
		{"Outstanding", s.Outstanding.InexactFloat64()},
	}
	for i, row := range rows {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return err
		}
	}

	return f.Write(w)
}
