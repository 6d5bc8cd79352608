// ABOUTME: Tests for the financial rollup calculator
// ABOUTME: Covers lifetime value, partial-year averages, manual start dates, and draft updates
package billing

import (
	"testing"
	"time"

	"github.com/harperreed/agencycrm/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoice(issue, amount, status string) models.Invoice {
	return models.Invoice{IssueDate: issue, Amount: decimal.RequireFromString(amount), Status: status, Currency: "USD"}
}

func day(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRollupOneYear(t *testing.T) {
	invoices := []models.Invoice{
		invoice("2023-06-01", "2000", models.InvoicePaid),
		invoice("2023-01-10", "1000", models.InvoicePaid),
	}

	r := ComputeRollup(invoices, "", day("2024-01-10"))

	assert.Equal(t, "2023-01-10", r.ContractStart)
	assert.True(t, r.LifetimeValue.Equal(decimal.NewFromInt(3000)), r.LifetimeValue.String())
	assert.True(t, r.AvgAnnualRevenue.Equal(decimal.NewFromInt(3000)), r.AvgAnnualRevenue.String())
	assert.True(t, r.ContractValue.Equal(decimal.NewFromInt(3000)), r.ContractValue.String())
}

func TestRollupPartialYearIsNotExtrapolated(t *testing.T) {
	invoices := []models.Invoice{
		invoice("2023-01-10", "1000", models.InvoicePaid),
		invoice("2023-06-01", "2000", models.InvoicePaid),
	}

	r := ComputeRollup(invoices, "", day("2023-07-11"))

	assert.InDelta(t, 0.5, r.YearsElapsed, 0.01)
	assert.Equal(t, "3000.00", r.AvgAnnualRevenue.StringFixed(2))
}

func TestRollupMultiYearAverage(t *testing.T) {
	invoices := []models.Invoice{
		invoice("2021-01-10", "1000", models.InvoicePaid),
		invoice("2022-01-10", "2000", models.InvoicePaid),
		invoice("2023-11-01", "500", models.InvoiceOpen),
	}

	r := ComputeRollup(invoices, "", day("2024-01-10"))

	assert.Equal(t, "3000.00", r.LifetimeValue.StringFixed(2))
	assert.Equal(t, "1000.68", r.AvgAnnualRevenue.StringFixed(2))
	assert.Equal(t, "3500.00", r.ContractValue.StringFixed(2))
}

func TestRollupManualStartWins(t *testing.T) {
	invoices := []models.Invoice{invoice("2023-06-01", "4000", models.InvoicePaid)}

	r := ComputeRollup(invoices, "2020-01-10", day("2024-01-10"))

	assert.Equal(t, "2020-01-10", r.ContractStart)
	assert.Equal(t, "1000.00", r.AvgAnnualRevenue.StringFixed(2))
}

func TestRollupNoInvoices(t *testing.T) {
	r := ComputeRollup(nil, "", day("2024-01-10"))

	assert.Empty(t, r.ContractStart)
	assert.True(t, r.LifetimeValue.IsZero())
	assert.True(t, r.AvgAnnualRevenue.IsZero())
	assert.True(t, r.ContractValue.IsZero())
}

func TestRollupIgnoresUndatedInvoicesForStart(t *testing.T) {
	invoices := []models.Invoice{
		invoice("", "100", models.InvoiceDraft),
		invoice("2023-03-01", "200", models.InvoicePaid),
	}

	r := ComputeRollup(invoices, "", day("2023-04-01"))

	assert.Equal(t, "2023-03-01", r.ContractStart)
	assert.Equal(t, "300.00", r.ContractValue.StringFixed(2))
	assert.Equal(t, "200.00", r.LifetimeValue.StringFixed(2))
}

func TestDraftUpdatesSkipBlankFields(t *testing.T) {
	d := Draft{LifetimeValue: "$3,000", AvgAnnualRevenue: " ", ContractStart: "2023-01-10"}

	updates, err := d.Updates()
	require.NoError(t, err)

	assert.Equal(t, []models.FieldUpdate{
		{Field: "lifetime_value", Value: "3000.00"},
		{Field: "contract_start", Value: "2023-01-10"},
	}, updates)
}

func TestDraftUpdatesRejectBadInput(t *testing.T) {
	_, err := Draft{ContractValue: "lots"}.Updates()
	assert.Error(t, err)

	_, err = Draft{ContractStart: "Jan 10"}.Updates()
	assert.Error(t, err)
}

func TestRollupDraftRoundTrip(t *testing.T) {
	r := ComputeRollup([]models.Invoice{invoice("2023-01-10", "1234.5", models.InvoicePaid)}, "", day("2023-02-01"))

	updates, err := r.Draft().Updates()
	require.NoError(t, err)
	require.Len(t, updates, 4)
	assert.Equal(t, "1234.50", updates[0].Value)
	assert.Equal(t, "contract_value", updates[3].Field)
}

func TestDraftEditsBlankAndOverride(t *testing.T) {
	blank := ""
	edited := "4200.00"
	start := "2022-03-01"

	d := ComputeRollup(nil, "", day("2024-01-10")).Draft().Apply(Edits{
		LifetimeValue:    &blank,
		AvgAnnualRevenue: &blank,
		ContractStart:    &start,
		ContractValue:    &edited,
	})

	updates, err := d.Updates()
	require.NoError(t, err)
	assert.Equal(t, []models.FieldUpdate{
		{Field: "contract_start", Value: "2022-03-01"},
		{Field: "contract_value", Value: "4200.00"},
	}, updates)
}

func TestDraftWithoutEditsKeepsComputedValues(t *testing.T) {
	r := ComputeRollup([]models.Invoice{invoice("2023-01-10", "500", models.InvoicePaid)}, "", day("2023-02-01"))
	assert.Equal(t, r.Draft(), r.Draft().Apply(Edits{}))
}
