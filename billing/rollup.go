// ABOUTME: Financial rollup calculator for client records
// ABOUTME: Derives lifetime value, average annual revenue, and contract figures from invoices
package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/agencycrm/models"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

var daysPerYear = decimal.NewFromFloat(365.25)

// Rollup is a computed, unsaved set of client financial fields.
type Rollup struct {
	LifetimeValue    decimal.Decimal `json:"lifetime_value"`
	AvgAnnualRevenue decimal.Decimal `json:"avg_annual_revenue"`
	ContractStart    string          `json:"contract_start,omitempty"`
	ContractValue    decimal.Decimal `json:"contract_value"`
	YearsElapsed     float64         `json:"years_elapsed"`
}

// ComputeRollup derives client financials from its invoices. manualStart, when
// set, wins over the earliest invoice date. Less than a year of history is
// never extrapolated: the average is the paid total.
func ComputeRollup(invoices []models.Invoice, manualStart string, now time.Time) Rollup {
	summary := Summarize(invoices)
	r := Rollup{
		LifetimeValue: summary.TotalPaid.Round(2),
		ContractValue: summary.TotalInvoiced.Round(2),
		ContractStart: strings.TrimSpace(manualStart),
	}
	if r.ContractStart == "" {
		r.ContractStart = earliestIssueDate(invoices)
	}

	r.AvgAnnualRevenue = r.LifetimeValue
	start, err := time.Parse(dateLayout, r.ContractStart)
	if err != nil {
		return r
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int64(today.Sub(start).Hours() / 24)
	years := decimal.NewFromInt(days).Div(daysPerYear)
	r.YearsElapsed = years.Round(4).InexactFloat64()

	if years.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		r.AvgAnnualRevenue = summary.TotalPaid.Div(years).Round(2)
	}
	return r
}

func earliestIssueDate(invoices []models.Invoice) string {
	var earliest time.Time
	for _, inv := range invoices {
		d, err := time.Parse(dateLayout, inv.IssueDate)
		if err != nil {
			continue
		}
		if earliest.IsZero() || d.Before(earliest) {
			earliest = d
		}
	}
	if earliest.IsZero() {
		return ""
	}
	return earliest.Format(dateLayout)
}

// Draft is the editable form of a rollup. Blank fields are left alone on save.
type Draft struct {
	LifetimeValue    string `json:"lifetime_value"`
	AvgAnnualRevenue string `json:"avg_annual_revenue"`
	ContractStart    string `json:"contract_start"`
	ContractValue    string `json:"contract_value"`
}

// Draft renders the rollup for editing.
func (r Rollup) Draft() Draft {
	return Draft{
		LifetimeValue:    r.LifetimeValue.StringFixed(2),
		AvgAnnualRevenue: r.AvgAnnualRevenue.StringFixed(2),
		ContractStart:    r.ContractStart,
		ContractValue:    r.ContractValue.StringFixed(2),
	}
}

// Edits are user changes to a draft made before saving. A nil field keeps the
// computed value. An empty string blanks the field so saving leaves the
// client's stored value alone.
type Edits struct {
	LifetimeValue    *string
	AvgAnnualRevenue *string
	ContractStart    *string
	ContractValue    *string
}

// Apply returns the draft with e's fields substituted.
func (d Draft) Apply(e Edits) Draft {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&d.LifetimeValue, e.LifetimeValue)
	set(&d.AvgAnnualRevenue, e.AvgAnnualRevenue)
	set(&d.ContractStart, e.ContractStart)
	set(&d.ContractValue, e.ContractValue)
	return d
}

// Updates returns the field writes for every non-blank draft field, in a
// fixed order.
func (d Draft) Updates() ([]models.FieldUpdate, error) {
	fields := []struct {
		name  string
		value string
		date  bool
	}{
		{"lifetime_value", d.LifetimeValue, false},
		{"avg_annual_revenue", d.AvgAnnualRevenue, false},
		{"contract_start", d.ContractStart, true},
		{"contract_value", d.ContractValue, false},
	}

	var updates []models.FieldUpdate
	for _, f := range fields {
		v := strings.TrimSpace(f.value)
		if v == "" {
			continue
		}
		if f.date {
			if _, err := time.Parse(dateLayout, v); err != nil {
				return nil, fmt.Errorf("%s must be a YYYY-MM-DD date: %q", f.name, v)
			}
		} else {
			amount, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimPrefix(v, "$"), ",", ""))
			if err != nil {
				return nil, fmt.Errorf("%s must be an amount: %q", f.name, v)
			}
			v = amount.StringFixed(2)
		}
		updates = append(updates, models.FieldUpdate{Field: f.name, Value: v})
	}
	return updates, nil
}
