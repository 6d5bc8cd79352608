// ABOUTME: Terminal dashboard statistics and rendering
// ABOUTME: Summarizes pipelines by stage and invoice reconciliation state as ASCII
package viz

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/agencycrm/billing"
	"github.com/harperreed/agencycrm/models"
	"github.com/shopspring/decimal"
)

// StageStats is one pipeline column's totals.
type StageStats struct {
	Stage string
	Count int
	Value decimal.Decimal
}

type DashboardStats struct {
	Pipelines map[models.EntityType][]StageStats

	Invoices        models.FinancialSummary
	UnmatchedCount  int
	UnmatchedAmount decimal.Decimal
}

// StatsSource is where dashboard numbers come from, usually the API client.
type StatsSource interface {
	Records(ctx context.Context, entity models.EntityType) ([]models.Record, error)
	Invoices(ctx context.Context) ([]models.Invoice, error)
	Unmatched(ctx context.Context) ([]models.UnmatchedCounterparty, error)
}

// GatherStats collects every pipeline plus the invoice and reconciliation totals.
func GatherStats(ctx context.Context, src StatsSource) (*DashboardStats, error) {
	stats := &DashboardStats{Pipelines: make(map[models.EntityType][]StageStats)}

	for _, entity := range models.AllEntityTypes {
		if !models.HasPipeline(entity) {
			continue
		}
		records, err := src.Records(ctx, entity)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", entity, err)
		}
		stats.Pipelines[entity] = StageCounts(entity, records)
	}

	invoices, err := src.Invoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	stats.Invoices = billing.Summarize(invoices)

	unmatched, err := src.Unmatched(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load unmatched counterparties: %w", err)
	}
	stats.UnmatchedCount = len(unmatched)
	for _, u := range unmatched {
		stats.UnmatchedAmount = stats.UnmatchedAmount.Add(u.TotalAmount)
	}

	return stats, nil
}

// valueFields names the money field summed per stage, where one exists.
var valueFields = map[models.EntityType]string{
	models.EntityLeads:   "estimated_value",
	models.EntityClients: "contract_value",
}

// StageCounts tallies records of a pipeline entity by stage, in stage order.
// Records outside the declared stages are ignored.
func StageCounts(entity models.EntityType, records []models.Record) []StageStats {
	stages := models.Stages(entity)
	out := make([]StageStats, len(stages))
	index := make(map[string]int, len(stages))
	for i, s := range stages {
		out[i].Stage = s
		index[s] = i
	}

	valueField := valueFields[entity]
	for _, r := range records {
		status, _ := r.Field("status").(string)
		i, ok := index[status]
		if !ok {
			continue
		}
		out[i].Count++
		if valueField == "" {
			continue
		}
		if v, ok := r.Field(valueField).(float64); ok {
			out[i].Value = out[i].Value.Add(decimal.NewFromFloat(v))
		}
	}
	return out
}

func RenderDashboard(stats *DashboardStats) string {
	var out strings.Builder

	// Header
	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	out.WriteString("  AGENCY CRM DASHBOARD\n")
	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	for _, entity := range models.AllEntityTypes {
		pipeline, ok := stats.Pipelines[entity]
		if !ok {
			continue
		}
		out.WriteString(strings.ToUpper(string(entity)) + " PIPELINE\n")
		renderPipeline(&out, pipeline)
		out.WriteString("\n")
	}

	out.WriteString("INVOICES\n")
	out.WriteString(fmt.Sprintf("  %d invoices  invoiced $%s  paid $%s  outstanding $%s\n",
		stats.Invoices.Count,
		stats.Invoices.TotalInvoiced.StringFixed(2),
		stats.Invoices.TotalPaid.StringFixed(2),
		stats.Invoices.Outstanding.StringFixed(2)))

	if stats.UnmatchedCount > 0 {
		out.WriteString("\nNEEDS ATTENTION\n")
		out.WriteString(fmt.Sprintf("  ⚠️  %d Harvest clients unlinked ($%s invoiced)\n",
			stats.UnmatchedCount, stats.UnmatchedAmount.StringFixed(2)))
	}

	return out.String()
}

func renderPipeline(out *strings.Builder, pipeline []StageStats) {
	// Find max count for scaling
	maxCount := 0
	for _, s := range pipeline {
		if s.Count > maxCount {
			maxCount = s.Count
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}

	for _, s := range pipeline {
		// Calculate bar length (0-10 blocks)
		barLength := (s.Count * 10) / maxCount
		bar := strings.Repeat("█", barLength) + strings.Repeat("░", 10-barLength)

		line := fmt.Sprintf("  %-13s %s  %2d", s.Stage, bar, s.Count)
		if !s.Value.IsZero() {
			line += fmt.Sprintf(" ($%sK)", s.Value.Div(decimal.NewFromInt(1000)).StringFixed(1))
		}
		out.WriteString(line + "\n")
	}
}
