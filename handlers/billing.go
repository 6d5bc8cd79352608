// ABOUTME: Billing MCP tool handlers
// ABOUTME: Implements invoice sync, counterparty linking, and the client financial rollup
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/agencycrm/billing"
	"github.com/harperreed/agencycrm/client"
	"github.com/harperreed/agencycrm/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type BillingHandlers struct {
	api *client.Client
	now func() time.Time
}

func NewBillingHandlers(api *client.Client) *BillingHandlers {
	return &BillingHandlers{api: api, now: time.Now}
}

type EmptyInput struct{}

type HarvestStatusOutput struct {
	Configured   bool   `json:"configured"`
	Status       string `json:"status"`
	LastSyncTime string `json:"last_sync_time,omitempty"`
	LastRunID    string `json:"last_run_id,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	InvoiceCount int    `json:"invoice_count"`
}

func (h *BillingHandlers) HarvestStatus(ctx context.Context, request *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, HarvestStatusOutput, error) {
	status, err := h.api.HarvestStatus(ctx)
	if err != nil {
		return nil, HarvestStatusOutput{}, fmt.Errorf("failed to get sync status: %w", err)
	}

	out := HarvestStatusOutput{
		Configured:   status.Configured,
		Status:       status.Status,
		LastRunID:    status.LastRunID,
		ErrorMessage: status.ErrorMessage,
		InvoiceCount: status.InvoiceCount,
	}
	if status.LastSyncTime != nil {
		out.LastSyncTime = status.LastSyncTime.UTC().Format(time.RFC3339)
	}
	return &mcp.CallToolResult{}, out, nil
}

func (h *BillingHandlers) SyncInvoices(ctx context.Context, request *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, models.SyncResult, error) {
	result, err := h.api.HarvestSync(ctx)
	if err != nil {
		return nil, models.SyncResult{}, fmt.Errorf("invoice sync failed: %w", err)
	}
	return &mcp.CallToolResult{}, result, nil
}

type CounterpartyOutput struct {
	HarvestClientID   int64  `json:"harvest_client_id"`
	HarvestClientName string `json:"harvest_client_name"`
	InvoiceCount      int    `json:"invoice_count"`
	TotalAmount       string `json:"total_amount"`
	SuggestedClientID int64  `json:"suggested_client_id,omitempty"`
	SuggestedClient   string `json:"suggested_client,omitempty"`
}

type ListUnmatchedOutput struct {
	Counterparties []CounterpartyOutput `json:"counterparties"`
	Count          int                  `json:"count"`
}

func (h *BillingHandlers) ListUnmatched(ctx context.Context, request *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, ListUnmatchedOutput, error) {
	unmatched, err := h.api.Unmatched(ctx)
	if err != nil {
		return nil, ListUnmatchedOutput{}, fmt.Errorf("failed to list unmatched counterparties: %w", err)
	}

	clients, err := client.ListRecords[*models.Client](ctx, h.api, models.EntityClients)
	if err != nil {
		return nil, ListUnmatchedOutput{}, fmt.Errorf("failed to fetch clients: %w", err)
	}
	matcher := billing.NewClientMatcher(clients)

	out := ListUnmatchedOutput{Counterparties: make([]CounterpartyOutput, len(unmatched)), Count: len(unmatched)}
	for i, u := range unmatched {
		out.Counterparties[i] = CounterpartyOutput{
			HarvestClientID:   u.HarvestClientID,
			HarvestClientName: u.HarvestClientName,
			InvoiceCount:      u.InvoiceCount,
			TotalAmount:       u.TotalAmount.StringFixed(2),
		}
		if c, ok := matcher.FindMatch(u.HarvestClientName); ok {
			out.Counterparties[i].SuggestedClientID = c.ID
			out.Counterparties[i].SuggestedClient = c.Name
		}
	}
	return &mcp.CallToolResult{}, out, nil
}

type LinkCounterpartyInput struct {
	HarvestClientID int64 `json:"harvest_client_id" jsonschema:"Harvest client ID (required)"`
	ClientID        int64 `json:"client_id" jsonschema:"Internal client ID to link to (required)"`
}

func (h *BillingHandlers) LinkCounterparty(ctx context.Context, request *mcp.CallToolRequest, input LinkCounterpartyInput) (*mcp.CallToolResult, client.LinkResponse, error) {
	if input.HarvestClientID <= 0 {
		return nil, client.LinkResponse{}, fmt.Errorf("harvest_client_id is required")
	}
	if input.ClientID <= 0 {
		return nil, client.LinkResponse{}, fmt.Errorf("client_id is required")
	}

	updated, err := h.api.LinkHarvestClient(ctx, input.HarvestClientID, input.ClientID)
	if err != nil {
		return nil, client.LinkResponse{}, fmt.Errorf("failed to link counterparty: %w", err)
	}
	return &mcp.CallToolResult{}, client.LinkResponse{Success: true, InvoicesUpdated: updated}, nil
}

type ComputeRollupInput struct {
	ClientID         int64   `json:"client_id" jsonschema:"Client ID (required)"`
	Save             bool    `json:"save,omitempty" jsonschema:"Write the values onto the client record"`
	LifetimeValue    *string `json:"lifetime_value,omitempty" jsonschema:"Replace the computed lifetime value; empty string leaves the client's value untouched"`
	AvgAnnualRevenue *string `json:"avg_annual_revenue,omitempty" jsonschema:"Replace the computed average annual revenue; empty string leaves it untouched"`
	ContractStart    *string `json:"contract_start,omitempty" jsonschema:"Replace the contract start date (YYYY-MM-DD); empty string leaves it untouched"`
	ContractValue    *string `json:"contract_value,omitempty" jsonschema:"Replace the computed contract value; empty string leaves it untouched"`
}

type ComputeRollupOutput struct {
	ClientID         int64    `json:"client_id"`
	InvoiceCount     int      `json:"invoice_count"`
	LifetimeValue    string   `json:"lifetime_value"`
	AvgAnnualRevenue string   `json:"avg_annual_revenue"`
	ContractStart    string   `json:"contract_start"`
	ContractValue    string   `json:"contract_value"`
	YearsElapsed     float64  `json:"years_elapsed"`
	Saved            []string `json:"saved,omitempty"`
}

// ComputeRollup derives the client's financial snapshot from its linked
// invoices. The client's own contract_start wins over the earliest invoice.
// The output carries the values after edits; blank ones are not saved.
func (h *BillingHandlers) ComputeRollup(ctx context.Context, request *mcp.CallToolRequest, input ComputeRollupInput) (*mcp.CallToolResult, ComputeRollupOutput, error) {
	if input.ClientID <= 0 {
		return nil, ComputeRollupOutput{}, fmt.Errorf("client_id is required")
	}

	c, err := client.GetRecord[*models.Client](ctx, h.api, models.EntityClients, input.ClientID)
	if err != nil {
		return nil, ComputeRollupOutput{}, fmt.Errorf("failed to get client: %w", err)
	}

	ci, err := h.api.ClientInvoices(ctx, input.ClientID)
	if err != nil {
		return nil, ComputeRollupOutput{}, fmt.Errorf("failed to get client invoices: %w", err)
	}

	rollup := billing.ComputeRollup(ci.Invoices, c.ContractStart, h.now())
	draft := rollup.Draft().Apply(billing.Edits{
		LifetimeValue:    input.LifetimeValue,
		AvgAnnualRevenue: input.AvgAnnualRevenue,
		ContractStart:    input.ContractStart,
		ContractValue:    input.ContractValue,
	})
	out := ComputeRollupOutput{
		ClientID:         input.ClientID,
		InvoiceCount:     len(ci.Invoices),
		LifetimeValue:    draft.LifetimeValue,
		AvgAnnualRevenue: draft.AvgAnnualRevenue,
		ContractStart:    draft.ContractStart,
		ContractValue:    draft.ContractValue,
		YearsElapsed:     rollup.YearsElapsed,
	}

	if input.Save {
		updates, err := draft.Updates()
		if err != nil {
			return nil, ComputeRollupOutput{}, err
		}
		saved, err := h.api.SaveFields(ctx, models.EntityClients, input.ClientID, updates)
		out.Saved = saved
		if err != nil {
			return nil, ComputeRollupOutput{}, fmt.Errorf("saved %d of %d fields: %w", len(saved), len(updates), err)
		}
	}

	return &mcp.CallToolResult{}, out, nil
}
