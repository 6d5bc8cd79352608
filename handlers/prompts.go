// ABOUTME: MCP prompt handlers for reusable agency workflow templates
// ABOUTME: Provides invoice reconciliation and client review prompts
package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harperreed/agencycrm/billing"
	"github.com/harperreed/agencycrm/client"
	"github.com/harperreed/agencycrm/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type PromptHandlers struct {
	api *client.Client
	now func() time.Time
}

func NewPromptHandlers(api *client.Client) *PromptHandlers {
	return &PromptHandlers{api: api, now: time.Now}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	switch request.Params.Name {
	case "reconcile-invoices":
		return h.getReconcilePrompt(ctx)
	case "client-review":
		return h.getClientReviewPrompt(ctx, request.Params.Arguments)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", request.Params.Name)
	}
}

func (h *PromptHandlers) getReconcilePrompt(ctx context.Context) (*mcp.GetPromptResult, error) {
	unmatched, err := h.api.Unmatched(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list unmatched counterparties: %w", err)
	}
	clients, err := client.ListRecords[*models.Client](ctx, h.api, models.EntityClients)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch clients: %w", err)
	}

	var promptText strings.Builder
	promptText.WriteString("Harvest clients with invoices that are not linked to a CRM client:\n")
	if len(unmatched) == 0 {
		promptText.WriteString("(none)\n")
	}
	for _, u := range unmatched {
		promptText.WriteString(fmt.Sprintf("- [%d] %s: %d invoices, $%s\n",
			u.HarvestClientID, u.HarvestClientName, u.InvoiceCount, u.TotalAmount.StringFixed(2)))
	}

	promptText.WriteString("\nCRM clients:\n")
	for _, c := range clients {
		promptText.WriteString(fmt.Sprintf("- [%d] %s (%s)\n", c.ID, c.Name, c.Status))
	}

	promptText.WriteString("\nPlease propose which Harvest client belongs to which CRM client.")
	promptText.WriteString("\nOnly suggest a link when the names clearly refer to the same organization,")
	promptText.WriteString("\nthen use link_counterparty for each link that is confirmed.")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Reconcile %d unmatched Harvest clients", len(unmatched)),
		Messages: []*mcp.PromptMessage{
			{
				Role: "user",
				Content: &mcp.TextContent{
					Text: promptText.String(),
				},
			},
		},
	}, nil
}

func (h *PromptHandlers) getClientReviewPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	raw, ok := args["client_id"]
	if !ok {
		return nil, fmt.Errorf("client_id is required")
	}
	clientID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid client_id: %w", err)
	}

	c, err := client.GetRecord[*models.Client](ctx, h.api, models.EntityClients, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch client: %w", err)
	}
	ci, err := h.api.ClientInvoices(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoices: %w", err)
	}
	rollup := billing.ComputeRollup(ci.Invoices, c.ContractStart, h.now())

	var promptText strings.Builder
	promptText.WriteString(fmt.Sprintf("Client: %s\n", c.Name))
	promptText.WriteString(fmt.Sprintf("Status: %s\n", c.Status))
	if c.ContactName != "" {
		promptText.WriteString(fmt.Sprintf("Contact: %s\n", c.ContactName))
	}
	promptText.WriteString(fmt.Sprintf("\nInvoices: %d\n", ci.Summary.Count))
	promptText.WriteString(fmt.Sprintf("Total invoiced: $%s\n", ci.Summary.TotalInvoiced.StringFixed(2)))
	promptText.WriteString(fmt.Sprintf("Total paid: $%s\n", ci.Summary.TotalPaid.StringFixed(2)))
	promptText.WriteString(fmt.Sprintf("Outstanding: $%s\n", ci.Summary.Outstanding.StringFixed(2)))
	if rollup.ContractStart != "" {
		promptText.WriteString(fmt.Sprintf("Contract start: %s (%.1f years)\n", rollup.ContractStart, rollup.YearsElapsed))
	}
	promptText.WriteString(fmt.Sprintf("Average annual revenue: $%s\n", rollup.AvgAnnualRevenue.StringFixed(2)))
	if c.Notes != "" {
		promptText.WriteString(fmt.Sprintf("\nNotes: %s\n", c.Notes))
	}

	promptText.WriteString("\nPlease review this client and provide:")
	promptText.WriteString("\n1. The health of the relationship based on billing history")
	promptText.WriteString("\n2. Any collection follow-up needed for outstanding invoices")
	promptText.WriteString("\n3. Whether the pipeline status still reflects reality")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Review for client: %s", c.Name),
		Messages: []*mcp.PromptMessage{
			{
				Role: "user",
				Content: &mcp.TextContent{
					Text: promptText.String(),
				},
			},
		},
	}, nil
}
