// ABOUTME: MCP server subcommand
// ABOUTME: Starts the MCP server on stdio, backed by the agencycrm API
package cli

import (
	"github.com/harperreed/agencycrm/client"
	"github.com/harperreed/agencycrm/handlers"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func (a *app) mcpCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.log.Info().Str("api", a.cfg.APIURL).Msg("starting MCP server")
			server := NewMCPServer(a.client(), version, a.log)
			return server.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}

// NewMCPServer registers every tool, resource, and prompt against api.
func NewMCPServer(api *client.Client, version string, log zerolog.Logger) *mcp.Server {
	recordHandlers := handlers.NewRecordHandlers(api)
	pipelineHandlers := handlers.NewPipelineHandlers(api, log)
	billingHandlers := handlers.NewBillingHandlers(api)
	vizHandlers := handlers.NewVizHandlers(api)
	resourceHandlers := handlers.NewResourceHandlers(api)
	promptHandlers := handlers.NewPromptHandlers(api)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "agencycrm",
		Version: version,
	}, nil)

	// Register tools
	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_records",
		Description: "Fuzzy search, filter, and sort records of one entity type (companies, people, clients, leads, applicants, vendors, invoices)",
	}, recordHandlers.QueryRecords)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_filter_values",
		Description: "List the distinct values of an entity's filterable fields",
	}, recordHandlers.ListFilterValues)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_record",
		Description: "Save one or more fields on a record; fields are written one at a time and a failure reports which were saved",
	}, recordHandlers.UpdateRecord)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_record",
		Description: "Delete a record",
	}, recordHandlers.DeleteRecord)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "move_stage",
		Description: "Move a lead, client, or applicant to another pipeline stage",
	}, pipelineHandlers.MoveStage)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "harvest_status",
		Description: "Show Harvest invoice sync status",
	}, billingHandlers.HarvestStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sync_invoices",
		Description: "Pull every invoice from Harvest and match counterparties to clients",
	}, billingHandlers.SyncInvoices)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_unmatched_counterparties",
		Description: "List Harvest clients whose invoices are not linked to a CRM client",
	}, billingHandlers.ListUnmatched)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "link_counterparty",
		Description: "Link a Harvest client to a CRM client and attach its invoices",
	}, billingHandlers.LinkCounterparty)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "compute_rollup",
		Description: "Compute a client's lifetime value, average annual revenue, and contract value from its invoices, optionally saving them",
	}, billingHandlers.ComputeRollup)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "pipeline_graph",
		Description: "Render a pipeline's stages and counts as a GraphViz graph",
	}, vizHandlers.PipelineGraph)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dashboard",
		Description: "Show pipeline and invoice totals as a text dashboard",
	}, vizHandlers.Dashboard)

	// Register resources
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "pipeline",
		URITemplate: "agencycrm://pipeline/{entity}",
		Description: "Records of a pipeline entity grouped by stage",
		MIMEType:    "application/json",
	}, resourceHandlers.ReadResource)

	server.AddResource(&mcp.Resource{
		Name:        "unmatched",
		URI:         "agencycrm://unmatched",
		Description: "Harvest clients with unlinked invoices",
		MIMEType:    "application/json",
	}, resourceHandlers.ReadResource)

	// Register prompts
	server.AddPrompt(&mcp.Prompt{
		Name:        "reconcile-invoices",
		Description: "Propose links between unmatched Harvest clients and CRM clients",
	}, promptHandlers.GetPrompt)

	server.AddPrompt(&mcp.Prompt{
		Name:        "client-review",
		Description: "Review a client's relationship health from billing history",
		Arguments: []*mcp.PromptArgument{
			{Name: "client_id", Description: "Client ID", Required: true},
		},
	}, promptHandlers.GetPrompt)

	return server
}
