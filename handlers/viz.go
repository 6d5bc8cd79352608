// ABOUTME: Visualization MCP tool handlers
// ABOUTME: Implements pipeline_graph and dashboard tools
package handlers

import (
	"context"
	"fmt"

	"github.com/harperreed/agencycrm/client"
	"github.com/harperreed/agencycrm/models"
	"github.com/harperreed/agencycrm/viz"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type VizHandlers struct {
	api *client.Client
}

func NewVizHandlers(api *client.Client) *VizHandlers {
	return &VizHandlers{api: api}
}

type PipelineGraphInput struct {
	Entity string `json:"entity" jsonschema:"Pipeline entity: leads, clients, applicants"`
}

type PipelineGraphOutput struct {
	Entity string `json:"entity"`
	DOT    string `json:"dot"`
}

func (h *VizHandlers) PipelineGraph(ctx context.Context, request *mcp.CallToolRequest, input PipelineGraphInput) (*mcp.CallToolResult, PipelineGraphOutput, error) {
	entity, err := models.ParseEntityType(input.Entity)
	if err != nil {
		return nil, PipelineGraphOutput{}, err
	}
	if !models.HasPipeline(entity) {
		return nil, PipelineGraphOutput{}, fmt.Errorf("%s has no pipeline", entity)
	}

	records, err := h.api.Records(ctx, entity)
	if err != nil {
		return nil, PipelineGraphOutput{}, fmt.Errorf("failed to load %s: %w", entity, err)
	}

	dot, err := viz.PipelineGraph(ctx, entity, viz.StageCounts(entity, records))
	if err != nil {
		return nil, PipelineGraphOutput{}, err
	}
	return &mcp.CallToolResult{}, PipelineGraphOutput{Entity: string(entity), DOT: dot}, nil
}

type DashboardOutput struct {
	Dashboard string `json:"dashboard"`
}

func (h *VizHandlers) Dashboard(ctx context.Context, request *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, DashboardOutput, error) {
	stats, err := viz.GatherStats(ctx, h.api)
	if err != nil {
		return nil, DashboardOutput{}, err
	}
	return &mcp.CallToolResult{}, DashboardOutput{Dashboard: viz.RenderDashboard(stats)}, nil
}
