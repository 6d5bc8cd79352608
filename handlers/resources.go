// ABOUTME: MCP resource handlers for exposing CRM data
// ABOUTME: Serves pipeline boards and unmatched counterparties as read-only JSON
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harperreed/agencycrm/client"
	"github.com/harperreed/agencycrm/models"
	"github.com/harperreed/agencycrm/query"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const resourceScheme = "agencycrm://"

type ResourceHandlers struct {
	api *client.Client
}

func NewResourceHandlers(api *client.Client) *ResourceHandlers {
	return &ResourceHandlers{api: api}
}

// PipelineColumn is one stage of a pipeline resource.
type PipelineColumn struct {
	Stage   string           `json:"stage"`
	Count   int              `json:"count"`
	Records []map[string]any `json:"records"`
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, resourceScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", resourceScheme)
	}

	parts := strings.Split(strings.TrimPrefix(uri, resourceScheme), "/")
	switch parts[0] {
	case "pipeline":
		if len(parts) != 2 {
			return nil, fmt.Errorf("pipeline resource needs an entity: %s", uri)
		}
		entity, err := models.ParseEntityType(parts[1])
		if err != nil {
			return nil, err
		}
		return h.readPipeline(ctx, uri, entity)

	case "unmatched":
		return h.readUnmatched(ctx, uri)

	default:
		return nil, fmt.Errorf("unknown resource: %s", parts[0])
	}
}

func (h *ResourceHandlers) readPipeline(ctx context.Context, uri string, entity models.EntityType) (*mcp.ReadResourceResult, error) {
	if !models.HasPipeline(entity) {
		return nil, fmt.Errorf("%s has no pipeline", entity)
	}

	records, err := h.api.Records(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", entity, err)
	}

	stages := models.Stages(entity)
	columns := make([]PipelineColumn, len(stages))
	for i, stage := range stages {
		res := query.Run(records, query.Query{Filters: query.FilterSet{"status": stage}})
		columns[i] = PipelineColumn{Stage: stage, Count: res.Displayed, Records: make([]map[string]any, 0, res.Displayed)}
		for _, r := range res.Records {
			m, err := recordMap(r)
			if err != nil {
				return nil, err
			}
			columns[i].Records = append(columns[i].Records, m)
		}
	}

	return jsonResource(uri, columns)
}

func (h *ResourceHandlers) readUnmatched(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	unmatched, err := h.api.Unmatched(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list unmatched counterparties: %w", err)
	}
	return jsonResource(uri, unmatched)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}
