// ABOUTME: Pipeline MCP tool handlers
// ABOUTME: Implements move_stage through the optimistic board so failures reconcile from the API
package handlers

import (
	"context"
	"fmt"

	"github.com/harperreed/agencycrm/client"
	"github.com/harperreed/agencycrm/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

type PipelineHandlers struct {
	api *client.Client
	log zerolog.Logger
}

func NewPipelineHandlers(api *client.Client, log zerolog.Logger) *PipelineHandlers {
	return &PipelineHandlers{api: api, log: log}
}

type MoveStageInput struct {
	Entity string `json:"entity" jsonschema:"Pipeline entity: leads, clients, applicants"`
	ID     int64  `json:"id" jsonschema:"Record ID (required)"`
	Stage  string `json:"stage" jsonschema:"Destination stage (required)"`
}

type MoveStageOutput struct {
	ID      int64  `json:"id"`
	Entity  string `json:"entity"`
	From    string `json:"from"`
	To      string `json:"to"`
	Outcome string `json:"outcome"`
}

func (h *PipelineHandlers) MoveStage(ctx context.Context, request *mcp.CallToolRequest, input MoveStageInput) (*mcp.CallToolResult, MoveStageOutput, error) {
	entity, err := models.ParseEntityType(input.Entity)
	if err != nil {
		return nil, MoveStageOutput{}, err
	}
	if input.ID <= 0 {
		return nil, MoveStageOutput{}, fmt.Errorf("id is required")
	}
	if input.Stage == "" {
		return nil, MoveStageOutput{}, fmt.Errorf("stage is required")
	}

	from, outcome, err := client.MoveStage(ctx, h.api, entity, input.ID, input.Stage, h.log)
	if err != nil {
		return nil, MoveStageOutput{}, err
	}

	return &mcp.CallToolResult{}, MoveStageOutput{
		ID:      input.ID,
		Entity:  string(entity),
		From:    from,
		To:      input.Stage,
		Outcome: outcome.String(),
	}, nil
}
