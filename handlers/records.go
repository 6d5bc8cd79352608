// ABOUTME: Record MCP tool handlers
// ABOUTME: Implements query_records, list_filter_values, update_record, and delete_record
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/harperreed/agencycrm/client"
	"github.com/harperreed/agencycrm/models"
	"github.com/harperreed/agencycrm/query"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type RecordHandlers struct {
	api *client.Client
}

func NewRecordHandlers(api *client.Client) *RecordHandlers {
	return &RecordHandlers{api: api}
}

type QueryRecordsInput struct {
	Entity    string            `json:"entity" jsonschema:"Entity type: companies, people, clients, leads, applicants, vendors, invoices"`
	Search    string            `json:"search,omitempty" jsonschema:"Fuzzy search text matched against the entity's search fields"`
	Filters   map[string]string `json:"filters,omitempty" jsonschema:"Exact-match filters keyed by field name; the value all is ignored"`
	SortField string            `json:"sort_field,omitempty" jsonschema:"Field to sort by"`
	SortDesc  bool              `json:"sort_desc,omitempty" jsonschema:"Sort descending"`
	Limit     int               `json:"limit,omitempty" jsonschema:"Maximum records to return (default and maximum 10000)"`
}

type QueryRecordsOutput struct {
	Entity       string           `json:"entity"`
	Records      []map[string]any `json:"records"`
	TotalMatched int              `json:"total_matched"`
	Displayed    int              `json:"displayed"`
	Truncated    bool             `json:"truncated"`
	Summary      string           `json:"summary"`
}

func (h *RecordHandlers) QueryRecords(ctx context.Context, request *mcp.CallToolRequest, input QueryRecordsInput) (*mcp.CallToolResult, QueryRecordsOutput, error) {
	entity, err := models.ParseEntityType(input.Entity)
	if err != nil {
		return nil, QueryRecordsOutput{}, err
	}

	records, err := h.api.Records(ctx, entity)
	if err != nil {
		return nil, QueryRecordsOutput{}, fmt.Errorf("failed to load %s: %w", entity, err)
	}

	q := query.Query{
		Search:       input.Search,
		SearchFields: models.SearchFields(entity),
		Filters:      query.FilterSet(input.Filters),
		Cap:          min(input.Limit, query.RecordCap),
	}
	if input.SortField != "" {
		q.Sort = &query.SortSpec{Field: input.SortField, Desc: input.SortDesc}
	}
	res := query.Run(records, q)

	out := QueryRecordsOutput{
		Entity:       string(entity),
		Records:      make([]map[string]any, 0, len(res.Records)),
		TotalMatched: res.TotalMatched,
		Displayed:    res.Displayed,
		Truncated:    res.Truncated,
		Summary:      res.Summary(),
	}
	for _, r := range res.Records {
		m, err := recordMap(r)
		if err != nil {
			return nil, QueryRecordsOutput{}, err
		}
		out.Records = append(out.Records, m)
	}

	return &mcp.CallToolResult{}, out, nil
}

type ListFilterValuesInput struct {
	Entity string `json:"entity" jsonschema:"Entity type"`
	Field  string `json:"field,omitempty" jsonschema:"Field to list values for (defaults to every filterable field)"`
}

type ListFilterValuesOutput struct {
	Entity string              `json:"entity"`
	Values map[string][]string `json:"values"`
}

func (h *RecordHandlers) ListFilterValues(ctx context.Context, request *mcp.CallToolRequest, input ListFilterValuesInput) (*mcp.CallToolResult, ListFilterValuesOutput, error) {
	entity, err := models.ParseEntityType(input.Entity)
	if err != nil {
		return nil, ListFilterValuesOutput{}, err
	}

	fields := models.FilterFields(entity)
	if input.Field != "" {
		fields = []string{input.Field}
	}

	records, err := h.api.Records(ctx, entity)
	if err != nil {
		return nil, ListFilterValuesOutput{}, fmt.Errorf("failed to load %s: %w", entity, err)
	}

	out := ListFilterValuesOutput{Entity: string(entity), Values: make(map[string][]string, len(fields))}
	for _, f := range fields {
		out.Values[f] = query.UniqueValues(records, f)
	}
	return &mcp.CallToolResult{}, out, nil
}

type UpdateRecordInput struct {
	Entity string         `json:"entity" jsonschema:"Entity type"`
	ID     int64          `json:"id" jsonschema:"Record ID (required)"`
	Fields map[string]any `json:"fields" jsonschema:"Field values to write; each field is saved separately"`
}

type UpdateRecordOutput struct {
	ID    int64    `json:"id"`
	Saved []string `json:"saved"`
}

// UpdateRecord writes fields in name order. A failure part way through leaves
// the earlier fields saved and says which ones.
func (h *RecordHandlers) UpdateRecord(ctx context.Context, request *mcp.CallToolRequest, input UpdateRecordInput) (*mcp.CallToolResult, UpdateRecordOutput, error) {
	entity, err := models.ParseEntityType(input.Entity)
	if err != nil {
		return nil, UpdateRecordOutput{}, err
	}
	if input.ID <= 0 {
		return nil, UpdateRecordOutput{}, fmt.Errorf("id is required")
	}
	if len(input.Fields) == 0 {
		return nil, UpdateRecordOutput{}, fmt.Errorf("at least one field is required")
	}

	names := make([]string, 0, len(input.Fields))
	for name := range input.Fields {
		names = append(names, name)
	}
	slices.Sort(names)

	updates := make([]models.FieldUpdate, len(names))
	for i, name := range names {
		updates[i] = models.FieldUpdate{Field: name, Value: input.Fields[name]}
	}

	saved, err := h.api.SaveFields(ctx, entity, input.ID, updates)
	if err != nil {
		if len(saved) > 0 {
			return nil, UpdateRecordOutput{}, fmt.Errorf("saved %s before failing: %w", strings.Join(saved, ", "), err)
		}
		return nil, UpdateRecordOutput{}, err
	}
	return &mcp.CallToolResult{}, UpdateRecordOutput{ID: input.ID, Saved: saved}, nil
}

type DeleteRecordInput struct {
	Entity string `json:"entity" jsonschema:"Entity type"`
	ID     int64  `json:"id" jsonschema:"Record ID (required)"`
}

type DeleteRecordOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *RecordHandlers) DeleteRecord(ctx context.Context, request *mcp.CallToolRequest, input DeleteRecordInput) (*mcp.CallToolResult, DeleteRecordOutput, error) {
	entity, err := models.ParseEntityType(input.Entity)
	if err != nil {
		return nil, DeleteRecordOutput{}, err
	}
	if input.ID <= 0 {
		return nil, DeleteRecordOutput{}, fmt.Errorf("id is required")
	}

	if err := h.api.DeleteRecord(ctx, entity, input.ID); err != nil {
		return nil, DeleteRecordOutput{}, fmt.Errorf("failed to delete %s %d: %w", entity, input.ID, err)
	}

	return &mcp.CallToolResult{}, DeleteRecordOutput{
		Success: true,
		Message: fmt.Sprintf("Deleted %s %d", entity, input.ID),
	}, nil
}

// recordMap flattens a typed record into its wire shape.
func recordMap(r models.Record) (map[string]any, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %d: %w", r.RecordID(), err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode record %d: %w", r.RecordID(), err)
	}
	return m, nil
}
