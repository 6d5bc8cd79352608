// ABOUTME: Adapts the HTTP client to the pipeline board's store
// ABOUTME: One Store per pipeline entity type, plus a one-shot stage move
package client

import (
	"context"
	"fmt"

	"github.com/harperreed/agencycrm/models"
	"github.com/harperreed/agencycrm/pipeline"
	"github.com/rs/zerolog"
)

// Store serves one entity type's records to a pipeline board.
type Store[T models.Staged] struct {
	client *Client
	entity models.EntityType
}

func NewStore[T models.Staged](c *Client, entity models.EntityType) *Store[T] {
	return &Store[T]{client: c, entity: entity}
}

func (s *Store[T]) List(ctx context.Context) ([]T, error) {
	return ListRecords[T](ctx, s.client, s.entity)
}

func (s *Store[T]) UpdateField(ctx context.Context, id int64, field string, value any) error {
	return s.client.UpdateField(ctx, s.entity, id, field, value)
}

func (s *Store[T]) Delete(ctx context.Context, id int64) error {
	return s.client.DeleteRecord(ctx, s.entity, id)
}

func (s *Store[T]) Create(ctx context.Context, fields map[string]any) (T, error) {
	return CreateRecord[T](ctx, s.client, s.entity, fields)
}

// MoveStage loads entity's board and moves one record through it, returning
// the stage it left.
func MoveStage(ctx context.Context, c *Client, entity models.EntityType, id int64, stage string, log zerolog.Logger) (string, pipeline.Outcome, error) {
	switch entity {
	case models.EntityLeads:
		return move(ctx, NewStore[*models.Lead](c, entity), entity, id, stage, log)
	case models.EntityClients:
		return move(ctx, NewStore[*models.Client](c, entity), entity, id, stage, log)
	case models.EntityApplicants:
		return move(ctx, NewStore[*models.Applicant](c, entity), entity, id, stage, log)
	}
	return "", pipeline.OutcomeNoop, fmt.Errorf("%w: %s", pipeline.ErrNoPipeline, entity)
}

func move[T models.Staged](ctx context.Context, store *Store[T], entity models.EntityType, id int64, stage string, log zerolog.Logger) (string, pipeline.Outcome, error) {
	board, err := pipeline.NewBoard[T](entity, store, log)
	if err != nil {
		return "", pipeline.OutcomeNoop, err
	}
	if err := board.Load(ctx); err != nil {
		return "", pipeline.OutcomeNoop, fmt.Errorf("failed to load %s: %w", entity, err)
	}

	rec, ok := board.Find(id)
	if !ok {
		return "", pipeline.OutcomeNoop, fmt.Errorf("%w: %s %d", pipeline.ErrRecordNotFound, entity, id)
	}
	from := rec.Stage()

	outcome, err := board.Move(ctx, id, stage)
	return from, outcome, err
}
