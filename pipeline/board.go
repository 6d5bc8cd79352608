// ABOUTME: Pipeline state machine behind every kanban view
// ABOUTME: Optimistic stage transitions confirmed remotely, reconciled by refetch on failure
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/harperreed/agencycrm/models"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidStage   = errors.New("invalid pipeline stage")
	ErrRecordNotFound = errors.New("record not found")
	ErrNoPipeline     = errors.New("entity type has no pipeline")
	ErrNotDragging    = errors.New("no card is being dragged")
	ErrConfirmFailed  = errors.New("stage change was not confirmed")
)

// Store is the remote source of record for one entity type.
type Store[T models.Staged] interface {
	List(ctx context.Context) ([]T, error)
	UpdateField(ctx context.Context, id int64, field string, value any) error
	Delete(ctx context.Context, id int64) error
	Create(ctx context.Context, fields map[string]any) (T, error)
}

// Outcome is how a transition settled.
type Outcome int

const (
	// OutcomeNoop means the destination equalled the current stage.
	OutcomeNoop Outcome = iota
	// OutcomeCommitted means the remote confirmed the optimistic state.
	OutcomeCommitted
	// OutcomeReconciled means confirmation failed and the board was
	// reloaded from the source of record.
	OutcomeReconciled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoop:
		return "noop"
	case OutcomeCommitted:
		return "committed"
	case OutcomeReconciled:
		return "reconciled"
	}
	return "unknown"
}

// Transition is a requested stage move for one record.
type Transition struct {
	RecordID int64
	From     string
	To       string
}

// Noop reports whether the transition changes nothing.
func (t Transition) Noop() bool {
	return t.From == t.To
}

// Column is one kanban lane.
type Column[T models.Staged] struct {
	Stage   string
	Records []T
}

type dragState struct {
	active   bool
	recordID int64
	over     string
}

// Board owns the fetched record array for one pipeline view.
type Board[T models.Staged] struct {
	entity models.EntityType
	stages []string
	store  Store[T]
	log    zerolog.Logger

	mu      sync.Mutex
	records []T
	drag    dragState
}

// NewBoard creates a board for a pipeline-bearing entity type.
func NewBoard[T models.Staged](entity models.EntityType, store Store[T], log zerolog.Logger) (*Board[T], error) {
	if !models.HasPipeline(entity) {
		return nil, fmt.Errorf("%w: %s", ErrNoPipeline, entity)
	}
	return &Board[T]{
		entity: entity,
		stages: models.Stages(entity),
		store:  store,
		log:    log.With().Str("entity", string(entity)).Logger(),
	}, nil
}

// Entity returns the board's entity type.
func (b *Board[T]) Entity() models.EntityType { return b.entity }

// Stages returns the board's ordered stages.
func (b *Board[T]) Stages() []string {
	out := make([]string, len(b.stages))
	copy(out, b.stages)
	return out
}

// Load replaces the local records with the remote record set.
func (b *Board[T]) Load(ctx context.Context) error {
	records, err := b.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", b.entity, err)
	}

	b.mu.Lock()
	b.records = records
	b.mu.Unlock()
	return nil
}

// Records returns a snapshot of the local record slice.
func (b *Board[T]) Records() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]T, len(b.records))
	copy(out, b.records)
	return out
}

// Find returns the local record with id.
func (b *Board[T]) Find(id int64) (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.find(id)
}

func (b *Board[T]) find(id int64) (T, bool) {
	for _, r := range b.records {
		if r.RecordID() == id {
			return r, true
		}
	}
	var zero T
	return zero, false
}

// Columns groups the local records by stage in declared order.
func (b *Board[T]) Columns() []Column[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	index := make(map[string]int, len(b.stages))
	cols := make([]Column[T], len(b.stages))
	for i, s := range b.stages {
		cols[i].Stage = s
		index[s] = i
	}
	for _, r := range b.records {
		i, ok := index[r.Stage()]
		if !ok {
			b.log.Warn().Int64("id", r.RecordID()).Str("status", r.Stage()).Msg("record outside declared stages")
			continue
		}
		cols[i].Records = append(cols[i].Records, r)
	}
	return cols
}

// ApplyOptimistic moves the local record to stage immediately and returns
// the transition to confirm. A transition to the current stage is returned
// unapplied and reports Noop.
func (b *Board[T]) ApplyOptimistic(id int64, stage string) (Transition, error) {
	if !models.ValidStage(b.entity, stage) {
		return Transition{}, fmt.Errorf("%w: %q for %s", ErrInvalidStage, stage, b.entity)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.find(id)
	if !ok {
		return Transition{}, fmt.Errorf("%w: %s %d", ErrRecordNotFound, b.entity, id)
	}

	tr := Transition{RecordID: id, From: r.Stage(), To: stage}
	if tr.Noop() {
		return tr, nil
	}
	r.SetStage(stage)
	return tr, nil
}

// Confirm asks the remote to persist tr. On failure the board is reloaded
// from the remote; the optimistic state is never inverted locally.
func (b *Board[T]) Confirm(ctx context.Context, tr Transition) (Outcome, error) {
	if tr.Noop() {
		return OutcomeNoop, nil
	}

	err := b.store.UpdateField(ctx, tr.RecordID, "status", tr.To)
	if err == nil {
		b.log.Info().Int64("id", tr.RecordID).Str("from", tr.From).Str("to", tr.To).Msg("stage change confirmed")
		return OutcomeCommitted, nil
	}

	b.log.Warn().Err(err).Int64("id", tr.RecordID).Str("to", tr.To).Msg("stage change failed, reloading")
	confirmErr := fmt.Errorf("%w: %s %d to %s: %w", ErrConfirmFailed, b.entity, tr.RecordID, tr.To, err)
	if loadErr := b.Load(ctx); loadErr != nil {
		return OutcomeReconciled, errors.Join(confirmErr, loadErr)
	}
	return OutcomeReconciled, confirmErr
}

// Move applies and confirms a stage change in one call.
func (b *Board[T]) Move(ctx context.Context, id int64, stage string) (Outcome, error) {
	tr, err := b.ApplyOptimistic(id, stage)
	if err != nil {
		return OutcomeNoop, err
	}
	return b.Confirm(ctx, tr)
}

// DragStart marks the record being dragged.
func (b *Board[T]) DragStart(id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.find(id)
	if !ok {
		return fmt.Errorf("%w: %s %d", ErrRecordNotFound, b.entity, id)
	}
	b.drag = dragState{active: true, recordID: id, over: r.Stage()}
	return nil
}

// DragOver records the stage currently under the dragged card.
func (b *Board[T]) DragOver(stage string) error {
	if !models.ValidStage(b.entity, stage) {
		return fmt.Errorf("%w: %q for %s", ErrInvalidStage, stage, b.entity)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.drag.active {
		return ErrNotDragging
	}
	b.drag.over = stage
	return nil
}

// DragCancel abandons the current drag without any change.
func (b *Board[T]) DragCancel() {
	b.mu.Lock()
	b.drag = dragState{}
	b.mu.Unlock()
}

// Dragging returns the dragged record id and hovered stage.
func (b *Board[T]) Dragging() (id int64, over string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.drag.recordID, b.drag.over, b.drag.active
}

// Drop ends the drag and starts the transition. It returns the applied
// transition so the caller can confirm it, possibly asynchronously.
func (b *Board[T]) Drop() (Transition, error) {
	b.mu.Lock()
	drag := b.drag
	b.drag = dragState{}
	b.mu.Unlock()

	if !drag.active {
		return Transition{}, ErrNotDragging
	}
	return b.ApplyOptimistic(drag.recordID, drag.over)
}

// Delete removes a record remotely and reloads the board.
func (b *Board[T]) Delete(ctx context.Context, id int64) error {
	if err := b.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete %s %d: %w", b.entity, id, err)
	}
	return b.Load(ctx)
}

// Create adds a record remotely. New records start in the first stage
// unless fields carries a valid status. The board is not modified; callers
// navigate to the returned record.
func (b *Board[T]) Create(ctx context.Context, fields map[string]any) (T, error) {
	var zero T

	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	if s, ok := payload["status"].(string); ok && s != "" {
		if !models.ValidStage(b.entity, s) {
			return zero, fmt.Errorf("%w: %q for %s", ErrInvalidStage, s, b.entity)
		}
	} else {
		payload["status"] = models.DefaultStage(b.entity)
	}

	created, err := b.store.Create(ctx, payload)
	if err != nil {
		return zero, fmt.Errorf("failed to create %s: %w", b.entity, err)
	}
	return created, nil
}
