// ABOUTME: Database operations for sync_state and sync_runs tables
// ABOUTME: Tracks Harvest sync status and keeps a log of every sync run
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/agencycrm/models"
	"github.com/oklog/ulid/v2"
)

// SyncState represents the sync state for a service.
type SyncState struct {
	Service      string
	LastSyncTime *time.Time
	LastRunID    *string
	Status       string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GetSyncState retrieves the sync state for a service.
func GetSyncState(ctx context.Context, db *sql.DB, service string) (*SyncState, error) {
	var state SyncState
	var lastSyncTime sql.NullTime
	var lastRunID sql.NullString
	var status sql.NullString
	var errorMessage sql.NullString

	err := db.QueryRowContext(ctx, `
		SELECT service, last_sync_time, last_run_id, status, error_message, created_at, updated_at
		FROM sync_state
		WHERE service = ?
	`, service).Scan(
		&state.Service,
		&lastSyncTime,
		&lastRunID,
		&status,
		&errorMessage,
		&state.CreatedAt,
		&state.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	state.Status = status.String
	if lastSyncTime.Valid {
		state.LastSyncTime = &lastSyncTime.Time
	}
	if lastRunID.Valid {
		state.LastRunID = &lastRunID.String
	}
	if errorMessage.Valid {
		state.ErrorMessage = &errorMessage.String
	}

	return &state, nil
}

// UpdateSyncStatus updates the sync status for a service.
func UpdateSyncStatus(ctx context.Context, db *sql.DB, service, status string, errorMsg *string) error {
	var errorMsgVal sql.NullString
	if errorMsg != nil {
		errorMsgVal = sql.NullString{String: *errorMsg, Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_state (service, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = CURRENT_TIMESTAMP
	`, service, status, errorMsgVal)

	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}
	return nil
}

// StartSyncRun opens a sync run record and returns its id.
func StartSyncRun(ctx context.Context, db *sql.DB, service string) (string, error) {
	id := ulid.Make().String()
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, service, started_at) VALUES (?, ?, ?)
	`, id, service, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to start sync run: %w", err)
	}
	return id, nil
}

// FinishSyncRun closes a sync run. A successful run also advances the
// service's last sync time.
func FinishSyncRun(ctx context.Context, db *sql.DB, service, runID string, result models.SyncResult, runErr error) error {
	now := time.Now().UTC()

	var errorMsg sql.NullString
	if runErr != nil {
		errorMsg = sql.NullString{String: runErr.Error(), Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		UPDATE sync_runs
		SET finished_at = ?, invoices_synced = ?, clients_matched = ?, clients_unmatched = ?, error_message = ?
		WHERE id = ?
	`, now, result.InvoicesSynced, result.ClientsMatched, result.ClientsUnmatched, errorMsg, runID)
	if err != nil {
		return fmt.Errorf("failed to finish sync run: %w", err)
	}

	if runErr != nil {
		return nil
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO sync_state (service, status, last_sync_time, last_run_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service) DO UPDATE SET
			last_sync_time = excluded.last_sync_time,
			last_run_id = excluded.last_run_id,
			updated_at = CURRENT_TIMESTAMP
	`, service, models.SyncStatusIdle, now, runID)
	if err != nil {
		return fmt.Errorf("failed to record sync time: %w", err)
	}
	return nil
}
