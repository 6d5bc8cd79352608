// ABOUTME: Tests for the generic record repository
// ABOUTME: Covers create defaults, field updates, validation, and client deletion cleanup
package db

import (
	"context"
	"errors"
	"testing"

	"github.com/harperreed/agencycrm/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDefaultsStage(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRecordRepository(db)
	ctx := context.Background()

	row, err := repo.Create(ctx, models.EntityLeads, map[string]any{"name": "Acme", "estimated_value": 1500.5})
	require.NoError(t, err)

	assert.Equal(t, int64(1), row["id"])
	assert.Equal(t, "new", row["status"])
	assert.Equal(t, "1500.5", row["estimated_value"])
	assert.NotEmpty(t, row["created_at"])
}

func TestCreateEmptyStatusDefaults(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRecordRepository(db)

	row, err := repo.Create(context.Background(), models.EntityApplicants, map[string]any{"name": "Sam", "status": ""})
	require.NoError(t, err)
	assert.Equal(t, "applied", row["status"])
	assert.NotEmpty(t, row["applied_at"])
}

func TestCreateRejectsUnknownField(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRecordRepository(db)

	_, err := repo.Create(context.Background(), models.EntityVendors, map[string]any{"name": "Print Co", "color": "red"})
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestCreateRejectsInvoices(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRecordRepository(db)

	_, err := repo.Create(context.Background(), models.EntityInvoices, map[string]any{"number": "1"})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestUpdateField(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRecordRepository(db)
	ctx := context.Background()

	row, err := repo.Create(ctx, models.EntityClients, map[string]any{"name": "Globex"})
	require.NoError(t, err)
	id := row["id"].(int64)

	require.NoError(t, repo.UpdateField(ctx, models.EntityClients, id, "status", "active"))
	require.NoError(t, repo.UpdateField(ctx, models.EntityClients, id, "lifetime_value", "3000.00"))
	require.NoError(t, repo.UpdateField(ctx, models.EntityClients, id, "company_id", float64(7)))

	got, err := repo.Get(ctx, models.EntityClients, id)
	require.NoError(t, err)
	assert.Equal(t, "active", got["status"])
	assert.Equal(t, "3000", got["lifetime_value"])
	assert.Equal(t, int64(7), got["company_id"])
}

func TestUpdateFieldRejectsFractionalIntegers(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRecordRepository(db)
	ctx := context.Background()

	row, err := repo.Create(ctx, models.EntityApplicants, map[string]any{"name": "Dana"})
	require.NoError(t, err)
	id := row["id"].(int64)

	err = repo.UpdateField(ctx, models.EntityApplicants, id, "rating", 1.5)
	assert.ErrorIs(t, err, ErrInvalidValue)

	require.NoError(t, repo.UpdateField(ctx, models.EntityApplicants, id, "rating", float64(4)))
	got, err := repo.Get(ctx, models.EntityApplicants, id)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got["rating"])
}

func TestUpdateFieldErrors(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRecordRepository(db)
	ctx := context.Background()

	row, err := repo.Create(ctx, models.EntityLeads, map[string]any{"name": "Initech"})
	require.NoError(t, err)
	id := row["id"].(int64)

	tests := []struct {
		name  string
		id    int64
		field string
		value any
		want  error
	}{
		{"unknown stage", id, "status", "archived", ErrInvalidValue},
		{"null stage", id, "status", nil, ErrInvalidValue},
		{"bad amount", id, "estimated_value", "lots", ErrInvalidValue},
		{"unknown field", id, "color", "blue", ErrUnknownField},
		{"missing record", 999, "name", "Nobody", ErrRecordNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.UpdateField(ctx, models.EntityLeads, tt.id, tt.field, tt.value)
			if !errors.Is(err, tt.want) {
				t.Errorf("UpdateField error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestListOrdersByID(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRecordRepository(db)
	ctx := context.Background()

	empty, err := repo.List(ctx, models.EntityCompanies)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, name := range []string{"Zeta", "Alpha", "Mid"} {
		_, err := repo.Create(ctx, models.EntityCompanies, map[string]any{"name": name})
		require.NoError(t, err)
	}

	rows, err := repo.List(ctx, models.EntityCompanies)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Zeta", rows[0]["name"])
	assert.Equal(t, "Mid", rows[2]["name"])
	assert.Nil(t, rows[0]["industry"])
}

func TestDeleteClientDetachesInvoices(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRecordRepository(db)
	invoices := NewInvoiceRepository(db)
	ctx := context.Background()

	row, err := repo.Create(ctx, models.EntityClients, map[string]any{"name": "Umbrella"})
	require.NoError(t, err)
	clientID := row["id"].(int64)

	upsert(t, invoices, testInvoice(1, 77, "100"))
	_, err = invoices.Link(ctx, 77, clientID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, models.EntityClients, clientID))

	_, err = repo.Get(ctx, models.EntityClients, clientID)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	links, err := invoices.Links(ctx)
	require.NoError(t, err)
	assert.Empty(t, links)

	unlinked, err := invoices.Unlinked(ctx)
	require.NoError(t, err)
	assert.Len(t, unlinked, 1)

	assert.ErrorIs(t, repo.Delete(ctx, models.EntityClients, clientID), ErrRecordNotFound)
}
