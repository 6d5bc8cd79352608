// ABOUTME: Tests for invoice reconciliation
// ABOUTME: Covers sync matching, unmatched counterparties, manual linking, and summaries
package billing

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/harperreed/agencycrm/db"
	"github.com/harperreed/agencycrm/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	invoices []models.Invoice
	err      error
	calls    int
}

func (f *fakeSource) Invoices(ctx context.Context) ([]models.Invoice, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Invoice, len(f.invoices))
	copy(out, f.invoices)
	return out, nil
}

func harvestInvoiceFor(id, clientID int64, name, amount, status string) models.Invoice {
	return models.Invoice{
		HarvestInvoiceID:  id,
		HarvestClientID:   clientID,
		HarvestClientName: name,
		Amount:            decimal.RequireFromString(amount),
		Currency:          "USD",
		Status:            status,
		IssueDate:         "2024-01-01",
	}
}

func setupReconciler(t *testing.T, src HarvestSource) (*Reconciler, *sql.DB) {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewReconciler(database, src, zerolog.Nop()), database
}

func createClient(t *testing.T, database *sql.DB, name string) int64 {
	t.Helper()
	row, err := db.NewRecordRepository(database).Create(context.Background(), models.EntityClients, map[string]any{"name": name})
	require.NoError(t, err)
	return row["id"].(int64)
}

func TestSyncWithoutLinks(t *testing.T) {
	src := &fakeSource{invoices: []models.Invoice{
		harvestInvoiceFor(1, 77, "Acme", "3000", models.InvoicePaid),
		harvestInvoiceFor(2, 77, "Acme", "3000", models.InvoiceOpen),
		harvestInvoiceFor(3, 88, "Globex", "500", models.InvoiceDraft),
	}}
	r, _ := setupReconciler(t, src)
	ctx := context.Background()

	result, err := r.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{InvoicesSynced: 3, ClientsMatched: 0, ClientsUnmatched: 2}, result)

	status, err := r.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Configured)
	assert.Equal(t, models.SyncStatusIdle, status.Status)
	assert.Equal(t, 3, status.InvoiceCount)
	assert.NotNil(t, status.LastSyncTime)
	assert.NotEmpty(t, status.LastRunID)
}

func TestSyncIsIdempotentAndFollowsLinks(t *testing.T) {
	src := &fakeSource{invoices: []models.Invoice{
		harvestInvoiceFor(1, 77, "Acme", "1000", models.InvoicePaid),
		harvestInvoiceFor(2, 88, "Globex", "500", models.InvoiceOpen),
	}}
	r, database := setupReconciler(t, src)
	ctx := context.Background()
	clientID := createClient(t, database, "Acme Corp")

	_, err := r.Sync(ctx)
	require.NoError(t, err)
	_, err = r.Link(ctx, 77, clientID)
	require.NoError(t, err)

	src.invoices = append(src.invoices, harvestInvoiceFor(3, 77, "Acme", "2000", models.InvoiceOpen))
	result, err := r.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{InvoicesSynced: 3, ClientsMatched: 1, ClientsUnmatched: 1}, result)

	view, err := r.ClientInvoices(ctx, clientID)
	require.NoError(t, err)
	assert.Len(t, view.Invoices, 2)

	all, err := r.Invoices(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSyncFailureRecordsError(t *testing.T) {
	src := &fakeSource{err: &HarvestError{Status: 401, Message: "Invalid credentials"}}
	r, _ := setupReconciler(t, src)
	ctx := context.Background()

	_, err := r.Sync(ctx)
	var herr *HarvestError
	require.True(t, errors.As(err, &herr))

	status, err := r.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusError, status.Status)
	assert.Contains(t, status.ErrorMessage, "Invalid credentials")
	assert.Nil(t, status.LastSyncTime)
	assert.Zero(t, status.InvoiceCount)
}

func TestSyncStoreFailureKeepsPreviousInvoices(t *testing.T) {
	src := &fakeSource{invoices: []models.Invoice{
		harvestInvoiceFor(1, 77, "Acme", "3000", models.InvoiceOpen),
	}}
	r, _ := setupReconciler(t, src)
	ctx := context.Background()

	_, err := r.Sync(ctx)
	require.NoError(t, err)

	src.invoices = []models.Invoice{
		harvestInvoiceFor(1, 77, "Acme", "3000", models.InvoicePaid),
		harvestInvoiceFor(2, 77, "Acme", "800", "void"),
	}
	_, err = r.Sync(ctx)
	require.Error(t, err)

	all, err := r.Invoices(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.InvoiceOpen, all[0].Status)

	status, err := r.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusError, status.Status)
	assert.Equal(t, 1, status.InvoiceCount)
}

func TestSyncNotConfigured(t *testing.T) {
	r, _ := setupReconciler(t, nil)

	_, err := r.Sync(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, r.Configured())
}

func TestLinkCounterparty(t *testing.T) {
	src := &fakeSource{invoices: []models.Invoice{
		harvestInvoiceFor(1, 77, "Acme", "3000", models.InvoicePaid),
		harvestInvoiceFor(2, 77, "Acme", "3000", models.InvoicePaid),
		harvestInvoiceFor(3, 77, "Acme", "3000", models.InvoiceOpen),
	}}
	r, database := setupReconciler(t, src)
	ctx := context.Background()
	for _, name := range []string{"One", "Two", "Three", "Four"} {
		createClient(t, database, name)
	}
	clientID := createClient(t, database, "Acme Corp")
	require.Equal(t, int64(5), clientID)

	_, err := r.Sync(ctx)
	require.NoError(t, err)

	before, err := r.Unmatched(ctx)
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Equal(t, 3, before[0].InvoiceCount)
	assert.Equal(t, "9000", before[0].TotalAmount.String())

	n, err := r.Link(ctx, 77, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = r.Link(ctx, 77, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	after, err := r.Unmatched(ctx)
	require.NoError(t, err)
	assert.Empty(t, after)
}

func TestLinkUnknownClient(t *testing.T) {
	r, _ := setupReconciler(t, &fakeSource{})

	_, err := r.Link(context.Background(), 77, 42)
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestUnmatchedOrdering(t *testing.T) {
	src := &fakeSource{invoices: []models.Invoice{
		harvestInvoiceFor(1, 30, "Zeta", "10", models.InvoiceOpen),
		harvestInvoiceFor(2, 20, "Acme", "10", models.InvoiceOpen),
		harvestInvoiceFor(3, 10, "Acme", "15", models.InvoicePaid),
		harvestInvoiceFor(4, 10, "Acme", "5", models.InvoiceDraft),
	}}
	r, _ := setupReconciler(t, src)
	ctx := context.Background()

	_, err := r.Sync(ctx)
	require.NoError(t, err)

	got, err := r.Unmatched(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	ids := []int64{got[0].HarvestClientID, got[1].HarvestClientID, got[2].HarvestClientID}
	assert.Equal(t, []int64{10, 20, 30}, ids)
	assert.Equal(t, 2, got[0].InvoiceCount)
	assert.Equal(t, "20", got[0].TotalAmount.String())
	for _, u := range got {
		assert.Positive(t, u.InvoiceCount)
	}
}

func TestClientInvoicesUnknownClient(t *testing.T) {
	r, _ := setupReconciler(t, &fakeSource{})

	_, err := r.ClientInvoices(context.Background(), 9)
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestSummarize(t *testing.T) {
	invoices := []models.Invoice{
		harvestInvoiceFor(1, 1, "A", "1000", models.InvoicePaid),
		harvestInvoiceFor(2, 1, "A", "250.50", models.InvoiceOpen),
		harvestInvoiceFor(3, 1, "A", "100", models.InvoiceDraft),
		harvestInvoiceFor(4, 1, "A", "49.50", models.InvoiceClosed),
	}

	s := Summarize(invoices)

	assert.Equal(t, 4, s.Count)
	assert.Equal(t, "1400", s.TotalInvoiced.String())
	assert.Equal(t, "1000", s.TotalPaid.String())
	assert.Equal(t, "400", s.Outstanding.String())

	empty := Summarize(nil)
	assert.Zero(t, empty.Count)
	assert.True(t, empty.Outstanding.IsZero())
}
