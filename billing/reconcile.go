// ABOUTME: Invoice reconciliation between Harvest and internal clients
// ABOUTME: Syncs invoices, surfaces unmatched counterparties, and applies manual links
package billing

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/harperreed/agencycrm/db"
	"github.com/harperreed/agencycrm/models"
	"github.com/rs/zerolog"
)

const harvestService = "harvest"

var (
	ErrNotConfigured  = errors.New("harvest is not configured")
	ErrClientNotFound = db.ErrClientNotFound
)

// Reconciler owns the invoice side of the store. Client matching only ever
// follows links a person made; names are never compared.
type Reconciler struct {
	db       *sql.DB
	invoices *db.InvoiceRepository
	source   HarvestSource
	log      zerolog.Logger
}

// NewReconciler creates a reconciler. source may be nil when Harvest
// credentials are missing; Sync then fails with ErrNotConfigured.
func NewReconciler(database *sql.DB, source HarvestSource, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		db:       database,
		invoices: db.NewInvoiceRepository(database),
		source:   source,
		log:      log.With().Str("component", "reconciler").Logger(),
	}
}

// Configured reports whether a Harvest source is available.
func (r *Reconciler) Configured() bool {
	return r.source != nil
}

// Sync fetches every Harvest invoice and upserts it. Each invoice keeps the
// client it already carries, or takes the client linked to its counterparty.
// Counterparties are counted as matched when any of their invoices resolved.
func (r *Reconciler) Sync(ctx context.Context) (models.SyncResult, error) {
	var result models.SyncResult
	if r.source == nil {
		return result, ErrNotConfigured
	}

	if err := db.UpdateSyncStatus(ctx, r.db, harvestService, models.SyncStatusSyncing, nil); err != nil {
		return result, err
	}
	runID, err := db.StartSyncRun(ctx, r.db, harvestService)
	if err != nil {
		return result, err
	}
	log := r.log.With().Str("run_id", runID).Logger()
	log.Info().Msg("harvest sync started")

	result, err = r.sync(ctx)
	if ferr := db.FinishSyncRun(ctx, r.db, harvestService, runID, result, err); ferr != nil {
		log.Error().Err(ferr).Msg("failed to record sync run")
	}

	if err != nil {
		msg := err.Error()
		if serr := db.UpdateSyncStatus(ctx, r.db, harvestService, models.SyncStatusError, &msg); serr != nil {
			log.Error().Err(serr).Msg("failed to record sync error")
		}
		log.Error().Err(err).Msg("harvest sync failed")
		return models.SyncResult{}, err
	}

	if err := db.UpdateSyncStatus(ctx, r.db, harvestService, models.SyncStatusIdle, nil); err != nil {
		return result, err
	}
	log.Info().
		Int("invoices", result.InvoicesSynced).
		Int("matched", result.ClientsMatched).
		Int("unmatched", result.ClientsUnmatched).
		Msg("harvest sync finished")
	return result, nil
}

func (r *Reconciler) sync(ctx context.Context) (models.SyncResult, error) {
	var result models.SyncResult

	fetched, err := r.source.Invoices(ctx)
	if err != nil {
		return result, err
	}

	stored, err := r.invoices.StoredClients(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load stored invoice clients: %w", err)
	}
	links, err := r.invoices.Links(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load harvest links: %w", err)
	}

	for i := range fetched {
		inv := &fetched[i]
		if id, ok := stored[inv.HarvestInvoiceID]; ok {
			inv.ClientID = &id
		} else if id, ok := links[inv.HarvestClientID]; ok {
			inv.ClientID = &id
		}
	}

	if err := r.invoices.UpsertAll(ctx, fetched); err != nil {
		return result, err
	}
	result.InvoicesSynced = len(fetched)

	matched := make(map[int64]bool)
	for _, inv := range fetched {
		if inv.ClientID != nil {
			matched[inv.HarvestClientID] = true
		} else if !matched[inv.HarvestClientID] {
			matched[inv.HarvestClientID] = false
		}
	}

	for _, ok := range matched {
		if ok {
			result.ClientsMatched++
		} else {
			result.ClientsUnmatched++
		}
	}
	return result, nil
}

// Status reports the last sync outcome and the stored invoice count.
func (r *Reconciler) Status(ctx context.Context) (models.SyncStatus, error) {
	status := models.SyncStatus{Configured: r.Configured(), Status: models.SyncStatusIdle}

	state, err := db.GetSyncState(ctx, r.db, harvestService)
	if err != nil {
		return status, err
	}
	if state != nil {
		if state.Status != "" {
			status.Status = state.Status
		}
		status.LastSyncTime = state.LastSyncTime
		if state.LastRunID != nil {
			status.LastRunID = *state.LastRunID
		}
		if state.ErrorMessage != nil {
			status.ErrorMessage = *state.ErrorMessage
		}
	}

	status.InvoiceCount, err = r.invoices.Count(ctx)
	return status, err
}

// Unmatched lists every Harvest counterparty that has invoices but no
// client, ordered by name and then id.
func (r *Reconciler) Unmatched(ctx context.Context) ([]models.UnmatchedCounterparty, error) {
	unlinked, err := r.invoices.Unlinked(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.UnmatchedCounterparty)
	for _, inv := range unlinked {
		u, ok := byID[inv.HarvestClientID]
		if !ok {
			u = &models.UnmatchedCounterparty{
				HarvestClientID:   inv.HarvestClientID,
				HarvestClientName: inv.HarvestClientName,
			}
			byID[inv.HarvestClientID] = u
		}
		u.InvoiceCount++
		u.TotalAmount = u.TotalAmount.Add(inv.Amount)
	}

	out := make([]models.UnmatchedCounterparty, 0, len(byID))
	for _, u := range byID {
		out = append(out, *u)
	}
	slices.SortFunc(out, func(a, b models.UnmatchedCounterparty) int {
		return cmp.Or(
			cmp.Compare(a.HarvestClientName, b.HarvestClientName),
			cmp.Compare(a.HarvestClientID, b.HarvestClientID),
		)
	})
	return out, nil
}

// Link associates a Harvest counterparty with a client and stamps the client
// onto every existing invoice from it. Repeating a link updates nothing.
func (r *Reconciler) Link(ctx context.Context, harvestClientID, clientID int64) (int, error) {
	n, err := r.invoices.Link(ctx, harvestClientID, clientID)
	if err != nil {
		return 0, err
	}
	r.log.Info().
		Int64("harvest_client_id", harvestClientID).
		Int64("client_id", clientID).
		Int("invoices_updated", n).
		Msg("linked harvest client")
	return n, nil
}

// Invoices returns every stored invoice.
func (r *Reconciler) Invoices(ctx context.Context) ([]models.Invoice, error) {
	return r.invoices.List(ctx)
}

// ClientInvoices returns a client's invoices and a summary of exactly that set.
func (r *Reconciler) ClientInvoices(ctx context.Context, clientID int64) (models.ClientInvoices, error) {
	ok, err := r.invoices.ClientExists(ctx, clientID)
	if err != nil {
		return models.ClientInvoices{}, err
	}
	if !ok {
		return models.ClientInvoices{}, fmt.Errorf("%w: %d", ErrClientNotFound, clientID)
	}

	invoices, err := r.invoices.ByClient(ctx, clientID)
	if err != nil {
		return models.ClientInvoices{}, err
	}
	return models.ClientInvoices{Invoices: invoices, Summary: Summarize(invoices)}, nil
}

// Summarize totals a set of invoices. Outstanding is derived from the set
// itself, never from a separate ledger.
func Summarize(invoices []models.Invoice) models.FinancialSummary {
	s := models.FinancialSummary{Count: len(invoices)}
	for _, inv := range invoices {
		s.TotalInvoiced = s.TotalInvoiced.Add(inv.Amount)
		if inv.Status == models.InvoicePaid {
			s.TotalPaid = s.TotalPaid.Add(inv.Amount)
		}
	}
	s.Outstanding = s.TotalInvoiced.Sub(s.TotalPaid)
	return s
}
