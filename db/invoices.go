// ABOUTME: Invoice and Harvest link database operations
// ABOUTME: Upserts synced invoices, resolves explicit client links, and applies new links
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/agencycrm/models"
)

var ErrClientNotFound = errors.New("client not found")

const invoiceColumns = `id, harvest_invoice_id, harvest_client_id, harvest_client_name, client_id, number, subject,
	amount, currency, status, issue_date, due_date, paid_date, synced_at`

// InvoiceRepository stores Harvest invoices and client links.
type InvoiceRepository struct {
	db *sql.DB
}

// NewInvoiceRepository creates a new invoice repository.
func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// UpsertAll inserts or refreshes invoices keyed by Harvest id in one
// transaction; either all of them are stored or none are. A stored client
// link is kept when the incoming invoice carries none. IDs are written back.
func (r *InvoiceRepository) UpsertAll(ctx context.Context, invoices []models.Invoice) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i := range invoices {
		if err := upsertInvoice(ctx, tx, &invoices[i], now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func upsertInvoice(ctx context.Context, tx *sql.Tx, inv *models.Invoice, now time.Time) error {
	inv.SyncedAt = now.Format(time.RFC3339)

	err := tx.QueryRowContext(ctx, `
		INSERT INTO invoices (harvest_invoice_id, harvest_client_id, harvest_client_name, client_id, number, subject,
			amount, currency, status, issue_date, due_date, paid_date, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(harvest_invoice_id) DO UPDATE SET
			harvest_client_id = excluded.harvest_client_id,
			harvest_client_name = excluded.harvest_client_name,
			client_id = COALESCE(excluded.client_id, invoices.client_id),
			number = excluded.number,
			subject = excluded.subject,
			amount = excluded.amount,
			currency = excluded.currency,
			status = excluded.status,
			issue_date = excluded.issue_date,
			due_date = excluded.due_date,
			paid_date = excluded.paid_date,
			synced_at = excluded.synced_at
		RETURNING id, client_id
	`, inv.HarvestInvoiceID, inv.HarvestClientID, inv.HarvestClientName, inv.ClientID, nullString(inv.Number),
		nullString(inv.Subject), inv.Amount.String(), inv.Currency, inv.Status, nullString(inv.IssueDate),
		nullString(inv.DueDate), nullString(inv.PaidDate), inv.SyncedAt,
	).Scan(&inv.ID, &inv.ClientID)
	if err != nil {
		return fmt.Errorf("failed to upsert invoice %d: %w", inv.HarvestInvoiceID, err)
	}
	return nil
}

// List returns every invoice, newest first.
func (r *InvoiceRepository) List(ctx context.Context) ([]models.Invoice, error) {
	return r.query(ctx, `SELECT `+invoiceColumns+` FROM invoices ORDER BY issue_date DESC, id DESC`)
}

// ByClient returns the invoices linked to clientID, newest first.
func (r *InvoiceRepository) ByClient(ctx context.Context, clientID int64) ([]models.Invoice, error) {
	return r.query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE client_id = ? ORDER BY issue_date DESC, id DESC`, clientID)
}

// Unlinked returns invoices whose counterparty has no client link and which
// carry no client id of their own.
func (r *InvoiceRepository) Unlinked(ctx context.Context) ([]models.Invoice, error) {
	return r.query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE client_id IS NULL
		  AND harvest_client_id NOT IN (SELECT harvest_client_id FROM harvest_client_links)
		ORDER BY id`)
}

// Count returns the number of stored invoices.
func (r *InvoiceRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices`).Scan(&n)
	return n, err
}

// StoredClients maps Harvest invoice ids to the client id already stored on
// that invoice.
func (r *InvoiceRepository) StoredClients(ctx context.Context) (map[int64]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT harvest_invoice_id, client_id FROM invoices WHERE client_id IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]int64)
	for rows.Next() {
		var invoiceID, clientID int64
		if err := rows.Scan(&invoiceID, &clientID); err != nil {
			return nil, err
		}
		out[invoiceID] = clientID
	}
	return out, rows.Err()
}

// Links maps Harvest client ids to linked internal client ids.
func (r *InvoiceRepository) Links(ctx context.Context) (map[int64]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT harvest_client_id, client_id FROM harvest_client_links`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]int64)
	for rows.Next() {
		var harvestID, clientID int64
		if err := rows.Scan(&harvestID, &clientID); err != nil {
			return nil, err
		}
		out[harvestID] = clientID
	}
	return out, rows.Err()
}

// ClientExists reports whether an internal client with id exists.
func (r *InvoiceRepository) ClientExists(ctx context.Context, id int64) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients WHERE id = ?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Link records the Harvest client to internal client association and
// stamps clientID onto every invoice from that counterparty that does not
// already carry it. It returns the number of invoices changed.
func (r *InvoiceRepository) Link(ctx context.Context, harvestClientID, clientID int64) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients WHERE id = ?`, clientID).Scan(&n); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: %d", ErrClientNotFound, clientID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO harvest_client_links (harvest_client_id, client_id, linked_at)
		VALUES (?, ?, ?)
		ON CONFLICT(harvest_client_id) DO UPDATE SET
			client_id = excluded.client_id,
			linked_at = CASE WHEN harvest_client_links.client_id = excluded.client_id
				THEN harvest_client_links.linked_at ELSE excluded.linked_at END
	`, harvestClientID, clientID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to save harvest link: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE invoices SET client_id = ?
		WHERE harvest_client_id = ? AND (client_id IS NULL OR client_id != ?)
	`, clientID, harvestClientID, clientID)
	if err != nil {
		return 0, fmt.Errorf("failed to link invoices: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(updated), nil
}

func (r *InvoiceRepository) query(ctx context.Context, q string, args ...any) ([]models.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := []models.Invoice{}
	for rows.Next() {
		var inv models.Invoice
		var clientID sql.NullInt64
		var number, subject, issue, due, paid sql.NullString
		if err := rows.Scan(&inv.ID, &inv.HarvestInvoiceID, &inv.HarvestClientID, &inv.HarvestClientName, &clientID,
			&number, &subject, &inv.Amount, &inv.Currency, &inv.Status, &issue, &due, &paid, &inv.SyncedAt); err != nil {
			return nil, err
		}
		if clientID.Valid {
			id := clientID.Int64
			inv.ClientID = &id
		}
		inv.Number = number.String
		inv.Subject = subject.String
		inv.IssueDate = issue.String
		inv.DueDate = due.String
		inv.PaidDate = paid.String
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
