// ABOUTME: Generic record repository backing the /{entity} endpoints
// ABOUTME: Whole-table reads and single-field writes with per-entity column whitelists
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/harperreed/agencycrm/models"
	"github.com/shopspring/decimal"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrUnknownField   = errors.New("unknown field")
	ErrInvalidValue   = errors.New("invalid value")
	ErrReadOnly       = errors.New("entity is read-only")
)

// Row is one record as a field bag, ready for JSON encoding.
type Row map[string]any

type columnKind int

const (
	kindText columnKind = iota
	kindInt
	kindMoney
)

type tableDef struct {
	// writable columns and their kinds; id and the timestamp are managed here
	columns   map[string]columnKind
	order     []string
	timestamp string
	readOnly  bool
}

func table(timestamp string, cols ...string) tableDef {
	def := tableDef{columns: make(map[string]columnKind), timestamp: timestamp}
	for _, c := range cols {
		kind := kindText
		switch {
		case strings.HasSuffix(c, ":int"):
			kind = kindInt
			c = strings.TrimSuffix(c, ":int")
		case strings.HasSuffix(c, ":money"):
			kind = kindMoney
			c = strings.TrimSuffix(c, ":money")
		}
		def.columns[c] = kind
		def.order = append(def.order, c)
	}
	return def
}

var tables = map[models.EntityType]tableDef{
	models.EntityCompanies: table("created_at", "name", "industry", "website", "city", "size", "notes"),
	models.EntityPeople:    table("created_at", "first_name", "last_name", "email", "phone", "title", "company_id:int", "linkedin", "notes"),
	models.EntityClients: table("created_at", "name", "company_id:int", "status", "contact_name", "contact_email",
		"lifetime_value:money", "avg_annual_revenue:money", "contract_start", "contract_value:money", "notes"),
	models.EntityLeads:      table("created_at", "name", "company", "email", "phone", "source", "status", "estimated_value:money", "owner", "notes"),
	models.EntityApplicants: table("applied_at", "name", "email", "phone", "position", "source", "status", "rating:int", "resume_url", "notes"),
	models.EntityVendors:    table("created_at", "name", "category", "contact_name", "contact_email", "website", "notes"),
	// Invoices are written by the Harvest sync only.
	models.EntityInvoices: table("synced_at", "harvest_invoice_id:int", "harvest_client_id:int", "harvest_client_name",
		"client_id:int", "number", "subject", "amount:money", "currency", "status", "issue_date", "due_date", "paid_date").locked(),
}

func (d tableDef) locked() tableDef {
	d.readOnly = true
	return d
}

// RecordRepository provides whole-array reads and field-level writes for
// every entity table.
type RecordRepository struct {
	db *sql.DB
}

// NewRecordRepository creates a new record repository.
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func lookup(entity models.EntityType) (tableDef, error) {
	def, ok := tables[entity]
	if !ok {
		return tableDef{}, fmt.Errorf("unknown entity type: %s", entity)
	}
	return def, nil
}

// List returns every record of entity ordered by id.
func (r *RecordRepository) List(ctx context.Context, entity models.EntityType) ([]Row, error) {
	if _, err := lookup(entity); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %s ORDER BY id`, entity))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Get returns one record.
func (r *RecordRepository) Get(ctx context.Context, entity models.EntityType, id int64) (Row, error) {
	if _, err := lookup(entity); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %s WHERE id = ?`, entity), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s %d", ErrRecordNotFound, entity, id)
	}
	return scanRow(rows)
}

// Create inserts a record from a partial field set and returns the stored
// row including its assigned id. Pipeline entities default to their first
// stage.
func (r *RecordRepository) Create(ctx context.Context, entity models.EntityType, fields map[string]any) (Row, error) {
	def, err := lookup(entity)
	if err != nil {
		return nil, err
	}
	if def.readOnly {
		return nil, fmt.Errorf("%w: %s", ErrReadOnly, entity)
	}

	values := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "id" || k == def.timestamp || (k == "status" && v == "") {
			continue
		}
		kind, ok := def.columns[k]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, entity, k)
		}
		cv, err := convert(entity, k, kind, v)
		if err != nil {
			return nil, err
		}
		values[k] = cv
	}

	if models.HasPipeline(entity) {
		if s, _ := values["status"].(string); s == "" {
			values["status"] = models.DefaultStage(entity)
		}
	}

	cols := []string{def.timestamp}
	args := []any{time.Now().UTC().Format(time.RFC3339)}
	for _, c := range def.order {
		if v, ok := values[c]; ok {
			cols = append(cols, c)
			args = append(args, v)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, entity, strings.Join(cols, ", "), placeholders),
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", entity, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, entity, id)
}

// UpdateField writes a single field of one record.
func (r *RecordRepository) UpdateField(ctx context.Context, entity models.EntityType, id int64, field string, value any) error {
	def, err := lookup(entity)
	if err != nil {
		return err
	}
	if def.readOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, entity)
	}

	kind, ok := def.columns[field]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, entity, field)
	}
	cv, err := convert(entity, field, kind, value)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET %s = ? WHERE id = ?`, entity, field), cv, id)
	if err != nil {
		return fmt.Errorf("failed to update %s.%s: %w", entity, field, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", ErrRecordNotFound, entity, id)
	}
	return nil
}

// Delete removes a record. Deleting a client also drops its Harvest links
// and detaches its invoices so they show up as unmatched again.
func (r *RecordRepository) Delete(ctx context.Context, entity models.EntityType, id int64) error {
	def, err := lookup(entity)
	if err != nil {
		return err
	}
	if def.readOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, entity)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if entity == models.EntityClients {
		if _, err := tx.ExecContext(ctx, `UPDATE invoices SET client_id = NULL WHERE client_id = ?`, id); err != nil {
			return fmt.Errorf("failed to detach invoices: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM harvest_client_links WHERE client_id = ?`, id); err != nil {
			return fmt.Errorf("failed to remove harvest links: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, entity), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", ErrRecordNotFound, entity, id)
	}
	return tx.Commit()
}

// convert normalizes a JSON-decoded value for storage.
func convert(entity models.EntityType, field string, kind columnKind, v any) (any, error) {
	if v == nil {
		if field == "status" && models.HasPipeline(entity) {
			return nil, fmt.Errorf("%w: status cannot be empty", ErrInvalidValue)
		}
		return nil, nil
	}

	switch kind {
	case kindInt:
		switch n := v.(type) {
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("%w: %s expects an integer, got %v", ErrInvalidValue, field, n)
			}
			return int64(n), nil
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case string:
			if n == "" {
				return nil, nil
			}
			var i int64
			if _, err := fmt.Sscan(n, &i); err != nil {
				return nil, fmt.Errorf("%w: %s expects an integer", ErrInvalidValue, field)
			}
			return i, nil
		}
		return nil, fmt.Errorf("%w: %s expects an integer", ErrInvalidValue, field)

	case kindMoney:
		switch n := v.(type) {
		case float64:
			return decimal.NewFromFloat(n).String(), nil
		case string:
			if n == "" {
				return nil, nil
			}
			d, err := decimal.NewFromString(n)
			if err != nil {
				return nil, fmt.Errorf("%w: %s expects an amount", ErrInvalidValue, field)
			}
			return d.String(), nil
		case decimal.Decimal:
			return n.String(), nil
		}
		return nil, fmt.Errorf("%w: %s expects an amount", ErrInvalidValue, field)
	}

	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects text", ErrInvalidValue, field)
	}
	if field == "status" && models.HasPipeline(entity) && !models.ValidStage(entity, s) {
		return nil, fmt.Errorf("%w: %q is not a %s stage (valid: %s)", ErrInvalidValue, s, entity, strings.Join(models.Stages(entity), ", "))
	}
	if s == "" {
		return nil, nil
	}
	return s, nil
}

func scanRow(rows *sql.Rows) (Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(Row, len(cols))
	for i, c := range cols {
		switch v := vals[i].(type) {
		case []byte:
			row[c] = string(v)
		case time.Time:
			row[c] = v.UTC().Format(time.RFC3339)
		default:
			row[c] = v
		}
	}
	return row, nil
}
