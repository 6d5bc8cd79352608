// ABOUTME: Invoice and reconciliation models
// ABOUTME: Defines Invoice, financial summaries, unmatched counterparties, and sync results
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice statuses mirror the Harvest invoice lifecycle.
const (
	InvoiceDraft  = "draft"
	InvoiceOpen   = "open"
	InvoicePaid   = "paid"
	InvoiceClosed = "closed"
)

// ValidInvoiceStatus reports whether s is a known invoice status.
func ValidInvoiceStatus(s string) bool {
	switch s {
	case InvoiceDraft, InvoiceOpen, InvoicePaid, InvoiceClosed:
		return true
	}
	return false
}

// Invoice is an externally sourced billing record. ClientID stays nil until
// the counterparty is linked to an internal client.
type Invoice struct {
	ID                int64           `json:"id"`
	HarvestInvoiceID  int64           `json:"harvest_invoice_id"`
	HarvestClientID   int64           `json:"harvest_client_id"`
	HarvestClientName string          `json:"harvest_client_name"`
	ClientID          *int64          `json:"client_id"`
	Number            string          `json:"number,omitempty"`
	Subject           string          `json:"subject,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Status            string          `json:"status"`
	IssueDate         string          `json:"issue_date,omitempty"`
	DueDate           string          `json:"due_date,omitempty"`
	PaidDate          string          `json:"paid_date,omitempty"`
	SyncedAt          string          `json:"synced_at,omitempty"`
}

func (i *Invoice) Kind() EntityType { return EntityInvoices }
func (i *Invoice) RecordID() int64  { return i.ID }

func (i *Invoice) Field(name string) any {
	switch name {
	case "id":
		return i.ID
	case "harvest_invoice_id":
		return i.HarvestInvoiceID
	case "harvest_client_id":
		return i.HarvestClientID
	case "harvest_client_name":
		return text(i.HarvestClientName)
	case "client_id":
		return ref(i.ClientID)
	case "number":
		return text(i.Number)
	case "subject":
		return text(i.Subject)
	case "amount":
		return i.Amount.InexactFloat64()
	case "currency":
		return text(i.Currency)
	case "status":
		return text(i.Status)
	case "issue_date":
		return text(i.IssueDate)
	case "due_date":
		return text(i.DueDate)
	case "paid_date":
		return text(i.PaidDate)
	case "synced_at":
		return text(i.SyncedAt)
	}
	return nil
}

// FinancialSummary is derived from a set of invoices and never stored.
type FinancialSummary struct {
	Count         int             `json:"count"`
	TotalInvoiced decimal.Decimal `json:"totalInvoiced"`
	TotalPaid     decimal.Decimal `json:"totalPaid"`
	Outstanding   decimal.Decimal `json:"outstanding"`
}

// ClientInvoices is the per-client invoice view.
type ClientInvoices struct {
	Invoices []Invoice        `json:"invoices"`
	Summary  FinancialSummary `json:"summary"`
}

// UnmatchedCounterparty is a Harvest client with invoices but no internal link.
type UnmatchedCounterparty struct {
	HarvestClientID   int64           `json:"harvest_client_id"`
	HarvestClientName string          `json:"harvest_client_name"`
	InvoiceCount      int             `json:"invoice_count"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
}

// HarvestLink is the explicit association a human made between a Harvest
// client and an internal client.
type HarvestLink struct {
	HarvestClientID int64     `json:"harvest_client_id"`
	ClientID        int64     `json:"client_id"`
	LinkedAt        time.Time `json:"linked_at"`
}

// SyncResult reports the outcome of one invoice sync.
type SyncResult struct {
	InvoicesSynced   int `json:"invoicesSynced"`
	ClientsMatched   int `json:"clientsMatched"`
	ClientsUnmatched int `json:"clientsUnmatched"`
}

// Sync status constants.
const (
	SyncStatusIdle    = "idle"
	SyncStatusSyncing = "syncing"
	SyncStatusError   = "error"
)

// SyncStatus is returned by GET /harvest/status.
type SyncStatus struct {
	Configured   bool       `json:"configured"`
	Status       string     `json:"status"`
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`
	LastRunID    string     `json:"lastRunId,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	InvoiceCount int        `json:"invoiceCount"`
}
