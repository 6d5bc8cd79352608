// ABOUTME: HTTP client for the agencycrm record API
// ABOUTME: Whole-array reads, single-field writes, invoice and Harvest calls
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/agencycrm/models"
	"golang.org/x/oauth2"
)

// RemoteError is a non-success response. Message is the server's error text,
// passed through verbatim.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Status == http.StatusNotFound
}

// Client talks to an agencycrm server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client. A non-empty token is sent as a bearer token.
func New(baseURL, token string) *Client {
	hc := http.DefaultClient
	if token != "" {
		hc = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &RemoteError{Status: resp.StatusCode, Message: msg}
}

// ListRecords fetches the full record array for entity.
func ListRecords[T any](ctx context.Context, c *Client, entity models.EntityType) ([]T, error) {
	var out []T
	if err := c.do(ctx, http.MethodGet, "/"+string(entity), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRecord fetches one record by id.
func GetRecord[T any](ctx context.Context, c *Client, entity models.EntityType, id int64) (T, error) {
	var out T
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/%s/%d", entity, id), nil, &out)
	return out, err
}

// CreateRecord posts a partial record and returns the stored one.
func CreateRecord[T any](ctx context.Context, c *Client, entity models.EntityType, fields map[string]any) (T, error) {
	var out T
	err := c.do(ctx, http.MethodPost, "/"+string(entity), fields, &out)
	return out, err
}

// Records fetches entity as opaque records for the query engine.
func (c *Client) Records(ctx context.Context, entity models.EntityType) ([]models.Record, error) {
	switch entity {
	case models.EntityCompanies:
		return listAs[*models.Company](ctx, c, entity)
	case models.EntityPeople:
		return listAs[*models.Person](ctx, c, entity)
	case models.EntityClients:
		return listAs[*models.Client](ctx, c, entity)
	case models.EntityLeads:
		return listAs[*models.Lead](ctx, c, entity)
	case models.EntityApplicants:
		return listAs[*models.Applicant](ctx, c, entity)
	case models.EntityVendors:
		return listAs[*models.Vendor](ctx, c, entity)
	case models.EntityInvoices:
		return listAs[*models.Invoice](ctx, c, entity)
	}
	return nil, fmt.Errorf("unknown entity type: %s", entity)
}

func listAs[T models.Record](ctx context.Context, c *Client, entity models.EntityType) ([]models.Record, error) {
	typed, err := ListRecords[T](ctx, c, entity)
	if err != nil {
		return nil, err
	}
	out := make([]models.Record, len(typed))
	for i, r := range typed {
		out[i] = r
	}
	return out, nil
}

// UpdateField writes one field of one record.
func (c *Client) UpdateField(ctx context.Context, entity models.EntityType, id int64, field string, value any) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/%s/%d", entity, id), models.FieldUpdate{Field: field, Value: value}, nil)
}

// SaveFields writes updates one request at a time, in order, and stops at
// the first failure. The writes are not atomic: the returned names are the
// fields already stored when the error occurred.
func (c *Client) SaveFields(ctx context.Context, entity models.EntityType, id int64, updates []models.FieldUpdate) ([]string, error) {
	saved := make([]string, 0, len(updates))
	for _, u := range updates {
		if err := c.UpdateField(ctx, entity, id, u.Field, u.Value); err != nil {
			return saved, fmt.Errorf("failed to save %s: %w", u.Field, err)
		}
		saved = append(saved, u.Field)
	}
	return saved, nil
}

// DeleteRecord removes one record.
func (c *Client) DeleteRecord(ctx context.Context, entity models.EntityType, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/%s/%d", entity, id), nil, nil)
}

// Invoices fetches every synced invoice.
func (c *Client) Invoices(ctx context.Context) ([]models.Invoice, error) {
	var out []models.Invoice
	err := c.do(ctx, http.MethodGet, "/invoices", nil, &out)
	return out, err
}

// ClientInvoices fetches one client's invoices and their summary.
func (c *Client) ClientInvoices(ctx context.Context, clientID int64) (models.ClientInvoices, error) {
	var out models.ClientInvoices
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/invoices/by-client/%d", clientID), nil, &out)
	return out, err
}

// Unmatched fetches Harvest counterparties with no linked client.
func (c *Client) Unmatched(ctx context.Context) ([]models.UnmatchedCounterparty, error) {
	var out []models.UnmatchedCounterparty
	err := c.do(ctx, http.MethodGet, "/invoices/unmatched-clients", nil, &out)
	return out, err
}

// LinkRequest is the body of POST /invoices/link-harvest-client.
type LinkRequest struct {
	HarvestClientID int64 `json:"harvest_client_id" validate:"required,gt=0"`
	ClientID        int64 `json:"client_id" validate:"required,gt=0"`
}

// LinkResponse reports how many invoices a link updated.
type LinkResponse struct {
	Success         bool `json:"success"`
	InvoicesUpdated int  `json:"invoicesUpdated"`
}

// LinkHarvestClient links a Harvest counterparty to a client.
func (c *Client) LinkHarvestClient(ctx context.Context, harvestClientID, clientID int64) (int, error) {
	var out LinkResponse
	err := c.do(ctx, http.MethodPost, "/invoices/link-harvest-client", LinkRequest{HarvestClientID: harvestClientID, ClientID: clientID}, &out)
	return out.InvoicesUpdated, err
}

// HarvestStatus fetches the sync status.
func (c *Client) HarvestStatus(ctx context.Context) (models.SyncStatus, error) {
	var out models.SyncStatus
	err := c.do(ctx, http.MethodGet, "/harvest/status", nil, &out)
	return out, err
}

// HarvestSync runs a sync on the server and waits for it.
func (c *Client) HarvestSync(ctx context.Context) (models.SyncResult, error) {
	var out models.SyncResult
	err := c.do(ctx, http.MethodPost, "/harvest/sync", nil, &out)
	return out, err
}
