// ABOUTME: Harvest v2 API client for invoice sync
// ABOUTME: Pages through /v2/invoices with account header and bearer auth
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/harperreed/agencycrm/models"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
)

const (
	DefaultHarvestURL = "https://api.harvestapp.com"
	harvestPageSize   = 100
	userAgent         = "agencycrm (https://github.com/harperreed/agencycrm)"
)

// HarvestSource is the external billing system invoices are synced from.
type HarvestSource interface {
	Invoices(ctx context.Context) ([]models.Invoice, error)
}

// HarvestClient reads invoices from the Harvest v2 REST API.
type HarvestClient struct {
	baseURL   string
	accountID string
	http      *http.Client
}

// NewHarvestClient creates a client for one Harvest account. An empty
// baseURL uses the public API.
func NewHarvestClient(baseURL, accountID, token string) *HarvestClient {
	if baseURL == "" {
		baseURL = DefaultHarvestURL
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return &HarvestClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		accountID: accountID,
		http:      oauth2.NewClient(context.Background(), src),
	}
}

type harvestInvoice struct {
	ID     int64 `json:"id"`
	Client struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"client"`
	Number    string          `json:"number"`
	Subject   string          `json:"subject"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	State     string          `json:"state"`
	IssueDate string          `json:"issue_date"`
	DueDate   string          `json:"due_date"`
	PaidDate  *string         `json:"paid_date"`
}

type harvestPage struct {
	Invoices []harvestInvoice `json:"invoices"`
	NextPage *int             `json:"next_page"`
}

// HarvestError carries a non-success response from Harvest.
type HarvestError struct {
	Status  int
	Message string
}

func (e *HarvestError) Error() string {
	return fmt.Sprintf("harvest returned %d: %s", e.Status, e.Message)
}

// Invoices fetches every invoice in the account, following next_page until
// Harvest reports no more pages.
func (c *HarvestClient) Invoices(ctx context.Context) ([]models.Invoice, error) {
	var out []models.Invoice
	page := 1
	for {
		p, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		for _, hi := range p.Invoices {
			out = append(out, hi.toInvoice())
		}
		if p.NextPage == nil || *p.NextPage <= page {
			break
		}
		page = *p.NextPage
	}
	return out, nil
}

func (c *HarvestClient) fetchPage(ctx context.Context, page int) (*harvestPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(harvestPageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/invoices?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Harvest-Account-Id", c.accountID)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach harvest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &HarvestError{Status: resp.StatusCode, Message: harvestMessage(body)}
	}

	var p harvestPage
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode harvest invoices page %d: %w", page, err)
	}
	return &p, nil
}

func harvestMessage(body []byte) string {
	var e struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Message          string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil {
		switch {
		case e.ErrorDescription != "":
			return e.ErrorDescription
		case e.Message != "":
			return e.Message
		case e.Error != "":
			return e.Error
		}
	}
	return strings.TrimSpace(string(body))
}

func (hi harvestInvoice) toInvoice() models.Invoice {
	inv := models.Invoice{
		HarvestInvoiceID:  hi.ID,
		HarvestClientID:   hi.Client.ID,
		HarvestClientName: hi.Client.Name,
		Number:            hi.Number,
		Subject:           hi.Subject,
		Amount:            hi.Amount,
		Currency:          hi.Currency,
		Status:            invoiceStatus(hi.State),
		IssueDate:         hi.IssueDate,
		DueDate:           hi.DueDate,
	}
	if inv.Currency == "" {
		inv.Currency = "USD"
	}
	if hi.PaidDate != nil {
		inv.PaidDate = *hi.PaidDate
	}
	return inv
}

// invoiceStatus maps a Harvest invoice state onto the local lifecycle.
// Harvest's "open" covers sent and partially paid invoices.
func invoiceStatus(state string) string {
	if models.ValidInvoiceStatus(state) {
		return state
	}
	return models.InvoiceOpen
}
