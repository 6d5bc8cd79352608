// ABOUTME: Tests for the Harvest API client
// ABOUTME: Uses httptest to cover paging, headers, state mapping, and error messages
package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harperreed/agencycrm/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHarvestClientPages(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/invoices", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "12345", r.Header.Get("Harvest-Account-Id"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		w.Header().Set("Content-Type", "application/json")
		switch page {
		case "1":
			fmt.Fprint(w, `{"invoices":[{"id":1,"client":{"id":77,"name":"Acme"},"number":"1001","amount":1000.0,"currency":"USD","state":"paid","issue_date":"2023-01-10","paid_date":"2023-02-01"}],"next_page":2}`)
		case "2":
			fmt.Fprint(w, `{"invoices":[{"id":2,"client":{"id":88,"name":"Globex"},"amount":250.25,"currency":"EUR","state":"open","issue_date":"2023-06-01","paid_date":null}],"next_page":null}`)
		default:
			t.Errorf("unexpected page %s", page)
		}
	}))
	defer srv.Close()

	c := NewHarvestClient(srv.URL, "12345", "secret")
	invoices, err := c.Invoices(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, pages)
	require.Len(t, invoices, 2)
	assert.Equal(t, int64(77), invoices[0].HarvestClientID)
	assert.Equal(t, models.InvoicePaid, invoices[0].Status)
	assert.Equal(t, "2023-02-01", invoices[0].PaidDate)
	assert.Equal(t, "250.25", invoices[1].Amount.String())
	assert.Equal(t, "EUR", invoices[1].Currency)
	assert.Empty(t, invoices[1].PaidDate)
	assert.Nil(t, invoices[1].ClientID)
}

func TestHarvestClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_token","error_description":"The access token provided is expired, revoked, malformed or invalid for other reasons."}`)
	}))
	defer srv.Close()

	_, err := NewHarvestClient(srv.URL, "1", "bad").Invoices(context.Background())

	var herr *HarvestError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, http.StatusUnauthorized, herr.Status)
	assert.Contains(t, herr.Message, "access token provided is expired")
}

func TestInvoiceStatusMapping(t *testing.T) {
	tests := map[string]string{
		"draft":  models.InvoiceDraft,
		"open":   models.InvoiceOpen,
		"paid":   models.InvoicePaid,
		"closed": models.InvoiceClosed,
		"sent":   models.InvoiceOpen,
	}
	for state, want := range tests {
		assert.Equal(t, want, invoiceStatus(state), state)
	}
}
