// ABOUTME: Tests for the HTTP client
// ABOUTME: Covers record decoding, remote errors, partial multi-field saves, and the board store
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/harperreed/agencycrm/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListRecordsDecodesTypedVariants(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/leads", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		fmt.Fprint(w, `[{"id":1,"name":"Acme","status":"new","estimated_value":"1500.5","company":null},{"id":2,"name":"Initech","status":"won"}]`)
	}))
	defer srv.Close()

	leads, err := ListRecords[*models.Lead](context.Background(), New(srv.URL, "tok"), models.EntityLeads)
	require.NoError(t, err)
	require.Len(t, leads, 2)

	assert.Equal(t, "new", leads[0].Stage())
	require.NotNil(t, leads[0].EstimatedValue)
	assert.Equal(t, 1500.5, leads[0].Field("estimated_value"))
	assert.Nil(t, leads[0].Field("company"))
	assert.Nil(t, leads[1].EstimatedValue)
}

func TestRecordsAsOpaqueRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":3,"name":"Print Co","category":"print"}]`)
	}))
	defer srv.Close()

	records, err := New(srv.URL, "").Records(context.Background(), models.EntityVendors)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.EntityVendors, records[0].Kind())
	assert.Equal(t, "print", records[0].Field("category"))

	_, err = New(srv.URL, "").Records(context.Background(), models.EntityType("widgets"))
	assert.Error(t, err)
}

func TestRemoteErrorCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"record not found: leads 9"}`)
	}))
	defer srv.Close()

	err := New(srv.URL, "").UpdateField(context.Background(), models.EntityLeads, 9, "status", "won")

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusNotFound, re.Status)
	assert.Equal(t, "record not found: leads 9", re.Message)
	assert.True(t, IsNotFound(err))
}

func TestRemoteErrorPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").HarvestSync(context.Background())

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "upstream exploded", re.Message)
}

// SaveFields is deliberately non-atomic: a failure partway through leaves
// the earlier fields written.
func TestSaveFieldsStopsAtFirstFailure(t *testing.T) {
	var mu sync.Mutex
	var patched []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/clients/4", r.URL.Path)

		var body models.FieldUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		mu.Lock()
		patched = append(patched, body.Field)
		mu.Unlock()

		if body.Field == "contract_start" {
			http.Error(w, `{"error":"invalid value: contract_start"}`, http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	updates := []models.FieldUpdate{
		{Field: "lifetime_value", Value: "3000.00"},
		{Field: "avg_annual_revenue", Value: "3000.00"},
		{Field: "contract_start", Value: "2023-01-10"},
		{Field: "contract_value", Value: "3000.00"},
	}
	saved, err := New(srv.URL, "").SaveFields(context.Background(), models.EntityClients, 4, updates)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract_start")
	assert.Equal(t, []string{"lifetime_value", "avg_annual_revenue"}, saved)
	assert.Equal(t, []string{"lifetime_value", "avg_annual_revenue", "contract_start"}, patched)
}

func TestLinkHarvestClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/invoices/link-harvest-client", r.URL.Path)
		var body LinkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, LinkRequest{HarvestClientID: 77, ClientID: 5}, body)
		fmt.Fprint(w, `{"success":true,"invoicesUpdated":3}`)
	}))
	defer srv.Close()

	n, err := New(srv.URL, "").LinkHarvestClient(context.Background(), 77, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestClientInvoicesDecodesSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"invoices":[{"id":1,"harvest_invoice_id":10,"harvest_client_id":77,"harvest_client_name":"Acme","client_id":5,"amount":"1000","currency":"USD","status":"paid"}],
			"summary":{"count":1,"totalInvoiced":"1000","totalPaid":"1000","outstanding":"0"}}`)
	}))
	defer srv.Close()

	view, err := New(srv.URL, "").ClientInvoices(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, view.Invoices, 1)
	assert.Equal(t, int64(5), *view.Invoices[0].ClientID)
	assert.Equal(t, 1, view.Summary.Count)
	assert.True(t, view.Summary.Outstanding.IsZero())
}

func TestStoreServesBoard(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodGet:
			fmt.Fprint(w, `[{"id":1,"name":"Sam","status":"applied"}]`)
		case r.Method == http.MethodPost:
			body := map[string]any{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			body["id"] = 2
			body["status"] = "applied"
			require.NoError(t, json.NewEncoder(w).Encode(body))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	store := NewStore[*models.Applicant](New(srv.URL, ""), models.EntityApplicants)
	ctx := context.Background()

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Sam", list[0].Name)

	created, err := store.Create(ctx, map[string]any{"name": "Kim"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), created.ID)

	require.NoError(t, store.UpdateField(ctx, 1, "status", "screening"))
	require.NoError(t, store.Delete(ctx, 1))

	assert.Equal(t, "GET /applicants,POST /applicants,PATCH /applicants/1,DELETE /applicants/1", strings.Join(calls, ","))
}
