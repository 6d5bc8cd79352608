// ABOUTME: CLI command tests
// ABOUTME: Runs the cobra tree against a live API server backed by an in-memory database
package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harperreed/agencycrm/billing"
	"github.com/harperreed/agencycrm/client"
	"github.com/harperreed/agencycrm/db"
	"github.com/harperreed/agencycrm/models"
	"github.com/harperreed/agencycrm/web"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	invoices []models.Invoice
}

func (s stubSource) Invoices(context.Context) ([]models.Invoice, error) {
	return s.invoices, nil
}

func setupAPI(t *testing.T, src billing.HarvestSource) string {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	srv := web.NewServer(database, billing.NewReconciler(database, src, zerolog.Nop()), "tok", zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func run(t *testing.T, url string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand("test")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--api-url", url, "--token", "tok"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRecordCommands(t *testing.T) {
	url := setupAPI(t, nil)

	out, err := run(t, url, "create", "leads", "name=Acme Rockets", "source=referral")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Created leads 1")

	_, err = run(t, url, "create", "leads", "name=Globex", "source=web")
	require.NoError(t, err)

	out, err = run(t, url, "list", "leads", "--search", "acm")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme Rockets")
	assert.NotContains(t, out, "Globex")
	assert.Contains(t, out, "Showing 1 of 1 records")

	out, err = run(t, url, "list", "leads", "--filter", "source=web")
	require.NoError(t, err)
	assert.Contains(t, out, "Globex")
	assert.NotContains(t, out, "Acme")

	out, err = run(t, url, "list", "leads", "--limit", "1", "--sort", "name", "--desc")
	require.NoError(t, err)
	assert.Contains(t, out, "Globex")
	assert.Contains(t, out, "display capped at 1")

	out, err = run(t, url, "values", "leads", "source")
	require.NoError(t, err)
	assert.Equal(t, "source (2):\n  referral\n  web\n", out)

	out, err = run(t, url, "edit", "leads", "1", "owner=sam", "email=a@acme.test")
	require.NoError(t, err)
	assert.Equal(t, "✓ owner saved\n✓ email saved\n", out)

	out, err = run(t, url, "edit", "leads", "1", "phone=555", "color=red")
	require.Error(t, err)
	assert.Equal(t, "✓ phone saved\n", out)
	assert.Contains(t, err.Error(), "saved 1 of 2 fields")

	out, err = run(t, url, "delete", "leads", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Deleted leads 2")

	out, err = run(t, url, "list", "vendors")
	require.NoError(t, err)
	assert.Equal(t, "No vendors found\n", out)

	_, err = run(t, url, "list", "widgets")
	assert.Error(t, err)
}

func TestMoveCommand(t *testing.T) {
	url := setupAPI(t, nil)
	_, err := run(t, url, "create", "applicants", "name=Robin")
	require.NoError(t, err)

	out, err := run(t, url, "move", "applicants", "1", "interview")
	require.NoError(t, err)
	assert.Equal(t, "✓ Moved applicants 1: applied → interview\n", out)

	out, err = run(t, url, "move", "applicants", "1", "interview")
	require.NoError(t, err)
	assert.Contains(t, out, "already in interview")

	_, err = run(t, url, "move", "applicants", "1", "promoted")
	assert.Error(t, err)

	_, err = run(t, url, "move", "vendors", "1", "new")
	assert.Error(t, err)
}

func TestHarvestCommands(t *testing.T) {
	src := stubSource{invoices: []models.Invoice{
		{HarvestInvoiceID: 1, HarvestClientID: 77, HarvestClientName: "Acme", Number: "1001", Amount: decimal.NewFromInt(1200), Currency: "USD", Status: models.InvoicePaid, IssueDate: "2024-02-01"},
		{HarvestInvoiceID: 2, HarvestClientID: 77, HarvestClientName: "Acme", Number: "1002", Amount: decimal.NewFromInt(800), Currency: "USD", Status: models.InvoiceOpen, IssueDate: "2024-03-01"},
	}}
	url := setupAPI(t, src)

	out, err := run(t, url, "harvest", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Last sync: never")

	out, err = run(t, url, "harvest", "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Synced 2 invoices")
	assert.Contains(t, out, "Clients unmatched: 1")

	out, err = run(t, url, "harvest", "unmatched")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "$2000.00")

	_, err = run(t, url, "create", "clients", "name=Acme Corp")
	require.NoError(t, err)

	out, err = run(t, url, "harvest", "link", "77", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "(2 invoices updated)")

	out, err = run(t, url, "harvest", "unmatched")
	require.NoError(t, err)
	assert.Contains(t, out, "Every Harvest client is linked")

	out, err = run(t, url, "invoices", "--client", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1001")
	assert.Contains(t, out, "outstanding $800.00")

	book := filepath.Join(t.TempDir(), "invoices.xlsx")
	out, err = run(t, url, "invoices", "--xlsx", book)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Wrote 2 invoice(s)")
	assert.FileExists(t, book)

	out, err = run(t, url, "rollup", "1", "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "Lifetime value:      $1200.00")
	assert.Contains(t, out, "Contract start:      2024-02-01")
	assert.Contains(t, out, "✓ contract_value saved")

	acme, err := client.GetRecord[*models.Client](context.Background(), client.New(url, "tok"), models.EntityClients, 1)
	require.NoError(t, err)
	require.NotNil(t, acme.ContractValue)
	assert.Equal(t, "2000", acme.ContractValue.String())

	out, err = run(t, url, "rollup", "1", "--save", "--lifetime-value=", "--avg-annual-revenue=", "--contract-start=", "--contract-value", "2500.00")
	require.NoError(t, err)
	assert.Contains(t, out, "Lifetime value:      - (unchanged)")
	assert.Contains(t, out, "Contract value:      $2500.00")
	assert.Contains(t, out, "✓ contract_value saved")
	assert.NotContains(t, out, "✓ lifetime_value saved")

	acme, err = client.GetRecord[*models.Client](context.Background(), client.New(url, "tok"), models.EntityClients, 1)
	require.NoError(t, err)
	require.NotNil(t, acme.LifetimeValue)
	assert.Equal(t, "1200", acme.LifetimeValue.String())
	assert.Equal(t, "2500", acme.ContractValue.String())
}

func TestVizCommands(t *testing.T) {
	url := setupAPI(t, nil)
	_, err := run(t, url, "create", "clients", "name=Acme", "status=active")
	require.NoError(t, err)

	out, err := run(t, url, "viz", "pipeline", "clients")
	require.NoError(t, err)
	assert.Contains(t, out, "active")

	out, err = run(t, url, "viz", "dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, "CLIENTS PIPELINE")
	assert.True(t, strings.Contains(out, "INVOICES"))

	_, err = run(t, url, "viz", "pipeline", "vendors")
	assert.Error(t, err)
}

func TestAuthFailureSurfaces(t *testing.T) {
	url := setupAPI(t, nil)
	root := NewRootCommand("test")
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--api-url", url, "--token", "wrong", "list", "leads"})

	err := root.Execute()
	var re *client.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 401, re.Status)
}

func TestNewMCPServer(t *testing.T) {
	assert.NotNil(t, NewMCPServer(client.New("http://localhost:0", ""), "test", zerolog.Nop()))
}
