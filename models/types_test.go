// ABOUTME: Tests for entity models and pipeline stage tables
// ABOUTME: Verifies field accessors, entity parsing, and stage lookups
package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseEntityType(t *testing.T) {
	for _, et := range AllEntityTypes {
		got, err := ParseEntityType(string(et))
		if err != nil {
			t.Errorf("ParseEntityType(%q) failed: %v", et, err)
		}
		if got != et {
			t.Errorf("ParseEntityType(%q) = %q", et, got)
		}
	}

	if _, err := ParseEntityType("widgets"); err == nil {
		t.Error("expected error for unknown entity type")
	}
}

func TestLeadFields(t *testing.T) {
	value := decimal.RequireFromString("1500.50")
	lead := &Lead{ID: 7, Name: "Acme", Status: LeadNew, EstimatedValue: &value}

	if lead.Kind() != EntityLeads {
		t.Errorf("expected leads, got %s", lead.Kind())
	}
	if lead.Field("id") != int64(7) {
		t.Errorf("expected id 7, got %v", lead.Field("id"))
	}
	if lead.Field("name") != "Acme" {
		t.Errorf("expected name Acme, got %v", lead.Field("name"))
	}
	if lead.Field("estimated_value") != 1500.5 {
		t.Errorf("expected 1500.5, got %v", lead.Field("estimated_value"))
	}
	if lead.Field("company") != nil {
		t.Errorf("empty text should be nil, got %v", lead.Field("company"))
	}
	if lead.Field("nonexistent") != nil {
		t.Error("unknown fields should be nil")
	}

	lead.SetStage(LeadWon)
	if lead.Stage() != LeadWon || lead.Field("status") != LeadWon {
		t.Errorf("SetStage did not update status: %s", lead.Status)
	}
}

func TestNilReferencesAreAbsent(t *testing.T) {
	p := &Person{ID: 1, FirstName: "Ada"}
	if p.Field("company_id") != nil {
		t.Error("nil company_id should be absent")
	}

	id := int64(3)
	p.CompanyID = &id
	if p.Field("company_id") != int64(3) {
		t.Errorf("expected company_id 3, got %v", p.Field("company_id"))
	}

	c := &Client{ID: 1, Name: "Globex"}
	if c.Field("lifetime_value") != nil {
		t.Error("nil money should be absent")
	}
}

func TestClientMoneyJSON(t *testing.T) {
	var c Client
	if err := json.Unmarshal([]byte(`{"id":2,"name":"Globex","status":"active","contract_value":"12000.00"}`), &c); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if c.ContractValue == nil || c.ContractValue.String() != "12000" {
		t.Fatalf("unexpected contract value: %v", c.ContractValue)
	}
	if c.LifetimeValue != nil {
		t.Error("missing money should stay nil")
	}
}

func TestStages(t *testing.T) {
	tests := []struct {
		entity EntityType
		first  string
		count  int
	}{
		{EntityLeads, LeadNew, 7},
		{EntityClients, ClientLead, 4},
		{EntityApplicants, ApplicantApplied, 6},
	}

	for _, tt := range tests {
		if !HasPipeline(tt.entity) {
			t.Errorf("%s should have a pipeline", tt.entity)
		}
		if got := len(Stages(tt.entity)); got != tt.count {
			t.Errorf("%s: expected %d stages, got %d", tt.entity, tt.count, got)
		}
		if DefaultStage(tt.entity) != tt.first {
			t.Errorf("%s: expected default stage %s, got %s", tt.entity, tt.first, DefaultStage(tt.entity))
		}
	}

	for _, et := range []EntityType{EntityCompanies, EntityPeople, EntityVendors, EntityInvoices} {
		if HasPipeline(et) {
			t.Errorf("%s should not have a pipeline", et)
		}
		if DefaultStage(et) != "" {
			t.Errorf("%s should have no default stage", et)
		}
	}

	if !ValidStage(EntityClients, ClientPaused) {
		t.Error("paused should be a client stage")
	}
	if ValidStage(EntityClients, LeadWon) {
		t.Error("won is not a client stage")
	}
}

func TestStagesReturnsCopy(t *testing.T) {
	s := Stages(EntityLeads)
	s[0] = "mutated"
	if Stages(EntityLeads)[0] != LeadNew {
		t.Error("Stages should return a copy")
	}
}

func TestInvoiceStatus(t *testing.T) {
	for _, s := range []string{InvoiceDraft, InvoiceOpen, InvoicePaid, InvoiceClosed} {
		if !ValidInvoiceStatus(s) {
			t.Errorf("%s should be valid", s)
		}
	}
	if ValidInvoiceStatus("void") {
		t.Error("void should not be valid")
	}

	inv := &Invoice{ID: 4, Amount: decimal.NewFromInt(250), Status: InvoicePaid}
	if inv.Field("amount") != 250.0 {
		t.Errorf("expected amount 250, got %v", inv.Field("amount"))
	}
	if inv.Field("client_id") != nil {
		t.Error("unlinked invoice should have no client_id")
	}
}
