// ABOUTME: Data models for agency CRM entities
// ABOUTME: Defines entity types, the Record accessor, and one typed variant per entity
package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// EntityType names a record category. Its value doubles as the API path segment.
type EntityType string

const (
	EntityCompanies  EntityType = "companies"
	EntityPeople     EntityType = "people"
	EntityClients    EntityType = "clients"
	EntityLeads      EntityType = "leads"
	EntityApplicants EntityType = "applicants"
	EntityVendors    EntityType = "vendors"
	EntityInvoices   EntityType = "invoices"
)

// AllEntityTypes lists every entity type in display order.
var AllEntityTypes = []EntityType{
	EntityCompanies,
	EntityPeople,
	EntityClients,
	EntityLeads,
	EntityApplicants,
	EntityVendors,
	EntityInvoices,
}

// ParseEntityType validates a raw entity name.
func ParseEntityType(s string) (EntityType, error) {
	for _, t := range AllEntityTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid entity type: %s (valid: companies, people, clients, leads, applicants, vendors, invoices)", s)
}

// Record is the opaque view of any entity used by the query and sort layers.
// Field returns nil for absent values, float64 for money, int64 for ids and
// counts, and strings for everything else.
type Record interface {
	Kind() EntityType
	RecordID() int64
	Field(name string) any
}

// Staged is a record that sits in a pipeline. The stage lives in the status field.
type Staged interface {
	Record
	Stage() string
	SetStage(stage string)
}

type Company struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Industry  string `json:"industry,omitempty"`
	Website   string `json:"website,omitempty"`
	City      string `json:"city,omitempty"`
	Size      string `json:"size,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

func (c *Company) Kind() EntityType { return EntityCompanies }
func (c *Company) RecordID() int64  { return c.ID }

func (c *Company) Field(name string) any {
	switch name {
	case "id":
		return c.ID
	case "name":
		return text(c.Name)
	case "industry":
		return text(c.Industry)
	case "website":
		return text(c.Website)
	case "city":
		return text(c.City)
	case "size":
		return text(c.Size)
	case "notes":
		return text(c.Notes)
	case "created_at":
		return text(c.CreatedAt)
	}
	return nil
}

type Person struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Title     string `json:"title,omitempty"`
	CompanyID *int64 `json:"company_id,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

func (p *Person) Kind() EntityType { return EntityPeople }
func (p *Person) RecordID() int64  { return p.ID }

func (p *Person) Field(name string) any {
	switch name {
	case "id":
		return p.ID
	case "first_name":
		return text(p.FirstName)
	case "last_name":
		return text(p.LastName)
	case "email":
		return text(p.Email)
	case "phone":
		return text(p.Phone)
	case "title":
		return text(p.Title)
	case "company_id":
		return ref(p.CompanyID)
	case "linkedin":
		return text(p.LinkedIn)
	case "notes":
		return text(p.Notes)
	case "created_at":
		return text(p.CreatedAt)
	}
	return nil
}

// Client carries the financial snapshot fields. Once written they do not
// follow the live invoice aggregate.
type Client struct {
	ID               int64            `json:"id"`
	Name             string           `json:"name"`
	CompanyID        *int64           `json:"company_id,omitempty"`
	Status           string           `json:"status"`
	ContactName      string           `json:"contact_name,omitempty"`
	ContactEmail     string           `json:"contact_email,omitempty"`
	LifetimeValue    *decimal.Decimal `json:"lifetime_value,omitempty"`
	AvgAnnualRevenue *decimal.Decimal `json:"avg_annual_revenue,omitempty"`
	ContractStart    string           `json:"contract_start,omitempty"`
	ContractValue    *decimal.Decimal `json:"contract_value,omitempty"`
	Notes            string           `json:"notes,omitempty"`
	CreatedAt        string           `json:"created_at,omitempty"`
}

func (c *Client) Kind() EntityType      { return EntityClients }
func (c *Client) RecordID() int64       { return c.ID }
func (c *Client) Stage() string         { return c.Status }
func (c *Client) SetStage(stage string) { c.Status = stage }

func (c *Client) Field(name string) any {
	switch name {
	case "id":
		return c.ID
	case "name":
		return text(c.Name)
	case "company_id":
		return ref(c.CompanyID)
	case "status":
		return text(c.Status)
	case "contact_name":
		return text(c.ContactName)
	case "contact_email":
		return text(c.ContactEmail)
	case "lifetime_value":
		return money(c.LifetimeValue)
	case "avg_annual_revenue":
		return money(c.AvgAnnualRevenue)
	case "contract_start":
		return text(c.ContractStart)
	case "contract_value":
		return money(c.ContractValue)
	case "notes":
		return text(c.Notes)
	case "created_at":
		return text(c.CreatedAt)
	}
	return nil
}

type Lead struct {
	ID             int64            `json:"id"`
	Name           string           `json:"name"`
	Company        string           `json:"company,omitempty"`
	Email          string           `json:"email,omitempty"`
	Phone          string           `json:"phone,omitempty"`
	Source         string           `json:"source,omitempty"`
	Status         string           `json:"status"`
	EstimatedValue *decimal.Decimal `json:"estimated_value,omitempty"`
	Owner          string           `json:"owner,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	CreatedAt      string           `json:"created_at,omitempty"`
}

func (l *Lead) Kind() EntityType      { return EntityLeads }
func (l *Lead) RecordID() int64       { return l.ID }
func (l *Lead) Stage() string         { return l.Status }
func (l *Lead) SetStage(stage string) { l.Status = stage }

func (l *Lead) Field(name string) any {
	switch name {
	case "id":
		return l.ID
	case "name":
		return text(l.Name)
	case "company":
		return text(l.Company)
	case "email":
		return text(l.Email)
	case "phone":
		return text(l.Phone)
	case "source":
		return text(l.Source)
	case "status":
		return text(l.Status)
	case "estimated_value":
		return money(l.EstimatedValue)
	case "owner":
		return text(l.Owner)
	case "notes":
		return text(l.Notes)
	case "created_at":
		return text(l.CreatedAt)
	}
	return nil
}

type Applicant struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Position  string `json:"position,omitempty"`
	Source    string `json:"source,omitempty"`
	Status    string `json:"status"`
	Rating    *int64 `json:"rating,omitempty"`
	ResumeURL string `json:"resume_url,omitempty"`
	Notes     string `json:"notes,omitempty"`
	AppliedAt string `json:"applied_at,omitempty"`
}

func (a *Applicant) Kind() EntityType      { return EntityApplicants }
func (a *Applicant) RecordID() int64       { return a.ID }
func (a *Applicant) Stage() string         { return a.Status }
func (a *Applicant) SetStage(stage string) { a.Status = stage }

func (a *Applicant) Field(name string) any {
	switch name {
	case "id":
		return a.ID
	case "name":
		return text(a.Name)
	case "email":
		return text(a.Email)
	case "phone":
		return text(a.Phone)
	case "position":
		return text(a.Position)
	case "source":
		return text(a.Source)
	case "status":
		return text(a.Status)
	case "rating":
		return ref(a.Rating)
	case "resume_url":
		return text(a.ResumeURL)
	case "notes":
		return text(a.Notes)
	case "applied_at":
		return text(a.AppliedAt)
	}
	return nil
}

type Vendor struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category,omitempty"`
	ContactName  string `json:"contact_name,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	Website      string `json:"website,omitempty"`
	Notes        string `json:"notes,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

func (v *Vendor) Kind() EntityType { return EntityVendors }
func (v *Vendor) RecordID() int64  { return v.ID }

func (v *Vendor) Field(name string) any {
	switch name {
	case "id":
		return v.ID
	case "name":
		return text(v.Name)
	case "category":
		return text(v.Category)
	case "contact_name":
		return text(v.ContactName)
	case "contact_email":
		return text(v.ContactEmail)
	case "website":
		return text(v.Website)
	case "notes":
		return text(v.Notes)
	case "created_at":
		return text(v.CreatedAt)
	}
	return nil
}

func text(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func ref(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func money(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.InexactFloat64()
}

// FieldUpdate is one PATCH /{entity}/{id} body.
type FieldUpdate struct {
	Field string `json:"field" validate:"required"`
	Value any    `json:"value"`
}
