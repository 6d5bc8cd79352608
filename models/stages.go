// ABOUTME: Pipeline stage definitions per entity type
// ABOUTME: Declares ordered stages and default search/filter fields for each entity
package models

import "slices"

// Lead stages.
const (
	LeadNew         = "new"
	LeadContacted   = "contacted"
	LeadQualified   = "qualified"
	LeadProposal    = "proposal"
	LeadNegotiation = "negotiation"
	LeadWon         = "won"
	LeadLost        = "lost"
)

// Client stages.
const (
	ClientLead    = "lead"
	ClientActive  = "active"
	ClientChurned = "churned"
	ClientPaused  = "paused"
)

// Applicant stages.
const (
	ApplicantApplied   = "applied"
	ApplicantScreening = "screening"
	ApplicantInterview = "interview"
	ApplicantOffer     = "offer"
	ApplicantHired     = "hired"
	ApplicantRejected  = "rejected"
)

var pipelines = map[EntityType][]string{
	EntityLeads:      {LeadNew, LeadContacted, LeadQualified, LeadProposal, LeadNegotiation, LeadWon, LeadLost},
	EntityClients:    {ClientLead, ClientActive, ClientChurned, ClientPaused},
	EntityApplicants: {ApplicantApplied, ApplicantScreening, ApplicantInterview, ApplicantOffer, ApplicantHired, ApplicantRejected},
}

// Stages returns the ordered pipeline stages for t, or nil when t has no pipeline.
func Stages(t EntityType) []string {
	return slices.Clone(pipelines[t])
}

// HasPipeline reports whether records of type t carry a pipeline stage.
func HasPipeline(t EntityType) bool {
	_, ok := pipelines[t]
	return ok
}

// ValidStage reports whether stage is one of t's declared stages.
func ValidStage(t EntityType, stage string) bool {
	return slices.Contains(pipelines[t], stage)
}

// DefaultStage is the stage assigned to new records of type t.
func DefaultStage(t EntityType) string {
	stages := pipelines[t]
	if len(stages) == 0 {
		return ""
	}
	return stages[0]
}

var searchFields = map[EntityType][]string{
	EntityCompanies:  {"name", "industry", "city", "website"},
	EntityPeople:     {"first_name", "last_name", "email", "title"},
	EntityClients:    {"name", "contact_name", "contact_email"},
	EntityLeads:      {"name", "company", "email", "source"},
	EntityApplicants: {"name", "email", "position"},
	EntityVendors:    {"name", "category", "contact_name"},
	EntityInvoices:   {"number", "harvest_client_name", "subject"},
}

var filterFields = map[EntityType][]string{
	EntityCompanies:  {"industry", "city", "size"},
	EntityPeople:     {"title"},
	EntityClients:    {"status"},
	EntityLeads:      {"status", "source", "owner"},
	EntityApplicants: {"status", "position", "source"},
	EntityVendors:    {"category"},
	EntityInvoices:   {"status", "currency"},
}

// SearchFields returns the fields a free-text search looks at for t.
func SearchFields(t EntityType) []string {
	return slices.Clone(searchFields[t])
}

// FilterFields returns the fields offered as filter menus for t.
func FilterFields(t EntityType) []string {
	return slices.Clone(filterFields[t])
}
