// ABOUTME: Database schema definitions and migrations
// ABOUTME: Handles SQLite table creation for agency entities, invoices, and sync bookkeeping
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS companies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	industry TEXT,
	website TEXT,
	city TEXT,
	size TEXT,
	notes TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_companies_name ON companies(name);

CREATE TABLE IF NOT EXISTS people (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	first_name TEXT NOT NULL,
	last_name TEXT,
	email TEXT,
	phone TEXT,
	title TEXT,
	company_id INTEGER,
	linkedin TEXT,
	notes TEXT,
	created_at TEXT NOT NULL,
	FOREIGN KEY (company_id) REFERENCES companies(id)
);

CREATE INDEX IF NOT EXISTS idx_people_email ON people(email);
CREATE INDEX IF NOT EXISTS idx_people_company_id ON people(company_id);

CREATE TABLE IF NOT EXISTS clients (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	company_id INTEGER,
	status TEXT NOT NULL DEFAULT 'lead' CHECK(status IN ('lead', 'active', 'churned', 'paused')),
	contact_name TEXT,
	contact_email TEXT,
	lifetime_value TEXT,
	avg_annual_revenue TEXT,
	contract_start TEXT,
	contract_value TEXT,
	notes TEXT,
	created_at TEXT NOT NULL,
	FOREIGN KEY (company_id) REFERENCES companies(id)
);

CREATE INDEX IF NOT EXISTS idx_clients_status ON clients(status);

CREATE TABLE IF NOT EXISTS leads (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	company TEXT,
	email TEXT,
	phone TEXT,
	source TEXT,
	status TEXT NOT NULL DEFAULT 'new' CHECK(status IN ('new', 'contacted', 'qualified', 'proposal', 'negotiation', 'won', 'lost')),
	estimated_value TEXT,
	owner TEXT,
	notes TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);

CREATE TABLE IF NOT EXISTS applicants (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT,
	phone TEXT,
	position TEXT,
	source TEXT,
	status TEXT NOT NULL DEFAULT 'applied' CHECK(status IN ('applied', 'screening', 'interview', 'offer', 'hired', 'rejected')),
	rating INTEGER,
	resume_url TEXT,
	notes TEXT,
	applied_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_applicants_status ON applicants(status);

CREATE TABLE IF NOT EXISTS vendors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	category TEXT,
	contact_name TEXT,
	contact_email TEXT,
	website TEXT,
	notes TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS invoices (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	harvest_invoice_id INTEGER NOT NULL UNIQUE,
	harvest_client_id INTEGER NOT NULL,
	harvest_client_name TEXT NOT NULL,
	client_id INTEGER,
	number TEXT,
	subject TEXT,
	amount TEXT NOT NULL,
	currency TEXT NOT NULL DEFAULT 'USD',
	status TEXT NOT NULL CHECK(status IN ('draft', 'open', 'paid', 'closed')),
	issue_date TEXT,
	due_date TEXT,
	paid_date TEXT,
	synced_at TEXT NOT NULL,
	FOREIGN KEY (client_id) REFERENCES clients(id)
);

CREATE INDEX IF NOT EXISTS idx_invoices_client_id ON invoices(client_id);
CREATE INDEX IF NOT EXISTS idx_invoices_harvest_client_id ON invoices(harvest_client_id);

CREATE TABLE IF NOT EXISTS harvest_client_links (
	harvest_client_id INTEGER PRIMARY KEY,
	client_id INTEGER NOT NULL,
	linked_at DATETIME NOT NULL,
	FOREIGN KEY (client_id) REFERENCES clients(id)
);

CREATE INDEX IF NOT EXISTS idx_harvest_client_links_client ON harvest_client_links(client_id);

CREATE TABLE IF NOT EXISTS sync_state (
	service TEXT PRIMARY KEY,
	last_sync_time DATETIME,
	last_run_id TEXT,
	status TEXT CHECK(status IN ('idle', 'syncing', 'error')),
	error_message TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id TEXT PRIMARY KEY,
	service TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME,
	invoices_synced INTEGER NOT NULL DEFAULT 0,
	clients_matched INTEGER NOT NULL DEFAULT 0,
	clients_unmatched INTEGER NOT NULL DEFAULT 0,
	error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_service ON sync_runs(service, started_at DESC);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
