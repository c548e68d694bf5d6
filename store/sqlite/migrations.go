package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Tally store (SQLite).
var Migrations = migrate.NewGroup("tally")

// SQLite reports unique failures by column, not by index name.
const (
	runningTimerColumns  = "tally_time_entries.user_id"
	invoiceNumberColumns = "tally_invoices.number"
)

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_tally_clients",
			Version: "20260301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tally_clients (
    id            TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL,
    name          TEXT NOT NULL DEFAULT '',
    email         TEXT NOT NULL DEFAULT '',
    phone         TEXT NOT NULL DEFAULT '',
    company       TEXT NOT NULL DEFAULT '',
    address       TEXT NOT NULL DEFAULT '{}',
    notes         TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'active',
    currency      TEXT NOT NULL DEFAULT 'usd',
    total_revenue INTEGER NOT NULL DEFAULT 0,
    project_count INTEGER NOT NULL DEFAULT 0,
    created_at    TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_tally_clients_user ON tally_clients (user_id, status);
CREATE INDEX IF NOT EXISTS idx_tally_clients_revenue ON tally_clients (user_id, total_revenue DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tally_clients`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tally_projects",
			Version: "20260301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tally_projects (
    id            TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL,
    client_id     TEXT NOT NULL,
    name          TEXT NOT NULL DEFAULT '',
    description   TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'planning',
    priority      TEXT NOT NULL DEFAULT 'medium',
    billing_type  TEXT NOT NULL DEFAULT 'hourly',
    currency      TEXT NOT NULL DEFAULT 'usd',
    hourly_rate   INTEGER NOT NULL DEFAULT 0,
    budget        INTEGER NOT NULL DEFAULT 0,
    start_date    TEXT,
    end_date      TEXT,
    tags          TEXT NOT NULL DEFAULT '[]',
    total_minutes INTEGER NOT NULL DEFAULT 0,
    total_earned  INTEGER NOT NULL DEFAULT 0,
    created_at    TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_tally_projects_user ON tally_projects (user_id, status);
CREATE INDEX IF NOT EXISTS idx_tally_projects_client ON tally_projects (client_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tally_projects`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tally_time_entries",
			Version: "20260301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tally_time_entries (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    project_id  TEXT NOT NULL,
    client_id   TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    start_time  TEXT NOT NULL,
    end_time    TEXT,
    currency    TEXT NOT NULL DEFAULT 'usd',
    hourly_rate INTEGER NOT NULL DEFAULT 0,
    billable    INTEGER NOT NULL DEFAULT 1,
    tags        TEXT NOT NULL DEFAULT '[]',
    duration    INTEGER NOT NULL DEFAULT 0,
    amount      INTEGER NOT NULL DEFAULT 0,
    invoiced    INTEGER NOT NULL DEFAULT 0,
    invoice_id  TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tally_time_entries_running ON tally_time_entries (user_id) WHERE end_time IS NULL;
CREATE INDEX IF NOT EXISTS idx_tally_time_entries_project ON tally_time_entries (project_id, start_time DESC);
CREATE INDEX IF NOT EXISTS idx_tally_time_entries_invoice ON tally_time_entries (invoice_id) WHERE invoice_id != '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tally_time_entries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tally_invoices",
			Version: "20260301000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tally_invoices (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    client_id      TEXT NOT NULL,
    project_id     TEXT NOT NULL DEFAULT '',
    number         TEXT NOT NULL,
    status         TEXT NOT NULL DEFAULT 'draft',
    currency       TEXT NOT NULL DEFAULT 'usd',
    line_items     TEXT NOT NULL DEFAULT '[]',
    tax_percent    TEXT NOT NULL DEFAULT '0',
    discount       INTEGER NOT NULL DEFAULT 0,
    subtotal       INTEGER NOT NULL DEFAULT 0,
    tax_amount     INTEGER NOT NULL DEFAULT 0,
    total          INTEGER NOT NULL DEFAULT 0,
    issue_date     TEXT NOT NULL,
    due_date       TEXT,
    paid_at        TEXT,
    payment_method TEXT NOT NULL DEFAULT '',
    notes          TEXT NOT NULL DEFAULT '',
    time_entry_ids TEXT NOT NULL DEFAULT '[]',
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tally_invoices_number ON tally_invoices (number);
CREATE INDEX IF NOT EXISTS idx_tally_invoices_user ON tally_invoices (user_id, status);
CREATE INDEX IF NOT EXISTS idx_tally_invoices_client ON tally_invoices (client_id);
CREATE INDEX IF NOT EXISTS idx_tally_invoices_due ON tally_invoices (status, due_date);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tally_invoices`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tally_payments",
			Version: "20260301000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tally_payments (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    invoice_id     TEXT NOT NULL,
    client_id      TEXT NOT NULL,
    amount         INTEGER NOT NULL DEFAULT 0,
    currency       TEXT NOT NULL DEFAULT 'usd',
    method         TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT 'completed',
    transaction_id TEXT NOT NULL DEFAULT '',
    gateway_ref    TEXT NOT NULL DEFAULT '',
    payment_date   TEXT NOT NULL,
    notes          TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tally_payments_gateway_ref ON tally_payments (gateway_ref) WHERE gateway_ref != '';
CREATE INDEX IF NOT EXISTS idx_tally_payments_invoice ON tally_payments (invoice_id, payment_date);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tally_payments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tally_sync_failures",
			Version: "20260301000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tally_sync_failures (
    id           TEXT PRIMARY KEY,
    kind         TEXT NOT NULL,
    target_id    TEXT NOT NULL,
    amount       INTEGER NOT NULL DEFAULT 0,
    minutes      INTEGER NOT NULL DEFAULT 0,
    count        INTEGER NOT NULL DEFAULT 0,
    cause        TEXT NOT NULL DEFAULT '',
    error        TEXT NOT NULL DEFAULT '',
    attempts     INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL DEFAULT (datetime('now')),
    last_attempt TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_tally_sync_failures_created ON tally_sync_failures (created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tally_sync_failures`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tally_sequences",
			Version: "20260301000007",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tally_sequences (
    name  TEXT PRIMARY KEY,
    value INTEGER NOT NULL DEFAULT 0
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tally_sequences`)
				return err
			},
		},
	)
}
