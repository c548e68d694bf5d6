package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Tally store.
var Migrations = migrate.NewGroup("tally")

// Constraint names mapped to domain errors by the store.
const (
	runningTimerIndex  = "idx_tally_time_entries_running"
	invoiceNumberIndex = "idx_tally_invoices_number"
	gatewayRefIndex    = "idx_tally_payments_gateway_ref"
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
    address       JSONB NOT NULL DEFAULT '{}',
    notes         TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'active',
    currency      TEXT NOT NULL DEFAULT 'usd',
    total_revenue BIGINT NOT NULL DEFAULT 0,
    project_count BIGINT NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    hourly_rate   BIGINT NOT NULL DEFAULT 0,
    budget        BIGINT NOT NULL DEFAULT 0,
    start_date    TIMESTAMPTZ,
    end_date      TIMESTAMPTZ,
    tags          JSONB NOT NULL DEFAULT '[]',
    total_minutes BIGINT NOT NULL DEFAULT 0,
    total_earned  BIGINT NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    start_time  TIMESTAMPTZ NOT NULL,
    end_time    TIMESTAMPTZ,
    currency    TEXT NOT NULL DEFAULT 'usd',
    hourly_rate BIGINT NOT NULL DEFAULT 0,
    billable    BOOLEAN NOT NULL DEFAULT TRUE,
    tags        JSONB NOT NULL DEFAULT '[]',
    duration    BIGINT NOT NULL DEFAULT 0,
    amount      BIGINT NOT NULL DEFAULT 0,
    invoiced    BOOLEAN NOT NULL DEFAULT FALSE,
    invoice_id  TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS ` + runningTimerIndex + ` ON tally_time_entries (user_id) WHERE end_time IS NULL;
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
    line_items     JSONB NOT NULL DEFAULT '[]',
    tax_percent    TEXT NOT NULL DEFAULT '0',
    discount       BIGINT NOT NULL DEFAULT 0,
    subtotal       BIGINT NOT NULL DEFAULT 0,
    tax_amount     BIGINT NOT NULL DEFAULT 0,
    total          BIGINT NOT NULL DEFAULT 0,
    issue_date     TIMESTAMPTZ NOT NULL,
    due_date       TIMESTAMPTZ,
    paid_at        TIMESTAMPTZ,
    payment_method TEXT NOT NULL DEFAULT '',
    notes          TEXT NOT NULL DEFAULT '',
    time_entry_ids JSONB NOT NULL DEFAULT '[]',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS ` + invoiceNumberIndex + ` ON tally_invoices (number);
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
    amount         BIGINT NOT NULL DEFAULT 0,
    currency       TEXT NOT NULL DEFAULT 'usd',
    method         TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT 'completed',
    transaction_id TEXT NOT NULL DEFAULT '',
    gateway_ref    TEXT NOT NULL DEFAULT '',
    payment_date   TIMESTAMPTZ NOT NULL,
    notes          TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS ` + gatewayRefIndex + ` ON tally_payments (gateway_ref) WHERE gateway_ref != '';
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
    amount       BIGINT NOT NULL DEFAULT 0,
    minutes      BIGINT NOT NULL DEFAULT 0,
    count        BIGINT NOT NULL DEFAULT 0,
    cause        TEXT NOT NULL DEFAULT '',
    error        TEXT NOT NULL DEFAULT '',
    attempts     INT NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_attempt TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    value BIGINT NOT NULL DEFAULT 0
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
