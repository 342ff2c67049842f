package database

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS payment_transactions (
	transaction_id   TEXT PRIMARY KEY,
	merchant_user_id TEXT NOT NULL DEFAULT '',
	amount           NUMERIC(18, 2) NOT NULL CHECK (amount >= 0),
	currency         TEXT NOT NULL,
	payment_method   TEXT NOT NULL,
	esim_plan_id     TEXT NOT NULL,
	customer_email   TEXT,
	customer_phone   TEXT,
	status           TEXT NOT NULL,
	gateway_response JSONB,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payment_transactions_status ON payment_transactions (status);
CREATE INDEX IF NOT EXISTS idx_payment_transactions_created_at ON payment_transactions (created_at DESC);

CREATE TABLE IF NOT EXISTS esim_provisions (
	provisioning_id TEXT PRIMARY KEY,
	transaction_id  TEXT NOT NULL UNIQUE,
	esim_plan_id    TEXT NOT NULL,
	iccid           CHAR(20) NOT NULL,
	activation_code TEXT NOT NULL,
	qr_code_url     TEXT NOT NULL,
	status          TEXT NOT NULL,
	provisioned_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS provisioning_jobs (
	transaction_id TEXT PRIMARY KEY,
	status         TEXT NOT NULL,
	attempts       INTEGER NOT NULL DEFAULT 0,
	last_error     TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_provisioning_jobs_pending ON provisioning_jobs (created_at) WHERE status = 'PENDING';

CREATE TABLE IF NOT EXISTS gateway_configs (
	version          BIGSERIAL PRIMARY KEY,
	environment      TEXT NOT NULL,
	merchant_user_id TEXT NOT NULL DEFAULT '',
	channel          TEXT NOT NULL DEFAULT '',
	access_key       TEXT NOT NULL,
	secret_key       TEXT NOT NULL,
	updated_by       TEXT NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
`

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
