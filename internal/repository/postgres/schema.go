package postgres

import (
	"context"
	"fmt"
	"strings"

	"payledger/internal/domain"
)

// refColumnsDDL declares one nullable reference column per gateway.
func refColumnsDDL() string {
	var b strings.Builder
	for _, g := range domain.Gateways {
		fmt.Fprintf(&b, "\t%s TEXT,\n", g.RefColumn())
	}
	return b.String()
}

// exactlyOneRefCheck requires a single populated gateway reference.
func exactlyOneRefCheck() string {
	cols := make([]string, 0, len(domain.Gateways))
	for _, g := range domain.Gateways {
		cols = append(cols, g.RefColumn())
	}
	return "CHECK (num_nonnulls(" + strings.Join(cols, ", ") + ") = 1)"
}

// Schema returns the DDL for the ledger tables. The catalog and beneficiary
// tables are owned by other modules in production and are only created here
// when missing.
func Schema() []string {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS shop_items (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	price NUMERIC(20, 8) NOT NULL,
	stock INTEGER NOT NULL,
	reserved_stock INTEGER NOT NULL DEFAULT 0,
	CHECK (reserved_stock >= 0 AND reserved_stock <= stock)
)`,
		`CREATE TABLE IF NOT EXISTS courses (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	price NUMERIC(20, 8)
)`,
		`CREATE TABLE IF NOT EXISTS subscription_plans (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	price NUMERIC(20, 8)
)`,
		`CREATE TABLE IF NOT EXISTS beneficiaries (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	account TEXT NOT NULL,
	bank TEXT NOT NULL DEFAULT '',
	alias_name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	validated BOOLEAN NOT NULL DEFAULT FALSE
)`,
		`CREATE TABLE IF NOT EXISTS payments (
	id UUID PRIMARY KEY,
	payer_id TEXT NOT NULL,
	amount NUMERIC(20, 8) NOT NULL CHECK (amount > 0),
	currency TEXT NOT NULL,
	status TEXT NOT NULL,
	kind TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	entity_kind TEXT NOT NULL,
	quantity INTEGER NOT NULL CHECK (quantity > 0),
	gateway TEXT NOT NULL,
	provider TEXT NOT NULL DEFAULT '',
` + refColumnsDDL() + `	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	` + exactlyOneRefCheck() + `
)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_pending ON payments (created_at) WHERE status = 'PENDING'`,
		`CREATE TABLE IF NOT EXISTS payouts (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL,
	beneficiary_id TEXT NOT NULL,
	dest_name TEXT NOT NULL,
	dest_account TEXT NOT NULL,
	dest_bank TEXT NOT NULL,
	dest_email TEXT NOT NULL,
	amount NUMERIC(20, 8) NOT NULL CHECK (amount > 0),
	currency TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	gateway TEXT NOT NULL,
	provider TEXT NOT NULL DEFAULT '',
	reference_no TEXT NOT NULL UNIQUE,
` + refColumnsDDL() + `	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	` + exactlyOneRefCheck() + `
)`,
		`CREATE INDEX IF NOT EXISTS idx_payouts_pending ON payouts (created_at) WHERE status = 'PENDING'`,
	}

	for _, table := range []string{"payments", "payouts"} {
		for _, g := range domain.Gateways {
			col := g.RefColumn()
			stmts = append(stmts, fmt.Sprintf(
				`CREATE UNIQUE INDEX IF NOT EXISTS uq_%s_%s ON %s (%s) WHERE %s IS NOT NULL`,
				table, col, table, col, col,
			))
		}
	}

	return stmts
}

// Migrate applies Schema. Every statement is idempotent.
func Migrate(ctx context.Context, q Querier) error {
	for _, stmt := range Schema() {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
