package postgres

import (
	"context"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CESSATION PLANS AND STAGES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create cessation plans and stages
-- Version: 001

CREATE TABLE IF NOT EXISTS plans (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    template_id UUID,
    reason TEXT NOT NULL DEFAULT '',
    start_date TIMESTAMP WITH TIME ZONE NOT NULL,
    target_date TIMESTAMP WITH TIME ZONE NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'PLANNING',
    is_custom BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('PLANNING', 'ACTIVE', 'PAUSED', 'COMPLETED', 'ABANDONED', 'CANCELLED')),
    CONSTRAINT valid_dates CHECK (target_date > start_date)
);

CREATE INDEX IF NOT EXISTS idx_plans_user_id ON plans(user_id);
CREATE INDEX IF NOT EXISTS idx_plans_status ON plans(status);
CREATE INDEX IF NOT EXISTS idx_plans_due ON plans(start_date) WHERE status = 'PLANNING';

-- At most one open plan per user
CREATE UNIQUE INDEX IF NOT EXISTS idx_plans_one_open_per_user
    ON plans(user_id) WHERE status IN ('PLANNING', 'ACTIVE', 'PAUSED');

CREATE TABLE IF NOT EXISTS stages (
    id UUID PRIMARY KEY,
    plan_id UUID NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
    template_stage_id UUID,
    stage_order INTEGER NOT NULL,
    title VARCHAR(200) NOT NULL,
    start_date TIMESTAMP WITH TIME ZONE,
    end_date TIMESTAMP WITH TIME ZONE,
    status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
    deleted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_stage_status CHECK (status IN ('PENDING', 'ACTIVE', 'COMPLETED', 'SKIPPED'))
);

-- Orders are unique among live stages only; a soft-deleted stage keeps its
-- row but releases its slot.
CREATE UNIQUE INDEX IF NOT EXISTS uq_stage_order
    ON stages(plan_id, stage_order) WHERE NOT deleted;

CREATE INDEX IF NOT EXISTS idx_stages_plan_id ON stages(plan_id);
CREATE INDEX IF NOT EXISTS idx_stages_due ON stages(start_date) WHERE status = 'PENDING';
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: BADGES AND AWARDS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create badges and user badges
-- Version: 002

CREATE TABLE IF NOT EXISTS badges (
    id UUID PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    requirements JSONB NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    sort_order INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_badges_active ON badges(sort_order) WHERE active;

CREATE TABLE IF NOT EXISTS user_badges (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    badge_id UUID NOT NULL REFERENCES badges(id) ON DELETE CASCADE,
    awarded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- One active award per (user, badge)
    CONSTRAINT uq_user_badge UNIQUE (user_id, badge_id)
);

CREATE INDEX IF NOT EXISTS idx_user_badges_user_id ON user_badges(user_id);
`

// migrations lists all migrations in order.
var migrations = []struct {
	version int
	name    string
	up      string
}{
	{1, "create_plans_and_stages", migration001Up},
	{2, "create_badges", migration002Up},
}

// RunMigrations applies all pending migrations sequentially.
func RunMigrations(ctx context.Context, conn *Connection) error {
	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("%w: create schema_migrations: %v", ErrMigrationFailed, err)
	}

	for _, m := range migrations {
		var exists bool
		err := conn.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("%w: check version %d: %v", ErrMigrationFailed, m.version, err)
		}
		if exists {
			continue
		}

		if _, err := conn.Exec(ctx, m.up); err != nil {
			return fmt.Errorf("%w: apply %03d_%s: %v", ErrMigrationFailed, m.version, m.name, err)
		}
		if _, err := conn.Exec(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name,
		); err != nil {
			return fmt.Errorf("%w: record %03d_%s: %v", ErrMigrationFailed, m.version, m.name, err)
		}
	}

	return nil
}
