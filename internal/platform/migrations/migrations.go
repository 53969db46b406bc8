// Package migrations applies the database schema on startup. Statements are
// idempotent so re-running against an existing database is safe.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS care_users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL,
		email         TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		groups        TEXT[] NOT NULL DEFAULT '{}',
		is_admin      BOOLEAN NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS care_users_username_idx
		ON care_users (lower(username))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS care_users_email_idx
		ON care_users (lower(email)) WHERE email <> ''`,
	`CREATE TABLE IF NOT EXISTS care_profiles (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL UNIQUE REFERENCES care_users (id) ON DELETE CASCADE,
		nickname       TEXT NOT NULL DEFAULT '',
		phone          TEXT NOT NULL DEFAULT '',
		avatar         TEXT NOT NULL DEFAULT '',
		health_id      TEXT NOT NULL DEFAULT '',
		blood_pressure TEXT NOT NULL DEFAULT '',
		blood_sugar    TEXT NOT NULL DEFAULT '',
		blood_oxygen   TEXT NOT NULL DEFAULT '',
		temperature    TEXT NOT NULL DEFAULT '',
		weight         TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS care_profiles_phone_idx
		ON care_profiles (phone) WHERE phone <> ''`,
	`CREATE TABLE IF NOT EXISTS care_card_packages (
		id         TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL UNIQUE REFERENCES care_profiles (id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS care_cards (
		id         TEXT PRIMARY KEY,
		package_id TEXT NOT NULL REFERENCES care_card_packages (id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		card_type  TEXT NOT NULL,
		number     TEXT NOT NULL DEFAULT '',
		remark     TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS care_health_schedules (
		id            TEXT PRIMARY KEY,
		profile_id    TEXT NOT NULL REFERENCES care_profiles (id) ON DELETE CASCADE,
		title         TEXT NOT NULL,
		reminder_time TIMESTAMPTZ NOT NULL,
		content       TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS care_guardianships (
		id           TEXT PRIMARY KEY,
		guardian_id  TEXT NOT NULL REFERENCES care_profiles (id) ON DELETE CASCADE,
		ward_id      TEXT NOT NULL REFERENCES care_profiles (id) ON DELETE CASCADE,
		relationship TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL,
		UNIQUE (guardian_id, ward_id)
	)`,
	`CREATE TABLE IF NOT EXISTS care_service_requests (
		id           TEXT PRIMARY KEY,
		client_id    TEXT NOT NULL REFERENCES care_profiles (id) ON DELETE CASCADE,
		caregiver_id TEXT REFERENCES care_users (id),
		request_type TEXT NOT NULL,
		status       TEXT NOT NULL,
		service_time TIMESTAMPTZ NOT NULL,
		address      TEXT NOT NULL DEFAULT '',
		notes        TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS care_sessions (
		token_hash TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES care_users (id) ON DELETE CASCADE,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
}

// Apply runs every schema statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
