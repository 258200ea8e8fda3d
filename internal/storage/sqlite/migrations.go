package sqlite

import (
	"context"
	"database/sql"
)

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// Tables are created parent-first because of the foreign key constraints.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS contribution_runs (
    id TEXT PRIMARY KEY,
    number_of_members INTEGER NOT NULL,
    minimal_contribution TEXT NOT NULL,
    start_date TEXT NOT NULL,
    end_date TEXT,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS memberships (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    number_of_parts INTEGER NOT NULL CHECK (number_of_parts > 0),
    created_at INTEGER NOT NULL,
    CONSTRAINT uq_membership_user_run UNIQUE (user_id, run_id),
    FOREIGN KEY (run_id) REFERENCES contribution_runs(id),
    FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS contributions (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    membership_id TEXT NOT NULL,
    month TEXT NOT NULL,
    amount TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'PENDING',
    winner_user_id TEXT,
    sequence INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (run_id) REFERENCES contribution_runs(id),
    FOREIGN KEY (membership_id) REFERENCES memberships(id),
    FOREIGN KEY (winner_user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS ledger_entries (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    contribution_id TEXT NOT NULL,
    amount TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'PENDING',
    payment_date TEXT,
    FOREIGN KEY (user_id) REFERENCES users(id),
    FOREIGN KEY (contribution_id) REFERENCES contributions(id)
);

CREATE INDEX IF NOT EXISTS idx_memberships_run_id ON memberships(run_id);
CREATE INDEX IF NOT EXISTS idx_contributions_run_id ON contributions(run_id);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_contribution_id ON ledger_entries(contribution_id);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_user_id ON ledger_entries(user_id);
`

// runMigrations executes the schema setup.
func runMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
