package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migration is one forward-only schema step. Versions are applied in order
// and recorded in schema_migrations.
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "rate_limits",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS rate_limits (
				client_key TEXT PRIMARY KEY,
				request_count INTEGER NOT NULL DEFAULT 0,
				window_start INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_rate_limits_window ON rate_limits(window_start)`,
		},
	},
	{
		version: 2,
		name:    "contact_submissions",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS contact_submissions (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				email TEXT NOT NULL,
				company TEXT,
				phone TEXT,
				service TEXT,
				message TEXT NOT NULL,
				client_key TEXT,
				user_agent TEXT,
				created_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_contact_submissions_created ON contact_submissions(created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_contact_submissions_email ON contact_submissions(email)`,
		},
	},
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at INTEGER NOT NULL
)`

// LatestSchemaVersion is the version Migrate brings a database to.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// Migrate applies pending migrations. Each runs in its own transaction.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.DB.ExecContext(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("store migration failed: %w", err)
	}
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return fmt.Errorf("store migration %d (%s) failed: %w", m.version, m.name, err)
		}
	}
	return nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	for _, stmt := range m.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.version, m.name, time.Now().UTC().Unix(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration, or 0 for a fresh
// database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errNotInitialized
	}

	var version sql.NullInt64
	err := s.DB.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(version.Int64), nil
}
