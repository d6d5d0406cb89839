package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

type migration struct {
	version int
	name    string
	up      string
}

var migrations = []migration{
	{
		version: 1,
		name:    "categories",
		up: `
			CREATE TABLE categories (
				id          TEXT PRIMARY KEY,
				name        TEXT NOT NULL UNIQUE,
				icon        TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				position    INTEGER NOT NULL DEFAULT 0
			);
			CREATE TABLE category_members (
				category_id    TEXT NOT NULL,
				container_name TEXT NOT NULL,
				seq            INTEGER NOT NULL,
				PRIMARY KEY (category_id, container_name)
			);
			CREATE INDEX idx_category_members_container ON category_members(container_name);
		`,
	},
	{
		version: 2,
		name:    "container_configs",
		up: `
			CREATE TABLE container_configs (
				name       TEXT PRIMARY KEY,
				body       TEXT NOT NULL,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
}

// migrate applies every migration newer than the recorded schema version.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var current int
	if err := s.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", m.version, m.name, err)
		}
		s.log.WithFields(logrus.Fields{"version": m.version, "name": m.name}).Info("Applied migration")
	}
	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v)
	return v, err
}
