package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/melih/lighthouse-paas/internal/core/domain"
)

// GetConfig returns the stored configuration text of a container.
func (s *Store) GetConfig(ctx context.Context, name string) (string, error) {
	var body string
	err := s.conn.QueryRowContext(ctx, `SELECT body FROM container_configs WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("config for %s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get config: %w", err)
	}
	return body, nil
}

// PutConfig stores body verbatim as the configuration of a container.
func (s *Store) PutConfig(ctx context.Context, name, body string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO container_configs (name, body, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP
	`, name, body)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}
