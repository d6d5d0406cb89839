package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/melih/lighthouse-paas/internal/core/domain"
)

// ListCategories returns every persisted category keyed by id.
func (s *Store) ListCategories(ctx context.Context) (map[string]domain.Category, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, name, icon, description, position FROM categories`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Category)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.Description, &c.Position); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.Members = []string{}
		out[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	members, err := s.conn.QueryContext(ctx, `SELECT category_id, container_name FROM category_members ORDER BY category_id, seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list category members: %w", err)
	}
	defer members.Close()
	for members.Next() {
		var id, name string
		if err := members.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan category member: %w", err)
		}
		if c, ok := out[id]; ok {
			c.Members = append(c.Members, name)
			out[id] = c
		}
	}
	return out, members.Err()
}

// GetCategory returns one category or domain.ErrNotFound.
func (s *Store) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	var c domain.Category
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, name, icon, description, position FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Icon, &c.Description, &c.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Category{}, fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to get category: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx, `SELECT container_name FROM category_members WHERE category_id = ? ORDER BY seq`, id)
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to get category members: %w", err)
	}
	defer rows.Close()
	c.Members = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return domain.Category{}, fmt.Errorf("failed to scan category member: %w", err)
		}
		c.Members = append(c.Members, name)
	}
	return c, rows.Err()
}

// CreateCategory assigns a new id and stores c. A zero position means "append": the category is
// placed after the existing ones. Use SaveOrder to move a new category to the front.
func (s *Store) CreateCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	c.Normalize()
	if c.ID == domain.OtherID {
		return domain.Category{}, domain.ErrReservedID
	}
	c.ID = uuid.NewString()
	if err := c.Validate(); err != nil {
		return domain.Category{}, err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if c.Position == 0 {
			if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM categories`).Scan(&c.Position); err != nil {
				return fmt.Errorf("failed to compute position: %w", err)
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO categories (id, name, icon, description, position) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.Icon, c.Description, c.Position)
		if err != nil {
			return mapConstraint(err, "failed to create category")
		}
		return replaceMembers(ctx, tx, c.ID, c.Members)
	})
	if err != nil {
		return domain.Category{}, err
	}

	s.log.WithFields(logrus.Fields{"id": c.ID, "name": c.Name, "members": len(c.Members)}).Info("Created category")
	return c, nil
}

// UpdateCategory replaces the stored attributes and members of c.ID. Position is left as stored;
// only SaveOrder changes it.
func (s *Store) UpdateCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	c.Normalize()
	if err := c.Validate(); err != nil {
		return domain.Category{}, err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`UPDATE categories SET name = ?, icon = ?, description = ? WHERE id = ? RETURNING position`,
			c.Name, c.Icon, c.Description, c.ID).Scan(&c.Position)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("category %s: %w", c.ID, domain.ErrNotFound)
		}
		if err != nil {
			return mapConstraint(err, "failed to update category")
		}
		return replaceMembers(ctx, tx, c.ID, c.Members)
	})
	if err != nil {
		return domain.Category{}, err
	}

	s.log.WithFields(logrus.Fields{"id": c.ID, "name": c.Name}).Info("Updated category")
	return c, nil
}

// DeleteCategory removes a category and its member assignments.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	if id == domain.OtherID {
		return domain.ErrReservedID
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete category: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM category_members WHERE category_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete category members: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithField("id", id).Info("Deleted category")
	return nil
}

// SaveOrder rewrites positions for every id in the mapping in one transaction.
// Ids without a stored category, such as the synthesized "other", are skipped.
func (s *Store) SaveOrder(ctx context.Context, positions map[string]int) error {
	var skipped []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE categories SET position = ? WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("failed to prepare order update: %w", err)
		}
		defer stmt.Close()
		for id, pos := range positions {
			res, err := stmt.ExecContext(ctx, pos, id)
			if err != nil {
				return fmt.Errorf("failed to update position of %s: %w", id, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				skipped = append(skipped, id)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"updated": len(positions) - len(skipped), "skipped": skipped}).Debug("Saved category order")
	return nil
}

func replaceMembers(ctx context.Context, tx *sql.Tx, id string, members []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM category_members WHERE category_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear category members: %w", err)
	}
	for i, name := range members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO category_members (category_id, container_name, seq) VALUES (?, ?, ?)`, id, name, i,
		); err != nil {
			return fmt.Errorf("failed to add category member %s: %w", name, err)
		}
	}
	return nil
}

func mapConstraint(err error, msg string) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed: categories.name") {
		return domain.ErrDuplicateName
	}
	return fmt.Errorf("%s: %w", msg, err)
}
