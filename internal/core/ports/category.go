package ports

import (
	"context"

	"github.com/melih/lighthouse-paas/internal/core/domain"
)

// OrderStore persists category display positions keyed by category id.
type OrderStore interface {
	SaveOrder(ctx context.Context, positions map[string]int) error
}

// CategoryStore persists user-defined categories.
type CategoryStore interface {
	OrderStore
	ListCategories(ctx context.Context) (map[string]domain.Category, error)
	GetCategory(ctx context.Context, id string) (domain.Category, error)
	// CreateCategory appends c after the existing categories when c.Position is 0.
	CreateCategory(ctx context.Context, c domain.Category) (domain.Category, error)
	// UpdateCategory keeps the stored position; positions change only through SaveOrder.
	UpdateCategory(ctx context.Context, c domain.Category) (domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// ConfigStore keeps the opaque configuration text of each container.
type ConfigStore interface {
	GetConfig(ctx context.Context, name string) (string, error)
	PutConfig(ctx context.Context, name, body string) error
}
