package driven

import (
	"context"

	"github.com/Benrishty/finsync/internal/core/domain"
)

// ItemStore handles item persistence (PostgreSQL)
type ItemStore interface {
	// Upsert creates or updates an item by item ID.
	// Identity fields already stored are preserved when the incoming
	// value is empty.
	Upsert(ctx context.Context, item *domain.Item) error

	// Get retrieves an item by ID
	Get(ctx context.Context, itemID string) (*domain.Item, error)

	// List retrieves all items
	List(ctx context.Context) ([]*domain.Item, error)

	// ListHealthy retrieves items with no error or only transient errors.
	// Items with re-auth errors are excluded.
	ListHealthy(ctx context.Context) ([]*domain.Item, error)

	// SetError records a provider error on the item
	SetError(ctx context.Context, itemID string, itemErr *domain.ItemError) error

	// ClearError removes the stored error, restoring the item to healthy
	ClearError(ctx context.Context, itemID string) error

	// Delete removes an item and its dependent rows
	Delete(ctx context.Context, itemID string) error

	// Status returns the per-item health and sync report
	Status(ctx context.Context) ([]*domain.ItemStatus, error)
}
