package driven

import (
	"context"

	"github.com/Benrishty/finsync/internal/core/domain"
)

// CursorStore handles sync cursor persistence (PostgreSQL).
// The cursor is the only durable record of sync progress, so it is
// saved strictly after the changes it covers have been applied.
type CursorStore interface {
	// Get retrieves the cursor for an item.
	// Returns domain.ErrNotFound if the item has never completed a sync.
	Get(ctx context.Context, itemID string) (*domain.SyncCursor, error)

	// Save creates or updates the cursor for an item
	Save(ctx context.Context, itemID, cursor string) error

	// Delete removes the cursor, forcing the next sync to start from scratch
	Delete(ctx context.Context, itemID string) error
}
