package driving

import (
	"context"

	"github.com/Benrishty/finsync/internal/core/domain"
)

// SyncOrchestrator coordinates transaction synchronization
type SyncOrchestrator interface {
	// SyncItem triggers an incremental transaction sync for one item
	SyncItem(ctx context.Context, itemID string) (*domain.SyncResult, error)

	// SyncAll triggers an incremental sync for all healthy items
	SyncAll(ctx context.Context) ([]*domain.SyncResult, error)

	// SyncAccounts refreshes the account list for one item
	SyncAccounts(ctx context.Context, itemID string) (int, error)

	// SyncBalances snapshots live balances for all healthy items
	SyncBalances(ctx context.Context) (int, error)

	// Backfill fetches historical transactions for one item
	Backfill(ctx context.Context, itemID string, yearsBack int) (*domain.BackfillResult, error)
}
