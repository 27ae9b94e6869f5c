package driven

import (
	"context"

	"github.com/Benrishty/finsync/internal/core/domain"
)

// AccountStore handles account persistence (PostgreSQL)
type AccountStore interface {
	// UpsertBatch creates or updates accounts by account ID
	UpsertBatch(ctx context.Context, accounts []domain.Account) error

	// Get retrieves an account by ID
	Get(ctx context.Context, accountID string) (*domain.Account, error)

	// List retrieves all accounts, optionally filtered to one item
	List(ctx context.Context, itemID string) ([]*domain.Account, error)

	// RecordBalances appends one balance snapshot per account to the
	// balance history. Existing history rows are never modified.
	RecordBalances(ctx context.Context, snapshots []domain.BalanceSnapshot) error

	// BalanceHistory retrieves snapshots for an account, newest first
	BalanceHistory(ctx context.Context, accountID string, limit int) ([]*domain.BalanceSnapshot, error)
}
