package driven

import (
	"context"
	"time"

	"github.com/Benrishty/finsync/internal/core/domain"
)

// TransactionFilter specifies criteria for listing transactions
type TransactionFilter struct {
	// ItemID filters by item (optional)
	ItemID string

	// AccountID filters by account (optional)
	AccountID string

	// StartDate filters to transactions on or after this date (optional)
	StartDate *time.Time

	// EndDate filters to transactions on or before this date (optional)
	EndDate *time.Time

	// Pending filters by pending state (optional)
	Pending *bool

	// Limit is the maximum number of transactions to return
	Limit int

	// Offset is the number of transactions to skip (for pagination)
	Offset int
}

// TransactionStore handles transaction persistence (PostgreSQL)
type TransactionStore interface {
	// UpsertBatch creates or updates transactions by transaction ID.
	// Re-applying the same batch is a no-op.
	UpsertBatch(ctx context.Context, txns []domain.Transaction) error

	// DeleteBatch removes transactions by ID. Unknown IDs are ignored.
	DeleteBatch(ctx context.Context, ids []string) error

	// Get retrieves a transaction by ID
	Get(ctx context.Context, transactionID string) (*domain.Transaction, error)

	// List retrieves transactions matching the filter, newest first
	List(ctx context.Context, filter TransactionFilter) ([]*domain.Transaction, error)

	// Count returns the number of transactions matching the filter
	Count(ctx context.Context, filter TransactionFilter) (int, error)
}
