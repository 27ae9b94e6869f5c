package driving

import (
	"context"

	"github.com/Benrishty/finsync/internal/core/domain"
)

// CreateLinkTokenRequest represents a request to start the link flow
type CreateLinkTokenRequest struct {
	// ClientUserID identifies the end user (defaults to a generated ID)
	ClientUserID string `json:"client_user_id,omitempty"`

	// ItemID, when set, puts link into update mode for that item
	ItemID string `json:"item_id,omitempty"`
}

// ExchangeRequest represents the token exchange after link completes
type ExchangeRequest struct {
	PublicToken string `json:"public_token"`
}

// LinkService manages the item linking lifecycle
type LinkService interface {
	// CreateLinkToken creates a token for the client-side link flow
	CreateLinkToken(ctx context.Context, req CreateLinkTokenRequest) (*domain.LinkToken, error)

	// ExchangePublicToken trades a public token for an item, persists
	// it with an encrypted access token, and syncs its accounts
	ExchangePublicToken(ctx context.Context, req ExchangeRequest) (*domain.Item, error)

	// RemoveItem revokes the item at the provider and deletes it locally
	RemoveItem(ctx context.Context, itemID string) error

	// ClearItemError marks an item healthy after re-authorization
	ClearItemError(ctx context.Context, itemID string) error
}

// ItemService exposes read access to synced data
type ItemService interface {
	// GetItem retrieves one item
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)

	// ListItems retrieves all items
	ListItems(ctx context.Context) ([]*domain.Item, error)

	// Status returns the per-item health and sync report
	Status(ctx context.Context) ([]*domain.ItemStatus, error)

	// ListAccounts retrieves accounts, optionally for one item
	ListAccounts(ctx context.Context, itemID string) ([]*domain.Account, error)

	// ListTransactions retrieves transactions matching the filter
	ListTransactions(ctx context.Context, filter TransactionQuery) ([]*domain.Transaction, int, error)

	// BalanceHistory retrieves balance snapshots for an account
	BalanceHistory(ctx context.Context, accountID string, limit int) ([]*domain.BalanceSnapshot, error)
}

// TransactionQuery filters transaction listings
type TransactionQuery struct {
	ItemID    string `json:"item_id,omitempty"`
	AccountID string `json:"account_id,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}
