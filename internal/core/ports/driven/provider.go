package driven

import (
	"context"
	"time"

	"github.com/Benrishty/finsync/internal/core/domain"
)

// LinkTokenRequest carries the parameters for creating a link token.
type LinkTokenRequest struct {
	// ClientUserID is the stable identifier for the end user
	ClientUserID string

	// Products to request during link
	Products []string

	// Webhook URL the provider should deliver events to
	Webhook string

	// AccessToken puts link into update mode for an existing item
	AccessToken string

	// RedirectURI for OAuth institutions
	RedirectURI string
}

// HistoricalPage is one page of the offset-paginated historical
// transactions endpoint.
type HistoricalPage struct {
	Transactions []domain.Transaction
	Total        int

	// Rejected counts records the adapter dropped because they could
	// not be decoded
	Rejected int
}

// Provider is the upstream financial data aggregator.
type Provider interface {
	// CreateLinkToken creates a token for the client-side link flow
	CreateLinkToken(ctx context.Context, req LinkTokenRequest) (*domain.LinkToken, error)

	// ExchangePublicToken trades a public token for item credentials
	ExchangePublicToken(ctx context.Context, publicToken string) (*domain.ExchangeResult, error)

	// GetItem retrieves item metadata and error state
	GetItem(ctx context.Context, accessToken string) (*domain.Item, error)

	// RemoveItem revokes the access token at the provider
	RemoveItem(ctx context.Context, accessToken string) error

	// GetAccounts retrieves the accounts under an item
	GetAccounts(ctx context.Context, accessToken string) ([]domain.Account, error)

	// GetBalances retrieves accounts with real-time balance figures.
	// Unlike GetAccounts this forces a live balance check at the institution.
	GetBalances(ctx context.Context, accessToken string) ([]domain.Account, error)

	// SyncTransactions fetches one page of the transaction delta feed.
	// An empty NextCursor with HasMore false signals the feed is still
	// being prepared and the same request should be retried.
	SyncTransactions(ctx context.Context, accessToken, cursor string, count int) (*domain.ChangeSet, error)

	// GetTransactions fetches one offset page of historical transactions
	GetTransactions(ctx context.Context, accessToken string, start, end time.Time, count, offset int) (*HistoricalPage, error)

	// GetInstitution retrieves institution metadata by ID
	GetInstitution(ctx context.Context, institutionID string) (*domain.Institution, error)
}
