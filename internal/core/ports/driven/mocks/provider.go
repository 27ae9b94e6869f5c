package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/Benrishty/finsync/internal/core/domain"
	"github.com/Benrishty/finsync/internal/core/ports/driven"
)

// MockProvider is a mock implementation of Provider for testing
type MockProvider struct {
	CreateLinkTokenFn     func(ctx context.Context, req driven.LinkTokenRequest) (*domain.LinkToken, error)
	ExchangePublicTokenFn func(ctx context.Context, publicToken string) (*domain.ExchangeResult, error)
	GetItemFn             func(ctx context.Context, accessToken string) (*domain.Item, error)
	RemoveItemFn          func(ctx context.Context, accessToken string) error
	GetAccountsFn         func(ctx context.Context, accessToken string) ([]domain.Account, error)
	GetBalancesFn         func(ctx context.Context, accessToken string) ([]domain.Account, error)
	SyncTransactionsFn    func(ctx context.Context, accessToken, cursor string, count int) (*domain.ChangeSet, error)
	GetTransactionsFn     func(ctx context.Context, accessToken string, start, end time.Time, count, offset int) (*driven.HistoricalPage, error)
	GetInstitutionFn      func(ctx context.Context, institutionID string) (*domain.Institution, error)

	mu sync.Mutex
	// SyncRequests records every (cursor, count) passed to SyncTransactions
	SyncRequests []string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) CreateLinkToken(ctx context.Context, req driven.LinkTokenRequest) (*domain.LinkToken, error) {
	if m.CreateLinkTokenFn != nil {
		return m.CreateLinkTokenFn(ctx, req)
	}
	return &domain.LinkToken{Token: "link-sandbox-mock"}, nil
}

func (m *MockProvider) ExchangePublicToken(ctx context.Context, publicToken string) (*domain.ExchangeResult, error) {
	if m.ExchangePublicTokenFn != nil {
		return m.ExchangePublicTokenFn(ctx, publicToken)
	}
	return &domain.ExchangeResult{ItemID: "item-mock", AccessToken: "access-mock"}, nil
}

func (m *MockProvider) GetItem(ctx context.Context, accessToken string) (*domain.Item, error) {
	if m.GetItemFn != nil {
		return m.GetItemFn(ctx, accessToken)
	}
	return &domain.Item{ItemID: "item-mock"}, nil
}

func (m *MockProvider) RemoveItem(ctx context.Context, accessToken string) error {
	if m.RemoveItemFn != nil {
		return m.RemoveItemFn(ctx, accessToken)
	}
	return nil
}

func (m *MockProvider) GetAccounts(ctx context.Context, accessToken string) ([]domain.Account, error) {
	if m.GetAccountsFn != nil {
		return m.GetAccountsFn(ctx, accessToken)
	}
	return nil, nil
}

func (m *MockProvider) GetBalances(ctx context.Context, accessToken string) ([]domain.Account, error) {
	if m.GetBalancesFn != nil {
		return m.GetBalancesFn(ctx, accessToken)
	}
	return nil, nil
}

func (m *MockProvider) SyncTransactions(ctx context.Context, accessToken, cursor string, count int) (*domain.ChangeSet, error) {
	m.mu.Lock()
	m.SyncRequests = append(m.SyncRequests, cursor)
	m.mu.Unlock()
	if m.SyncTransactionsFn != nil {
		return m.SyncTransactionsFn(ctx, accessToken, cursor, count)
	}
	return &domain.ChangeSet{NextCursor: cursor, HasMore: false}, nil
}

func (m *MockProvider) GetTransactions(ctx context.Context, accessToken string, start, end time.Time, count, offset int) (*driven.HistoricalPage, error) {
	if m.GetTransactionsFn != nil {
		return m.GetTransactionsFn(ctx, accessToken, start, end, count, offset)
	}
	return &driven.HistoricalPage{}, nil
}

func (m *MockProvider) GetInstitution(ctx context.Context, institutionID string) (*domain.Institution, error) {
	if m.GetInstitutionFn != nil {
		return m.GetInstitutionFn(ctx, institutionID)
	}
	return &domain.Institution{InstitutionID: institutionID}, nil
}

// SyncRequestCount returns how many delta pages were requested
func (m *MockProvider) SyncRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SyncRequests)
}
