package mocks

import (
	"context"
	"sync"

	"github.com/Benrishty/finsync/internal/core/domain"
)

// MockAccountStore is a mock implementation of AccountStore for testing
type MockAccountStore struct {
	mu        sync.RWMutex
	accounts  map[string]domain.Account
	snapshots []domain.BalanceSnapshot
}

// NewMockAccountStore creates a new MockAccountStore
func NewMockAccountStore() *MockAccountStore {
	return &MockAccountStore{
		accounts: make(map[string]domain.Account),
	}
}

func (m *MockAccountStore) UpsertBatch(ctx context.Context, accounts []domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range accounts {
		m.accounts[a.AccountID] = a
	}
	return nil
}

func (m *MockAccountStore) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (m *MockAccountStore) List(ctx context.Context, itemID string) ([]*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Account
	for id := range m.accounts {
		a := m.accounts[id]
		if itemID != "" && a.ItemID != itemID {
			continue
		}
		result = append(result, &a)
	}
	return result, nil
}

func (m *MockAccountStore) RecordBalances(ctx context.Context, snapshots []domain.BalanceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snapshots...)
	return nil
}

func (m *MockAccountStore) BalanceHistory(ctx context.Context, accountID string, limit int) ([]*domain.BalanceSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.BalanceSnapshot
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if m.snapshots[i].AccountID != accountID {
			continue
		}
		s := m.snapshots[i]
		result = append(result, &s)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Helper methods for testing

// SnapshotCount returns the number of recorded balance snapshots
func (m *MockAccountStore) SnapshotCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshots)
}
