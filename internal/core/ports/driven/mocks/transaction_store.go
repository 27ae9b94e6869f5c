package mocks

import (
	"context"
	"sync"

	"github.com/Benrishty/finsync/internal/core/domain"
	"github.com/Benrishty/finsync/internal/core/ports/driven"
)

// MockTransactionStore is a mock implementation of TransactionStore for testing
type MockTransactionStore struct {
	mu   sync.RWMutex
	txns map[string]domain.Transaction

	// UpsertCalls counts UpsertBatch invocations
	UpsertCalls int
	// DeleteCalls counts DeleteBatch invocations
	DeleteCalls int
}

// NewMockTransactionStore creates a new MockTransactionStore
func NewMockTransactionStore() *MockTransactionStore {
	return &MockTransactionStore{
		txns: make(map[string]domain.Transaction),
	}
}

func (m *MockTransactionStore) UpsertBatch(ctx context.Context, txns []domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	for _, t := range txns {
		m.txns[t.TransactionID] = t
	}
	return nil
}

func (m *MockTransactionStore) DeleteBatch(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	for _, id := range ids {
		delete(m.txns, id)
	}
	return nil
}

func (m *MockTransactionStore) Get(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.txns[transactionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (m *MockTransactionStore) List(ctx context.Context, filter driven.TransactionFilter) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Transaction
	for id := range m.txns {
		t := m.txns[id]
		if filter.ItemID != "" && t.ItemID != filter.ItemID {
			continue
		}
		if filter.AccountID != "" && t.AccountID != filter.AccountID {
			continue
		}
		result = append(result, &t)
	}
	return result, nil
}

func (m *MockTransactionStore) Count(ctx context.Context, filter driven.TransactionFilter) (int, error) {
	list, err := m.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

// Helper methods for testing

// Len returns the number of stored transactions
func (m *MockTransactionStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txns)
}

// Has reports whether a transaction ID is stored
func (m *MockTransactionStore) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.txns[id]
	return ok
}
