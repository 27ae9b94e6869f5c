package mocks

import (
	"context"
	"sync"

	"github.com/Benrishty/finsync/internal/core/domain"
)

// MockItemStore is a mock implementation of ItemStore for testing
type MockItemStore struct {
	mu    sync.RWMutex
	items map[string]*domain.Item
}

// NewMockItemStore creates a new MockItemStore
func NewMockItemStore() *MockItemStore {
	return &MockItemStore{
		items: make(map[string]*domain.Item),
	}
}

func (m *MockItemStore) Upsert(ctx context.Context, item *domain.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.items[item.ItemID]
	if ok {
		// Preserve stored identity fields when the incoming value is empty
		if item.UserToken == "" {
			item.UserToken = existing.UserToken
		}
		if item.InstitutionID == "" {
			item.InstitutionID = existing.InstitutionID
		}
		if item.AccessToken == "" {
			item.AccessToken = existing.AccessToken
		}
	}
	m.items[item.ItemID] = item
	return nil
}

func (m *MockItemStore) Get(ctx context.Context, itemID string) (*domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[itemID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (m *MockItemStore) List(ctx context.Context) ([]*domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Item
	for _, item := range m.items {
		result = append(result, item)
	}
	return result, nil
}

func (m *MockItemStore) ListHealthy(ctx context.Context) ([]*domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Item
	for _, item := range m.items {
		if item.Healthy() {
			result = append(result, item)
		}
	}
	return result, nil
}

func (m *MockItemStore) SetError(ctx context.Context, itemID string, itemErr *domain.ItemError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok {
		return domain.ErrNotFound
	}
	item.Error = itemErr
	return nil
}

func (m *MockItemStore) ClearError(ctx context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok {
		return domain.ErrNotFound
	}
	item.Error = nil
	return nil
}

func (m *MockItemStore) Delete(ctx context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, itemID)
	return nil
}

func (m *MockItemStore) Status(ctx context.Context) ([]*domain.ItemStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.ItemStatus
	for _, item := range m.items {
		result = append(result, &domain.ItemStatus{
			ItemID:          item.ItemID,
			InstitutionID:   item.InstitutionID,
			InstitutionName: item.InstitutionName,
			Healthy:         item.Healthy(),
			Error:           item.Error,
		})
	}
	return result, nil
}

// Helper methods for testing

// AddItem seeds an item directly
func (m *MockItemStore) AddItem(item *domain.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ItemID] = item
}

// GetItem reads an item without error handling
func (m *MockItemStore) GetItem(itemID string) *domain.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items[itemID]
}
