package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/Benrishty/finsync/internal/core/domain"
)

// MockCursorStore is a mock implementation of CursorStore for testing
type MockCursorStore struct {
	mu      sync.RWMutex
	cursors map[string]string

	// SaveCalls records every cursor value saved, in order
	SaveCalls []string
}

// NewMockCursorStore creates a new MockCursorStore
func NewMockCursorStore() *MockCursorStore {
	return &MockCursorStore{
		cursors: make(map[string]string),
	}
}

func (m *MockCursorStore) Get(ctx context.Context, itemID string) (*domain.SyncCursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cursor, ok := m.cursors[itemID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.SyncCursor{ItemID: itemID, Cursor: cursor, UpdatedAt: time.Now()}, nil
}

func (m *MockCursorStore) Save(ctx context.Context, itemID, cursor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[itemID] = cursor
	m.SaveCalls = append(m.SaveCalls, cursor)
	return nil
}

func (m *MockCursorStore) Delete(ctx context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cursors, itemID)
	return nil
}

// Helper methods for testing

// SetCursor seeds a cursor directly
func (m *MockCursorStore) SetCursor(itemID, cursor string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[itemID] = cursor
}

// Cursor reads the stored cursor for an item
func (m *MockCursorStore) Cursor(itemID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cursors[itemID]
}
