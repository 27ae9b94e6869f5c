package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/Benrishty/finsync/internal/core/domain"
)

// MockDistributedLock is an in-memory DistributedLock for testing
type MockDistributedLock struct {
	mu    sync.Mutex
	locks map[string]time.Time
}

// NewMockDistributedLock creates a new MockDistributedLock
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{
		locks: make(map[string]time.Time),
	}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if expiry, held := m.locks[name]; held && time.Now().Before(expiry) {
		return false, nil
	}
	m.locks[name] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, name)
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[name]; !held {
		return domain.ErrNotFound
	}
	m.locks[name] = time.Now().Add(ttl)
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error { return nil }

// MockTokenCipher is a no-op TokenCipher for testing
type MockTokenCipher struct{}

func NewMockTokenCipher() *MockTokenCipher { return &MockTokenCipher{} }

func (m *MockTokenCipher) Encrypt(plaintext string) (string, error) {
	return "enc:" + plaintext, nil
}

func (m *MockTokenCipher) Decrypt(ciphertext string) (string, error) {
	if len(ciphertext) > 4 && ciphertext[:4] == "enc:" {
		return ciphertext[4:], nil
	}
	return ciphertext, nil
}

// MockNotifier records notifications for testing
type MockNotifier struct {
	mu       sync.Mutex
	Subjects []string
}

func NewMockNotifier() *MockNotifier { return &MockNotifier{} }

func (m *MockNotifier) Notify(ctx context.Context, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Subjects = append(m.Subjects, subject)
	return nil
}

// Count returns how many notifications were sent
func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Subjects)
}

// MockInstitutionStore is an in-memory InstitutionStore for testing
type MockInstitutionStore struct {
	mu           sync.RWMutex
	institutions map[string]*domain.Institution
}

// NewMockInstitutionStore creates a new MockInstitutionStore
func NewMockInstitutionStore() *MockInstitutionStore {
	return &MockInstitutionStore{
		institutions: make(map[string]*domain.Institution),
	}
}

func (m *MockInstitutionStore) Upsert(ctx context.Context, inst *domain.Institution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.institutions[inst.InstitutionID] = inst
	return nil
}

func (m *MockInstitutionStore) Get(ctx context.Context, institutionID string) (*domain.Institution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.institutions[institutionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return inst, nil
}

func (m *MockInstitutionStore) List(ctx context.Context) ([]*domain.Institution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Institution
	for _, inst := range m.institutions {
		result = append(result, inst)
	}
	return result, nil
}
