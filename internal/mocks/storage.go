package mocks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/modern-blog/internal/models"
)

// MockStorage keeps saved images in memory
type MockStorage struct {
	mu         sync.Mutex
	Files      map[string][]byte
	Released   []string
	SaveErr    error
	ReleaseErr error
	seq        int
}

func NewMockStorage() *MockStorage {
	return &MockStorage{Files: make(map[string][]byte)}
}

func (m *MockStorage) Save(ctx context.Context, filename string, r io.Reader, size int64) (string, error) {
	if m.SaveErr != nil {
		return "", m.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	ref := fmt.Sprintf("/uploads/articles/mock-%d-%s", m.seq, filename)
	m.Files[ref] = data
	return ref, nil
}

func (m *MockStorage) Release(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Released = append(m.Released, ref)
	if m.ReleaseErr != nil {
		return m.ReleaseErr
	}
	delete(m.Files, ref)
	return nil
}

// Has reports whether ref is still stored
func (m *MockStorage) Has(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Files[ref]
	return ok
}

// Count returns the number of stored files
func (m *MockStorage) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Files)
}

// MockAccountCache is an in-memory account cache
type MockAccountCache struct {
	mu      sync.Mutex
	Entries map[string]*models.User
	Err     error
}

func NewMockAccountCache() *MockAccountCache {
	return &MockAccountCache{Entries: make(map[string]*models.User)}
}

func (m *MockAccountCache) Get(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	u, ok := m.Entries[id]
	if !ok {
		return nil, nil
	}
	clone := *u
	return &clone, nil
}

func (m *MockAccountCache) Set(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	clone := *user
	m.Entries[user.ID] = &clone
	return nil
}

func (m *MockAccountCache) Invalidate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Entries, id)
	return nil
}

func (m *MockAccountCache) Close() error { return nil }

// ErrMockFailure is a generic injected failure
var ErrMockFailure = errors.New("mock failure")
