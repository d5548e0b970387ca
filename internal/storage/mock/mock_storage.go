// Package mock provides in-memory store implementations for tests. Both
// stores are safe for concurrent use so retrieval races can be exercised.
package mock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/emberlink/ember/internal/storage/types"
)

type secretEntry struct {
	data      []byte
	expiresAt time.Time
}

// MockSecretStore implements types.SecretStore.
type MockSecretStore struct {
	mu      sync.Mutex
	secrets map[string]secretEntry

	PutCalls     int
	ConsumeCalls int
	PutErr       error
	ConsumeErr   error
}

func NewMockSecretStore() *MockSecretStore {
	return &MockSecretStore{
		secrets: make(map[string]secretEntry),
	}
}

func (m *MockSecretStore) PutSecret(ctx context.Context, id string, data []byte, ttlSeconds int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PutCalls++
	if m.PutErr != nil {
		return m.PutErr
	}
	if data == nil {
		return fmt.Errorf("data cannot be nil")
	}

	m.secrets[id] = secretEntry{
		data:      data,
		expiresAt: time.Now().Add(time.Duration(ttlSeconds) * time.Second),
	}
	return nil
}

func (m *MockSecretStore) ConsumeSecret(ctx context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ConsumeCalls++
	if m.ConsumeErr != nil {
		return nil, m.ConsumeErr
	}

	entry, ok := m.secrets[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	delete(m.secrets, id)

	if time.Now().After(entry.expiresAt) {
		return nil, types.ErrNotFound
	}
	return entry.data, nil
}

// Has reports whether a record is still stored, without consuming it.
func (m *MockSecretStore) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.secrets[id]
	return ok
}

// TTLOf returns the remaining TTL of a stored record, rounded to seconds.
func (m *MockSecretStore) TTLOf(id string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.secrets[id]
	if !ok {
		return 0, false
	}
	return int64(time.Until(entry.expiresAt).Round(time.Second) / time.Second), true
}

// MockFileStore implements types.FileStore.
type MockFileStore struct {
	mu    sync.Mutex
	blobs map[string][]byte

	StoreCalls  int
	OpenCalls   int
	DeleteCalls int
	StoreErr    error
	OpenErr     error
	DeleteErr   error
}

func NewMockFileStore() *MockFileStore {
	return &MockFileStore{
		blobs: make(map[string][]byte),
	}
}

func (m *MockFileStore) StoreBlob(ctx context.Context, id string, body io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StoreCalls++
	if m.StoreErr != nil {
		return m.StoreErr
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.blobs[id] = data
	return nil
}

func (m *MockFileStore) OpenBlob(ctx context.Context, id string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.OpenCalls++
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}

	data, ok := m.blobs[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MockFileStore) DeleteBlob(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls++
	if m.DeleteErr != nil {
		return m.DeleteErr
	}

	if _, ok := m.blobs[id]; !ok {
		return types.ErrNotFound
	}
	delete(m.blobs, id)
	return nil
}

// Has reports whether a blob is still stored.
func (m *MockFileStore) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[id]
	return ok
}
