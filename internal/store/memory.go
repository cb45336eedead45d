package store

import (
	"context"
	"sync"

	"github.com/desertthunder/wlsync/internal/models"
)

// MemoryStore keeps the dump in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]any
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]any)}
}

// PrepareData creates bucket, emptying it when reload is set.
func (m *MemoryStore) PrepareData(_ context.Context, bucket string, reload bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[bucket]; !ok || reload {
		m.data[bucket] = make(map[string]any)
	}
	return nil
}

// LoadData is a no-op; the dump only lives in memory.
func (m *MemoryStore) LoadData(context.Context) error { return nil }

// SaveData is a no-op.
func (m *MemoryStore) SaveData(context.Context) error { return nil }

// Get returns a JSON-normalized copy of the value under key.
func (m *MemoryStore) Get(_ context.Context, bucket, key string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[bucket]
	if !ok {
		return nil, bucketNotFound(bucket)
	}
	v, ok := b[key]
	if !ok {
		return nil, keyNotFound(bucket, key)
	}
	return normalize(v)
}

// Set stores a normalized copy of value under key.
func (m *MemoryStore) Set(_ context.Context, bucket, key string, value any) error {
	v, err := normalize(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[bucket]
	if !ok {
		return bucketNotFound(bucket)
	}
	b[key] = v
	return nil
}

// Update sets every entry of values. Nothing is written if a value fails to normalize.
func (m *MemoryStore) Update(_ context.Context, bucket string, values map[string]any) error {
	normalized := make(map[string]any, len(values))
	for k, v := range values {
		nv, err := normalize(v)
		if err != nil {
			return err
		}
		normalized[k] = nv
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[bucket]
	if !ok {
		return bucketNotFound(bucket)
	}
	for k, v := range normalized {
		b[k] = v
	}
	return nil
}

// Keys returns the sorted keys of bucket.
func (m *MemoryStore) Keys(_ context.Context, bucket string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[bucket]
	if !ok {
		return nil, bucketNotFound(bucket)
	}
	return sortedKeys(b), nil
}

// Delete removes keys from bucket. Missing keys are ignored.
func (m *MemoryStore) Delete(_ context.Context, bucket string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[bucket]
	if !ok {
		return bucketNotFound(bucket)
	}
	for _, k := range keys {
		delete(b, k)
	}
	return nil
}

// Bucket returns a copy of the whole bucket.
func (m *MemoryStore) Bucket(_ context.Context, bucket string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[bucket]
	if !ok {
		return nil, bucketNotFound(bucket)
	}
	v, err := normalize(b)
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// Snapshot returns a copy of the dump.
func (m *MemoryStore) Snapshot(context.Context) (models.TitlesDump, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot()
}

func (m *MemoryStore) Close() error { return nil }

// snapshot copies the dump; callers hold the lock.
func (m *MemoryStore) snapshot() (models.TitlesDump, error) {
	dump := make(models.TitlesDump, len(m.data))
	for name, b := range m.data {
		v, err := normalize(b)
		if err != nil {
			return nil, err
		}
		dump[name] = v.(map[string]any)
	}
	return dump, nil
}

// replace swaps the whole dump; callers hold the lock.
func (m *MemoryStore) replace(dump models.TitlesDump) {
	m.data = make(map[string]map[string]any, len(dump))
	for name, b := range dump {
		if b == nil {
			b = make(map[string]any)
		}
		m.data[name] = b
	}
}
