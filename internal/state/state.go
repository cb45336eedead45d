// Package state defines the shared key/value store read by both the background pass and the polling caller.
//
// Progress counters, stop flags and task handles live here so that a web-facing process and a worker can
// observe the same values. [Store.Update] serializes each read-modify-write; callers must not assume a
// transaction spans two calls.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Store is a string-keyed store of JSON values.
type Store interface {
	// Get returns the raw value for key. ok is false when the key is missing.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	// Update applies fn to the current value atomically. A nil result from fn deletes the key.
	Update(ctx context.Context, key string, fn func(old []byte, ok bool) ([]byte, error)) error
	Delete(ctx context.Context, key string) error
}

// GetJSON decodes the value stored under key into v.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode state %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode state %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// UpdateJSON decodes the value under key into a T, applies fn and stores the result.
//
// fn receives ok=false and a zero T when the key is missing. Returning keep=false leaves the store unchanged.
func UpdateJSON[T any](ctx context.Context, s Store, key string, fn func(v *T, ok bool) (keep bool)) error {
	return s.Update(ctx, key, func(old []byte, ok bool) ([]byte, error) {
		var v T
		if ok {
			if err := json.Unmarshal(old, &v); err != nil {
				return nil, fmt.Errorf("failed to decode state %s: %w", key, err)
			}
		}
		if !fn(&v, ok) {
			return old, nil
		}
		return json.Marshal(v)
	})
}

// MemoryStore keeps state in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Update(_ context.Context, key string, fn func([]byte, bool) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.values[key]
	next, err := fn(old, ok)
	if err != nil {
		return err
	}
	if next == nil {
		delete(m.values, key)
		return nil
	}
	m.values[key] = append([]byte(nil), next...)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
