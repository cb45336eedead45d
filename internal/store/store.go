// Package store implements the title store: a dict-like mapping of bucket -> title key -> value
// with three interchangeable backends.
//
// Buckets are watchlist kinds plus the errors bucket. A bucket must be prepared with
// [TitleStore.PrepareData] before it is read or written. Values are JSON-compatible: every backend
// returns maps as map[string]any, lists as []any and numbers as float64.
//
// Backends:
//   - [JSONFileStore] : one indented JSON file per module and user, saved atomically
//   - [MemoryStore] : process memory only
//   - [DocumentStore] : one server-side JSON document written one path at a time (sqlite or postgres)
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
)

// TitleStore is the storage contract shared by every backend.
type TitleStore interface {
	// PrepareData ensures the bucket exists. With reload set the bucket is emptied.
	PrepareData(ctx context.Context, bucket string, reload bool) error
	// LoadData reads persisted state. Unreadable state yields an empty store.
	LoadData(ctx context.Context) error
	// SaveData persists the store. On failure the previously persisted state is left intact.
	SaveData(ctx context.Context) error

	Get(ctx context.Context, bucket, key string) (any, error)
	Set(ctx context.Context, bucket, key string, value any) error
	// Update merges values into the bucket key by key.
	Update(ctx context.Context, bucket string, values map[string]any) error
	Keys(ctx context.Context, bucket string) ([]string, error)
	Delete(ctx context.Context, bucket string, keys ...string) error

	Bucket(ctx context.Context, bucket string) (map[string]any, error)
	Snapshot(ctx context.Context) (models.TitlesDump, error)
	Close() error
}

// GetRecord decodes the value under key as an [models.AnimeRecord].
func GetRecord(ctx context.Context, s TitleStore, bucket, key string) (models.AnimeRecord, error) {
	v, err := s.Get(ctx, bucket, key)
	if err != nil {
		return models.AnimeRecord{}, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return models.AnimeRecord{}, fmt.Errorf("%w: %s/%s is %T", shared.ErrBadRecord, bucket, key, v)
	}
	r, err := models.FromMapping(m)
	if err != nil {
		return r, fmt.Errorf("%w: %s/%s: %v", shared.ErrBadRecord, bucket, key, err)
	}
	return r, nil
}

// SetRecord stores the plain-mapping form of r.
func SetRecord(ctx context.Context, s TitleStore, bucket, key string, r models.AnimeRecord) error {
	return s.Set(ctx, bucket, key, r.ToMapping())
}

// normalize converts v into its decoded JSON form so every backend hands out the same shapes.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrBadRecord, err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrBadRecord, err)
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

func bucketNotFound(bucket string) error {
	return fmt.Errorf("%w: %s", shared.ErrBucketNotFound, bucket)
}

func keyNotFound(bucket, key string) error {
	return fmt.Errorf("%w: %s/%s", shared.ErrKeyNotFound, bucket, key)
}
