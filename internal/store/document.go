package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
)

// Node types reported by a document driver.
const (
	nodeMissing = ""
	nodeObject  = "object"
	nodeArray   = "array"
)

// documentDriver performs path-addressed operations on one server-side JSON document.
//
// Each write is a single statement against the server, so concurrent writers of disjoint
// paths never lose each other's updates.
type documentDriver interface {
	ensure(ctx context.Context, doc string) error
	get(ctx context.Context, doc string, p docPath) ([]byte, bool, error)
	set(ctx context.Context, doc string, p docPath, value []byte) error
	typeOf(ctx context.Context, doc string, p docPath) (string, error)
	remove(ctx context.Context, doc string, p docPath) error
	keys(ctx context.Context, doc string, p docPath) ([]string, error)
	reset(ctx context.Context, doc string) error
	whole(ctx context.Context, doc string) ([]byte, error)
	close() error
}

// DocumentStore keeps the dump in one remote document keyed by module and user.
//
// Writes go straight to the server; SaveData has nothing left to flush. Before composing the
// next path segment the store asks the server for the parent node's type, so a bucket holding
// an array is addressed by index and a bucket holding an object by key.
type DocumentStore struct {
	driver documentDriver
	doc    string
	logger *log.Logger
}

func newDocumentStore(driver documentDriver, doc string, logger *log.Logger) *DocumentStore {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &DocumentStore{driver: driver, doc: doc, logger: logger}
}

// Document returns the key of the backing document.
func (s *DocumentStore) Document() string {
	return s.doc
}

// child composes the path of key below parent according to the parent's node type.
func (s *DocumentStore) child(ctx context.Context, parent docPath, key string) (docPath, error) {
	if len(parent) == 0 {
		return parent.field(key)
	}
	t, err := s.driver.typeOf(ctx, s.doc, parent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	switch t {
	case nodeObject:
		return parent.field(key)
	case nodeArray:
		return parent.element(key)
	case nodeMissing:
		return nil, bucketNotFound(parent.String())
	}
	return nil, fmt.Errorf("%w: %s is a %s", shared.ErrBadPath, parent, t)
}

func (s *DocumentStore) bucketPath(ctx context.Context, bucket string) (docPath, error) {
	p, err := docPath(nil).field(bucket)
	if err != nil {
		return nil, err
	}
	t, err := s.driver.typeOf(ctx, s.doc, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	if t == nodeMissing {
		return nil, bucketNotFound(bucket)
	}
	return p, nil
}

// PrepareData creates the document and bucket, replacing the bucket when reload is set or
// when it is not an object.
func (s *DocumentStore) PrepareData(ctx context.Context, bucket string, reload bool) error {
	if err := s.driver.ensure(ctx, s.doc); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	p, err := docPath(nil).field(bucket)
	if err != nil {
		return err
	}
	t, err := s.driver.typeOf(ctx, s.doc, p)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	if t == nodeObject && !reload {
		return nil
	}
	if err := s.driver.set(ctx, s.doc, p, []byte("{}")); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	return nil
}

// LoadData makes sure the document exists. Reads always go to the server.
func (s *DocumentStore) LoadData(ctx context.Context) error {
	if err := s.driver.ensure(ctx, s.doc); err != nil {
		s.logger.Warn("failed to ensure document", "document", s.doc, "error", err)
	}
	return nil
}

// SaveData is a no-op; every write goes to the server.
func (s *DocumentStore) SaveData(context.Context) error { return nil }

// Get reads the value under key.
func (s *DocumentStore) Get(ctx context.Context, bucket, key string) (any, error) {
	bp, err := s.bucketPath(ctx, bucket)
	if err != nil {
		return nil, err
	}
	p, err := s.child(ctx, bp, key)
	if err != nil {
		return nil, err
	}

	raw, ok, err := s.driver.get(ctx, s.doc, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	if !ok {
		return nil, keyNotFound(bucket, key)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrBadRecord, err)
	}
	return v, nil
}

// Set writes value under key.
func (s *DocumentStore) Set(ctx context.Context, bucket, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrBadRecord, err)
	}
	bp, err := s.bucketPath(ctx, bucket)
	if err != nil {
		return err
	}
	p, err := s.child(ctx, bp, key)
	if err != nil {
		return err
	}
	if err := s.driver.set(ctx, s.doc, p, raw); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	return nil
}

// Update writes each entry of values in key order.
func (s *DocumentStore) Update(ctx context.Context, bucket string, values map[string]any) error {
	for _, k := range sortedKeys(values) {
		if err := s.Set(ctx, bucket, k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

// Keys lists the keys of bucket.
func (s *DocumentStore) Keys(ctx context.Context, bucket string) ([]string, error) {
	bp, err := s.bucketPath(ctx, bucket)
	if err != nil {
		return nil, err
	}
	keys, err := s.driver.keys(ctx, s.doc, bp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	return keys, nil
}

// Delete removes keys from bucket.
func (s *DocumentStore) Delete(ctx context.Context, bucket string, keys ...string) error {
	bp, err := s.bucketPath(ctx, bucket)
	if err != nil {
		return err
	}
	for _, k := range keys {
		p, err := s.child(ctx, bp, k)
		if err != nil {
			return err
		}
		if err := s.driver.remove(ctx, s.doc, p); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
		}
	}
	return nil
}

// Bucket reads the whole bucket.
func (s *DocumentStore) Bucket(ctx context.Context, bucket string) (map[string]any, error) {
	bp, err := s.bucketPath(ctx, bucket)
	if err != nil {
		return nil, err
	}
	raw, ok, err := s.driver.get(ctx, s.doc, bp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	if !ok {
		return nil, bucketNotFound(bucket)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: bucket %s: %v", shared.ErrBadRecord, bucket, err)
	}
	return m, nil
}

// Snapshot reads the whole document as a dump.
func (s *DocumentStore) Snapshot(ctx context.Context) (models.TitlesDump, error) {
	raw, err := s.driver.whole(ctx, s.doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	dump := models.TitlesDump{}
	if len(raw) == 0 {
		return dump, nil
	}
	if err := json.Unmarshal(raw, &dump); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrBadRecord, err)
	}
	return dump, nil
}

// Reset empties the whole document.
func (s *DocumentStore) Reset(ctx context.Context) error {
	if err := s.driver.reset(ctx, s.doc); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	return nil
}

// Close releases the driver.
func (s *DocumentStore) Close() error {
	return s.driver.close()
}
