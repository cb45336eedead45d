package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wlsync/internal/shared"
)

// Backend names accepted by storage.backend.
const (
	BackendJSON     = "json"
	BackendCache    = "cache"
	BackendDocument = "document"
)

// Factory opens title stores for module dumps according to the storage configuration.
type Factory struct {
	cfg    *shared.Config
	db     *sql.DB // sqlite database used by the sqlite document driver
	logger *log.Logger

	mu     sync.Mutex
	caches map[string]*MemoryStore
}

// NewFactory creates a [Factory]. db may be nil unless the sqlite document driver is configured.
func NewFactory(cfg *shared.Config, db *sql.DB, logger *log.Logger) *Factory {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Factory{cfg: cfg, db: db, logger: logger, caches: make(map[string]*MemoryStore)}
}

// Open returns the store holding a module's dump for a user and loads it.
//
// The cache backend hands out the same [MemoryStore] for the same module and user for the lifetime
// of the factory.
func (f *Factory) Open(ctx context.Context, module, user string) (TitleStore, error) {
	logger := shared.WithLogger(f.logger, "module", module, "store", f.cfg.Storage.Backend)
	name := user + "_" + module

	var s TitleStore
	switch f.cfg.Storage.Backend {
	case BackendJSON, "":
		s = NewJSONFileStore(DumpPath(f.cfg.Paths.JSONDumpsDir, module, user), logger)
	case BackendCache:
		f.mu.Lock()
		m, ok := f.caches[name]
		if !ok {
			m = NewMemoryStore()
			f.caches[name] = m
		}
		f.mu.Unlock()
		s = m
	case BackendDocument:
		ds, err := f.openDocument(ctx, name, logger)
		if err != nil {
			return nil, err
		}
		s = ds
	default:
		return nil, fmt.Errorf("%w: storage backend %q", shared.ErrInvalidConfig, f.cfg.Storage.Backend)
	}

	if err := s.LoadData(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (f *Factory) openDocument(ctx context.Context, name string, logger *log.Logger) (*DocumentStore, error) {
	switch f.cfg.Storage.DocumentDriver {
	case "sqlite", "":
		db := f.db
		if f.cfg.Storage.DSN != "" && f.cfg.Storage.DSN != f.cfg.Database.Path {
			opened, err := shared.OpenDatabase(shared.DatabaseConfig{Path: f.cfg.Storage.DSN})
			if err != nil {
				return nil, err
			}
			return newDocumentStore(&sqliteDriver{db: opened, owned: true}, name, logger), nil
		}
		if db == nil {
			return nil, fmt.Errorf("%w: sqlite document driver without a database", shared.ErrInvalidConfig)
		}
		return NewSQLiteDocumentStore(db, name, logger), nil
	case "postgres":
		return NewPostgresDocumentStore(ctx, f.cfg.Storage.DSN, name, logger)
	}
	return nil, fmt.Errorf("%w: document driver %q", shared.ErrInvalidConfig, f.cfg.Storage.DocumentDriver)
}
