package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
)

// DumpPath returns the dump file of a module and user: <dir>/<module>/<user>_<module>.json.
func DumpPath(dir, module, user string) string {
	return filepath.Join(dir, module, user+"_"+module+".json")
}

// JSONFileStore serializes the whole dump to one file.
//
// Mutations happen in memory; SaveData writes a temporary file next to the dump and renames it
// over the previous one so a failed save never leaves a partial file.
type JSONFileStore struct {
	*MemoryStore
	path   string
	logger *log.Logger
}

// NewJSONFileStore creates a store backed by the file at path. Nothing is read until LoadData.
func NewJSONFileStore(path string, logger *log.Logger) *JSONFileStore {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &JSONFileStore{MemoryStore: NewMemoryStore(), path: path, logger: logger}
}

// Path returns the dump file path.
func (s *JSONFileStore) Path() string {
	return s.path
}

// LoadData replaces the in-memory dump with the file content.
//
// A missing or unparsable file yields an empty store and is only logged.
func (s *JSONFileStore) LoadData(_ context.Context) error {
	var dump models.TitlesDump

	data, err := os.ReadFile(s.path)
	switch {
	case err != nil:
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read dump, starting empty", "path", s.path, "error", err)
		}
	case len(bytes.TrimSpace(data)) == 0:
	default:
		if err := json.Unmarshal(data, &dump); err != nil {
			s.logger.Warn("failed to parse dump, starting empty", "path", s.path, "error", err)
			dump = nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(dump)
	return nil
}

// SaveData writes the dump with four-space indentation.
func (s *JSONFileStore) SaveData(_ context.Context) error {
	s.mu.RLock()
	dump, err := s.snapshot()
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreSave, err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(dump); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreSave, err)
	}

	if err := shared.WriteFileAtomic(s.path, buf.Bytes()); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreSave, err)
	}
	return nil
}
