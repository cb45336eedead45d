package fetch

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_\-]`)

// Sanitize replaces every character that is unsafe in a file name with "_".
func Sanitize(s string) string {
	return unsafeChars.ReplaceAllString(s, "_")
}

// FilenameFromURL derives a cache key from the last path segment of u, query included.
func FilenameFromURL(u string) string {
	tail := u[strings.LastIndex(u, "/")+1:]
	if dec, err := url.PathUnescape(tail); err == nil {
		tail = dec
	}
	return Sanitize(tail)
}

// ListingFilename derives the cache key of a watchlist page: its path segments joined by "_", suffixed with the kind.
func ListingFilename(u string, kind models.WatchlistKind) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return Sanitize(u) + "_" + string(kind)
	}
	segments := strings.FieldsFunc(parsed.Path, func(r rune) bool { return r == '/' })
	name := strings.Join(segments, "_")
	if kind != "" {
		name += "_" + string(kind)
	}
	return Sanitize(name)
}

// DomainDir returns the cache directory of a domain: dots become underscores.
func DomainDir(root, domain string) string {
	return filepath.Join(root, strings.ReplaceAll(domain, ".", "_"))
}

// Cache stores raw page bodies under a per-domain directory.
type Cache struct {
	root string
}

// NewCache creates a [Cache] rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{root: dir}
}

// Path returns the file path for a page of domain cached under name.
func (c *Cache) Path(domain, name string) string {
	return filepath.Join(DomainDir(c.root, domain), name+".html")
}

// Read returns a cached page body. ok is false when nothing is cached.
func (c *Cache) Read(domain, name string) ([]byte, bool) {
	data, err := os.ReadFile(c.Path(domain, name))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Write replaces the cached body atomically.
func (c *Cache) Write(domain, name string, body []byte) error {
	path := c.Path(domain, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".page-*")
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	return nil
}

// Remove deletes a cached page. Missing pages are ignored.
func (c *Cache) Remove(domain, name string) error {
	err := os.Remove(c.Path(domain, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	return nil
}

// Pages returns the names of the pages cached for domain, sorted. A domain without a directory has none.
func (c *Cache) Pages(domain string) ([]string, error) {
	entries, err := os.ReadDir(DomainDir(c.root, domain))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".html") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".html"))
	}
	return names, nil
}

// Clear removes every page cached for domain and returns how many were removed.
func (c *Cache) Clear(domain string) (int, error) {
	names, err := c.Pages(domain)
	if err != nil {
		return 0, err
	}
	for i, name := range names {
		if err := c.Remove(domain, name); err != nil {
			return i, err
		}
	}
	return len(names), nil
}
