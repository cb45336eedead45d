package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
)

func testLogger() *log.Logger {
	return shared.NewLogger(&bytes.Buffer{})
}

func sampleRecord() models.AnimeRecord {
	return models.AnimeRecord{
		Poster:       "https://animebuff.ru/posters/fma.jpg",
		Name:         "Стальной алхимик: Братство",
		OriginalName: "Hagane no Renkinjutsushi: Fullmetal Alchemist",
		OtherNames:   []string{"Fullmetal Alchemist: Brotherhood"},
		Type:         models.TypeTV,
		Genres:       []string{"Приключения"},
		EpCount:      models.IntPtr(64),
		Year:         2009,
		Status:       models.StatusFinished,
	}
}

func newSQLiteDocument(t *testing.T) *DocumentStore {
	t.Helper()
	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteDocumentStore(db, "4718_animebuff_ru", testLogger())
}

func backends(t *testing.T) map[string]TitleStore {
	t.Helper()
	return map[string]TitleStore{
		"memory":   NewMemoryStore(),
		"json":     NewJSONFileStore(filepath.Join(t.TempDir(), "animebuff_ru", "4718_animebuff_ru.json"), testLogger()),
		"document": newSQLiteDocument(t),
	}
}

func TestTitleStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.LoadData(ctx); err != nil {
				t.Fatalf("LoadData failed: %v", err)
			}

			t.Run("bucket is undefined before prepare", func(t *testing.T) {
				if _, err := s.Get(ctx, "watch", "x"); !errors.Is(err, shared.ErrBucketNotFound) {
					t.Errorf("expected ErrBucketNotFound, got %v", err)
				}
				if err := s.Set(ctx, "watch", "x", "v"); !errors.Is(err, shared.ErrBucketNotFound) {
					t.Errorf("expected ErrBucketNotFound, got %v", err)
				}
			})

			t.Run("prepared bucket is empty", func(t *testing.T) {
				if err := s.PrepareData(ctx, "watch", false); err != nil {
					t.Fatalf("PrepareData failed: %v", err)
				}
				keys, err := s.Keys(ctx, "watch")
				if err != nil || len(keys) != 0 {
					t.Errorf("expected no keys, got %v (%v)", keys, err)
				}
			})

			t.Run("write then read", func(t *testing.T) {
				if err := s.Set(ctx, "watch", "x", "https://animebuff.ru/anime/x"); err != nil {
					t.Fatalf("Set failed: %v", err)
				}
				v, err := s.Get(ctx, "watch", "x")
				if err != nil || v != "https://animebuff.ru/anime/x" {
					t.Errorf("expected stored url, got %v (%v)", v, err)
				}
			})

			t.Run("records round-trip", func(t *testing.T) {
				if err := SetRecord(ctx, s, "watch", "fma", sampleRecord()); err != nil {
					t.Fatalf("SetRecord failed: %v", err)
				}
				got, err := GetRecord(ctx, s, "watch", "fma")
				if err != nil {
					t.Fatalf("GetRecord failed: %v", err)
				}
				if !got.Equal(sampleRecord()) {
					t.Errorf("record mismatch:\n got %+v\nwant %+v", got, sampleRecord())
				}
			})

			t.Run("missing key", func(t *testing.T) {
				if _, err := s.Get(ctx, "watch", "missing"); !errors.Is(err, shared.ErrKeyNotFound) {
					t.Errorf("expected ErrKeyNotFound, got %v", err)
				}
			})

			t.Run("update merges", func(t *testing.T) {
				if err := s.Update(ctx, "watch", map[string]any{"y": "1", "z": "2"}); err != nil {
					t.Fatalf("Update failed: %v", err)
				}
				keys, _ := s.Keys(ctx, "watch")
				want := []string{"fma", "x", "y", "z"}
				if len(keys) != len(want) {
					t.Fatalf("expected %v, got %v", want, keys)
				}
				for i := range want {
					if keys[i] != want[i] {
						t.Errorf("expected %v, got %v", want, keys)
					}
				}
			})

			t.Run("delete", func(t *testing.T) {
				if err := s.Delete(ctx, "watch", "y", "z"); err != nil {
					t.Fatalf("Delete failed: %v", err)
				}
				if _, err := s.Get(ctx, "watch", "y"); !errors.Is(err, shared.ErrKeyNotFound) {
					t.Errorf("expected y to be deleted, got %v", err)
				}
			})

			t.Run("prepare without reload keeps data", func(t *testing.T) {
				s.PrepareData(ctx, "watch", false)
				if _, err := s.Get(ctx, "watch", "x"); err != nil {
					t.Errorf("expected x to survive, got %v", err)
				}
			})

			t.Run("bucket and snapshot", func(t *testing.T) {
				s.PrepareData(ctx, models.ErrorsKey, false)
				s.Set(ctx, models.ErrorsKey, "broken", "https://animebuff.ru/anime/broken")

				b, err := s.Bucket(ctx, "watch")
				if err != nil || len(b) != 2 {
					t.Errorf("expected 2 entries, got %v (%v)", b, err)
				}

				dump, err := s.Snapshot(ctx)
				if err != nil {
					t.Fatalf("Snapshot failed: %v", err)
				}
				if len(dump["watch"]) != 2 || dump[models.ErrorsKey]["broken"] == nil {
					t.Errorf("unexpected snapshot %v", dump)
				}
				if len(dump.Records(models.KindWatch)) != 1 {
					t.Errorf("expected one decodable record, got %v", dump.Records(models.KindWatch))
				}
			})

			t.Run("prepare with reload clears", func(t *testing.T) {
				if err := s.PrepareData(ctx, "watch", true); err != nil {
					t.Fatalf("PrepareData failed: %v", err)
				}
				keys, _ := s.Keys(ctx, "watch")
				if len(keys) != 0 {
					t.Errorf("expected an empty bucket, got %v", keys)
				}
			})

			t.Run("concurrent disjoint writes", func(t *testing.T) {
				s.PrepareData(ctx, "viewed", true)

				var wg sync.WaitGroup
				for i := range 20 {
					wg.Add(1)
					go func() {
						defer wg.Done()
						s.Set(ctx, "viewed", string(rune('a'+i)), i)
					}()
				}
				wg.Wait()

				keys, _ := s.Keys(ctx, "viewed")
				if len(keys) != 20 {
					t.Errorf("expected 20 keys, got %d", len(keys))
				}
			})

			if err := s.SaveData(ctx); err != nil {
				t.Errorf("SaveData failed: %v", err)
			}
			if err := s.Close(); err != nil {
				t.Errorf("Close failed: %v", err)
			}
		})
	}
}

func TestJSONFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("save then load", func(t *testing.T) {
		path := DumpPath(t.TempDir(), "animebuff_ru", "4718")
		s := NewJSONFileStore(path, testLogger())
		s.PrepareData(ctx, "watch", false)
		SetRecord(ctx, s, "watch", "fma", sampleRecord())

		if err := s.SaveData(ctx); err != nil {
			t.Fatalf("SaveData failed: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("dump missing: %v", err)
		}
		if !bytes.Contains(data, []byte("\n    \"watch\"")) {
			t.Errorf("expected four-space indentation, got %s", data)
		}
		if !bytes.Contains(data, []byte("Стальной")) {
			t.Error("expected non-ASCII names to be written as is")
		}

		loaded := NewJSONFileStore(path, testLogger())
		if err := loaded.LoadData(ctx); err != nil {
			t.Fatalf("LoadData failed: %v", err)
		}
		got, err := GetRecord(ctx, loaded, "watch", "fma")
		if err != nil || !got.Equal(sampleRecord()) {
			t.Errorf("expected the saved record, got %+v (%v)", got, err)
		}
	})

	t.Run("unparsable file yields empty store", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dump.json")
		os.WriteFile(path, []byte("{not json"), 0644)

		s := NewJSONFileStore(path, testLogger())
		if err := s.LoadData(ctx); err != nil {
			t.Fatalf("LoadData should not fail: %v", err)
		}
		dump, _ := s.Snapshot(ctx)
		if len(dump) != 0 {
			t.Errorf("expected an empty dump, got %v", dump)
		}
	})

	t.Run("failed save keeps prior file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "dump.json")
		os.WriteFile(path, []byte(`{"watch":{}}`), 0644)

		s := NewJSONFileStore(path, testLogger())
		s.LoadData(ctx)
		s.PrepareData(ctx, "watch", false)
		s.Set(ctx, "watch", "x", "y")

		// Replacing the file with a non-empty directory makes the final rename fail.
		os.Remove(path)
		os.MkdirAll(filepath.Join(path, "keep"), 0755)

		err := s.SaveData(ctx)
		if !errors.Is(err, shared.ErrStoreSave) {
			t.Errorf("expected ErrStoreSave, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(path, "keep")); err != nil {
			t.Error("expected the existing path to be untouched")
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 1 {
			t.Errorf("expected temp files to be cleaned up, got %d entries", len(entries))
		}
	})

	t.Run("values that cannot be encoded", func(t *testing.T) {
		s := NewJSONFileStore(filepath.Join(t.TempDir(), "dump.json"), testLogger())
		s.PrepareData(ctx, "watch", false)
		if err := s.Set(ctx, "watch", "x", make(chan int)); !errors.Is(err, shared.ErrBadRecord) {
			t.Errorf("expected ErrBadRecord, got %v", err)
		}
	})
}

func TestDocumentStore(t *testing.T) {
	ctx := context.Background()

	t.Run("array nodes are addressed by index", func(t *testing.T) {
		s := newSQLiteDocument(t)
		s.LoadData(ctx)

		list, _ := docPath(nil).field("list")
		if err := s.driver.set(ctx, s.doc, list, []byte(`["a","b","c"]`)); err != nil {
			t.Fatalf("failed to seed array: %v", err)
		}

		v, err := s.Get(ctx, "list", "1")
		if err != nil || v != "b" {
			t.Errorf("expected b, got %v (%v)", v, err)
		}

		if _, err := s.Get(ctx, "list", "first"); !errors.Is(err, shared.ErrBadPath) {
			t.Errorf("expected ErrBadPath, got %v", err)
		}

		keys, err := s.Keys(ctx, "list")
		if err != nil || len(keys) != 3 || keys[0] != "0" {
			t.Errorf("expected indexes, got %v (%v)", keys, err)
		}
	})

	t.Run("writes land in the shared document", func(t *testing.T) {
		db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:"})
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		writer := NewSQLiteDocumentStore(db, "user_animego_org", testLogger())
		reader := NewSQLiteDocumentStore(db, "user_animego_org", testLogger())

		writer.PrepareData(ctx, "watch", false)
		writer.Set(ctx, "watch", "fma", "done")

		v, err := reader.Get(ctx, "watch", "fma")
		if err != nil || v != "done" {
			t.Errorf("expected the reader to see the write, got %v (%v)", v, err)
		}

		if err := reader.Reset(ctx); err != nil {
			t.Fatalf("Reset failed: %v", err)
		}
		if _, err := writer.Get(ctx, "watch", "fma"); !errors.Is(err, shared.ErrBucketNotFound) {
			t.Errorf("expected an empty document after reset, got %v", err)
		}
	})

	t.Run("rejects keys that break the path language", func(t *testing.T) {
		s := newSQLiteDocument(t)
		s.PrepareData(ctx, "watch", false)
		if err := s.Set(ctx, "watch", `a"b`, 1); !errors.Is(err, shared.ErrBadPath) {
			t.Errorf("expected ErrBadPath, got %v", err)
		}
	})

	t.Run("postgres", func(t *testing.T) {
		dsn := os.Getenv("WLSYNC_TEST_POSTGRES_DSN")
		if dsn == "" {
			t.Skip("WLSYNC_TEST_POSTGRES_DSN not set")
		}

		s, err := NewPostgresDocumentStore(ctx, dsn, "test_"+shared.GenerateID(), testLogger())
		if err != nil {
			t.Fatalf("failed to open postgres store: %v", err)
		}
		defer s.Close()

		s.PrepareData(ctx, "watch", false)
		if err := SetRecord(ctx, s, "watch", "fma", sampleRecord()); err != nil {
			t.Fatalf("SetRecord failed: %v", err)
		}
		got, err := GetRecord(ctx, s, "watch", "fma")
		if err != nil || !got.Equal(sampleRecord()) {
			t.Errorf("expected the stored record, got %+v (%v)", got, err)
		}
		s.Delete(ctx, "watch", "fma")
		if keys, _ := s.Keys(ctx, "watch"); len(keys) != 0 {
			t.Errorf("expected no keys, got %v", keys)
		}
	})
}

func TestDocPath(t *testing.T) {
	p, _ := docPath(nil).field("watch")
	p, _ = p.field("fma")
	p, _ = p.element("3")

	if got := p.sqlite(); got != `$."watch"."fma"[3]` {
		t.Errorf("unexpected sqlite path %s", got)
	}
	if got := p.postgres(); len(got) != 3 || got[2] != "3" {
		t.Errorf("unexpected postgres path %v", got)
	}
	if got := p.String(); got != "watch.fma[3]" {
		t.Errorf("unexpected dotted path %s", got)
	}

	if _, err := docPath(nil).element("-1"); !errors.Is(err, shared.ErrBadPath) {
		t.Errorf("expected ErrBadPath, got %v", err)
	}
}

func TestFactory(t *testing.T) {
	ctx := context.Background()

	t.Run("json", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Paths.JSONDumpsDir = t.TempDir()

		s, err := NewFactory(cfg, nil, testLogger()).Open(ctx, "animebuff_ru", "4718")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		js, ok := s.(*JSONFileStore)
		if !ok {
			t.Fatalf("expected a JSONFileStore, got %T", s)
		}
		if js.Path() != filepath.Join(cfg.Paths.JSONDumpsDir, "animebuff_ru", "4718_animebuff_ru.json") {
			t.Errorf("unexpected dump path %s", js.Path())
		}
	})

	t.Run("cache is shared within the factory", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Storage.Backend = BackendCache
		f := NewFactory(cfg, nil, testLogger())

		a, _ := f.Open(ctx, "animego_org", "u")
		b, _ := f.Open(ctx, "animego_org", "u")
		if a != b {
			t.Error("expected the same cache store")
		}
	})

	t.Run("document on sqlite", func(t *testing.T) {
		db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:"})
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		cfg := shared.DefaultConfig()
		cfg.Storage.Backend = BackendDocument
		s, err := NewFactory(cfg, db, testLogger()).Open(ctx, "animego_org", "u")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if ds, ok := s.(*DocumentStore); !ok || ds.Document() != "u_animego_org" {
			t.Errorf("unexpected store %T", s)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Storage.Backend = "redis"
		if _, err := NewFactory(cfg, nil, testLogger()).Open(ctx, "m", "u"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
