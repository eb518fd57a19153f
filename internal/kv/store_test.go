package kv

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// openers builds every backend rooted at a fresh directory
func openers(t *testing.T) map[string]func(dir string) Store {
	return map[string]func(dir string) Store{
		BackendFile: func(dir string) Store {
			s, err := NewFileStore(dir)
			if err != nil {
				t.Fatalf("NewFileStore: %v", err)
			}
			return s
		},
		BackendBolt: func(dir string) Store {
			s, err := NewBoltStore(dir)
			if err != nil {
				t.Fatalf("NewBoltStore: %v", err)
			}
			return s
		},
		BackendMemory: func(string) Store {
			return NewMemoryStore()
		},
	}
}

// TestStoreConformance runs the same Get/Set/Remove checks against every backend
func TestStoreConformance(t *testing.T) {
	for name, open := range openers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t.TempDir())
			defer s.Close()

			if _, ok := s.Get("missing"); ok {
				t.Error("Get on empty store reported a value")
			}

			if err := s.Set("app_user", `{"id":"1"}`); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if v, ok := s.Get("app_user"); !ok || v != `{"id":"1"}` {
				t.Errorf("Get = %q, %v", v, ok)
			}

			if err := s.Set("app_user", "replaced"); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if v, _ := s.Get("app_user"); v != "replaced" {
				t.Errorf("overwrite lost, got %q", v)
			}

			if err := s.Remove("app_user"); err != nil {
				t.Fatalf("Remove: %v", err)
			}
			if _, ok := s.Get("app_user"); ok {
				t.Error("value still present after Remove")
			}
			if err := s.Remove("never-set"); err != nil {
				t.Errorf("Remove of absent key should succeed: %v", err)
			}
		})
	}
}

// TestPersistentStoresSurviveReopen checks file and bolt values outlive the handle
func TestPersistentStoresSurviveReopen(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	for _, backend := range []string{BackendFile, BackendBolt} {
		backend := backend
		properties.Property(backend+" store persists values across reopen", prop.ForAll(
			func(key, value string) bool {
				dir := t.TempDir()

				s, err := Open(backend, dir)
				if err != nil {
					t.Logf("Open: %v", err)
					return false
				}
				if err := s.Set(key, value); err != nil {
					t.Logf("Set: %v", err)
					return false
				}
				s.Close()

				reopened, err := Open(backend, dir)
				if err != nil {
					t.Logf("reopen: %v", err)
					return false
				}
				defer reopened.Close()

				got, ok := reopened.Get(key)
				return ok && got == value
			},
			gen.RegexMatch(`^[a-z_]{1,16}$`),
			gen.RegexMatch(`^[ -~]{0,40}$`),
		))
	}

	properties.TestingRun(t)
}

func TestFileStoreCorruptedFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, StateFileName)
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("corrupted file should not be fatal: %v", err)
	}
	if _, ok := s.Get("anything"); ok {
		t.Error("corrupted store should be empty")
	}

	if err := s.Set("search_history", `["1.1.1.1"]`); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := reopened.Get("search_history"); !ok || v != `["1.1.1.1"]` {
		t.Errorf("corrupted file was not overwritten, got %q %v", v, ok)
	}
}

func TestFileStoreLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set("k", "v"); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(s.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
	info, err := os.Stat(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("state file mode = %v", info.Mode().Perm())
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		backend string
		want    string
	}{
		{"", "*kv.FileStore"},
		{BackendFile, "*kv.FileStore"},
		{BackendBolt, "*kv.BoltStore"},
		{BackendMemory, "*kv.MemoryStore"},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			s, err := Open(tt.backend, filepath.Join(dir, tt.backend+"x"))
			if err != nil {
				t.Fatalf("Open(%q): %v", tt.backend, err)
			}
			defer s.Close()
			var got string
			switch s.(type) {
			case *FileStore:
				got = "*kv.FileStore"
			case *BoltStore:
				got = "*kv.BoltStore"
			case *MemoryStore:
				got = "*kv.MemoryStore"
			}
			if got != tt.want {
				t.Errorf("Open(%q) = %s, want %s", tt.backend, got, tt.want)
			}
		})
	}

	if _, err := Open("redis", dir); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
}
