package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Voskan/dasm-cache/internal/u128"
)

func TestFileWatchBumpAdvancesChangeGen(t *testing.T) {
	w := NewFileWatch()
	if w.ChangeGen() != 0 {
		t.Fatalf("expected a fresh FileWatch to start at generation 0, got %d", w.ChangeGen())
	}
	w.Bump()
	w.Bump()
	if w.ChangeGen() != 2 {
		t.Fatalf("expected generation 2 after two bumps, got %d", w.ChangeGen())
	}
}

func TestKeyFromPathRegistersPathResolver(t *testing.T) {
	w := NewFileWatch()
	key := w.KeyFromPath("C:/src/main.c")
	if key.IsZero() {
		t.Fatal("expected a non-zero key for a non-empty path")
	}
	path, ok := w.PathForKey(key)
	if !ok || path != "C:/src/main.c" {
		t.Fatalf("expected PathForKey to resolve back to the original path, got %q, %v", path, ok)
	}
}

func TestPathForKeyUnknownKey(t *testing.T) {
	w := NewFileWatch()
	_, ok := w.PathForKey(u128.U128{Low: 123})
	if ok {
		t.Fatal("expected an unregistered key to miss")
	}
}

func TestKeyFromPathIsDeterministic(t *testing.T) {
	w := NewFileWatch()
	a := w.KeyFromPath("same/path.c")
	b := w.KeyFromPath("same/path.c")
	if !a.Equal(b) {
		t.Fatal("expected hashing the same path twice to yield the same key")
	}
}

func TestPropertiesFromPathMissingFile(t *testing.T) {
	w := NewFileWatch()
	props := w.PropertiesFromPath(filepath.Join(t.TempDir(), "does-not-exist.c"))
	if !props.Modified.IsZero() {
		t.Fatal("expected the zero time for a file that cannot be stat'd")
	}
}

func TestPropertiesFromPathExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exists.c")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	w := NewFileWatch()
	props := w.PropertiesFromPath(path)
	if props.Modified.IsZero() {
		t.Fatal("expected a non-zero modification time for an existing file")
	}
}
