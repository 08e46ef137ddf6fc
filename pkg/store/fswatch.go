package store

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/Voskan/dasm-cache/internal/u128"
	"github.com/Voskan/dasm-cache/pkg/dasm"
)

// FileWatch is a stdlib os.Stat-backed reference implementation of
// dasm.FileWatch. It does not watch the filesystem for changes itself —
// spec.md §1 leaves the watch mechanism to the embedder — but it gives the
// rest of the system something to poll: ChangeGen only advances when
// Bump is called (by whatever poller or OS-notification loop the embedder
// wires up), and PropertiesFromPath always reflects the live filesystem.
//
// FileWatch also doubles as a PathResolver for TextStore: the original's
// text subsystem resolves a content key back to a path through its own
// file table, a piece the spec never describes beyond fs_key_from_path. A
// FileWatch remembers every path it has hashed via KeyFromPath so
// TextStore can look it back up.
type FileWatch struct {
	gen atomic.Uint64

	mu    sync.RWMutex
	paths map[u128.U128]string
}

// NewFileWatch constructs a FileWatch starting at generation 0.
func NewFileWatch() *FileWatch {
	return &FileWatch{paths: make(map[u128.U128]string)}
}

// Bump advances ChangeGen, signalling that some watched file changed.
// Callers drive this from their own fsnotify/poll loop.
func (w *FileWatch) Bump() {
	w.gen.Add(1)
}

// ChangeGen implements dasm.FileWatch.
func (w *FileWatch) ChangeGen() uint64 {
	return w.gen.Load()
}

// KeyFromPath implements dasm.FileWatch by hashing the path string itself;
// the key only needs to be stable and collision-resistant, not reversible.
func (w *FileWatch) KeyFromPath(path string) u128.U128 {
	key := u128.HashBytes([]byte(path))
	w.mu.Lock()
	w.paths[key] = path
	w.mu.Unlock()
	return key
}

// PathForKey implements PathResolver, reversing a prior KeyFromPath call.
func (w *FileWatch) PathForKey(key u128.U128) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	path, ok := w.paths[key]
	return path, ok
}

// PropertiesFromPath implements dasm.FileWatch. A file that cannot be
// stat'd reports the zero time, matching the "source file missing" degrade
// path (spec.md §7).
func (w *FileWatch) PropertiesFromPath(path string) dasm.FileProperties {
	fi, err := os.Stat(path)
	if err != nil {
		return dasm.FileProperties{}
	}
	return dasm.FileProperties{Modified: fi.ModTime()}
}
