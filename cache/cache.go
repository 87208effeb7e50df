/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package cache provides the keyed byte stores backing the record pipeline.
//
// A cache must never fail a build: read and parse errors degrade to misses,
// write errors are logged and swallowed.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"bennypowers.dev/lattice/fs"
)

// Key is an ordered tuple identifying a cache entry, e.g. [path, mtime, hash].
type Key []any

// Render serializes the key deterministically. JSON arrays preserve element
// order, so equal tuples always render to equal strings.
func (k Key) Render() string {
	data, err := json.Marshal([]any(k))
	if err != nil {
		return fmt.Sprintf("%v", []any(k))
	}
	return string(data)
}

// Cache is a keyed byte store. Get reports a miss rather than an error;
// Set persists best-effort.
type Cache interface {
	Get(key Key) ([]byte, bool)
	Set(key Key, value []byte)
}

// Standard namespace directories under the cache root. The resolver caches
// are namespaced further by the dependency-tree hash so that lockfile changes
// invalidate stale resolutions.
const (
	ASTDir            = "ast_cache"
	DependencyDir     = "dependency_cache"
	PackageResolveDir = "package_resolver_cache"
	ModuleResolveDir  = "module_resolver_cache"
)

// Dir is a durable cache storing one file per key under a namespace
// directory. File names are the xxhash of the rendered key.
type Dir struct {
	fs   fs.FileSystem
	root string
}

// NewDir creates a durable cache rooted at the given directory.
func NewDir(fsys fs.FileSystem, root string) *Dir {
	return &Dir{fs: fsys, root: root}
}

func (d *Dir) path(key Key) string {
	sum := xxhash.Sum64String(key.Render())
	return filepath.Join(d.root, fmt.Sprintf("%016x.json", sum))
}

// Get implements Cache.
func (d *Dir) Get(key Key) ([]byte, bool) {
	p := d.path(key)
	if !d.fs.Exists(p) {
		return nil, false
	}
	data, err := d.fs.ReadFile(p)
	if err != nil {
		warnf("failed to read cache entry %s: %v", p, err)
		return nil, false
	}
	return data, true
}

// Set implements Cache.
func (d *Dir) Set(key Key, value []byte) {
	p := d.path(key)
	if err := d.fs.MkdirAll(filepath.Dir(p), 0755); err != nil {
		warnf("failed to create cache directory %s: %v", filepath.Dir(p), err)
		return
	}
	if err := d.fs.WriteFile(p, value, 0644); err != nil {
		warnf("failed to write cache entry %s: %v", p, err)
	}
}

// Memory is a map-backed Cache with no persistence. It backs tests and
// profiling runs with the same contract as the durable store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

// Get implements Cache.
func (m *Memory) Get(key Key) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.entries[key.Render()]
	return data, ok
}

// Set implements Cache.
func (m *Memory) Set(key Key, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key.Render()] = append([]byte(nil), value...)
}

// Size returns the number of entries, for tests.
func (m *Memory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// WriteThrough layers a bounded LRU over a backing cache so that a Set is
// readable by a subsequent Get in the same process even while the durable
// write is still in flight.
type WriteThrough struct {
	backend Cache
	front   *lru.Cache[string, []byte]
}

// NewWriteThrough wraps backend with an LRU of the given size.
func NewWriteThrough(backend Cache, size int) (*WriteThrough, error) {
	if size <= 0 {
		size = 1024
	}
	front, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &WriteThrough{backend: backend, front: front}, nil
}

// Get implements Cache, preferring the in-memory layer.
func (w *WriteThrough) Get(key Key) ([]byte, bool) {
	rendered := key.Render()
	if data, ok := w.front.Get(rendered); ok {
		return data, true
	}
	data, ok := w.backend.Get(key)
	if ok {
		w.front.Add(rendered, data)
	}
	return data, ok
}

// Set implements Cache, populating both layers.
func (w *WriteThrough) Set(key Key, value []byte) {
	w.front.Add(key.Render(), append([]byte(nil), value...))
	w.backend.Set(key, value)
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}
