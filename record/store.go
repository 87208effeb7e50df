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

// Package record implements the per-file job store: a memoized, lazy
// computation DAG where each job (hash, ast, resolvedDependencies,
// moduleDefinition, ...) is a pure function of a file reference, the shared
// configuration, and other jobs invoked through the store handle.
package record

import (
	"errors"
	"sync"

	"bennypowers.dev/lattice/cache"
	"bennypowers.dev/lattice/css"
	"bennypowers.dev/lattice/fs"
	"bennypowers.dev/lattice/resolve"
)

// ErrUnknownExtension is returned by ast for every non-JS record, and by
// code/content/sourceMap for text files with an unrecognized extension.
var ErrUnknownExtension = errors.New("unknown extension")

// Config is the shared configuration threaded through every record.
type Config struct {
	// SourceRoot is the project root URLs are made relative to.
	SourceRoot string
	// RootURL prefixes every served URL.
	RootURL string
	// RootNodeModules is the project's top-level node_modules directory.
	// Files under it skip source transforms and may persist their resolved
	// path dependencies.
	RootNodeModules string
	// VendorRoot is a directory of pre-built assets that bypass
	// transformation. Their code is served as written; their source maps
	// omit sourcesContent.
	VendorRoot string
	// BootstrapRuntime is the runtime loader file, served verbatim without
	// module-definition wrapping.
	BootstrapRuntime string
	// Cache is the persisted annotation layout. Nil defaults to an
	// in-memory layout.
	Cache *cache.Layout
	// Resolver resolves dependency identifiers. Nil defaults to a resolver
	// rooted at RootNodeModules.
	Resolver *resolve.Resolver
	// CSSPlugins are run before the built-in dependency collector and
	// @import stripper.
	CSSPlugins []css.Plugin
	// FileDependencies names extra files a record depends on, for tools
	// that compile multi-file bundles. Nil means none.
	FileDependencies func(name string) []string
	// FS is the filesystem records read through.
	FS fs.FileSystem
}

// Job enumerates the derivations a record can compute. Each (record, job)
// slot is computed at most once per record lifetime.
type Job int

const (
	JobBasename Job = iota
	JobExt
	JobIsTextFile
	JobMimeType
	JobReadText
	JobStat
	JobMtime
	JobHashText
	JobHash
	JobHashedFilename
	JobHashedName
	JobCacheKey
	JobReadCache
	JobWriteCache
	JobURL
	JobSourceURL
	JobSourceMapAnnotation
	JobAST
	JobTransform
	JobGenerate
	JobPostcss
	JobAnalyzeDependencies
	JobDependencyIdentifiers
	JobPathDependencyIdentifiers
	JobPackageDependencyIdentifiers
	JobResolvePathDependencies
	JobResolvePackageDependencies
	JobResolvedDependencies
	JobCode
	JobModuleContents
	JobShouldShimModuleDefinition
	JobModuleCode
	JobModuleDefinition
	JobContent
	JobSourceMap
	JobFileDependencies
	JobReady
)

// Record is the per-file evaluation context: a reference (absolute path)
// plus the memoization table for its jobs.
type Record struct {
	// Name is the absolute normalized path identifying the record.
	Name string

	mu    sync.Mutex
	slots map[Job]*slot

	entryMu sync.Mutex
	entry   *Entry
}

// slot carries one memoized job result. The done channel lets concurrent
// callers attach to an in-flight computation; a non-nil err poisons the slot
// so duplicate callers observe the same failure.
type slot struct {
	done  chan struct{}
	value any
	err   error
}

// Store owns the records and computes their jobs.
type Store struct {
	cfg Config

	mu      sync.Mutex
	records map[string]*Record
}

// NewStore creates a Store with the given configuration, applying defaults
// for the filesystem, cache layout, and resolver.
func NewStore(cfg Config) *Store {
	if cfg.FS == nil {
		cfg.FS = fs.NewOSFileSystem()
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.MemoryLayout()
	}
	if cfg.Resolver == nil {
		cfg.Resolver = resolve.New(cfg.FS, cfg.RootNodeModules)
	}
	return &Store{
		cfg:     cfg,
		records: make(map[string]*Record),
	}
}

// Config returns the store's configuration.
func (s *Store) Config() Config {
	return s.cfg
}

// Create returns the record for name, creating it if needed.
func (s *Store) Create(name string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[name]; ok {
		return r
	}
	r := &Record{
		Name:  name,
		slots: make(map[Job]*slot),
	}
	s.records[name] = r
	return r
}

// Get returns the record for name if it exists.
func (s *Store) Get(name string) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[name]
	return r, ok
}

// Remove discards a record, releasing its parsed AST if one was resolved.
// The tracer calls this when the graph prunes a node.
func (s *Store) Remove(name string) {
	s.mu.Lock()
	r, ok := s.records[name]
	delete(s.records, name)
	s.mu.Unlock()
	if !ok {
		return
	}

	r.mu.Lock()
	astSlot := r.slots[JobAST]
	transformSlot := r.slots[JobTransform]
	r.mu.Unlock()
	closeASTSlot(astSlot)
	closeTransformSlot(transformSlot)
}

// Names returns the names of all live records.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.records))
	for name := range s.records {
		names = append(names, name)
	}
	return names
}

// memo computes a job at most once per record. The first caller runs
// compute; concurrent callers block on the same slot; later callers get the
// memoized value or the poisoning error.
func memo[T any](r *Record, j Job, compute func() (T, error)) (T, error) {
	r.mu.Lock()
	sl, ok := r.slots[j]
	if !ok {
		sl = &slot{done: make(chan struct{})}
		r.slots[j] = sl
		r.mu.Unlock()
		value, err := compute()
		sl.value, sl.err = value, err
		close(sl.done)
	} else {
		r.mu.Unlock()
		<-sl.done
	}
	if sl.err != nil {
		var zero T
		return zero, sl.err
	}
	return sl.value.(T), nil
}
