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
package record

import (
	"encoding/json"
	"fmt"
	"os"

	"bennypowers.dev/lattice/cache"
)

// Entry is the per-record annotation map persisted across builds. Partial
// entries are valid: missing keys are recomputed and written back.
type Entry struct {
	DependencyIdentifiers      []string          `json:"dependencyIdentifiers,omitempty"`
	ResolvePathDependencies    map[string]string `json:"resolvePathDependencies,omitempty"`
	ResolvePackageDependencies map[string]string `json:"resolvePackageDependencies,omitempty"`
	Code                       *string           `json:"code,omitempty"`
	SourceMap                  *string           `json:"sourceMap,omitempty"`
}

// Persisted fragments: each annotation kind lives in its own cache
// namespace so the on-disk layout separates transform output, dependency
// analysis, and the two resolution maps.
type astAnnotations struct {
	Code      *string `json:"code,omitempty"`
	SourceMap *string `json:"sourceMap,omitempty"`
}

type dependencyAnnotations struct {
	DependencyIdentifiers []string `json:"dependencyIdentifiers,omitempty"`
}

type pathResolutionAnnotations struct {
	ResolvePathDependencies map[string]string `json:"resolvePathDependencies,omitempty"`
}

type packageResolutionAnnotations struct {
	ResolvePackageDependencies map[string]string `json:"resolvePackageDependencies,omitempty"`
}

// ReadCache loads the record's annotation entry, assembling it from the
// cache namespaces. Misses and unreadable fragments normalize to an empty
// entry: a cache must never fail a build.
func (s *Store) ReadCache(r *Record) (*Entry, error) {
	return memo(r, JobReadCache, func() (*Entry, error) {
		key, err := s.CacheKey(r)
		if err != nil {
			return nil, err
		}

		entry := &Entry{}

		var ast astAnnotations
		if readFragment(s.cfg.Cache.AST, key, &ast) {
			entry.Code = ast.Code
			entry.SourceMap = ast.SourceMap
		}
		var deps dependencyAnnotations
		if readFragment(s.cfg.Cache.Dependency, key, &deps) {
			entry.DependencyIdentifiers = deps.DependencyIdentifiers
		}
		var paths pathResolutionAnnotations
		if readFragment(s.cfg.Cache.ModuleResolve, key, &paths) {
			entry.ResolvePathDependencies = paths.ResolvePathDependencies
		}
		var pkgs packageResolutionAnnotations
		if readFragment(s.cfg.Cache.PackageResolve, key, &pkgs) {
			entry.ResolvePackageDependencies = pkgs.ResolvePackageDependencies
		}

		r.entryMu.Lock()
		r.entry = entry
		r.entryMu.Unlock()
		return entry, nil
	})
}

// WriteCache persists the annotations accumulated on the record's entry.
// Write errors are logged by the cache, never surfaced.
func (s *Store) WriteCache(r *Record) error {
	entry, err := s.ReadCache(r)
	if err != nil {
		return err
	}
	key, err := s.CacheKey(r)
	if err != nil {
		return err
	}

	r.entryMu.Lock()
	snapshot := *entry
	r.entryMu.Unlock()

	if snapshot.Code != nil || snapshot.SourceMap != nil {
		writeFragment(s.cfg.Cache.AST, key, astAnnotations{
			Code:      snapshot.Code,
			SourceMap: snapshot.SourceMap,
		})
	}
	if snapshot.DependencyIdentifiers != nil {
		writeFragment(s.cfg.Cache.Dependency, key, dependencyAnnotations{
			DependencyIdentifiers: snapshot.DependencyIdentifiers,
		})
	}
	if snapshot.ResolvePathDependencies != nil {
		writeFragment(s.cfg.Cache.ModuleResolve, key, pathResolutionAnnotations{
			ResolvePathDependencies: snapshot.ResolvePathDependencies,
		})
	}
	if snapshot.ResolvePackageDependencies != nil {
		writeFragment(s.cfg.Cache.PackageResolve, key, packageResolutionAnnotations{
			ResolvePackageDependencies: snapshot.ResolvePackageDependencies,
		})
	}
	return nil
}

func readFragment(c cache.Cache, key cache.Key, into any) bool {
	data, ok := c.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, into); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: discarding unreadable cache entry for %s: %v\n", key.Render(), err)
		return false
	}
	return true
}

func writeFragment(c cache.Cache, key cache.Key, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to serialize cache entry for %s: %v\n", key.Render(), err)
		return
	}
	c.Set(key, data)
}

// annotate mutates the record's entry under its lock. Each annotation has at
// most one producer per record, coordinated by the job memoization barrier.
func (s *Store) annotate(r *Record, mutate func(*Entry)) {
	entry, err := s.ReadCache(r)
	if err != nil {
		return
	}
	r.entryMu.Lock()
	mutate(entry)
	r.entryMu.Unlock()
}
