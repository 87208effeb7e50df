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
package cache

import (
	"path/filepath"

	"bennypowers.dev/lattice/fs"
)

// Layout groups the standard cache namespaces the record pipeline persists
// into. The resolver namespaces are keyed by the dependency-tree hash so that
// lockfile changes start them empty.
type Layout struct {
	// AST holds generated code and source maps.
	AST Cache
	// Dependency holds analyzed dependency identifiers.
	Dependency Cache
	// PackageResolve holds resolved package-identifier maps.
	PackageResolve Cache
	// ModuleResolve holds resolved path-identifier maps.
	ModuleResolve Cache
}

// NewLayout builds the on-disk layout rooted at the given cache directory,
// each namespace fronted by an LRU write-through.
func NewLayout(fsys fs.FileSystem, root, treeHash string) *Layout {
	wrap := func(dir string) Cache {
		wt, err := NewWriteThrough(NewDir(fsys, dir), 2048)
		if err != nil {
			// Not reached: the LRU size above is positive.
			return NewDir(fsys, dir)
		}
		return wt
	}
	return &Layout{
		AST:            wrap(filepath.Join(root, ASTDir)),
		Dependency:     wrap(filepath.Join(root, DependencyDir)),
		PackageResolve: wrap(filepath.Join(root, PackageResolveDir, treeHash)),
		ModuleResolve:  wrap(filepath.Join(root, ModuleResolveDir, treeHash)),
	}
}

// MemoryLayout builds a fully in-memory layout for tests and profiling runs.
func MemoryLayout() *Layout {
	return &Layout{
		AST:            NewMemory(),
		Dependency:     NewMemory(),
		PackageResolve: NewMemory(),
		ModuleResolve:  NewMemory(),
	}
}
