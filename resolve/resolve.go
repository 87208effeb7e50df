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
// Package resolve maps module identifiers to absolute file paths.
package resolve

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"bennypowers.dev/lattice/fs"
	"bennypowers.dev/lattice/packagejson"
)

// ResolveError reports an identifier that could not be resolved. The message
// names both the identifier and the base directory so build errors point at
// the importing file's context.
type ResolveError struct {
	Identifier string
	BaseDir    string
	Err        error
}

func (e *ResolveError) Error() string {
	msg := fmt.Sprintf("unable to resolve %q from %q", e.Identifier, e.BaseDir)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolveError) Unwrap() error { return e.Err }

// Resolver resolves identifiers against a base directory with node-style
// semantics: relative and absolute paths with extension probing, package
// identifiers through node_modules, core-module shims, and the browser
// field of package manifests.
type Resolver struct {
	fs              fs.FileSystem
	rootNodeModules string
	coreShims       map[string]string
	pkgCache        packagejson.Cache
}

// New creates a Resolver. rootNodeModules is the project's top-level
// node_modules directory, used as the final fallback when walking up from the
// importing file finds nothing.
func New(fsys fs.FileSystem, rootNodeModules string) *Resolver {
	return &Resolver{
		fs:              fsys,
		rootNodeModules: rootNodeModules,
		coreShims:       map[string]string{},
		pkgCache:        packagejson.NewMemoryCache(),
	}
}

// WithCoreShims returns a Resolver that maps core-module identifiers (e.g.
// "path") to browser-safe shim files.
func (r *Resolver) WithCoreShims(shims map[string]string) *Resolver {
	return &Resolver{
		fs:              r.fs,
		rootNodeModules: r.rootNodeModules,
		coreShims:       shims,
		pkgCache:        r.pkgCache,
	}
}

// WithPackageCache returns a Resolver that shares the given manifest cache.
func (r *Resolver) WithPackageCache(cache packagejson.Cache) *Resolver {
	return &Resolver{
		fs:              r.fs,
		rootNodeModules: r.rootNodeModules,
		coreShims:       r.coreShims,
		pkgCache:        cache,
	}
}

// Resolve maps an identifier to an absolute file path. baseDir is the
// directory of the importing file. The browser field of the importing
// file's own package is consulted before the identifier is resolved, so a
// package can remap both its bare dependencies and its own files.
func (r *Resolver) Resolve(identifier, baseDir string) (string, error) {
	if identifier == "" {
		return "", &ResolveError{Identifier: identifier, BaseDir: baseDir}
	}

	if shim, ok := r.coreShims[identifier]; ok {
		return shim, nil
	}

	if replacement, pkgDir, ignored, found := r.importerReplacement(identifier, baseDir); found {
		if ignored {
			return "", &ResolveError{
				Identifier: identifier,
				BaseDir:    baseDir,
				Err:        fmt.Errorf("mapped to false by the browser field of %s", filepath.Join(pkgDir, "package.json")),
			}
		}
		if strings.HasPrefix(replacement, "./") || strings.HasPrefix(replacement, "../") {
			return r.resolveFile(filepath.Join(pkgDir, replacement), identifier, baseDir)
		}
		return r.resolvePackage(replacement, baseDir)
	}

	if strings.HasPrefix(identifier, "./") || strings.HasPrefix(identifier, "../") {
		return r.resolveFile(filepath.Join(baseDir, identifier), identifier, baseDir)
	}
	if strings.HasPrefix(identifier, "/") || filepath.IsAbs(identifier) {
		return r.resolveFile(filepath.Clean(identifier), identifier, baseDir)
	}

	return r.resolvePackage(identifier, baseDir)
}

// importerReplacement consults the browser map of the package owning the
// importing file: the nearest package.json walking up from baseDir, stopping
// at a node_modules boundary. Relative identifiers are normalized against
// the package root before lookup, since browser maps key relative files from
// there. Absolute identifiers are never remapped.
func (r *Resolver) importerReplacement(identifier, baseDir string) (replacement, pkgDir string, ignored, found bool) {
	if strings.HasPrefix(identifier, "/") || filepath.IsAbs(identifier) {
		return "", "", false, false
	}

	dir := baseDir
	for {
		if filepath.Base(dir) == "node_modules" {
			return "", "", false, false
		}
		pkgJSONPath := filepath.Join(dir, "package.json")
		if r.isFile(pkgJSONPath) {
			pkg, err := r.pkgCache.GetOrLoad(pkgJSONPath, func() (*packagejson.PackageJSON, error) {
				return packagejson.ParseFile(r.fs, pkgJSONPath)
			})
			if err != nil || pkg == nil {
				return "", "", false, false
			}
			key := identifier
			if strings.HasPrefix(identifier, ".") {
				target := filepath.Join(baseDir, identifier)
				rel, relErr := filepath.Rel(dir, target)
				if relErr != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
					return "", "", false, false
				}
				key = "./" + filepath.ToSlash(rel)
			}
			replacement, ignored, found = pkg.Replacement(key)
			return replacement, dir, ignored, found
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", false, false
		}
		dir = parent
	}
}

// resolveFile probes a path for an existing file: as given, with implied
// extensions, then as a directory index.
func (r *Resolver) resolveFile(candidate, identifier, baseDir string) (string, error) {
	for _, probe := range probeCandidates(candidate) {
		if r.isFile(probe) {
			return probe, nil
		}
	}
	return "", &ResolveError{Identifier: identifier, BaseDir: baseDir}
}

func probeCandidates(candidate string) []string {
	probes := []string{candidate}
	if path.Ext(candidate) == "" {
		probes = append(probes,
			candidate+".js",
			candidate+".json",
			candidate+".css",
		)
	}
	probes = append(probes, filepath.Join(candidate, "index.js"))
	return probes
}

// resolvePackage resolves a bare identifier by walking node_modules
// directories from baseDir up, then falling back to the root node_modules.
func (r *Resolver) resolvePackage(identifier, baseDir string) (string, error) {
	pkgName := packageName(identifier)
	subpath := strings.TrimPrefix(identifier, pkgName)
	subpath = strings.TrimPrefix(subpath, "/")

	for _, nodeModules := range r.nodeModulesDirs(baseDir) {
		pkgDir := filepath.Join(nodeModules, pkgName)
		if !r.fs.Exists(pkgDir) {
			continue
		}
		return r.resolveInPackage(pkgDir, subpath, identifier, baseDir)
	}

	return "", &ResolveError{Identifier: identifier, BaseDir: baseDir}
}

// resolveInPackage resolves a subpath within a located package directory,
// honoring the package's browser field.
func (r *Resolver) resolveInPackage(pkgDir, subpath, identifier, baseDir string) (string, error) {
	pkgJSONPath := filepath.Join(pkgDir, "package.json")
	pkg, _ := r.pkgCache.GetOrLoad(pkgJSONPath, func() (*packagejson.PackageJSON, error) {
		return packagejson.ParseFile(r.fs, pkgJSONPath)
	})

	if subpath == "" {
		entry := "index.js"
		if pkg != nil {
			entry = pkg.EntryPoint()
		}
		return r.resolveFile(filepath.Join(pkgDir, entry), identifier, baseDir)
	}

	if pkg != nil {
		if replacement, ignored, found := pkg.Replacement("./" + subpath); found {
			if ignored {
				return "", &ResolveError{
					Identifier: identifier,
					BaseDir:    baseDir,
					Err:        fmt.Errorf("mapped to false by the browser field of %s", pkgJSONPath),
				}
			}
			return r.resolveFile(filepath.Join(pkgDir, strings.TrimPrefix(replacement, "./")), identifier, baseDir)
		}
	}

	return r.resolveFile(filepath.Join(pkgDir, subpath), identifier, baseDir)
}

// nodeModulesDirs lists candidate node_modules directories: every ancestor of
// baseDir, then the configured root node_modules if not already covered.
func (r *Resolver) nodeModulesDirs(baseDir string) []string {
	var dirs []string
	dir := baseDir
	for {
		dirs = append(dirs, filepath.Join(dir, "node_modules"))
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if r.rootNodeModules != "" {
		found := false
		for _, d := range dirs {
			if d == r.rootNodeModules {
				found = true
				break
			}
		}
		if !found {
			dirs = append(dirs, r.rootNodeModules)
		}
	}
	return dirs
}

func (r *Resolver) isFile(p string) bool {
	info, err := r.fs.Stat(p)
	return err == nil && !info.IsDir()
}

// packageName extracts the package name from a bare identifier.
// Handles scoped packages: "@scope/pkg/path" -> "@scope/pkg".
func packageName(identifier string) string {
	if strings.HasPrefix(identifier, "@") {
		parts := strings.SplitN(identifier, "/", 3)
		if len(parts) >= 2 {
			return path.Join(parts[0], parts[1])
		}
		return identifier
	}
	parts := strings.SplitN(identifier, "/", 2)
	return parts[0]
}
