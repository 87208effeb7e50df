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
	"encoding/base64"
	"encoding/json"
	"fmt"
	iofs "io/fs"
	"mime"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"bennypowers.dev/lattice/cache"
	"bennypowers.dev/lattice/css"
	"bennypowers.dev/lattice/parse"
)

// Basename returns the path basename without its extension.
func (s *Store) Basename(r *Record) (string, error) {
	return memo(r, JobBasename, func() (string, error) {
		base := filepath.Base(r.Name)
		return strings.TrimSuffix(base, filepath.Ext(base)), nil
	})
}

// Ext returns the file extension including the dot.
func (s *Store) Ext(r *Record) (string, error) {
	return memo(r, JobExt, func() (string, error) {
		return filepath.Ext(r.Name), nil
	})
}

// IsTextFile reports whether the record is a text file the pipeline
// understands: .js, .css, or .json.
func (s *Store) IsTextFile(r *Record) (bool, error) {
	return memo(r, JobIsTextFile, func() (bool, error) {
		ext, err := s.Ext(r)
		if err != nil {
			return false, err
		}
		return ext == ".js" || ext == ".css" || ext == ".json", nil
	})
}

// MimeType looks up the standard MIME type by extension. Unknown extensions
// yield the empty string.
func (s *Store) MimeType(r *Record) (string, error) {
	return memo(r, JobMimeType, func() (string, error) {
		ext, err := s.Ext(r)
		if err != nil {
			return "", err
		}
		return mime.TypeByExtension(ext), nil
	})
}

// ReadText reads the file's UTF-8 contents.
func (s *Store) ReadText(r *Record) (string, error) {
	return memo(r, JobReadText, func() (string, error) {
		data, err := s.cfg.FS.ReadFile(r.Name)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", r.Name, err)
		}
		return string(data), nil
	})
}

// Stat returns the file's metadata.
func (s *Store) Stat(r *Record) (iofs.FileInfo, error) {
	return memo(r, JobStat, func() (iofs.FileInfo, error) {
		info, err := s.cfg.FS.Stat(r.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", r.Name, err)
		}
		return info, nil
	})
}

// Mtime returns the file's modification time in integer milliseconds.
func (s *Store) Mtime(r *Record) (int64, error) {
	return memo(r, JobMtime, func() (int64, error) {
		info, err := s.Stat(r)
		if err != nil {
			return 0, err
		}
		return info.ModTime().UnixMilli(), nil
	})
}

// HashText hashes the file's text, rendered in decimal. The hash is
// non-cryptographic; it only needs to move when the content moves.
func (s *Store) HashText(r *Record) (string, error) {
	return memo(r, JobHashText, func() (string, error) {
		text, err := s.ReadText(r)
		if err != nil {
			return "", err
		}
		sum := uint32(xxhash.Sum64String(text))
		return strconv.FormatUint(uint64(sum), 10), nil
	})
}

// Hash is the record's content identity for cache-busting URLs: the text
// hash for text files, the mtime rendered as a string otherwise.
func (s *Store) Hash(r *Record) (string, error) {
	return memo(r, JobHash, func() (string, error) {
		isText, err := s.IsTextFile(r)
		if err != nil {
			return "", err
		}
		if isText {
			return s.HashText(r)
		}
		mtime, err := s.Mtime(r)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(mtime, 10), nil
	})
}

// HashedFilename is "<basename>-<hash><ext>".
func (s *Store) HashedFilename(r *Record) (string, error) {
	return memo(r, JobHashedFilename, func() (string, error) {
		basename, err := s.Basename(r)
		if err != nil {
			return "", err
		}
		hash, err := s.Hash(r)
		if err != nil {
			return "", err
		}
		ext, err := s.Ext(r)
		if err != nil {
			return "", err
		}
		return basename + "-" + hash + ext, nil
	})
}

// HashedName is the hashed filename joined onto the record's directory.
func (s *Store) HashedName(r *Record) (string, error) {
	return memo(r, JobHashedName, func() (string, error) {
		filename, err := s.HashedFilename(r)
		if err != nil {
			return "", err
		}
		return filepath.Join(filepath.Dir(r.Name), filename), nil
	})
}

// CacheKey is [name, mtime, hash] for text files and [name, mtime] for
// binary files.
func (s *Store) CacheKey(r *Record) (cache.Key, error) {
	return memo(r, JobCacheKey, func() (cache.Key, error) {
		mtime, err := s.Mtime(r)
		if err != nil {
			return nil, err
		}
		isText, err := s.IsTextFile(r)
		if err != nil {
			return nil, err
		}
		if !isText {
			return cache.Key{r.Name, mtime}, nil
		}
		hash, err := s.HashText(r)
		if err != nil {
			return nil, err
		}
		return cache.Key{r.Name, mtime, hash}, nil
	})
}

// URL is the served URL for the record: the hashed name for text files, the
// plain name otherwise, made relative to the source root when possible,
// prefixed with the root URL, with path separators normalized to "/".
//
// A file outside the source root keeps its absolute path, which joins onto
// the root URL with a double slash. The downstream runtime accepts that
// shape, so it is preserved.
func (s *Store) URL(r *Record) (string, error) {
	return memo(r, JobURL, func() (string, error) {
		isText, err := s.IsTextFile(r)
		if err != nil {
			return "", err
		}
		name := r.Name
		if isText {
			if name, err = s.HashedName(r); err != nil {
				return "", err
			}
		}

		rootURL := strings.TrimSuffix(s.cfg.RootURL, "/")
		if rel, relErr := filepath.Rel(s.cfg.SourceRoot, name); relErr == nil &&
			rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return rootURL + "/" + filepath.ToSlash(rel), nil
		}
		return rootURL + "/" + filepath.ToSlash(name), nil
	})
}

// SourceURL is the cache-busted file URL recorded in source maps.
func (s *Store) SourceURL(r *Record) (string, error) {
	return memo(r, JobSourceURL, func() (string, error) {
		hash, err := s.Hash(r)
		if err != nil {
			return "", err
		}
		return "file://" + r.Name + "?" + hash, nil
	})
}

// SourceMapAnnotation renders the inline base64 data-URL comment for the
// record's source map, in the comment syntax of its file type. Records
// without a map, or with an extension outside js/json/css, yield "".
func (s *Store) SourceMapAnnotation(r *Record) (string, error) {
	return memo(r, JobSourceMapAnnotation, func() (string, error) {
		ext, err := s.Ext(r)
		if err != nil {
			return "", err
		}
		if ext != ".js" && ext != ".json" && ext != ".css" {
			return "", nil
		}
		sourceMap, err := s.SourceMap(r)
		if err != nil {
			return "", err
		}
		if sourceMap == "" {
			return "", nil
		}
		encoded := base64.StdEncoding.EncodeToString([]byte(sourceMap))
		if ext == ".css" {
			return "\n/*# sourceMappingURL=data:application/json;charset=utf-8;base64," + encoded + " */", nil
		}
		return "\n//# sourceMappingURL=data:application/json;charset=utf-8;base64," + encoded, nil
	})
}

// ShouldTransform reports whether the record is eligible for the source
// transform: everything except files under the root node_modules or the
// vendor root.
func (s *Store) ShouldTransform(r *Record) bool {
	return !s.underDir(r.Name, s.cfg.RootNodeModules) && !s.underDir(r.Name, s.cfg.VendorRoot)
}

// shouldCacheResolvedPathDependencies limits persisted path resolutions to
// files under the root node_modules, whose relative imports only move when
// the lockfile does.
func (s *Store) shouldCacheResolvedPathDependencies(r *Record) bool {
	return s.underDir(r.Name, s.cfg.RootNodeModules)
}

func (s *Store) underDir(name, dir string) bool {
	if dir == "" {
		return false
	}
	rel, err := filepath.Rel(dir, name)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// AST parses the record as JavaScript. Transform-eligible files use the
// transform pipeline's AST; vendor and node_modules files get a plain module
// parse. Non-JS extensions fail.
func (s *Store) AST(r *Record) (*parse.AST, error) {
	return memo(r, JobAST, func() (*parse.AST, error) {
		ext, err := s.Ext(r)
		if err != nil {
			return nil, err
		}
		if ext != ".js" {
			return nil, fmt.Errorf("%w %q: cannot parse %s", ErrUnknownExtension, ext, r.Name)
		}
		if s.ShouldTransform(r) {
			transformed, err := s.transform(r)
			if err != nil {
				return nil, err
			}
			return transformed.AST, nil
		}
		text, err := s.ReadText(r)
		if err != nil {
			return nil, err
		}
		ast, err := parse.Parse([]byte(text), parse.SourceTypeModule)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", r.Name, err)
		}
		return ast, nil
	})
}

// transform runs the full code-transforming pipeline once per record.
func (s *Store) transform(r *Record) (*parse.Transformed, error) {
	return memo(r, JobTransform, func() (*parse.Transformed, error) {
		text, err := s.ReadText(r)
		if err != nil {
			return nil, err
		}
		filename, err := s.HashedFilename(r)
		if err != nil {
			return nil, err
		}
		sourceURL, err := s.SourceURL(r)
		if err != nil {
			return nil, err
		}
		transformed, err := parse.Transform([]byte(text), parse.Options{
			Filename:        r.Name,
			SourceMapTarget: filename,
			SourceFileName:  sourceURL,
			SourceMaps:      true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to transform %s: %w", r.Name, err)
		}
		return transformed, nil
	})
}

// generate runs the plain generator for transform-ineligible JS. Vendor
// files get the Minified option, which leaves sourcesContent out of their
// map; their code is served as written, not minified.
func (s *Store) generate(r *Record) (*parse.Generated, error) {
	return memo(r, JobGenerate, func() (*parse.Generated, error) {
		ast, err := s.AST(r)
		if err != nil {
			return nil, err
		}
		filename, err := s.HashedFilename(r)
		if err != nil {
			return nil, err
		}
		sourceURL, err := s.SourceURL(r)
		if err != nil {
			return nil, err
		}
		generated, err := parse.Generate(ast, parse.Options{
			Filename:        r.Name,
			SourceMapTarget: filename,
			SourceFileName:  sourceURL,
			Minified:        s.underDir(r.Name, s.cfg.VendorRoot),
			SourceMaps:      true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to generate %s: %w", r.Name, err)
		}
		return generated, nil
	})
}

// postcss runs the CSS post-processor once per record.
func (s *Store) postcss(r *Record) (*css.Result, error) {
	return memo(r, JobPostcss, func() (*css.Result, error) {
		text, err := s.ReadText(r)
		if err != nil {
			return nil, err
		}
		result, err := css.Process([]byte(text), s.cfg.CSSPlugins, css.Options{
			From:       r.Name,
			SourceMaps: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to process %s: %w", r.Name, err)
		}
		return result, nil
	})
}

// AnalyzeDependencies collects the record's raw dependency references: the
// CSS post-processor's list for stylesheets, the statically analyzable
// import/export-from/require sources for JS, nothing for JSON and binaries.
func (s *Store) AnalyzeDependencies(r *Record) ([]parse.Dependency, error) {
	return memo(r, JobAnalyzeDependencies, func() ([]parse.Dependency, error) {
		ext, err := s.Ext(r)
		if err != nil {
			return nil, err
		}
		switch ext {
		case ".css":
			result, err := s.postcss(r)
			if err != nil {
				return nil, err
			}
			deps := make([]parse.Dependency, len(result.Dependencies))
			for i, specifier := range result.Dependencies {
				deps[i] = parse.Dependency{Specifier: specifier}
			}
			return deps, nil
		case ".js":
			ast, err := s.AST(r)
			if err != nil {
				return nil, err
			}
			deps, err := parse.Dependencies(ast)
			if err != nil {
				return nil, fmt.Errorf("failed to analyze %s: %w", r.Name, err)
			}
			return deps, nil
		default:
			return nil, nil
		}
	})
}

// DependencyIdentifiers projects the analyzed dependencies to their source
// strings with URL-loader suffixes stripped: everything from the first `!`,
// `?`, or `#` onward is removed. Results persist in the dependency cache.
func (s *Store) DependencyIdentifiers(r *Record) ([]string, error) {
	return memo(r, JobDependencyIdentifiers, func() ([]string, error) {
		entry, err := s.ReadCache(r)
		if err != nil {
			return nil, err
		}
		if entry.DependencyIdentifiers != nil {
			return entry.DependencyIdentifiers, nil
		}

		deps, err := s.AnalyzeDependencies(r)
		if err != nil {
			return nil, err
		}
		identifiers := make([]string, 0, len(deps))
		for _, dep := range deps {
			identifiers = append(identifiers, stripLoaderSuffix(dep.Specifier))
		}
		s.annotate(r, func(e *Entry) {
			e.DependencyIdentifiers = identifiers
		})
		return identifiers, nil
	})
}

func stripLoaderSuffix(identifier string) string {
	if idx := strings.IndexAny(identifier, "!?#"); idx >= 0 {
		return identifier[:idx]
	}
	return identifier
}

// PathDependencyIdentifiers selects identifiers addressed by path: those
// starting with "." or a path separator.
func (s *Store) PathDependencyIdentifiers(r *Record) ([]string, error) {
	return memo(r, JobPathDependencyIdentifiers, func() ([]string, error) {
		identifiers, err := s.DependencyIdentifiers(r)
		if err != nil {
			return nil, err
		}
		var paths []string
		for _, id := range identifiers {
			if isPathIdentifier(id) {
				paths = append(paths, id)
			}
		}
		return paths, nil
	})
}

// PackageDependencyIdentifiers selects the bare package identifiers.
func (s *Store) PackageDependencyIdentifiers(r *Record) ([]string, error) {
	return memo(r, JobPackageDependencyIdentifiers, func() ([]string, error) {
		identifiers, err := s.DependencyIdentifiers(r)
		if err != nil {
			return nil, err
		}
		var packages []string
		for _, id := range identifiers {
			if !isPathIdentifier(id) {
				packages = append(packages, id)
			}
		}
		return packages, nil
	})
}

func isPathIdentifier(identifier string) bool {
	return strings.HasPrefix(identifier, ".") ||
		strings.HasPrefix(identifier, "/") ||
		filepath.IsAbs(identifier)
}

// Resolver returns the record's resolve closure, bound to its directory.
func (s *Store) Resolver(r *Record) func(identifier string) (string, error) {
	baseDir := filepath.Dir(r.Name)
	return func(identifier string) (string, error) {
		return s.cfg.Resolver.Resolve(identifier, baseDir)
	}
}

// ResolvePathDependencies resolves the record's path identifiers. Results
// persist only for files under the root node_modules.
func (s *Store) ResolvePathDependencies(r *Record) (map[string]string, error) {
	return memo(r, JobResolvePathDependencies, func() (map[string]string, error) {
		cacheable := s.shouldCacheResolvedPathDependencies(r)
		entry, err := s.ReadCache(r)
		if err != nil {
			return nil, err
		}
		if cacheable && entry.ResolvePathDependencies != nil {
			return entry.ResolvePathDependencies, nil
		}

		identifiers, err := s.PathDependencyIdentifiers(r)
		if err != nil {
			return nil, err
		}
		resolved, err := s.resolveAll(r, identifiers)
		if err != nil {
			return nil, err
		}
		if cacheable {
			s.annotate(r, func(e *Entry) {
				e.ResolvePathDependencies = resolved
			})
		}
		return resolved, nil
	})
}

// ResolvePackageDependencies resolves the record's package identifiers.
// Always persisted; the namespace is keyed by the dependency-tree hash.
func (s *Store) ResolvePackageDependencies(r *Record) (map[string]string, error) {
	return memo(r, JobResolvePackageDependencies, func() (map[string]string, error) {
		entry, err := s.ReadCache(r)
		if err != nil {
			return nil, err
		}
		if entry.ResolvePackageDependencies != nil {
			return entry.ResolvePackageDependencies, nil
		}

		identifiers, err := s.PackageDependencyIdentifiers(r)
		if err != nil {
			return nil, err
		}
		resolved, err := s.resolveAll(r, identifiers)
		if err != nil {
			return nil, err
		}
		s.annotate(r, func(e *Entry) {
			e.ResolvePackageDependencies = resolved
		})
		return resolved, nil
	})
}

func (s *Store) resolveAll(r *Record, identifiers []string) (map[string]string, error) {
	resolver := s.Resolver(r)
	resolved := make(map[string]string, len(identifiers))
	for _, id := range identifiers {
		path, err := resolver(id)
		if err != nil {
			return nil, err
		}
		resolved[id] = path
	}
	return resolved, nil
}

// ResolvedDependencies is the union of path and package resolutions, path
// entries overriding package entries on collision.
func (s *Store) ResolvedDependencies(r *Record) (map[string]string, error) {
	return memo(r, JobResolvedDependencies, func() (map[string]string, error) {
		packages, err := s.ResolvePackageDependencies(r)
		if err != nil {
			return nil, err
		}
		paths, err := s.ResolvePathDependencies(r)
		if err != nil {
			return nil, err
		}
		merged := make(map[string]string, len(packages)+len(paths))
		for id, path := range packages {
			merged[id] = path
		}
		for id, path := range paths {
			merged[id] = path
		}
		return merged, nil
	})
}

// Code is the textual output to serve: the post-processed CSS, the raw
// bootstrap runtime, the generator's JS output, raw JSON. Binary files have
// no code. The result is annotated into the AST cache.
func (s *Store) Code(r *Record) (string, error) {
	return memo(r, JobCode, func() (string, error) {
		entry, err := s.ReadCache(r)
		if err != nil {
			return "", err
		}
		if entry.Code != nil {
			return *entry.Code, nil
		}

		code, err := s.computeCode(r)
		if err != nil {
			return "", err
		}
		s.annotate(r, func(e *Entry) {
			e.Code = &code
		})
		return code, nil
	})
}

func (s *Store) computeCode(r *Record) (string, error) {
	if r.Name == s.cfg.BootstrapRuntime {
		return s.ReadText(r)
	}
	ext, err := s.Ext(r)
	if err != nil {
		return "", err
	}
	switch ext {
	case ".css":
		result, err := s.postcss(r)
		if err != nil {
			return "", err
		}
		return result.CSS, nil
	case ".js":
		if s.ShouldTransform(r) {
			transformed, err := s.transform(r)
			if err != nil {
				return "", err
			}
			return transformed.Code, nil
		}
		generated, err := s.generate(r)
		if err != nil {
			return "", err
		}
		return generated.Code, nil
	case ".json":
		return s.ReadText(r)
	}
	isText, err := s.IsTextFile(r)
	if err != nil {
		return "", err
	}
	if isText {
		return "", fmt.Errorf("%w %q: no code for %s", ErrUnknownExtension, ext, r.Name)
	}
	return "", nil
}

// SourceMap is the serialized map for the served code: the post-processor's
// map for CSS, the generator's map shifted down one line for JS (the module
// envelope adds a leading line). JSON, binaries, and the bootstrap runtime
// have none.
func (s *Store) SourceMap(r *Record) (string, error) {
	return memo(r, JobSourceMap, func() (string, error) {
		entry, err := s.ReadCache(r)
		if err != nil {
			return "", err
		}
		if entry.SourceMap != nil {
			return *entry.SourceMap, nil
		}

		sourceMap, err := s.computeSourceMap(r)
		if err != nil {
			return "", err
		}
		s.annotate(r, func(e *Entry) {
			e.SourceMap = &sourceMap
		})
		return sourceMap, nil
	})
}

func (s *Store) computeSourceMap(r *Record) (string, error) {
	if r.Name == s.cfg.BootstrapRuntime {
		return "", nil
	}
	ext, err := s.Ext(r)
	if err != nil {
		return "", err
	}
	switch ext {
	case ".css":
		result, err := s.postcss(r)
		if err != nil {
			return "", err
		}
		if result.Map == nil {
			return "", nil
		}
		return result.Map.String()
	case ".js":
		var m *parse.SourceMap
		if s.ShouldTransform(r) {
			transformed, err := s.transform(r)
			if err != nil {
				return "", err
			}
			m = transformed.Map
		} else {
			generated, err := s.generate(r)
			if err != nil {
				return "", err
			}
			m = generated.Map
		}
		if m == nil {
			return "", nil
		}
		return m.OffsetLines(1).String()
	case ".json":
		return "", nil
	}
	isText, err := s.IsTextFile(r)
	if err != nil {
		return "", err
	}
	if isText {
		return "", fmt.Errorf("%w %q: no source map for %s", ErrUnknownExtension, ext, r.Name)
	}
	return "", nil
}

// ModuleContents is the expression a module evaluates to: the code for
// JS/JSON, a JSON-quoted URL for everything else.
func (s *Store) ModuleContents(r *Record) (string, error) {
	return memo(r, JobModuleContents, func() (string, error) {
		ext, err := s.Ext(r)
		if err != nil {
			return "", err
		}
		if ext == ".js" || ext == ".json" {
			return s.Code(r)
		}
		url, err := s.URL(r)
		if err != nil {
			return "", err
		}
		quoted, err := json.Marshal(url)
		if err != nil {
			return "", err
		}
		return string(quoted), nil
	})
}

// ShouldShimModuleDefinition is true for every non-JS record.
func (s *Store) ShouldShimModuleDefinition(r *Record) (bool, error) {
	return memo(r, JobShouldShimModuleDefinition, func() (bool, error) {
		ext, err := s.Ext(r)
		if err != nil {
			return false, err
		}
		return ext != ".js", nil
	})
}

// ModuleCode is the factory body: the module contents for JS, otherwise a
// fixed interop shim exposing the contents as the default export and
// accepting hot replacement.
func (s *Store) ModuleCode(r *Record) (string, error) {
	return memo(r, JobModuleCode, func() (string, error) {
		shim, err := s.ShouldShimModuleDefinition(r)
		if err != nil {
			return "", err
		}
		contents, err := s.ModuleContents(r)
		if err != nil {
			return "", err
		}
		if !shim {
			return contents, nil
		}
		return "Object.defineProperty(exports, \"__esModule\", {\n" +
			"  value: true\n" +
			"});\n" +
			"exports[\"default\"] = " + contents + ";\n" +
			"if (module.hot) {\n" +
			"  module.hot.accept();\n" +
			"}", nil
	})
}

// ModuleDefinition is the wire-format envelope the runtime loader parses.
// The bootstrap runtime has none: it is served verbatim.
func (s *Store) ModuleDefinition(r *Record) (string, error) {
	return memo(r, JobModuleDefinition, func() (string, error) {
		if r.Name == s.cfg.BootstrapRuntime {
			return "", nil
		}
		deps, err := s.ResolvedDependencies(r)
		if err != nil {
			return "", err
		}
		hash, err := s.Hash(r)
		if err != nil {
			return "", err
		}
		moduleCode, err := s.ModuleCode(r)
		if err != nil {
			return "", err
		}

		name, err := json.Marshal(r.Name)
		if err != nil {
			return "", err
		}
		// json.Marshal emits map keys sorted, keeping the envelope
		// deterministic for a given dependency set.
		depsJSON, err := json.Marshal(deps)
		if err != nil {
			return "", err
		}
		hashJSON, err := json.Marshal(hash)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(
			"__modules.defineModule({name: %s, deps: %s, hash: %s, factory: function(module, exports, require, process, global) {\n%s\n}});",
			name, depsJSON, hashJSON, moduleCode,
		), nil
	})
}

// Content is the served response body: the code for the bootstrap runtime
// and CSS, the module definition for JS/JSON, nothing for binaries.
func (s *Store) Content(r *Record) (string, error) {
	return memo(r, JobContent, func() (string, error) {
		if r.Name == s.cfg.BootstrapRuntime {
			return s.Code(r)
		}
		ext, err := s.Ext(r)
		if err != nil {
			return "", err
		}
		switch ext {
		case ".css":
			return s.Code(r)
		case ".js", ".json":
			return s.ModuleDefinition(r)
		}
		isText, err := s.IsTextFile(r)
		if err != nil {
			return "", err
		}
		if isText {
			return "", fmt.Errorf("%w %q: no content for %s", ErrUnknownExtension, ext, r.Name)
		}
		return "", nil
	})
}

// FileDependencies names extra files whose changes invalidate this record.
// Default empty; a hook point for tools that compile multi-file bundles.
func (s *Store) FileDependencies(r *Record) ([]string, error) {
	return memo(r, JobFileDependencies, func() ([]string, error) {
		if s.cfg.FileDependencies == nil {
			return nil, nil
		}
		return s.cfg.FileDependencies(r.Name), nil
	})
}

// Ready forces every job a served record needs, concurrently. It is the
// join point the tracer waits on per file.
func (s *Store) Ready(r *Record) error {
	_, err := memo(r, JobReady, func() (struct{}, error) {
		var g errgroup.Group
		g.Go(func() error { _, err := s.Hash(r); return err })
		g.Go(func() error { _, err := s.Content(r); return err })
		g.Go(func() error { _, err := s.ModuleDefinition(r); return err })
		g.Go(func() error { _, err := s.URL(r); return err })
		g.Go(func() error { _, err := s.SourceMapAnnotation(r); return err })
		g.Go(func() error { _, err := s.HashedFilename(r); return err })
		g.Go(func() error { _, err := s.IsTextFile(r); return err })
		g.Go(func() error { _, err := s.MimeType(r); return err })
		g.Go(func() error { _, err := s.FileDependencies(r); return err })
		return struct{}{}, g.Wait()
	})
	return err
}

// closeASTSlot releases a resolved AST when a record is discarded.
func closeASTSlot(sl *slot) {
	if sl == nil {
		return
	}
	select {
	case <-sl.done:
	default:
		return
	}
	if ast, ok := sl.value.(*parse.AST); ok && ast != nil {
		ast.Close()
	}
}

// closeTransformSlot releases the transform pipeline's AST.
func closeTransformSlot(sl *slot) {
	if sl == nil {
		return
	}
	select {
	case <-sl.done:
	default:
		return
	}
	if t, ok := sl.value.(*parse.Transformed); ok && t != nil && t.AST != nil {
		t.AST.Close()
	}
}
