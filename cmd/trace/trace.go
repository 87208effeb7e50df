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

// Package trace provides the trace command for lattice.
package trace

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/lattice/cache"
	"bennypowers.dev/lattice/fs"
	"bennypowers.dev/lattice/internal/output"
	"bennypowers.dev/lattice/lockfile"
	"bennypowers.dev/lattice/record"
	"bennypowers.dev/lattice/resolve"
	"bennypowers.dev/lattice/trace"
)

// Cmd is the trace cobra command. It traces entry files to every reachable
// module, computes their artifacts, and reports a build summary.
var Cmd = &cobra.Command{
	Use:   "trace [entry.js...]",
	Short: "Trace entry files and build module artifacts",
	Long: `Trace entry files to every transitively reachable module.

Each traced file is transformed, hashed, and given a cache-busting URL; JS
and JSON files are wrapped as module definitions for the runtime loader.
The summary of produced artifacts is printed as JSON.`,
	Example: `  # Trace a single entry point
  lattice trace src/main.js

  # Trace several entries
  lattice trace src/main.js src/admin.js

  # Trace entries matching a glob pattern
  lattice trace --glob "src/pages/**/*.js"

  # Serve vendor assets untransformed from a prebuilt directory
  lattice trace src/main.js --vendor vendor

  # Shim core modules with browser-safe implementations
  lattice trace src/main.js --shim path=src/shims/path.js`,
	RunE: run,
}

func init() {
	Cmd.Flags().String("glob", "", "Glob pattern to match entry files (e.g. \"src/**/*.js\")")
	Cmd.Flags().String("root-url", "/", "URL prefix for served files")
	Cmd.Flags().String("source-root", "", "Directory URLs are made relative to (default: package directory)")
	Cmd.Flags().String("vendor", "", "Directory of pre-built assets served as written, without transforms")
	Cmd.Flags().String("bootstrap", "", "Runtime loader file served verbatim")
	Cmd.Flags().String("cache-dir", ".lattice", "Cache directory, relative to the package directory")
	Cmd.Flags().StringToString("shim", nil, "Core-module shims as name=path pairs")
}

func run(cmd *cobra.Command, args []string) error {
	osfs := fs.NewOSFileSystem()

	absRoot, err := filepath.Abs(viper.GetString("package"))
	if err != nil {
		return fmt.Errorf("invalid package directory: %w", err)
	}

	// Collect entries from args and glob pattern, deduplicating by
	// absolute path
	seen := make(map[string]struct{})
	var entries []string

	for _, arg := range args {
		absPath, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("invalid file path %q: %w", arg, err)
		}
		if _, exists := seen[absPath]; !exists {
			seen[absPath] = struct{}{}
			entries = append(entries, absPath)
		}
	}

	globPattern, _ := cmd.Flags().GetString("glob")
	if globPattern != "" {
		matches, err := doublestar.FilepathGlob(globPattern)
		if err != nil {
			return fmt.Errorf("invalid glob pattern: %w", err)
		}
		for _, match := range matches {
			absPath, err := filepath.Abs(match)
			if err != nil {
				return fmt.Errorf("invalid file path %q: %w", match, err)
			}
			if _, exists := seen[absPath]; !exists {
				seen[absPath] = struct{}{}
				entries = append(entries, absPath)
			}
		}
	}

	if len(entries) == 0 {
		return fmt.Errorf("no entry files to trace: provide file arguments or use --glob")
	}

	store, err := buildStore(cmd, osfs, absRoot)
	if err != nil {
		return err
	}

	summary, err := trace.Run(store, entries)
	if err != nil {
		return fmt.Errorf("failed to trace: %w", err)
	}

	return output.JSON(osfs, summary)
}

// buildStore assembles the record store configuration from the command's
// flags: cache layout namespaced by the lockfile digest, resolver with core
// shims, roots resolved against the package directory.
func buildStore(cmd *cobra.Command, osfs fs.FileSystem, absRoot string) (*record.Store, error) {
	sourceRoot, _ := cmd.Flags().GetString("source-root")
	if sourceRoot == "" {
		sourceRoot = absRoot
	} else if !filepath.IsAbs(sourceRoot) {
		sourceRoot = filepath.Join(absRoot, sourceRoot)
	}

	rootURL, _ := cmd.Flags().GetString("root-url")
	cacheDir, _ := cmd.Flags().GetString("cache-dir")
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(absRoot, cacheDir)
	}

	vendorRoot, _ := cmd.Flags().GetString("vendor")
	if vendorRoot != "" && !filepath.IsAbs(vendorRoot) {
		vendorRoot = filepath.Join(absRoot, vendorRoot)
	}
	bootstrap, _ := cmd.Flags().GetString("bootstrap")
	if bootstrap != "" && !filepath.IsAbs(bootstrap) {
		bootstrap = filepath.Join(absRoot, bootstrap)
	}

	shims, _ := cmd.Flags().GetStringToString("shim")
	for name, path := range shims {
		if !filepath.IsAbs(path) {
			shims[name] = filepath.Join(absRoot, path)
		}
	}

	rootNodeModules := filepath.Join(absRoot, "node_modules")
	treeHash := lockfile.TreeHash(osfs, absRoot)

	resolver := resolve.New(osfs, rootNodeModules).WithCoreShims(shims)

	return record.NewStore(record.Config{
		SourceRoot:       sourceRoot,
		RootURL:          rootURL,
		RootNodeModules:  rootNodeModules,
		VendorRoot:       vendorRoot,
		BootstrapRuntime: bootstrap,
		Cache:            cache.NewLayout(osfs, cacheDir, treeHash),
		Resolver:         resolver,
		FS:               osfs,
	}), nil
}
