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
package resolve_test

import (
	"errors"
	"strings"
	"testing"

	"bennypowers.dev/lattice/internal/mapfs"
	"bennypowers.dev/lattice/resolve"
)

func projectFS() *mapfs.MapFileSystem {
	mfs := mapfs.New()
	mfs.AddFile("/proj/src/main.js", `import "./util.js";`, 0644)
	mfs.AddFile("/proj/src/util.js", "export const x = 1;", 0644)
	mfs.AddFile("/proj/src/styles.css", "body { color: red }", 0644)
	mfs.AddFile("/proj/src/widgets/index.js", "export default 1;", 0644)
	mfs.AddFile("/proj/node_modules/lit/package.json", `{"name": "lit", "main": "./index.js"}`, 0644)
	mfs.AddFile("/proj/node_modules/lit/index.js", "export const html = 1;", 0644)
	mfs.AddFile("/proj/node_modules/lit/decorators.js", "export const customElement = 1;", 0644)
	mfs.AddFile("/proj/node_modules/@scope/pkg/package.json", `{"name": "@scope/pkg", "browser": "./browser.js", "main": "./node.js"}`, 0644)
	mfs.AddFile("/proj/node_modules/@scope/pkg/browser.js", "export default 'browser';", 0644)
	mfs.AddFile("/proj/node_modules/@scope/pkg/node.js", "export default 'node';", 0644)
	mfs.AddFile("/proj/node_modules/ws/package.json", `{"name": "ws", "main": "./lib/ws.js", "browser": {"./lib/ws.js": "./lib/ws-browser.js", "net": false}}`, 0644)
	mfs.AddFile("/proj/node_modules/ws/lib/ws.js", "module.exports = 1;", 0644)
	mfs.AddFile("/proj/node_modules/ws/lib/ws-browser.js", "module.exports = 2;", 0644)
	mfs.AddFile("/proj/shims/path.js", "export default {};", 0644)
	return mfs
}

func newResolver(mfs *mapfs.MapFileSystem) *resolve.Resolver {
	return resolve.New(mfs, "/proj/node_modules")
}

func TestResolveRelative(t *testing.T) {
	r := newResolver(projectFS())

	got, err := r.Resolve("./util.js", "/proj/src")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "/proj/src/util.js" {
		t.Errorf("Got %q", got)
	}
}

func TestResolveRelativeExtensionProbe(t *testing.T) {
	r := newResolver(projectFS())

	got, err := r.Resolve("./util", "/proj/src")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "/proj/src/util.js" {
		t.Errorf("Got %q", got)
	}
}

func TestResolveDirectoryIndex(t *testing.T) {
	r := newResolver(projectFS())

	got, err := r.Resolve("./widgets", "/proj/src")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "/proj/src/widgets/index.js" {
		t.Errorf("Got %q", got)
	}
}

func TestResolveAbsolute(t *testing.T) {
	r := newResolver(projectFS())

	got, err := r.Resolve("/proj/src/styles.css", "/somewhere/else")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "/proj/src/styles.css" {
		t.Errorf("Got %q", got)
	}
}

func TestResolvePackageMain(t *testing.T) {
	r := newResolver(projectFS())

	got, err := r.Resolve("lit", "/proj/src")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "/proj/node_modules/lit/index.js" {
		t.Errorf("Got %q", got)
	}
}

func TestResolvePackageSubpath(t *testing.T) {
	r := newResolver(projectFS())

	got, err := r.Resolve("lit/decorators.js", "/proj/src")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "/proj/node_modules/lit/decorators.js" {
		t.Errorf("Got %q", got)
	}
}

func TestResolveScopedPackageBrowserEntry(t *testing.T) {
	r := newResolver(projectFS())

	got, err := r.Resolve("@scope/pkg", "/proj/src")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "/proj/node_modules/@scope/pkg/browser.js" {
		t.Errorf("Expected the browser entry, got %q", got)
	}
}

func TestResolveBrowserFieldSubpathRemap(t *testing.T) {
	r := newResolver(projectFS())

	got, err := r.Resolve("ws/lib/ws.js", "/proj/src")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "/proj/node_modules/ws/lib/ws-browser.js" {
		t.Errorf("Expected the browser remap, got %q", got)
	}
}

// appFS layers an importing package's own manifest over the project tree.
func appFS() *mapfs.MapFileSystem {
	mfs := projectFS()
	mfs.AddFile("/proj/package.json", `{
  "name": "app",
  "browser": {
    "net": "./src/net-stub.js",
    "dgram": false,
    "./src/env.js": "./src/env-browser.js"
  }
}`, 0644)
	mfs.AddFile("/proj/src/net-stub.js", "export default {};", 0644)
	mfs.AddFile("/proj/src/env.js", "export const env = \"node\";", 0644)
	mfs.AddFile("/proj/src/env-browser.js", "export const env = \"browser\";", 0644)
	return mfs
}

func TestResolveImporterBrowserBareRemap(t *testing.T) {
	r := newResolver(appFS())

	got, err := r.Resolve("net", "/proj/src")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "/proj/src/net-stub.js" {
		t.Errorf("Expected the importer's browser remap, got %q", got)
	}
}

func TestResolveImporterBrowserRelativeRemap(t *testing.T) {
	r := newResolver(appFS())

	// "./env.js" from src/ is "./src/env.js" relative to the package root,
	// which the importer's browser map redirects.
	got, err := r.Resolve("./env.js", "/proj/src")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "/proj/src/env-browser.js" {
		t.Errorf("Expected the importer's browser remap, got %q", got)
	}
}

func TestResolveImporterBrowserIgnored(t *testing.T) {
	r := newResolver(appFS())

	_, err := r.Resolve("dgram", "/proj/src")
	var resolveErr *resolve.ResolveError
	if !errors.As(err, &resolveErr) {
		t.Fatalf("Expected *ResolveError, got %v", err)
	}
	if !strings.Contains(err.Error(), "browser field") {
		t.Errorf("Error lacks browser-field context: %v", err)
	}
}

func TestResolveImporterMapDoesNotLeakAcrossPackages(t *testing.T) {
	r := newResolver(appFS())

	// lit's own imports walk up to lit's manifest, not the app's, so the
	// app's "net" remap must not apply from inside node_modules.
	_, err := r.Resolve("net", "/proj/node_modules/lit")
	var resolveErr *resolve.ResolveError
	if !errors.As(err, &resolveErr) {
		t.Fatalf("Expected *ResolveError for net from inside lit, got %v", err)
	}
}

func TestResolveCoreShim(t *testing.T) {
	r := newResolver(projectFS()).WithCoreShims(map[string]string{
		"path": "/proj/shims/path.js",
	})

	got, err := r.Resolve("path", "/proj/src")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "/proj/shims/path.js" {
		t.Errorf("Got %q", got)
	}
}

func TestResolveErrorNamesIdentifierAndBaseDir(t *testing.T) {
	r := newResolver(projectFS())

	_, err := r.Resolve("./missing.js", "/proj/src")
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
	var resolveErr *resolve.ResolveError
	if !errors.As(err, &resolveErr) {
		t.Fatalf("Expected *ResolveError, got %T", err)
	}
	if !strings.Contains(err.Error(), "./missing.js") || !strings.Contains(err.Error(), "/proj/src") {
		t.Errorf("Error message missing context: %v", err)
	}
}

func TestResolveUnknownPackage(t *testing.T) {
	r := newResolver(projectFS())

	_, err := r.Resolve("no-such-pkg", "/proj/src")
	var resolveErr *resolve.ResolveError
	if !errors.As(err, &resolveErr) {
		t.Fatalf("Expected *ResolveError, got %v", err)
	}
}
