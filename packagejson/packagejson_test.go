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
package packagejson_test

import (
	"testing"

	"bennypowers.dev/lattice/internal/mapfs"
	"bennypowers.dev/lattice/packagejson"
)

func TestParseFile(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/test/package.json", `{
  "name": "widget",
  "version": "2.1.0",
  "main": "./lib/index.js",
  "dependencies": {"lit": "^3.0.0"}
}`, 0644)

	pkg, err := packagejson.ParseFile(mfs, "/test/package.json")
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if pkg.Name != "widget" {
		t.Errorf("Expected name 'widget', got %q", pkg.Name)
	}
	if pkg.Main != "./lib/index.js" {
		t.Errorf("Expected main './lib/index.js', got %q", pkg.Main)
	}
	if pkg.Dependencies["lit"] != "^3.0.0" {
		t.Errorf("Expected lit dependency, got %v", pkg.Dependencies)
	}
}

func TestParseFileMissing(t *testing.T) {
	mfs := mapfs.New()
	if _, err := packagejson.ParseFile(mfs, "/test/package.json"); err == nil {
		t.Error("Expected error for missing package.json")
	}
}

func TestEntryPoint(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"browser string wins", `{"browser": "./browser.js", "module": "./esm.js", "main": "./main.js"}`, "browser.js"},
		{"module preferred over main", `{"module": "./esm/index.js", "main": "./cjs/index.js"}`, "esm/index.js"},
		{"main fallback", `{"main": "./main.js"}`, "main.js"},
		{"index default", `{"name": "x"}`, "index.js"},
		{"browser map ignored for entry", `{"browser": {"fs": false}, "main": "lib.js"}`, "lib.js"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, err := packagejson.Parse([]byte(tt.json))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got := pkg.EntryPoint(); got != tt.want {
				t.Errorf("EntryPoint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBrowserString(t *testing.T) {
	pkg, err := packagejson.Parse([]byte(`{"browser": "./browser.js"}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	entry, ok := pkg.BrowserString()
	if !ok || entry != "./browser.js" {
		t.Errorf("BrowserString() = %q, %v; want './browser.js', true", entry, ok)
	}

	pkg, err = packagejson.Parse([]byte(`{"browser": {"fs": false}}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, ok := pkg.BrowserString(); ok {
		t.Error("Expected no string form for a browser map")
	}
}

func TestReplacement(t *testing.T) {
	pkg, err := packagejson.Parse([]byte(`{
  "browser": {
    "./lib/server.js": "./lib/client.js",
    "./lib/tls": "./lib/tls-browser.js",
    "fs": false
  }
}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	tests := []struct {
		specifier   string
		replacement string
		ignored     bool
		found       bool
	}{
		{"./lib/server.js", "./lib/client.js", false, true},
		{"./lib/tls", "./lib/tls-browser.js", false, true},
		{"fs", "", true, true},
		{"./lib/other.js", "", false, false},
	}
	for _, tt := range tests {
		replacement, ignored, found := pkg.Replacement(tt.specifier)
		if found != tt.found || ignored != tt.ignored {
			t.Errorf("Replacement(%q) found=%v ignored=%v; want found=%v ignored=%v",
				tt.specifier, found, ignored, tt.found, tt.ignored)
			continue
		}
		if found && !ignored && replacement != tt.replacement {
			t.Errorf("Replacement(%q) = %q, want %q", tt.specifier, replacement, tt.replacement)
		}
	}
}

func TestReplacementImpliedExtension(t *testing.T) {
	pkg, err := packagejson.Parse([]byte(`{"browser": {"./util.js": "./util-browser.js"}}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	replacement, _, found := pkg.Replacement("./util")
	if !found || replacement != "./util-browser.js" {
		t.Errorf("Replacement('./util') = %q, %v; want './util-browser.js', true", replacement, found)
	}
}

func TestBrowserMapAbsent(t *testing.T) {
	pkg, err := packagejson.Parse([]byte(`{"name": "x"}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if pkg.BrowserMap() != nil {
		t.Error("Expected nil browser map when field is absent")
	}
	if _, _, found := pkg.Replacement("./anything.js"); found {
		t.Error("Expected no replacement when field is absent")
	}
}
