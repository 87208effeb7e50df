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
// Package packagejson provides parsing and browser-field resolution for
// package.json manifests.
package packagejson

import (
	"encoding/json"
	"strings"

	"bennypowers.dev/lattice/fs"
)

// PackageJSON represents the subset of package.json relevant for resolution.
type PackageJSON struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Main         string            `json:"main,omitempty"`
	Module       string            `json:"module,omitempty"`
	RawBrowser   json.RawMessage   `json:"browser,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Parse parses package.json data.
func Parse(data []byte) (*PackageJSON, error) {
	var pkg PackageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// ParseFile parses a package.json file.
func ParseFile(fs fs.FileSystem, path string) (*PackageJSON, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// BrowserString returns the string form of the browser field, if present.
// In that form the field names the package's browser entry point.
func (pkg *PackageJSON) BrowserString() (string, bool) {
	if len(pkg.RawBrowser) == 0 {
		return "", false
	}
	var entry string
	if err := json.Unmarshal(pkg.RawBrowser, &entry); err != nil {
		return "", false
	}
	return entry, true
}

// BrowserMap returns the map form of the browser field. Keys are bare
// specifiers or relative file paths; values are either a replacement path or
// false (excluding the specifier from the browser build). Returns nil when
// the field is absent or in string form.
func (pkg *PackageJSON) BrowserMap() map[string]any {
	if len(pkg.RawBrowser) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(pkg.RawBrowser, &m); err != nil {
		return nil
	}
	return m
}

// Replacement looks up a specifier in the browser map. Relative keys are
// matched with and without the leading "./" and with an implied ".js"
// extension, matching bundler behavior for the field.
//
// The returned ignored flag is true when the entry maps to false. The
// resolver reports such a specifier as a resolution error naming the
// manifest.
func (pkg *PackageJSON) Replacement(specifier string) (replacement string, ignored, found bool) {
	m := pkg.BrowserMap()
	if m == nil {
		return "", false, false
	}

	for _, candidate := range browserKeyCandidates(specifier) {
		value, ok := m[candidate]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case string:
			return v, false, true
		case bool:
			if !v {
				return "", true, true
			}
		}
	}
	return "", false, false
}

// EntryPoint returns the package's entry file, preferring the browser
// field's string form, then the ESM module field, then main, then the
// index.js default.
func (pkg *PackageJSON) EntryPoint() string {
	if entry, ok := pkg.BrowserString(); ok && entry != "" {
		return trimDotSlash(entry)
	}
	if pkg.Module != "" {
		return trimDotSlash(pkg.Module)
	}
	if pkg.Main != "" {
		return trimDotSlash(pkg.Main)
	}
	return "index.js"
}

// browserKeyCandidates lists the keys a specifier may appear under in a
// browser map: verbatim, with/without "./", and with an implied extension.
func browserKeyCandidates(specifier string) []string {
	candidates := []string{specifier}
	if strings.HasPrefix(specifier, "./") {
		candidates = append(candidates, strings.TrimPrefix(specifier, "./"))
	} else if strings.HasPrefix(specifier, ".") || strings.HasPrefix(specifier, "/") {
		candidates = append(candidates, "./"+strings.TrimPrefix(specifier, "/"))
	}
	if !strings.HasSuffix(specifier, ".js") && !strings.HasSuffix(specifier, ".json") {
		for _, c := range append([]string(nil), candidates...) {
			candidates = append(candidates, c+".js")
		}
	}
	return candidates
}

// trimDotSlash removes a leading "./" from a path.
func trimDotSlash(path string) string {
	return strings.TrimPrefix(path, "./")
}
