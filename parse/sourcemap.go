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
package parse

import (
	"encoding/json"
	"strings"
)

// SourceMap is a version-3 source map.
type SourceMap struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// NewIdentityMap builds a map that carries every generated line back to the
// same line of the original source.
func NewIdentityMap(code string, opts Options) *SourceMap {
	sm := &SourceMap{
		Version:  3,
		File:     opts.SourceMapTarget,
		Sources:  []string{opts.SourceFileName},
		Names:    []string{},
		Mappings: IdentityMappings(lineCount(code)),
	}
	if !opts.Minified {
		sm.SourcesContent = []string{code}
	}
	return sm
}

// IdentityMappings renders VLQ mappings pairing generated line n with source
// line n at column zero.
func IdentityMappings(lines int) string {
	if lines <= 0 {
		return ""
	}
	var b strings.Builder
	// [0,0,0,0]: first generated line maps to source line 0.
	b.WriteString("AAAA")
	for i := 1; i < lines; i++ {
		// [0,0,+1,0]: each further line advances the source line by one.
		b.WriteString(";AACA")
	}
	return b.String()
}

// OffsetLines shifts every mapping down by n generated lines. The module
// envelope adds one leading line, so served JS maps are shifted by one.
func (m *SourceMap) OffsetLines(n int) *SourceMap {
	if m == nil || n <= 0 {
		return m
	}
	shifted := *m
	shifted.Mappings = strings.Repeat(";", n) + m.Mappings
	return &shifted
}

// String serializes the map as JSON.
func (m *SourceMap) String() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func lineCount(code string) int {
	if code == "" {
		return 0
	}
	return strings.Count(code, "\n") + 1
}
