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
package parse_test

import (
	"errors"
	"strings"
	"testing"

	"bennypowers.dev/lattice/parse"
)

func mustParse(t *testing.T, src string) *parse.AST {
	t.Helper()
	ast, err := parse.Parse([]byte(src), parse.SourceTypeModule)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	t.Cleanup(ast.Close)
	return ast
}

func specifiers(deps []parse.Dependency) []string {
	out := make([]string, len(deps))
	for i, d := range deps {
		out[i] = d.Specifier
	}
	return out
}

func TestDependenciesStaticImport(t *testing.T) {
	ast := mustParse(t, `import "./foo";
import { a } from "bar";
import * as ns from "../baz.js";`)

	deps, err := parse.Dependencies(ast)
	if err != nil {
		t.Fatalf("Dependencies failed: %v", err)
	}
	got := specifiers(deps)
	want := []string{"./foo", "bar", "../baz.js"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Got %v, want %v", got, want)
	}
}

func TestDependenciesMixedForms(t *testing.T) {
	ast := mustParse(t, `import "./foo";
require("bar");
export * from "woz.js";`)

	deps, err := parse.Dependencies(ast)
	if err != nil {
		t.Fatalf("Dependencies failed: %v", err)
	}
	got := specifiers(deps)
	want := []string{"./foo", "bar", "woz.js"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Got %v, want %v", got, want)
	}
}

func TestDependenciesDynamicImport(t *testing.T) {
	ast := mustParse(t, `const mod = await import("./lazy.js");`)

	deps, err := parse.Dependencies(ast)
	if err != nil {
		t.Fatalf("Dependencies failed: %v", err)
	}
	if len(deps) != 1 {
		t.Fatalf("Expected 1 dependency, got %v", deps)
	}
	if deps[0].Specifier != "./lazy.js" || !deps[0].Dynamic {
		t.Errorf("Got %+v", deps[0])
	}
}

func TestDependenciesIgnoresNonLiteralRequire(t *testing.T) {
	ast := mustParse(t, `const name = "./a.js";
require(name);
load("./b.js");`)

	deps, err := parse.Dependencies(ast)
	if err != nil {
		t.Fatalf("Dependencies failed: %v", err)
	}
	if len(deps) != 0 {
		t.Errorf("Expected no dependencies, got %v", deps)
	}
}

func TestDependenciesStable(t *testing.T) {
	ast := mustParse(t, `import "./a";
import "./b";`)

	first, err := parse.Dependencies(ast)
	if err != nil {
		t.Fatalf("Dependencies failed: %v", err)
	}
	second, err := parse.Dependencies(ast)
	if err != nil {
		t.Fatalf("Dependencies failed: %v", err)
	}
	if strings.Join(specifiers(first), ",") != strings.Join(specifiers(second), ",") {
		t.Errorf("Dependency lists differ across calls: %v vs %v", first, second)
	}
}

func TestParseError(t *testing.T) {
	_, err := parse.Parse([]byte("import { from ;;;"), parse.SourceTypeModule)
	if err == nil {
		t.Fatal("Expected parse error")
	}
	var parseErr *parse.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected *ParseError, got %T", err)
	}
	if parseErr.Line < 1 {
		t.Errorf("Expected 1-indexed line, got %d", parseErr.Line)
	}
}

func TestGenerate(t *testing.T) {
	src := "const a = 1;\nconst b = 2;\n"
	ast := mustParse(t, src)

	gen, err := parse.Generate(ast, parse.Options{
		SourceMapTarget: "app-12345.js",
		SourceFileName:  "file:///src/app.js?12345",
		SourceMaps:      true,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if gen.Code != src {
		t.Errorf("Generated code differs from source")
	}
	if gen.Map == nil {
		t.Fatal("Expected a source map")
	}
	if gen.Map.Version != 3 {
		t.Errorf("Expected version 3, got %d", gen.Map.Version)
	}
	if gen.Map.Sources[0] != "file:///src/app.js?12345" {
		t.Errorf("Got sources %v", gen.Map.Sources)
	}
	if gen.Map.SourcesContent[0] != src {
		t.Error("Expected sourcesContent to carry the original text")
	}
}

func TestGenerateMinifiedOmitsSourcesContent(t *testing.T) {
	ast := mustParse(t, "const a = 1;")

	gen, err := parse.Generate(ast, parse.Options{Minified: true, SourceMaps: true})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(gen.Map.SourcesContent) != 0 {
		t.Error("Minified output should not embed sourcesContent")
	}
}

func TestTransform(t *testing.T) {
	transformed, err := parse.Transform([]byte("export const x = 1;\n"), parse.Options{
		Filename:   "/src/app.js",
		SourceMaps: true,
	})
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	defer transformed.AST.Close()

	if transformed.Code != "export const x = 1;\n" {
		t.Errorf("Got code %q", transformed.Code)
	}
	if transformed.Map == nil {
		t.Error("Expected a map")
	}
}

func TestIdentityMappings(t *testing.T) {
	tests := []struct {
		lines int
		want  string
	}{
		{0, ""},
		{1, "AAAA"},
		{3, "AAAA;AACA;AACA"},
	}
	for _, tt := range tests {
		if got := parse.IdentityMappings(tt.lines); got != tt.want {
			t.Errorf("IdentityMappings(%d) = %q, want %q", tt.lines, got, tt.want)
		}
	}
}

func TestOffsetLines(t *testing.T) {
	m := &parse.SourceMap{Version: 3, Mappings: "AAAA;AACA"}
	shifted := m.OffsetLines(1)
	if shifted.Mappings != ";AAAA;AACA" {
		t.Errorf("Got %q", shifted.Mappings)
	}
	// The original is untouched
	if m.Mappings != "AAAA;AACA" {
		t.Errorf("Original mutated: %q", m.Mappings)
	}
}
