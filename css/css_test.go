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
package css_test

import (
	"strings"
	"testing"

	"bennypowers.dev/lattice/css"
)

func TestProcessCollectsImports(t *testing.T) {
	src := `@import "./reset.css";
@import url("./theme.css");
body { color: red }
`
	result, err := css.Process([]byte(src), nil, css.Options{From: "/src/app.css"})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	want := []string{"./reset.css", "./theme.css"}
	if strings.Join(result.Dependencies, ",") != strings.Join(want, ",") {
		t.Errorf("Got dependencies %v, want %v", result.Dependencies, want)
	}
}

func TestProcessStripsImports(t *testing.T) {
	src := `@import "./reset.css";
body { color: red }
`
	result, err := css.Process([]byte(src), nil, css.Options{From: "/src/app.css"})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if strings.Contains(result.CSS, "@import") {
		t.Errorf("Output still contains @import: %q", result.CSS)
	}
	if !strings.Contains(result.CSS, "body { color: red }") {
		t.Errorf("Output lost rule body: %q", result.CSS)
	}
}

func TestProcessCollectsURLReferences(t *testing.T) {
	src := `.hero { background: url("./hero.png") }
.logo { background: url(logo.svg) }
`
	result, err := css.Process([]byte(src), nil, css.Options{From: "/src/app.css"})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	want := []string{"./hero.png", "logo.svg"}
	if strings.Join(result.Dependencies, ",") != strings.Join(want, ",") {
		t.Errorf("Got dependencies %v, want %v", result.Dependencies, want)
	}
	// url() references stay in the output
	if !strings.Contains(result.CSS, "url(\"./hero.png\")") {
		t.Errorf("url() reference removed: %q", result.CSS)
	}
}

func TestProcessIgnoresRemoteReferences(t *testing.T) {
	src := `@import "https://fonts.example.com/font.css";
.a { background: url(data:image/png;base64,AAAA) }
.b { background: url(//cdn.example.com/x.png) }
`
	result, err := css.Process([]byte(src), nil, css.Options{From: "/src/app.css"})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(result.Dependencies) != 0 {
		t.Errorf("Expected no local dependencies, got %v", result.Dependencies)
	}
}

func TestProcessSourceMap(t *testing.T) {
	result, err := css.Process([]byte("body { color: red }\n"), nil, css.Options{
		From:       "/src/app.css",
		SourceMaps: true,
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.Map == nil {
		t.Fatal("Expected a source map")
	}
	if result.Map.Version != 3 {
		t.Errorf("Expected version 3, got %d", result.Map.Version)
	}
}

func TestProcessCallerPlugin(t *testing.T) {
	var sawSource bool
	plugin := func(run *css.Run) error {
		sawSource = strings.Contains(string(run.Source), "color: red")
		run.AddDependency("./injected.css")
		return nil
	}

	result, err := css.Process([]byte("body { color: red }"), []css.Plugin{plugin}, css.Options{})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !sawSource {
		t.Error("Plugin did not observe the source")
	}
	if len(result.Dependencies) == 0 || result.Dependencies[0] != "./injected.css" {
		t.Errorf("Caller plugin dependency missing: %v", result.Dependencies)
	}
}
