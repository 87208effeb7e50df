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

// Package parse wraps the tree-sitter JavaScript parser behind the
// parse/transform/generate contract the record store consumes.
package parse

import (
	"fmt"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// SourceType selects the parse goal for a module.
type SourceType string

const (
	SourceTypeModule SourceType = "module"
	SourceTypeScript SourceType = "script"
)

// ParseError reports a syntax error with its location when available.
type ParseError struct {
	Filename string
	Line     int // 1-indexed
	Column   int // 0-indexed
}

func (e *ParseError) Error() string {
	if e.Filename != "" {
		return fmt.Sprintf("parse error in %s at line %d, column %d", e.Filename, e.Line, e.Column)
	}
	return fmt.Sprintf("parse error at line %d, column %d", e.Line, e.Column)
}

// AST is a parsed JavaScript module: the tree-sitter tree plus the source it
// was parsed from. The tree stays open for the lifetime of the owning record;
// call Close to release it.
type AST struct {
	tree       *ts.Tree
	source     []byte
	sourceType SourceType
}

// Source returns the source text the AST was parsed from.
func (a *AST) Source() []byte {
	return a.source
}

// Root returns the tree's root node.
func (a *AST) Root() *ts.Node {
	return a.tree.RootNode()
}

// Close releases the underlying tree. Safe to call once.
func (a *AST) Close() {
	if a.tree != nil {
		a.tree.Close()
		a.tree = nil
	}
}

// Dependency is one module reference found in a source file.
type Dependency struct {
	Specifier string // the import source text (e.g. "lit", "./foo.js")
	Dynamic   bool   // true for dynamic import()
	Line      int    // 1-indexed
}

// Options maps the standard codegen option fields.
type Options struct {
	Filename        string
	SourceMapTarget string
	SourceFileName  string
	Minified        bool
	SourceMaps      bool
}

// Generated is the output of code generation: the code to serve and its map.
type Generated struct {
	Code string
	Map  *SourceMap
}

// Transformed is the output of the full transform pipeline.
type Transformed struct {
	Code string
	Map  *SourceMap
	AST  *AST
}

// Parse parses JavaScript source. A tree that contains syntax errors yields a
// ParseError locating the first error node.
func Parse(src []byte, sourceType SourceType) (*AST, error) {
	parser := getJSParser()
	defer putJSParser(parser)

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse content")
	}

	if node := firstErrorNode(tree.RootNode()); node != nil {
		pos := node.StartPosition()
		tree.Close()
		return nil, &ParseError{
			Line:   int(pos.Row) + 1,
			Column: int(pos.Column),
		}
	}

	return &AST{tree: tree, source: src, sourceType: sourceType}, nil
}

// Dependencies extracts all module references from a parsed file: static
// imports, re-exports, dynamic imports, and string-literal requires, in
// document order.
func Dependencies(ast *AST) ([]Dependency, error) {
	qm, err := GetQueryManager()
	if err != nil {
		return nil, err
	}

	query, err := qm.Query("typescript", "imports")
	if err != nil {
		return nil, err
	}

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	src := ast.source
	var deps []Dependency
	matches := cursor.Matches(query, ast.Root(), src)
	captureNames := query.CaptureNames()

	for {
		match := matches.Next()
		if match == nil {
			break
		}

		for _, capture := range match.Captures {
			name := captureNames[capture.Index]
			text := capture.Node.Utf8Text(src)
			line := int(capture.Node.StartPosition().Row) + 1 // 1-indexed

			switch name {
			case "import.spec", "reexport.spec", "require.spec":
				deps = append(deps, Dependency{
					Specifier: text,
					Dynamic:   false,
					Line:      line,
				})
			case "dynamicImport.spec":
				deps = append(deps, Dependency{
					Specifier: text,
					Dynamic:   true,
					Line:      line,
				})
			}
		}
	}

	return deps, nil
}

// Generate emits code and a source map for a parsed file. Code generation is
// a pass-through of the parsed source; Minified elides sourcesContent from
// the emitted map.
func Generate(ast *AST, opts Options) (*Generated, error) {
	code := string(ast.source)

	gen := &Generated{Code: code}
	if opts.SourceMaps {
		gen.Map = NewIdentityMap(code, opts)
	}
	return gen, nil
}

// Transform runs the full pipeline for transform-eligible files: parse as a
// module, then generate code and map.
func Transform(src []byte, opts Options) (*Transformed, error) {
	ast, err := Parse(src, SourceTypeModule)
	if err != nil {
		if perr, ok := err.(*ParseError); ok && perr.Filename == "" {
			perr.Filename = opts.Filename
		}
		return nil, err
	}

	gen, err := Generate(ast, opts)
	if err != nil {
		ast.Close()
		return nil, err
	}

	return &Transformed{Code: gen.Code, Map: gen.Map, AST: ast}, nil
}

// firstErrorNode walks the tree iteratively looking for the first error or
// missing node.
func firstErrorNode(root *ts.Node) *ts.Node {
	if !root.HasError() {
		return nil
	}
	stack := []*ts.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node.IsError() || node.IsMissing() {
			return node
		}
		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			child := node.Child(uint(i))
			if child != nil && child.HasError() {
				stack = append(stack, child)
			}
		}
	}
	return nil
}
