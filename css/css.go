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

// Package css post-processes stylesheets: it collects @import and url()
// dependencies, strips @import rules from the output, and emits a source map.
package css

import (
	"fmt"
	"sort"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"bennypowers.dev/lattice/parse"
)

// Options configures a processing run.
type Options struct {
	From       string // source filename
	SourceMaps bool
}

// Result is the output of Process.
type Result struct {
	CSS          string
	Map          *parse.SourceMap
	Dependencies []string
}

// Run is the per-file processing state plugins operate on.
type Run struct {
	Source  []byte
	Options Options

	root         *ts.Node
	dependencies []string
	removals     []span
}

type span struct {
	start, end uint
}

// Plugin mutates a Run. Built-in plugins collect dependencies and strip
// @import rules; configuration may prepend further plugins.
type Plugin func(*Run) error

// AddDependency records a dependency specifier in document order.
func (run *Run) AddDependency(specifier string) {
	run.dependencies = append(run.dependencies, specifier)
}

// RemoveRange marks a byte range of the source for removal from the output.
func (run *Run) RemoveRange(start, end uint) {
	run.removals = append(run.removals, span{start, end})
}

// Root returns the parsed stylesheet's root node.
func (run *Run) Root() *ts.Node {
	return run.root
}

// Process parses src, runs the given plugins followed by the built-in
// dependency collector and @import stripper, and assembles the result.
func Process(src []byte, plugins []Plugin, opts Options) (*Result, error) {
	parser := parse.GetCSSParser()
	defer parse.PutCSSParser(parser)

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse stylesheet")
	}
	defer tree.Close()

	run := &Run{
		Source:  src,
		Options: opts,
		root:    tree.RootNode(),
	}

	all := append(append([]Plugin(nil), plugins...), CollectDependencies, StripImports)
	for _, plugin := range all {
		if err := plugin(run); err != nil {
			return nil, err
		}
	}

	output := run.apply()
	result := &Result{
		CSS:          output,
		Dependencies: run.dependencies,
	}
	if opts.SourceMaps {
		result.Map = parse.NewIdentityMap(output, parse.Options{
			SourceMapTarget: opts.From,
			SourceFileName:  opts.From,
			SourceMaps:      true,
		})
	}
	return result, nil
}

// CollectDependencies records @import and url() references.
func CollectDependencies(run *Run) error {
	return run.eachCapture(func(name, text string, node *ts.Node) {
		switch name {
		case "import.spec":
			if spec := unquote(text); spec != "" && !isRemote(spec) {
				run.AddDependency(spec)
			}
		case "url.ref":
			// An unquoted url() argument may parse as several plain_value
			// nodes (a data URI splits at ';' and ','), so the argument is
			// judged and recorded as a whole, once, at its first node.
			args := node.Parent()
			if args == nil {
				return
			}
			if first := args.NamedChild(0); first != nil && first.StartByte() != node.StartByte() {
				return
			}
			whole := strings.TrimSuffix(strings.TrimPrefix(args.Utf8Text(run.Source), "("), ")")
			if spec := unquote(whole); spec != "" && !isRemote(spec) {
				run.AddDependency(spec)
			}
		}
	})
}

// StripImports removes @import rules from the output; their targets are
// served as modules in their own right.
func StripImports(run *Run) error {
	return run.eachCapture(func(name, text string, node *ts.Node) {
		if name == "import.rule" {
			end := node.EndByte()
			// Swallow the trailing newline with the rule.
			if int(end) < len(run.Source) && run.Source[end] == '\n' {
				end++
			}
			run.RemoveRange(node.StartByte(), end)
		}
	})
}

// eachCapture runs the dependencies query and visits every capture.
func (run *Run) eachCapture(visit func(name, text string, node *ts.Node)) error {
	qm, err := parse.GetQueryManager()
	if err != nil {
		return err
	}
	query, err := qm.Query("css", "dependencies")
	if err != nil {
		return err
	}

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	matches := cursor.Matches(query, run.root, run.Source)
	captureNames := query.CaptureNames()

	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, capture := range match.Captures {
			visit(captureNames[capture.Index], capture.Node.Utf8Text(run.Source), &capture.Node)
		}
	}
	return nil
}

// apply produces the output text with all removal ranges elided.
func (run *Run) apply() string {
	if len(run.removals) == 0 {
		return string(run.Source)
	}

	removals := append([]span(nil), run.removals...)
	sort.Slice(removals, func(i, j int) bool { return removals[i].start < removals[j].start })

	var b strings.Builder
	cursor := uint(0)
	for _, r := range removals {
		if r.start < cursor {
			continue
		}
		b.Write(run.Source[cursor:r.start])
		cursor = r.end
	}
	b.Write(run.Source[cursor:])
	return b.String()
}

// unquote strips the quotes from a string_value capture. plain_value url()
// arguments arrive unquoted already.
func unquote(text string) string {
	text = strings.TrimSpace(text)
	if len(text) >= 2 {
		if (text[0] == '"' && text[len(text)-1] == '"') ||
			(text[0] == '\'' && text[len(text)-1] == '\'') {
			return text[1 : len(text)-1]
		}
	}
	return text
}

// isRemote reports whether a reference points outside the local build
// (scheme-qualified or protocol-relative URLs, data URIs, fragments).
func isRemote(specifier string) bool {
	return strings.Contains(specifier, "://") ||
		strings.HasPrefix(specifier, "//") ||
		strings.HasPrefix(specifier, "data:") ||
		strings.HasPrefix(specifier, "#")
}
