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

// Package trace drives a build: it seeds the dependency graph with entry
// files, bridges the graph to the record store, waits for quiescence, and
// reports the produced artifacts.
package trace

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"bennypowers.dev/lattice/graph"
	"bennypowers.dev/lattice/record"
)

// FileReport describes one traced file's artifacts.
type FileReport struct {
	Name           string   `json:"name"`
	URL            string   `json:"url"`
	Hash           string   `json:"hash"`
	HashedFilename string   `json:"hashedFilename"`
	MimeType       string   `json:"mimeType,omitempty"`
	Dependencies   []string `json:"dependencies,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Summary is the result of a trace run.
type Summary struct {
	Entrypoints []string     `json:"entrypoints"`
	Files       []FileReport `json:"files"`
	Errors      []string     `json:"errors,omitempty"`
	Traced      int          `json:"traced"`
}

// Session joins a dependency graph to a record store for one build.
type Session struct {
	Store *record.Store
	Graph *graph.Graph

	mu     sync.Mutex
	errors []string
}

// NewSession wires a graph over the given store. The graph asks the store
// for each node's resolved dependencies, sorted by identifier so sibling
// discovery order is deterministic.
func NewSession(store *record.Store) *Session {
	session := &Session{Store: store}
	session.Graph = graph.New(func(id string) ([]string, error) {
		r := store.Create(id)
		resolved, err := store.ResolvedDependencies(r)
		if err != nil {
			return nil, err
		}
		identifiers := make([]string, 0, len(resolved))
		for identifier := range resolved {
			identifiers = append(identifiers, identifier)
		}
		sort.Strings(identifiers)
		deps := make([]string, 0, len(resolved))
		for _, identifier := range identifiers {
			deps = append(deps, resolved[identifier])
		}
		return deps, nil
	})
	session.Graph.OnError(func(err error, id string) {
		session.mu.Lock()
		session.errors = append(session.errors, fmt.Sprintf("%s: %v", id, err))
		session.mu.Unlock()
	})
	session.Graph.OnPruned(func(id string) {
		store.Remove(id)
	})
	return session
}

// Run traces the given entry files to quiescence, then forces every
// surviving record ready and persists its annotations. Per-file errors are
// reported in the summary; they do not abort the run.
func Run(store *record.Store, entries []string) (*Summary, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no entry files to trace")
	}

	session := NewSession(store)
	completed := make(chan struct{}, 1)
	session.Graph.OnComplete(func() {
		select {
		case completed <- struct{}{}:
		default:
		}
	})

	for _, entry := range entries {
		session.Graph.SetPermanent(entry)
	}
	for _, entry := range entries {
		session.Graph.Trace(entry)
	}
	// Separately-enqueued entries may quiesce in several batches; wait for
	// the drain that leaves nothing pending.
	for {
		<-completed
		if session.Graph.PendingCount() == 0 {
			break
		}
	}

	return session.summarize(entries)
}

// summarize forces Ready on every graph node concurrently and collects the
// per-file reports.
func (session *Session) summarize(entries []string) (*Summary, error) {
	nodes := session.Graph.Nodes()
	reports := make([]FileReport, len(nodes))

	var g errgroup.Group
	for i, id := range nodes {
		g.Go(func() error {
			reports[i] = session.report(id)
			return nil
		})
	}
	_ = g.Wait()

	session.mu.Lock()
	errors := append([]string(nil), session.errors...)
	session.mu.Unlock()

	return &Summary{
		Entrypoints: entries,
		Files:       reports,
		Errors:      errors,
		Traced:      len(nodes),
	}, nil
}

// report builds one file's report, forcing its jobs and writing back its
// cache annotations.
func (session *Session) report(id string) FileReport {
	reportFor := FileReport{Name: id, Dependencies: session.Graph.Dependencies(id)}

	r := session.Store.Create(id)
	if err := session.Store.Ready(r); err != nil {
		reportFor.Error = err.Error()
		return reportFor
	}
	_ = session.Store.WriteCache(r)

	// Ready resolved these; errors would have surfaced there.
	reportFor.URL, _ = session.Store.URL(r)
	reportFor.Hash, _ = session.Store.Hash(r)
	reportFor.HashedFilename, _ = session.Store.HashedFilename(r)
	reportFor.MimeType, _ = session.Store.MimeType(r)
	return reportFor
}
