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

// Package graph maintains the directed dependency graph: asynchronous trace
// jobs, cancellation on invalidation, permanent-root-anchored pruning, and
// event emission.
package graph

import (
	"sort"
	"sync"
)

// Node is one traced file. For every edge a -> b, b is in a.Dependencies
// and a is in b.Dependents. The graph admits cycles and self-loops; callers
// must not assume acyclicity.
type Node struct {
	ID           string
	Dependencies map[string]struct{}
	Dependents   map[string]struct{}
}

func newNode(id string) *Node {
	return &Node{
		ID:           id,
		Dependencies: make(map[string]struct{}),
		Dependents:   make(map[string]struct{}),
	}
}

// traceJob is one pending trace. Invalidation flips valid; both the
// pre-dispatch and post-dispatch checks observe the flag, and once either
// sees it false the job never mutates the graph.
type traceJob struct {
	id    string
	valid bool
}

// GetDependencies produces the dependency ids of a node. The tracer driver
// bridges this to the record store.
type GetDependencies func(id string) ([]string, error)

// Handlers receive graph events. All fields are optional. Handlers run
// synchronously, in emission order, outside the graph lock.
type Handlers struct {
	Start    []func()
	Complete []func()
	Added    []func(id string)
	Pruned   []func(id string)
	Error    []func(err error, id string)
	Tracing  []func(id string)
	Traced   []func(id string)
}

// Graph is the dependency graph. All structural mutation happens under one
// lock; events collected during a mutation fire after it releases.
type Graph struct {
	mu        sync.Mutex
	getDeps   GetDependencies
	nodes     map[string]*Node
	permanent map[string]struct{}
	pending   []*traceJob
	started   bool
	handlers  Handlers
}

// New creates a Graph that discovers dependencies through getDeps.
func New(getDeps GetDependencies) *Graph {
	return &Graph{
		getDeps:   getDeps,
		nodes:     make(map[string]*Node),
		permanent: make(map[string]struct{}),
	}
}

// OnStart registers a handler for the first trace dispatch.
func (g *Graph) OnStart(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers.Start = append(g.handlers.Start, fn)
}

// OnComplete registers a handler for pending-set quiescence.
func (g *Graph) OnComplete(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers.Complete = append(g.handlers.Complete, fn)
}

// OnAdded registers a handler for node additions.
func (g *Graph) OnAdded(fn func(id string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers.Added = append(g.handlers.Added, fn)
}

// OnPruned registers a handler for node removals.
func (g *Graph) OnPruned(fn func(id string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers.Pruned = append(g.handlers.Pruned, fn)
}

// OnError registers a handler for trace failures.
func (g *Graph) OnError(fn func(err error, id string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers.Error = append(g.handlers.Error, fn)
}

// OnTracing registers a handler fired when a trace job dispatches.
func (g *Graph) OnTracing(fn func(id string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers.Tracing = append(g.handlers.Tracing, fn)
}

// OnTraced registers a handler fired when a trace job succeeds.
func (g *Graph) OnTraced(fn func(id string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers.Traced = append(g.handlers.Traced, fn)
}

// event is one deferred emission, fired after the lock releases.
type event struct {
	kind string
	id   string
	err  error
}

func (g *Graph) fire(events []event) {
	for _, e := range events {
		switch e.kind {
		case "start":
			for _, fn := range g.handlers.Start {
				fn()
			}
		case "complete":
			for _, fn := range g.handlers.Complete {
				fn()
			}
		case "added":
			for _, fn := range g.handlers.Added {
				fn(e.id)
			}
		case "pruned":
			for _, fn := range g.handlers.Pruned {
				fn(e.id)
			}
		case "error":
			for _, fn := range g.handlers.Error {
				fn(e.err, e.id)
			}
		case "tracing":
			for _, fn := range g.handlers.Tracing {
				fn(e.id)
			}
		case "traced":
			for _, fn := range g.handlers.Traced {
				fn(e.id)
			}
		}
	}
}

// Trace enqueues an asynchronous trace job for id.
func (g *Graph) Trace(id string) {
	g.mu.Lock()
	job := &traceJob{id: id, valid: true}
	g.pending = append(g.pending, job)

	var events []event
	if !g.started {
		g.started = true
		events = append(events, event{kind: "start"})
	}
	g.mu.Unlock()
	g.fire(events)

	go g.runTrace(job)
}

func (g *Graph) runTrace(job *traceJob) {
	// Pre-dispatch check: an invalidated job is dropped without calling
	// the tracer.
	g.mu.Lock()
	if !job.valid {
		g.mu.Unlock()
		g.finishJob(job)
		return
	}
	g.mu.Unlock()

	g.fire([]event{{kind: "tracing", id: job.id}})

	deps, err := g.getDeps(job.id)

	g.mu.Lock()
	// Post-dispatch check: the job may have been invalidated while the
	// dependency resolution was in flight.
	if !job.valid {
		g.mu.Unlock()
		g.finishJob(job)
		return
	}

	var events []event
	if err != nil {
		events = append(events, event{kind: "error", id: job.id, err: err})
	} else {
		events = g.applyTrace(job, deps)
	}
	g.mu.Unlock()
	// The job's own events fire before it leaves the pending set, so a
	// concurrently draining job cannot report completion ahead of them.
	g.fire(events)
	g.finishJob(job)
}

// finishJob retires a job from the pending set and reports quiescence.
func (g *Graph) finishJob(job *traceJob) {
	g.mu.Lock()
	events := g.dropJob(job)
	g.mu.Unlock()
	g.fire(events)
}

// applyTrace records the trace result: ensures nodes and edges exist,
// enqueues traces for undiscovered dependencies. Caller holds the lock.
func (g *Graph) applyTrace(job *traceJob, deps []string) []event {
	var events []event

	ensure := func(id string) *Node {
		node, ok := g.nodes[id]
		if !ok {
			node = newNode(id)
			g.nodes[id] = node
			events = append(events, event{kind: "added", id: id})
		}
		return node
	}

	node := ensure(job.id)
	for _, dep := range deps {
		if _, known := g.nodes[dep]; !known && !g.hasValidPendingLocked(dep) {
			next := &traceJob{id: dep, valid: true}
			g.pending = append(g.pending, next)
			go g.runTrace(next)
		}
		depNode := ensure(dep)
		node.Dependencies[dep] = struct{}{}
		depNode.Dependents[job.id] = struct{}{}
	}

	events = append(events, event{kind: "traced", id: job.id})
	return events
}

// dropJob removes a job from the pending set and reports completion when
// the set drains. Caller holds the lock.
func (g *Graph) dropJob(job *traceJob) []event {
	for i, pending := range g.pending {
		if pending == job {
			g.pending = append(g.pending[:i], g.pending[i+1:]...)
			break
		}
	}
	if len(g.pending) == 0 {
		return []event{{kind: "complete"}}
	}
	return nil
}

func (g *Graph) hasValidPendingLocked(id string) bool {
	for _, job := range g.pending {
		if job.id == id && job.valid {
			return true
		}
	}
	return false
}

// SetPermanent marks id as a permanent root anchoring liveness during
// prune. Idempotent.
func (g *Graph) SetPermanent(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.permanent[id] = struct{}{}
}

// IsDefined reports whether id is a node.
func (g *Graph) IsDefined(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns a snapshot of the current node ids, sorted.
func (g *Graph) Nodes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dependencies returns a sorted snapshot of a node's dependency ids.
func (g *Graph) Dependencies(id string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	node, ok := g.nodes[id]
	if !ok {
		return nil
	}
	deps := make([]string, 0, len(node.Dependencies))
	for dep := range node.Dependencies {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps
}

// Dependents returns a sorted snapshot of a node's dependent ids.
func (g *Graph) Dependents(id string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	node, ok := g.nodes[id]
	if !ok {
		return nil
	}
	deps := make([]string, 0, len(node.Dependents))
	for dep := range node.Dependents {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps
}

// Prune removes id and every successor left unreachable from the permanent
// roots, invalidating any matching pending trace jobs. Pruning an id that
// only has a pending job invalidates the job and reports the id pruned.
func (g *Graph) Prune(id string) {
	g.mu.Lock()

	if _, ok := g.nodes[id]; !ok {
		var events []event
		for _, job := range g.pending {
			if job.id == id && job.valid {
				job.valid = false
				events = append(events, event{kind: "pruned", id: id})
			}
		}
		g.mu.Unlock()
		g.fire(events)
		return
	}

	// Candidates: the forward closure of id. Survivors: nodes reachable
	// from a permanent root once id is gone. Both traversals are
	// iterative; the graph admits cycles.
	closure := g.reachableLocked([]string{id}, nil)
	var roots []string
	for root := range g.permanent {
		if root != id {
			roots = append(roots, root)
		}
	}
	surviving := g.reachableLocked(roots, map[string]struct{}{id: {}})

	removed := []string{id}
	for candidate := range closure {
		if candidate == id {
			continue
		}
		if _, keep := surviving[candidate]; !keep {
			removed = append(removed, candidate)
		}
	}
	sort.Strings(removed[1:])

	removedSet := make(map[string]struct{}, len(removed))
	for _, r := range removed {
		removedSet[r] = struct{}{}
	}

	var events []event
	for _, victim := range removed {
		node := g.nodes[victim]
		delete(g.nodes, victim)
		for dep := range node.Dependencies {
			if survivor, ok := g.nodes[dep]; ok {
				delete(survivor.Dependents, victim)
			}
		}
		for dependent := range node.Dependents {
			if survivor, ok := g.nodes[dependent]; ok {
				delete(survivor.Dependencies, victim)
			}
		}
		for _, job := range g.pending {
			if job.id == victim {
				job.valid = false
			}
		}
		events = append(events, event{kind: "pruned", id: victim})
	}

	g.mu.Unlock()
	g.fire(events)
}

// reachableLocked computes forward reachability from the given start nodes,
// treating ids in skip as absent. Caller holds the lock.
func (g *Graph) reachableLocked(starts []string, skip map[string]struct{}) map[string]struct{} {
	reached := make(map[string]struct{})
	stack := make([]string, 0, len(starts))
	for _, start := range starts {
		if _, omit := skip[start]; omit {
			continue
		}
		if _, ok := g.nodes[start]; ok {
			stack = append(stack, start)
		}
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := reached[id]; seen {
			continue
		}
		reached[id] = struct{}{}
		for dep := range g.nodes[id].Dependencies {
			if _, omit := skip[dep]; omit {
				continue
			}
			if _, seen := reached[dep]; seen {
				continue
			}
			if _, ok := g.nodes[dep]; ok {
				stack = append(stack, dep)
			}
		}
	}
	return reached
}

// PendingCount reports the number of pending trace jobs, for tests.
func (g *Graph) PendingCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}
