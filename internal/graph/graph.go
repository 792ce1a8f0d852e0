// Package graph provides a dependency graph for task scheduling.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ShayCichocki/intentflow/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrDuplicateID indicates a node was added with an ID already in the graph.
var ErrDuplicateID = errors.New("duplicate task id")

// DependencyGraph represents a directed graph of task dependencies.
// Nodes are task nodes, and edges represent "blocked by" relationships.
// Dependencies on IDs that are not in the graph are kept but never satisfied.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps task ID to the node itself.
	nodes map[string]*models.TaskNode
	// order records insertion order, used to break priority ties.
	order []string
	// completed tracks which nodes have been marked complete.
	completed map[string]bool
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:     make(map[string]*models.TaskNode),
		completed: make(map[string]bool),
		debugLog:  func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Add registers nodes and rebuilds the reverse dependents index.
// The whole batch is rejected if any ID is empty or already present.
func (g *DependencyGraph) Add(nodes ...*models.TaskNode) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return fmt.Errorf("add node: empty id")
		}
		if _, exists := g.nodes[n.ID]; exists || seen[n.ID] {
			return fmt.Errorf("add node %s: %w", n.ID, ErrDuplicateID)
		}
		seen[n.ID] = true
	}

	for _, n := range nodes {
		g.debugLog("[graph.Add] adding node: id=%s kind=%s depends_on=%v priority=%d", n.ID, n.Task.Kind, n.Task.Dependencies, n.Task.Priority)
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}

	g.rebuildDependentsLocked()
	return nil
}

// rebuildDependentsLocked recomputes every node's Dependents list.
// Caller must hold g.mu.
func (g *DependencyGraph) rebuildDependentsLocked() {
	for _, id := range g.order {
		g.nodes[id].Dependents = nil
	}
	for _, id := range g.order {
		for _, depID := range g.nodes[id].Task.Dependencies {
			if dep, ok := g.nodes[depID]; ok {
				dep.Dependents = append(dep.Dependents, id)
			}
		}
	}
}

// HasCycle returns true if the graph contains a circular dependency.
// Uses depth-first search with coloring to detect back edges.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked is the internal implementation that assumes the lock is held.
func (g *DependencyGraph) hasCycleLocked() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1

		for _, depID := range g.nodes[id].Task.Dependencies {
			if _, exists := g.nodes[depID]; !exists {
				continue
			}
			switch colors[depID] {
			case 1:
				// Found a back edge - cycle detected.
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}

		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 && visit(id) {
			g.debugLog("[graph.HasCycle] cycle reachable from %s", id)
			return true
		}
	}
	return false
}

// TopologicalSort returns node IDs in an order where all dependencies
// come before the nodes that depend on them.
// Returns an error if the graph contains a cycle.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	visited := make(map[string]bool, len(g.nodes))
	result := make([]string, 0, len(g.nodes))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, depID := range g.nodes[id].Task.Dependencies {
			if _, exists := g.nodes[depID]; exists {
				visit(depID)
			}
		}
		result = append(result, id)
	}

	for _, id := range g.order {
		visit(id)
	}
	return result, nil
}

// Ready returns pending or ready nodes whose dependencies are all complete,
// sorted by descending priority. Ties keep insertion order.
func (g *DependencyGraph) Ready() []*models.TaskNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []*models.TaskNode
	for _, id := range g.order {
		n := g.nodes[id]
		if n.Status != models.TaskStatusPending && n.Status != models.TaskStatusReady {
			continue
		}

		allDepsComplete := true
		for _, depID := range n.Task.Dependencies {
			if !g.completed[depID] {
				allDepsComplete = false
				break
			}
		}
		if allDepsComplete {
			ready = append(ready, n)
		}
	}

	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].Task.Priority > ready[j].Task.Priority
	})

	g.debugLog("[graph.Ready] %d of %d nodes ready", len(ready), len(g.nodes))
	return ready
}

// MarkComplete marks a node as completed in the graph.
// This affects subsequent calls to Ready.
func (g *DependencyGraph) MarkComplete(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.debugLog("[graph.MarkComplete] marking node %s as complete", id)
	g.completed[id] = true
}

// Get returns the node for a given ID, or nil if not found.
func (g *DependencyGraph) Get(id string) *models.TaskNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Nodes returns all nodes in insertion order.
func (g *DependencyGraph) Nodes() []*models.TaskNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*models.TaskNode, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Size returns the number of nodes in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Unreachable returns the nodes that depend, directly or through other
// nodes, on an ID that is not in the graph. Ready never returns them.
func (g *DependencyGraph) Unreachable() map[string]bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	memo := make(map[string]bool, len(g.nodes))
	var visit func(id string) bool
	visit = func(id string) bool {
		if v, seen := memo[id]; seen {
			return v
		}
		memo[id] = false
		for _, depID := range g.nodes[id].Task.Dependencies {
			if _, exists := g.nodes[depID]; !exists || visit(depID) {
				memo[id] = true
				break
			}
		}
		return memo[id]
	}

	out := make(map[string]bool)
	for _, id := range g.order {
		if visit(id) {
			out[id] = true
		}
	}
	if len(out) > 0 {
		g.debugLog("[graph.Unreachable] %d nodes depend on unregistered ids", len(out))
	}
	return out
}

// Reset removes every node and completion mark.
func (g *DependencyGraph) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = make(map[string]*models.TaskNode)
	g.order = nil
	g.completed = make(map[string]bool)
}
