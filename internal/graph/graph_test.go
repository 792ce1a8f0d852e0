package graph

import (
	"errors"
	"testing"

	"github.com/ShayCichocki/intentflow/pkg/models"
)

func node(id string, priority int, deps ...string) *models.TaskNode {
	return &models.TaskNode{
		ID:     id,
		Status: models.TaskStatusPending,
		Task:   models.TaskPayload{Kind: models.KindTest, Priority: priority, Dependencies: deps},
	}
}

func TestNew(t *testing.T) {
	g := New()
	if g == nil {
		t.Fatal("expected non-nil graph")
	}
	if g.Size() != 0 {
		t.Errorf("expected empty graph, got size %d", g.Size())
	}
}

func TestAddBuildsDependents(t *testing.T) {
	g := New()
	if err := g.Add(node("a", 0), node("b", 0, "a"), node("c", 0, "a", "b")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if deps := g.Get("c").Task.Dependencies; len(deps) != 2 {
		t.Errorf("expected 2 dependencies for c, got %d", len(deps))
	}
	dependents := g.Get("a").Dependents
	if len(dependents) != 2 || dependents[0] != "b" || dependents[1] != "c" {
		t.Errorf("dependents of a = %v, want [b c]", dependents)
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	g := New()
	if err := g.Add(node("a", 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := g.Add(node("b", 0), node("a", 0))
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if g.Size() != 1 {
		t.Errorf("batch should be rejected whole, size = %d", g.Size())
	}
}

func TestHasCycle(t *testing.T) {
	tests := []struct {
		name  string
		nodes []*models.TaskNode
		want  bool
	}{
		{"empty", nil, false},
		{"chain", []*models.TaskNode{node("a", 0), node("b", 0, "a"), node("c", 0, "b")}, false},
		{"diamond", []*models.TaskNode{node("a", 0), node("b", 0, "a"), node("c", 0, "a"), node("d", 0, "b", "c")}, false},
		{"two cycle", []*models.TaskNode{node("a", 0, "b"), node("b", 0, "a")}, true},
		{"self loop", []*models.TaskNode{node("a", 0, "a")}, true},
		{"three cycle", []*models.TaskNode{node("a", 0, "c"), node("b", 0, "a"), node("c", 0, "b")}, true},
		{"missing dependency ignored", []*models.TaskNode{node("a", 0, "ghost")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			if err := g.Add(tt.nodes...); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := g.HasCycle(); got != tt.want {
				t.Errorf("HasCycle() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTopologicalSort(t *testing.T) {
	g := New()
	if err := g.Add(node("c", 0, "b"), node("b", 0, "a"), node("a", 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos := make(map[string]int)
	for i, id := range order {
		pos[id] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Errorf("order %v violates dependencies", order)
	}
}

func TestTopologicalSortCycle(t *testing.T) {
	g := New()
	_ = g.Add(node("a", 0, "b"), node("b", 0, "a"))
	if _, err := g.TopologicalSort(); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("expected ErrCycleDetected, got %v", err)
	}
}

func TestReadyOrdersByPriority(t *testing.T) {
	g := New()
	_ = g.Add(node("low", 1), node("high", 5), node("mid", 3), node("tie", 3))

	ready := g.Ready()
	want := []string{"high", "mid", "tie", "low"}
	if len(ready) != len(want) {
		t.Fatalf("expected %d ready, got %d", len(want), len(ready))
	}
	for i, id := range want {
		if ready[i].ID != id {
			t.Errorf("ready[%d] = %s, want %s", i, ready[i].ID, id)
		}
	}
}

func TestReadyRespectsCompletion(t *testing.T) {
	g := New()
	_ = g.Add(node("a", 0), node("b", 0, "a"), node("orphan", 0, "ghost"))

	ready := g.Ready()
	if len(ready) != 1 || ready[0].ID != "a" {
		t.Fatalf("expected only a ready, got %v", ids(ready))
	}

	g.Get("a").Status = models.TaskStatusCompleted
	g.MarkComplete("a")

	ready = g.Ready()
	if len(ready) != 1 || ready[0].ID != "b" {
		t.Errorf("expected only b ready, got %v", ids(ready))
	}
}

func TestUnreachable(t *testing.T) {
	g := New()
	_ = g.Add(node("a", 0), node("orphan", 0, "ghost"), node("child", 0, "orphan"), node("b", 0, "a"))

	got := g.Unreachable()
	if len(got) != 2 || !got["orphan"] || !got["child"] {
		t.Errorf("Unreachable() = %v, want orphan and child", got)
	}
}

func TestReset(t *testing.T) {
	g := New()
	_ = g.Add(node("a", 0))
	g.MarkComplete("a")
	g.Reset()

	if g.Size() != 0 || len(g.Nodes()) != 0 {
		t.Error("Reset should clear nodes")
	}
	_ = g.Add(node("b", 0, "a"), node("a", 0))
	if ready := g.Ready(); len(ready) != 1 || ready[0].ID != "a" {
		t.Errorf("Reset should clear completion, ready = %v", ids(ready))
	}
}

func ids(nodes []*models.TaskNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}
