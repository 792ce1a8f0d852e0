package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/intentflow/internal/decompose"
	"github.com/ShayCichocki/intentflow/internal/graph"
	"github.com/ShayCichocki/intentflow/internal/intent"
	"github.com/ShayCichocki/intentflow/internal/slots"
	"github.com/ShayCichocki/intentflow/pkg/models"
)

// Step is one recognized intent and what planning made of it.
type Step struct {
	Intent models.IntentNode
	Slots  *slots.Result
	// Decomposition is nil when the intent was not decomposed.
	Decomposition *decompose.Result
	// TaskIDs are the executor nodes created for the intent, in order.
	TaskIDs []string
}

// Plan is the executable form of one request.
type Plan struct {
	Request     string
	Context     models.Context
	Recognition *intent.Recognition
	Steps       []Step
	// Tasks are the nodes handed to the executor. Execute works on copies.
	Tasks []*models.TaskNode
}

// Complete reports whether every step has its required slots.
func (p *Plan) Complete() bool {
	return len(p.Missing()) == 0
}

// Order returns the task IDs with every dependency before its dependents.
func (p *Plan) Order() ([]string, error) {
	g := graph.New()
	nodes := make([]*models.TaskNode, len(p.Tasks))
	for i, n := range p.Tasks {
		c := *n
		nodes[i] = &c
	}
	if err := g.Add(nodes...); err != nil {
		return nil, fmt.Errorf("order tasks: %w", err)
	}
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("order tasks: %w", err)
	}
	return order, nil
}

// Missing maps step descriptions to their missing required slots.
func (p *Plan) Missing() map[string][]string {
	out := make(map[string][]string)
	for _, s := range p.Steps {
		if s.Slots != nil && len(s.Slots.MissingRequired) > 0 {
			out[stepLabel(s)] = s.Slots.MissingRequired
		}
	}
	return out
}

// Blocked lists the intents whose tool is currently masked.
func (p *Plan) Blocked() []string {
	var out []string
	for _, s := range p.Steps {
		if s.Slots != nil && !s.Slots.ToolAvailable {
			out = append(out, s.Intent.Intent)
		}
	}
	return out
}

// Summary renders the intents with their dependencies and slot status.
func (p *Plan) Summary() string {
	nodes := make([]models.IntentNode, len(p.Steps))
	for i, s := range p.Steps {
		nodes[i] = s.Intent
	}
	var b strings.Builder
	b.WriteString(intent.GenerateSummary(nodes))
	for _, s := range p.Steps {
		if s.Slots == nil {
			continue
		}
		fmt.Fprintf(&b, "\n  - %s", slots.Summarize(s.Slots))
	}
	return b.String()
}

// Task returns the plan node with id, or nil.
func (p *Plan) Task(id string) *models.TaskNode {
	for _, n := range p.Tasks {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func stepLabel(s Step) string {
	return fmt.Sprintf("%d. %s", s.Intent.Priority, s.Intent.Intent)
}

// taskID names the node of an intent, or of one of its subtasks.
func taskID(priority, order int) string {
	if order == 0 {
		return fmt.Sprintf("t%d", priority)
	}
	return fmt.Sprintf("t%d.%d", priority, order)
}

// buildTasks converts steps into executor nodes. Steps must be in
// execution order. Earlier steps get higher scheduling priority; a step's
// entry nodes depend on the exit nodes of the steps it depends on.
func buildTasks(steps []Step, maxRetries int) []*models.TaskNode {
	exits := make(map[int][]string, len(steps))
	var nodes []*models.TaskNode

	for pos := range steps {
		s := &steps[pos]
		prio := len(steps) - pos

		var external []string
		for _, dep := range s.Intent.Dependencies {
			external = append(external, exits[dep]...)
		}

		payload := models.TaskPayload{
			Kind:        models.KindOf(s.Intent.Intent),
			Description: s.Intent.Description,
			Priority:    prio,
		}
		if s.Slots != nil {
			payload.Params = s.Slots.Params()
		} else {
			payload.Params = models.ParamsFromSlots(s.Intent.Intent, s.Intent.Entities)
		}

		if s.Decomposition == nil || len(s.Decomposition.Subtasks) == 0 {
			id := taskID(s.Intent.Priority, 0)
			payload.Dependencies = dedupe(external)
			nodes = append(nodes, &models.TaskNode{ID: id, Task: payload, MaxRetries: maxRetries})
			s.TaskIDs = []string{id}
			exits[s.Intent.Priority] = []string{id}
			continue
		}

		subtasks := s.Decomposition.Subtasks
		ids := make([]string, len(subtasks))
		dependedOn := make(map[int]bool)
		s.TaskIDs = nil
		for i, st := range subtasks {
			ids[i] = taskID(s.Intent.Priority, st.Order)
			sp := subtaskPayload(st, payload)
			sp.Priority = prio

			var deps []string
			if i > 0 && !st.Parallelizable {
				deps = append(deps, ids[i-1])
				dependedOn[i-1] = true
			} else {
				deps = append(deps, external...)
			}
			deps = append(deps, st.Dependencies...)
			sp.Dependencies = dedupe(deps)

			nodes = append(nodes, &models.TaskNode{ID: ids[i], Task: sp, MaxRetries: maxRetries})
			s.TaskIDs = append(s.TaskIDs, ids[i])
		}
		var out []string
		for i, id := range ids {
			if !dependedOn[i] {
				out = append(out, id)
			}
		}
		exits[s.Intent.Priority] = out
	}
	return nodes
}

// subtaskPayload derives the payload of a subtask from its parent. Params
// are re-typed when the subtask names a different kind than the parent.
func subtaskPayload(st decompose.Subtask, parent models.TaskPayload) models.TaskPayload {
	p := models.TaskPayload{
		Kind:        models.KindOf(st.Type),
		Description: st.Description,
		Params:      st.Params,
	}
	if p.Params == nil {
		p.Params = parent.Params
	}
	if p.Params == nil || !paramsOfType(p.Params, st.Type) {
		p.Params = models.ParamsFromSlots(st.Type, stringValues(p.Params))
	}
	return p
}

func paramsOfType(params models.Params, typ string) bool {
	if op, ok := params.(models.OpaqueParams); ok {
		return op.Type == typ
	}
	return string(params.Kind()) == typ
}

func stringValues(p models.Params) map[string]string {
	if p == nil {
		return nil
	}
	out := make(map[string]string, p.Len())
	for k, v := range p.Map() {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// sortedKeys returns the keys of m in order.
func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
