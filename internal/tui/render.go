package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/intentflow/internal/executor"
	"github.com/ShayCichocki/intentflow/internal/orchestrator"
	"github.com/ShayCichocki/intentflow/internal/slots"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	intentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	sourceStyles = map[slots.Source]lipgloss.Style{
		slots.SourceEntity:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		slots.SourceContext: lipgloss.NewStyle().Foreground(lipgloss.Color("111")),
		slots.SourceUser:    lipgloss.NewStyle().Foreground(lipgloss.Color("150")),
		slots.SourceLLM:     lipgloss.NewStyle().Foreground(lipgloss.Color("183")),
	}
)

// RenderPlan draws one panel per intent followed by the task graph.
func RenderPlan(p *orchestrator.Plan) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Request"))
	b.WriteString(" ")
	b.WriteString(p.Request)
	if p.Recognition != nil {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  (%s)", p.Recognition.Source)))
	}
	b.WriteString("\n\n")

	panels := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		panels = append(panels, panelStyle.Render(renderStep(s)))
	}
	b.WriteString(lipgloss.JoinVertical(lipgloss.Left, panels...))
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("Tasks"))
	b.WriteString("\n")
	for _, n := range p.Tasks {
		deps := ""
		if len(n.Task.Dependencies) > 0 {
			deps = mutedStyle.Render(" ← " + strings.Join(n.Task.Dependencies, ", "))
		}
		fmt.Fprintf(&b, "  %-6s %-16s p%d%s\n", n.ID, n.Task.Kind, n.Task.Priority, deps)
	}

	if !p.Complete() {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render("Plan is incomplete; missing required slots:"))
		b.WriteString("\n")
		missing := p.Missing()
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, strings.Join(missing[k], ", "))
		}
	}
	if blocked := p.Blocked(); len(blocked) > 0 {
		b.WriteString(warnStyle.Render("Masked tools: " + strings.Join(blocked, ", ")))
		b.WriteString("\n")
	}
	return b.String()
}

func renderStep(s orchestrator.Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. %s %s", s.Intent.Priority, intentStyle.Render(s.Intent.Intent), s.Intent.Description)
	if len(s.Intent.Dependencies) > 0 {
		deps := make([]string, len(s.Intent.Dependencies))
		for i, d := range s.Intent.Dependencies {
			deps[i] = fmt.Sprint(d)
		}
		b.WriteString(mutedStyle.Render(" after " + strings.Join(deps, ", ")))
	}

	if s.Slots != nil {
		sum := slots.Summarize(s.Slots)
		status := okStyle.Render(fmt.Sprintf("%d%%", sum.Completeness))
		if !sum.Valid {
			status = errorStyle.Render(fmt.Sprintf("%d%%", sum.Completeness))
		}
		fmt.Fprintf(&b, "\n   slots %s", status)

		names := make([]string, 0, len(s.Slots.Slots))
		for k := range s.Slots.Slots {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			src := s.Slots.Sources[k]
			style, ok := sourceStyles[src]
			if !ok {
				style = mutedStyle
			}
			fmt.Fprintf(&b, "\n   %s = %s %s", k, style.Render(s.Slots.Slots[k]), mutedStyle.Render("["+string(src)+"]"))
		}
		for _, k := range sum.MissingRequired {
			fmt.Fprintf(&b, "\n   %s = %s", k, errorStyle.Render("missing"))
		}
	}

	if d := s.Decomposition; d != nil {
		fmt.Fprintf(&b, "\n   %s", mutedStyle.Render(fmt.Sprintf(
			"decomposed %s, complexity %.2f, %d subtasks (%s)",
			d.Granularity, d.Complexity, len(d.Subtasks), d.Source)))
	}
	return b.String()
}

// RenderResult summarizes an execution pass.
func RenderResult(res *executor.RunResult) string {
	var b strings.Builder
	status := okStyle.Render("success")
	switch {
	case res.Cancelled:
		status = warnStyle.Render("cancelled")
	case !res.Success:
		status = errorStyle.Render("failed")
	}
	fmt.Fprintf(&b, "%s %s  %d/%d completed, %d failed, success rate %s\n",
		titleStyle.Render("Run "+res.RunID), status,
		res.Stats.Completed, res.Stats.Total, res.Stats.Failed, res.Stats.SuccessRate)

	ids := make([]string, 0, len(res.Results)+len(res.Errors))
	for id := range res.Results {
		ids = append(ids, id)
	}
	for id := range res.Errors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err, ok := res.Errors[id]; ok {
			fmt.Fprintf(&b, "  %s %-6s %s\n", errorStyle.Render("✗"), id, err)
			continue
		}
		fmt.Fprintf(&b, "  %s %-6s %v\n", okStyle.Render("✓"), id, res.Results[id])
	}
	return b.String()
}
