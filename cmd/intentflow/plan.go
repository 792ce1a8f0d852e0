package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/intentflow/internal/orchestrator"
	"github.com/ShayCichocki/intentflow/internal/tui"
)

var (
	planUser      string
	planFile      string
	planJSON      bool
	planNoPrompt  bool
	planState     string
	planDecompose bool
)

var planCmd = &cobra.Command{
	Use:   "plan <request>",
	Short: "Recognize intents and show the task plan without executing it",
	Long: `Recognize the intents in a request, fill their parameters and print the
resulting task graph.

Parameters are filled from the request text, the working directory (project
type, deployment config), your previous answers and, on a terminal, by
asking. Use --no-prompt to skip questions.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

func init() {
	addPlanFlags(planCmd)
	planCmd.Flags().BoolVar(&planJSON, "json", false, "print the plan as JSON")
}

func addPlanFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&planUser, "user", "", "user id for preference learning (default: $USER)")
	cmd.Flags().StringVar(&planFile, "file", "", "file currently being edited")
	cmd.Flags().BoolVar(&planNoPrompt, "no-prompt", false, "never ask for missing parameters")
	cmd.Flags().StringVar(&planState, "state", "", "tool mask phase to enter before planning")
	cmd.Flags().BoolVar(&planDecompose, "decompose", false, "expand intents into subtasks (overrides decompose.enabled)")
}

// buildPlan wires an app and plans the request joined from args.
func buildPlan(cmd *cobra.Command, args []string) (*app, *orchestrator.Plan, error) {
	opts := appOptions{maskState: planState}
	if cfg.Slots.Interactive && !planNoPrompt {
		opts.ask = tui.InteractiveAsker(true)
	}
	if cmd.Flags().Changed("decompose") {
		opts.decompose = &planDecompose
	}

	a, err := newApp(cmd.Context(), cfg, logger, opts)
	if err != nil {
		return nil, nil, err
	}

	mctx, err := detectContext(planUser, planFile)
	if err != nil {
		a.Close()
		return nil, nil, err
	}

	plan, err := a.orch.Plan(cmd.Context(), strings.Join(args, " "), mctx)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, plan, nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	a, plan, err := buildPlan(cmd, args)
	if err != nil {
		return err
	}
	defer a.Close()

	if planJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		view, err := planJSONView(plan)
		if err != nil {
			return err
		}
		return enc.Encode(view)
	}

	fmt.Println(tui.RenderPlan(plan))
	if plan.Complete() {
		printStatus("✓", "Plan is complete. Run it with 'intentflow run'.", color.FgGreen)
	} else {
		printStatus("⚠", "Plan has missing parameters.", color.FgYellow)
	}
	return nil
}

type planTask struct {
	ID           string         `json:"id"`
	Kind         string         `json:"kind"`
	Description  string         `json:"description,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Priority     int            `json:"priority"`
}

type planStep struct {
	Intent       string            `json:"intent"`
	Priority     int               `json:"priority"`
	Description  string            `json:"description"`
	Dependencies []int             `json:"dependencies"`
	Slots        map[string]string `json:"slots,omitempty"`
	Missing      []string          `json:"missing,omitempty"`
	Completeness float64           `json:"completeness"`
	TaskIDs      []string          `json:"task_ids"`
}

type planOutput struct {
	Request  string     `json:"request"`
	Source   string     `json:"source"`
	Complete bool       `json:"complete"`
	Blocked  []string   `json:"blocked,omitempty"`
	Steps    []planStep `json:"steps"`
	Tasks    []planTask `json:"tasks"`
	// Order lists task IDs with dependencies first.
	Order []string `json:"order"`
}

func planJSONView(p *orchestrator.Plan) (planOutput, error) {
	out := planOutput{
		Request:  p.Request,
		Complete: p.Complete(),
		Blocked:  p.Blocked(),
	}
	if p.Recognition != nil {
		out.Source = string(p.Recognition.Source)
	}
	for _, s := range p.Steps {
		st := planStep{
			Intent:       s.Intent.Intent,
			Priority:     s.Intent.Priority,
			Description:  s.Intent.Description,
			Dependencies: s.Intent.Dependencies,
			TaskIDs:      s.TaskIDs,
		}
		if s.Slots != nil {
			st.Slots = s.Slots.Slots
			st.Missing = s.Slots.MissingRequired
			st.Completeness = s.Slots.Completeness
		}
		out.Steps = append(out.Steps, st)
	}
	for _, n := range p.Tasks {
		t := planTask{
			ID:           n.ID,
			Kind:         string(n.Task.Kind),
			Description:  n.Task.Description,
			Dependencies: n.Task.Dependencies,
			Priority:     n.Task.Priority,
		}
		if n.Task.Params != nil {
			t.Params = n.Task.Params.Map()
		}
		out.Tasks = append(out.Tasks, t)
	}
	order, err := p.Order()
	if err != nil {
		return planOutput{}, err
	}
	out.Order = order
	return out, nil
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
