package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ShayCichocki/intentflow/internal/decompose"
	"github.com/ShayCichocki/intentflow/internal/events"
	"github.com/ShayCichocki/intentflow/internal/executor"
	"github.com/ShayCichocki/intentflow/internal/intent"
	"github.com/ShayCichocki/intentflow/internal/logging"
	"github.com/ShayCichocki/intentflow/internal/slots"
	"github.com/ShayCichocki/intentflow/internal/state"
	"github.com/ShayCichocki/intentflow/internal/toolmask"
	"github.com/ShayCichocki/intentflow/pkg/models"
)

var (
	// ErrIncompletePlan is returned by Execute when required slots are missing.
	ErrIncompletePlan = errors.New("plan has missing required slots")
	// ErrNoTools is returned by the default handler when no registry is set.
	ErrNoTools = errors.New("no tool registry configured")
)

// Orchestrator composes recognition, slot filling, decomposition and
// execution. It is safe to Plan concurrently; each Execute uses its own
// executor.
type Orchestrator struct {
	recognizer *intent.Recognizer
	enhancer   *decompose.Enhancer
	filler     *slots.Filler
	ask        slots.AskUserFunc
	tools      *toolmask.System
	handler    executor.ExecutorFunc
	execCfg    executor.Config
	runs       state.RunStore
	bus        *events.Bus
	logger     *slog.Logger
}

// New creates an Orchestrator. Without options it recognizes with keyword
// rules, fills slots from context only and has no tools.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{execCfg: executor.DefaultConfig()}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.Component(o.logger, "orchestrator")
	if o.recognizer == nil {
		o.recognizer = intent.New(intent.WithLogger(o.logger))
	}
	if o.filler == nil {
		o.filler = slots.New(slots.WithToolMask(o.tools), slots.WithLogger(o.logger))
	}
	if o.handler == nil {
		o.handler = o.dispatch
	}
	return o
}

// Plan recognizes the intents of text, fills their slots and builds the
// task graph. It fails when ctx is done or the user aborts a question.
func (o *Orchestrator) Plan(ctx context.Context, text string, mctx models.Context) (*Plan, error) {
	rec, err := o.recognizer.ClassifyMultiple(ctx, text, mctx)
	if err != nil {
		return nil, fmt.Errorf("recognize intents: %w", err)
	}

	ordered := intent.ExecutionOrder(rec.Intents)
	plan := &Plan{
		Request:     text,
		Context:     mctx,
		Recognition: rec,
		Steps:       make([]Step, len(ordered)),
	}

	for i, node := range ordered {
		filled, err := o.filler.FillSlots(ctx, node, mctx, o.ask)
		if err != nil {
			return nil, fmt.Errorf("fill slots for %s: %w", node.Intent, err)
		}
		if filled.Valid {
			o.filler.RecordFillingHistory(ctx, mctx.UserID, filled)
		}
		plan.Steps[i] = Step{Intent: node, Slots: filled}

		if o.enhancer == nil || !filled.Valid {
			continue
		}
		task := models.TaskPayload{
			Kind:        models.KindOf(node.Intent),
			Description: node.Description,
			Params:      filled.Params(),
		}
		res, err := o.enhancer.Decompose(ctx, task, mctx)
		if err != nil {
			return nil, fmt.Errorf("decompose %s: %w", node.Intent, err)
		}
		plan.Steps[i].Decomposition = res
	}

	plan.Tasks = buildTasks(plan.Steps, o.execCfg.MaxRetries)

	o.logger.Info("plan built",
		"intents", len(plan.Steps),
		"tasks", len(plan.Tasks),
		"source", rec.Source,
		"complete", plan.Complete())
	return plan, nil
}

// Execute runs plan on a fresh executor. Per-task failures are reported in
// the result; structural problems and incomplete plans are returned as
// errors.
func (o *Orchestrator) Execute(ctx context.Context, plan *Plan) (*executor.RunResult, error) {
	if plan == nil {
		return nil, errors.New("nil plan")
	}
	if missing := plan.Missing(); len(missing) > 0 {
		var parts []string
		for _, k := range sortedKeys(missing) {
			parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(missing[k], ", ")))
		}
		return nil, fmt.Errorf("%w (%s)", ErrIncompletePlan, strings.Join(parts, "; "))
	}

	ex := executor.New(
		executor.WithConfig(o.execCfg),
		executor.WithBus(o.bus),
		executor.WithLogger(o.logger),
	)
	nodes := make([]*models.TaskNode, len(plan.Tasks))
	for i, n := range plan.Tasks {
		nodes[i] = &models.TaskNode{ID: n.ID, Task: n.Task, MaxRetries: n.MaxRetries}
	}
	if err := ex.AddTasks(nodes...); err != nil {
		return nil, err
	}

	started := time.Now()
	res, err := ex.ExecuteAll(ctx, o.handler)
	if err != nil {
		return nil, err
	}
	o.recordRun(plan, res, started)
	return res, nil
}

// Run plans text and executes the plan.
func (o *Orchestrator) Run(ctx context.Context, text string, mctx models.Context) (*Plan, *executor.RunResult, error) {
	plan, err := o.Plan(ctx, text, mctx)
	if err != nil {
		return nil, nil, err
	}
	res, err := o.Execute(ctx, plan)
	return plan, res, err
}

// dispatch calls the tool named by the node's task type with its params.
func (o *Orchestrator) dispatch(ctx context.Context, node *models.TaskNode) (any, error) {
	if o.tools == nil {
		return nil, ErrNoTools
	}
	params := map[string]any{}
	if node.Task.Params != nil {
		params = node.Task.Params.Map()
	}
	return o.tools.ExecuteWithMask(ctx, decompose.TaskType(node.Task), params)
}

// recordRun stores the outcome of a pass. Failures are logged only.
func (o *Orchestrator) recordRun(plan *Plan, res *executor.RunResult, started time.Time) {
	if o.runs == nil {
		return
	}
	// Detached from the pass context, which may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := &state.Run{
		ID:        res.RunID,
		Request:   plan.Request,
		Total:     res.Stats.Total,
		StartedAt: started,
	}
	if err := o.runs.CreateRun(ctx, r); err != nil {
		o.logger.Warn("record run failed", "run_id", res.RunID, "error", err)
		return
	}
	r.Success = res.Success
	r.Cancelled = res.Cancelled
	r.Completed = res.Stats.Completed
	r.Failed = res.Stats.Failed
	if err := o.runs.FinishRun(ctx, r); err != nil {
		o.logger.Warn("finish run failed", "run_id", res.RunID, "error", err)
	}
}
