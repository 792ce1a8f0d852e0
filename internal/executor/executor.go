// Package executor runs a dependency graph of tasks with bounded concurrency,
// per-task timeouts, retries and cooperative cancellation.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/ShayCichocki/intentflow/internal/events"
	"github.com/ShayCichocki/intentflow/internal/graph"
	"github.com/ShayCichocki/intentflow/internal/logging"
	"github.com/ShayCichocki/intentflow/pkg/models"
)

var (
	// ErrCyclicDependency is returned by ExecuteAll when the task graph has a cycle.
	ErrCyclicDependency = errors.New("cyclic dependency detected")
	// ErrAlreadyRunning is returned when an execution pass is already in progress.
	ErrAlreadyRunning = errors.New("executor is already running")
	// ErrTaskTimeout is the failure recorded when a handler outlives TaskTimeout.
	ErrTaskTimeout = errors.New("task timed out")
	// ErrCancelled is returned by ExecuteTask when the node was cancelled.
	ErrCancelled = errors.New("execution cancelled")
)

// ExecutorFunc performs the work of a single node.
// The context is cancelled on timeout or cancellation as a best-effort signal.
type ExecutorFunc func(ctx context.Context, node *models.TaskNode) (any, error)

// Config bounds an execution pass.
type Config struct {
	// MaxConcurrency is the maximum number of handlers in flight.
	MaxConcurrency int
	// TaskTimeout bounds a single attempt. Zero disables the timeout.
	TaskTimeout time.Duration
	// MaxRetries is assigned to nodes created through AddTask.
	MaxRetries int
}

// DefaultConfig returns the default executor limits.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 3,
		TaskTimeout:    30 * time.Second,
		MaxRetries:     2,
	}
}

// Option configures a TaskExecutor.
type Option func(*TaskExecutor)

// WithConfig sets the executor limits.
func WithConfig(cfg Config) Option {
	return func(e *TaskExecutor) { e.cfg = cfg }
}

// WithBus sets the bus that receives task and execution events.
func WithBus(b *events.Bus) Option {
	return func(e *TaskExecutor) { e.bus = b }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *TaskExecutor) { e.logger = l }
}

// RunResult is the outcome of one ExecuteAll pass.
type RunResult struct {
	// RunID identifies the pass in emitted events.
	RunID string
	// Success is true when no node failed and the pass was not cancelled.
	Success bool
	// Results holds the handler result of every completed node.
	Results map[string]any
	// Errors holds the terminal failure of every failed node.
	Errors map[string]error
	// Cancelled is true when the pass was stopped by Cancel or its context.
	Cancelled bool
	// Stats is a snapshot taken when the pass ended.
	Stats Stats
}

// TaskExecutor schedules the nodes of a dependency graph.
// One execution pass may run at a time; Reset clears it for the next.
type TaskExecutor struct {
	cfg    Config
	bus    *events.Bus
	logger *slog.Logger

	// mu guards every field below as well as the Status of graph nodes.
	mu        sync.Mutex
	graph     *graph.DependencyGraph
	completed []string
	failed    map[string]error
	running   map[string]bool
	executing bool
	cancelled bool
	cancelCh  chan struct{}
	runID     string
	counters  counters
}

type counters struct {
	completed     int
	failed        int
	cancelled     int
	totalDuration time.Duration
}

// New creates a TaskExecutor.
func New(opts ...Option) *TaskExecutor {
	e := &TaskExecutor{
		cfg:     DefaultConfig(),
		graph:   graph.New(),
		failed:  make(map[string]error),
		running: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.MaxConcurrency <= 0 {
		e.cfg.MaxConcurrency = 1
	}
	e.logger = logging.Component(e.logger, "executor")
	e.graph.SetDebugLog(logging.Debugf(e.logger))
	return e
}

// AddTask registers a payload as a new node. An empty id is replaced with a UUID.
// The node inherits Config.MaxRetries.
func (e *TaskExecutor) AddTask(id string, task models.TaskPayload) (*models.TaskNode, error) {
	n := &models.TaskNode{ID: id, Task: task, MaxRetries: e.cfg.MaxRetries}
	if err := e.AddTasks(n); err != nil {
		return nil, err
	}
	return n, nil
}

// AddNode registers a prebuilt node, keeping its own MaxRetries.
func (e *TaskExecutor) AddNode(n *models.TaskNode) error {
	return e.AddTasks(n)
}

// AddTasks registers nodes as given, assigning UUIDs to nodes without an ID
// and resetting them to pending.
func (e *TaskExecutor) AddTasks(nodes ...*models.TaskNode) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.executing {
		return ErrAlreadyRunning
	}
	for _, n := range nodes {
		if n.ID == "" {
			n.ID = uuid.New().String()
		}
		n.Status = models.TaskStatusPending
	}
	if err := e.graph.Add(nodes...); err != nil {
		return fmt.Errorf("add tasks: %w", err)
	}
	return nil
}

// Node returns the node with id, or nil.
func (e *TaskExecutor) Node(id string) *models.TaskNode {
	return e.graph.Get(id)
}

// Nodes returns every node in insertion order.
func (e *TaskExecutor) Nodes() []*models.TaskNode {
	return e.graph.Nodes()
}

// DetectCyclicDependencies reports whether the registered nodes form a cycle.
func (e *TaskExecutor) DetectCyclicDependencies() bool {
	return e.graph.HasCycle()
}

// ReadyTasks returns the admission queue: pending or ready nodes whose
// dependencies have all completed, highest priority first.
func (e *TaskExecutor) ReadyTasks() []*models.TaskNode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Ready()
}

// ExecutionOrder returns the IDs of completed nodes in completion order.
func (e *TaskExecutor) ExecutionOrder() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.completed...)
}

// IsRunning reports whether an execution pass is in progress.
func (e *TaskExecutor) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executing
}

// ExecuteAll runs every reachable node through fn.
// Only structural problems are returned as errors; task failures and
// cancellation are reported in the RunResult. Nodes depending on IDs that
// are not registered are never scheduled and never reported.
func (e *TaskExecutor) ExecuteAll(ctx context.Context, fn ExecutorFunc) (*RunResult, error) {
	e.mu.Lock()
	if e.executing {
		e.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	if e.graph.HasCycle() {
		e.mu.Unlock()
		e.logger.Error("refusing to execute cyclic task graph", "tasks", e.graph.Size())
		return nil, ErrCyclicDependency
	}
	e.executing = true
	e.cancelled = false
	e.cancelCh = make(chan struct{})
	e.runID = ulid.Make().String()
	runID := e.runID
	cancelCh := e.cancelCh
	total := e.graph.Size()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.executing = false
		e.mu.Unlock()
	}()

	e.logger.Info("execution started", "run_id", runID, "tasks", total, "max_concurrency", e.cfg.MaxConcurrency)
	e.emit(events.Event{Type: events.ExecutionStarted, RunID: runID, Counts: &events.Counts{Total: total}})

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	// Buffered so handlers that settle after a cancelled pass returns never block.
	done := make(chan string, total)
	inFlight := 0

	for {
		if ctx.Err() != nil {
			e.Cancel()
		}

		e.mu.Lock()
		stopped := e.cancelled
		if !stopped {
			for _, n := range e.graph.Ready() {
				if inFlight >= e.cfg.MaxConcurrency {
					n.Status = models.TaskStatusReady
					continue
				}
				// Marked running here so the next admission round skips it.
				n.Status = models.TaskStatusRunning
				inFlight++
				go func(n *models.TaskNode) {
					_, _ = e.ExecuteTask(runCtx, n, fn)
					done <- n.ID
				}(n)
			}
		}
		e.mu.Unlock()

		if stopped || inFlight == 0 {
			break
		}

		select {
		case <-done:
			inFlight--
			e.emitProgress(runID)
		case <-ctx.Done():
			e.Cancel()
		case <-cancelCh:
		}
	}

	res := e.result(runID)
	if res.Cancelled {
		e.logger.Warn("execution cancelled", "run_id", runID, "completed", res.Stats.Completed, "cancelled", res.Stats.Cancelled)
	} else {
		e.logger.Info("execution completed", "run_id", runID, "completed", res.Stats.Completed, "failed", res.Stats.Failed, "success_rate", res.Stats.SuccessRate)
		e.emit(events.Event{Type: events.ExecutionCompleted, RunID: runID, Counts: e.counts()})
	}
	return res, nil
}

func (e *TaskExecutor) result(runID string) *RunResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := &RunResult{
		RunID:     runID,
		Results:   make(map[string]any, len(e.completed)),
		Errors:    make(map[string]error, len(e.failed)),
		Cancelled: e.cancelled,
	}
	for _, id := range e.completed {
		res.Results[id] = e.graph.Get(id).Result
	}
	for id, err := range e.failed {
		res.Errors[id] = err
	}
	res.Success = len(res.Errors) == 0 && !res.Cancelled
	res.Stats = e.statsLocked()
	return res
}

// ExecuteTask runs a single node, racing each attempt against TaskTimeout and
// retrying immediately up to node.MaxRetries. The terminal failure is
// recorded on the node and returned.
func (e *TaskExecutor) ExecuteTask(ctx context.Context, node *models.TaskNode, fn ExecutorFunc) (any, error) {
	for attempt := 1; ; attempt++ {
		e.mu.Lock()
		if node.Status == models.TaskStatusCancelled {
			e.mu.Unlock()
			return nil, ErrCancelled
		}
		node.Status = models.TaskStatusRunning
		if node.StartTime.IsZero() {
			node.StartTime = time.Now()
		}
		e.running[node.ID] = true
		runID := e.runID
		e.mu.Unlock()

		task := node.Task
		e.emit(events.Event{Type: events.TaskStarted, RunID: runID, TaskID: node.ID, Task: &task, Attempt: attempt})

		result, err := e.attempt(ctx, node, fn)

		e.mu.Lock()
		if node.Status == models.TaskStatusCancelled {
			// Settled after Cancel; the late result is discarded.
			delete(e.running, node.ID)
			e.mu.Unlock()
			return nil, ErrCancelled
		}

		if err == nil {
			node.Status = models.TaskStatusCompleted
			node.Result = result
			node.Error = nil
			node.EndTime = time.Now()
			delete(e.running, node.ID)
			e.completed = append(e.completed, node.ID)
			e.graph.MarkComplete(node.ID)
			e.counters.completed++
			e.counters.totalDuration += node.Duration()
			e.mu.Unlock()

			e.logger.Debug("task completed", "task_id", node.ID, "kind", node.Task.Kind, "attempt", attempt, "duration", node.Duration())
			e.emit(events.Event{Type: events.TaskCompleted, RunID: runID, TaskID: node.ID, Task: &task, Result: result})
			return result, nil
		}

		node.Error = err
		if ctx.Err() != nil {
			node.Status = models.TaskStatusCancelled
			node.EndTime = time.Now()
			delete(e.running, node.ID)
			e.counters.cancelled++
			e.mu.Unlock()
			return nil, fmt.Errorf("task %s: %w", node.ID, ErrCancelled)
		}

		if node.Retries < node.MaxRetries {
			node.Retries++
			node.Status = models.TaskStatusFailed
			e.mu.Unlock()
			e.logger.Warn("task attempt failed, retrying", "task_id", node.ID, "attempt", attempt, "retries", node.Retries, "error", err)
			continue
		}

		node.Status = models.TaskStatusFailed
		node.EndTime = time.Now()
		delete(e.running, node.ID)
		e.failed[node.ID] = err
		e.counters.failed++
		e.mu.Unlock()

		e.logger.Error("task failed", "task_id", node.ID, "kind", node.Task.Kind, "attempts", attempt, "error", err)
		e.emit(events.Event{Type: events.TaskFailed, RunID: runID, TaskID: node.ID, Task: &task, Error: err})
		return nil, fmt.Errorf("task %s: %w", node.ID, err)
	}
}

type outcome struct {
	result any
	err    error
}

// attempt races fn against the timeout. The handler goroutine is left to
// finish on its own when it loses.
func (e *TaskExecutor) attempt(ctx context.Context, node *models.TaskNode, fn ExecutorFunc) (any, error) {
	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.cfg.TaskTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, e.cfg.TaskTimeout)
	}
	defer cancel()

	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		res, err := fn(attemptCtx, node)
		ch <- outcome{result: res, err: err}
	}()

	select {
	case out := <-ch:
		return out.result, out.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %s", ErrTaskTimeout, e.cfg.TaskTimeout)
	}
}

// Cancel stops admissions for the current pass. In-flight handlers are not
// aborted, but their nodes become cancelled and late results are discarded.
// Calling Cancel when no pass is running does nothing.
func (e *TaskExecutor) Cancel() {
	e.mu.Lock()
	if !e.executing || e.cancelled {
		e.mu.Unlock()
		return
	}
	e.cancelled = true

	now := time.Now()
	unreachable := e.graph.Unreachable()
	for _, n := range e.graph.Nodes() {
		if unreachable[n.ID] {
			continue
		}
		switch n.Status {
		case models.TaskStatusPending, models.TaskStatusReady, models.TaskStatusRunning, models.TaskStatusFailed:
			// Failed here is a node between retries; terminal failures are in e.failed.
			if n.Status == models.TaskStatusFailed {
				if _, terminal := e.failed[n.ID]; terminal {
					continue
				}
			}
			n.Status = models.TaskStatusCancelled
			n.EndTime = now
			e.counters.cancelled++
		}
	}
	// Nodes settled by ExecuteTask's context branch are already in the tally.
	counts := &events.Counts{
		Total:     e.graph.Size(),
		Completed: len(e.completed),
		Failed:    e.counters.failed,
		Cancelled: e.counters.cancelled,
	}
	runID := e.runID
	close(e.cancelCh)
	e.mu.Unlock()

	e.emit(events.Event{Type: events.ExecutionCancelled, RunID: runID, Counts: counts})
}

// Stats summarises the executor's outcomes.
type Stats struct {
	Total           int
	Completed       int
	Failed          int
	Cancelled       int
	Running         int
	AverageDuration time.Duration
	// SuccessRate is completed/total formatted as "12.34%".
	SuccessRate string
}

// Stats returns a snapshot of the executor's counters.
func (e *TaskExecutor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statsLocked()
}

func (e *TaskExecutor) statsLocked() Stats {
	s := Stats{
		Total:     e.graph.Size(),
		Completed: e.counters.completed,
		Failed:    e.counters.failed,
		Cancelled: e.counters.cancelled,
		Running:   len(e.running),
	}
	if s.Completed > 0 {
		s.AverageDuration = e.counters.totalDuration / time.Duration(s.Completed)
	}
	rate := 0.0
	if s.Total > 0 {
		rate = float64(s.Completed) / float64(s.Total) * 100
	}
	s.SuccessRate = fmt.Sprintf("%.2f%%", rate)
	return s
}

// Reset clears the graph, tracking sets and stats.
func (e *TaskExecutor) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.executing {
		return ErrAlreadyRunning
	}
	e.graph.Reset()
	e.completed = nil
	e.failed = make(map[string]error)
	e.running = make(map[string]bool)
	e.cancelled = false
	e.runID = ""
	e.counters = counters{}
	return nil
}

func (e *TaskExecutor) counts() *events.Counts {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := &events.Counts{
		Total:     e.graph.Size(),
		Completed: e.counters.completed,
		Failed:    e.counters.failed,
		Cancelled: e.counters.cancelled,
	}
	if c.Total > 0 {
		c.Percent = float64(c.Completed+c.Failed+c.Cancelled) / float64(c.Total) * 100
	}
	return c
}

func (e *TaskExecutor) emitProgress(runID string) {
	e.emit(events.Event{Type: events.Progress, RunID: runID, Counts: e.counts()})
}

func (e *TaskExecutor) emit(ev events.Event) {
	e.bus.Emit(ev)
}
