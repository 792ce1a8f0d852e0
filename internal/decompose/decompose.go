// Package decompose refines a task into ordered subtasks, optionally reusing
// learned decomposition patterns.
package decompose

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/ShayCichocki/intentflow/internal/llm"
	"github.com/ShayCichocki/intentflow/internal/logging"
	"github.com/ShayCichocki/intentflow/pkg/models"
)

// Granularity is the target specificity of subtasks.
type Granularity int

const (
	Macro Granularity = iota
	Coarse
	Medium
	Fine
	Atomic
)

func (g Granularity) String() string {
	switch g {
	case Macro:
		return "MACRO"
	case Coarse:
		return "COARSE"
	case Medium:
		return "MEDIUM"
	case Fine:
		return "FINE"
	case Atomic:
		return "ATOMIC"
	default:
		return fmt.Sprintf("Granularity(%d)", int(g))
	}
}

// ParseGranularity parses a granularity name, case-insensitively.
func ParseGranularity(s string) (Granularity, error) {
	for g := Macro; g <= Atomic; g++ {
		if strings.EqualFold(s, g.String()) {
			return g, nil
		}
	}
	return Medium, fmt.Errorf("unknown granularity %q", s)
}

// complexTypes are task types that add to the complexity score.
var complexTypes = map[string]bool{
	"create_website": true,
	"deploy":         true,
	"analyze_data":   true,
	"refactor":       true,
	"migrate":        true,
	"build_project":  true,
}

// Subtask is one step of a decomposition.
type Subtask struct {
	ID          string
	Type        string
	Description string
	// Params are the parent's parameters, shared unchanged.
	Params models.Params
	// Order is the 1-based position in the sequence.
	Order int
	// Dependencies lists subtask IDs; empty unless a later pass adds them.
	Dependencies []string
	// Parallelizable marks subtasks that need not wait for their predecessor.
	Parallelizable bool
}

// PatternStep is one step of a learned pattern.
type PatternStep struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Pattern is a learned decomposition keyed by task signature.
type Pattern struct {
	Signature string
	TaskType  string
	Subtasks  []PatternStep
}

// PatternStore persists learned patterns. FindPattern returns nil, nil on a miss.
type PatternStore interface {
	FindPattern(ctx context.Context, signature string) (*Pattern, error)
	SavePattern(ctx context.Context, p Pattern) error
}

// Source records how subtasks were produced.
type Source string

const (
	SourcePattern  Source = "pattern"
	SourceAnalysis Source = "analysis"
	SourceLLM      Source = "llm"
)

// Result is the outcome of Decompose.
type Result struct {
	Original    models.TaskPayload
	Signature   string
	Complexity  float64
	Granularity Granularity
	Subtasks    []Subtask
	Source      Source
}

// Stats tracks decomposition activity.
type Stats struct {
	TotalDecompositions      int
	SuccessfulDecompositions int
	AverageSubtaskCount      float64
	PatternHits              int
}

// Config tunes the enhancer.
type Config struct {
	// DynamicGranularity derives granularity from complexity. When false
	// DefaultGranularity is used.
	DynamicGranularity bool
	DefaultGranularity Granularity
	// PatternLearning enables pattern lookup and recording.
	PatternLearning bool
	// LLMAnalysis asks the LLM for subtasks when no pattern matches.
	LLMAnalysis bool
	// MaxSubtasks caps LLM-produced subtasks.
	MaxSubtasks int
}

// DefaultConfig returns the default enhancer settings.
func DefaultConfig() Config {
	return Config{
		DynamicGranularity: true,
		DefaultGranularity: Medium,
		MaxSubtasks:        8,
	}
}

// Option configures an Enhancer.
type Option func(*Enhancer)

// WithConfig sets the enhancer settings.
func WithConfig(cfg Config) Option {
	return func(e *Enhancer) { e.cfg = cfg }
}

// WithPatternStore sets the store for learned patterns.
func WithPatternStore(s PatternStore) Option {
	return func(e *Enhancer) { e.store = s }
}

// WithLLM sets the completer used for LLM analysis.
func WithLLM(c llm.Completer) Option {
	return func(e *Enhancer) { e.llm = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Enhancer) { e.logger = l }
}

// Enhancer decomposes tasks into subtasks.
type Enhancer struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	store PatternStore
	llm   llm.Completer
	cache map[string]*Pattern
	stats Stats
}

// New creates an Enhancer.
func New(opts ...Option) *Enhancer {
	e := &Enhancer{
		cfg:   DefaultConfig(),
		cache: make(map[string]*Pattern),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.MaxSubtasks <= 0 {
		e.cfg.MaxSubtasks = DefaultConfig().MaxSubtasks
	}
	e.logger = logging.Component(e.logger, "decompose")
	return e
}

// TaskType returns the type name used for complexity and patterns. Opaque
// payloads report their original type.
func TaskType(task models.TaskPayload) string {
	if op, ok := task.Params.(models.OpaqueParams); ok && op.Type != "" {
		return op.Type
	}
	return string(task.Kind)
}

// AssessComplexity scores a task in [0.5, 1.0]: a 0.5 base, 0.2 for complex
// task types and up to 0.2 for parameter count.
func AssessComplexity(task models.TaskPayload) float64 {
	score := 0.5
	if complexTypes[TaskType(task)] {
		score += 0.2
	}
	score += min(float64(task.ParamCount())/10, 0.2)
	return min(score, 1.0)
}

// DetermineGranularity maps complexity onto a granularity level:
// score = complexity*0.7 + 0.3, split at 0.2, 0.4, 0.6 and 0.8.
func (e *Enhancer) DetermineGranularity(task models.TaskPayload) Granularity {
	if !e.cfg.DynamicGranularity {
		return e.cfg.DefaultGranularity
	}
	score := AssessComplexity(task)*0.7 + 0.3
	switch {
	case score < 0.2:
		return Macro
	case score < 0.4:
		return Coarse
	case score < 0.6:
		return Medium
	case score < 0.8:
		return Fine
	default:
		return Atomic
	}
}

// Signature is the blake3 hash of the task type and its sorted parameter names.
func Signature(task models.TaskPayload) string {
	h := blake3.New()
	_, _ = h.Write([]byte(TaskType(task)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strings.Join(models.ParamKeys(task.Params), ",")))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Decompose produces the subtasks of task. It fails only when ctx is done.
func (e *Enhancer) Decompose(ctx context.Context, task models.TaskPayload, mctx models.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.stats.TotalDecompositions++
	e.mu.Unlock()

	res := &Result{
		Original:    task,
		Signature:   Signature(task),
		Complexity:  AssessComplexity(task),
		Granularity: e.DetermineGranularity(task),
	}

	if p := e.findSimilarPattern(ctx, res.Signature); p != nil {
		res.Subtasks = decomposeByPattern(task, p)
		res.Source = SourcePattern
	} else {
		res.Subtasks, res.Source = e.decomposeByAnalysis(ctx, task, res.Granularity)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Subtasks = optimizeSequence(analyzeDependencies(res.Subtasks))

	e.mu.Lock()
	e.stats.SuccessfulDecompositions++
	n := float64(e.stats.SuccessfulDecompositions)
	e.stats.AverageSubtaskCount += (float64(len(res.Subtasks)) - e.stats.AverageSubtaskCount) / n
	if res.Source == SourcePattern {
		e.stats.PatternHits++
	}
	e.mu.Unlock()

	e.recordDecomposition(ctx, task, res)

	e.logger.Debug("task decomposed",
		"type", TaskType(task),
		"granularity", res.Granularity.String(),
		"subtasks", len(res.Subtasks),
		"source", res.Source)
	return res, nil
}

// findSimilarPattern returns a learned pattern for signature, or nil.
// Lookups always miss unless pattern learning is enabled.
func (e *Enhancer) findSimilarPattern(ctx context.Context, signature string) *Pattern {
	if !e.cfg.PatternLearning {
		return nil
	}

	e.mu.Lock()
	if p, ok := e.cache[signature]; ok {
		e.mu.Unlock()
		return p
	}
	store := e.store
	e.mu.Unlock()

	if store == nil {
		return nil
	}
	p, err := store.FindPattern(ctx, signature)
	if err != nil {
		e.logger.Warn("pattern lookup failed", "signature", signature, "error", err)
		return nil
	}
	if p == nil || len(p.Subtasks) == 0 {
		return nil
	}

	e.mu.Lock()
	e.cache[signature] = p
	e.mu.Unlock()
	return p
}

// decomposeByPattern clones the pattern skeleton and shares the parent's params.
func decomposeByPattern(task models.TaskPayload, p *Pattern) []Subtask {
	out := make([]Subtask, len(p.Subtasks))
	for i, step := range p.Subtasks {
		out[i] = Subtask{
			ID:          uuid.New().String(),
			Type:        step.Type,
			Description: step.Description,
			Params:      task.Params,
			Order:       i + 1,
		}
	}
	return out
}

// decomposeByAnalysis yields the task itself as a single subtask, or the
// LLM's steps when LLM analysis is enabled and succeeds.
func (e *Enhancer) decomposeByAnalysis(ctx context.Context, task models.TaskPayload, g Granularity) ([]Subtask, Source) {
	e.mu.Lock()
	completer := e.llm
	e.mu.Unlock()

	if e.cfg.LLMAnalysis && completer != nil {
		steps, err := e.analyzeWithLLM(ctx, completer, task, g)
		if err == nil {
			out := make([]Subtask, len(steps))
			for i, step := range steps {
				out[i] = Subtask{
					ID:          uuid.New().String(),
					Type:        step.Type,
					Description: step.Description,
					Params:      task.Params,
					Order:       i + 1,
				}
			}
			return out, SourceLLM
		}
		if ctx.Err() == nil {
			e.logger.Warn("llm analysis failed, using single subtask", "error", err)
		}
	}

	return []Subtask{{
		ID:          uuid.New().String(),
		Type:        TaskType(task),
		Description: task.Description,
		Params:      task.Params,
		Order:       1,
	}}, SourceAnalysis
}

func (e *Enhancer) analyzeWithLLM(ctx context.Context, c llm.Completer, task models.TaskPayload, g Granularity) ([]PatternStep, error) {
	prompt := fmt.Sprintf(analysisPrompt,
		TaskType(task),
		task.Description,
		strings.Join(models.ParamKeys(task.Params), ", "),
		g.String(),
		stepHint(g),
	)
	content, err := llm.Ask(ctx, c, analysisSystemPrompt, prompt, 0.2)
	if err != nil {
		return nil, fmt.Errorf("llm analysis: %w", err)
	}
	steps, err := ParseSteps(content, TaskType(task))
	if err != nil {
		return nil, err
	}
	if len(steps) > e.cfg.MaxSubtasks {
		steps = steps[:e.cfg.MaxSubtasks]
	}
	return steps, nil
}

// ParseSteps parses a JSON array of {type, description} objects. Steps
// without a type inherit defaultType; steps without a description are dropped.
func ParseSteps(response, defaultType string) ([]PatternStep, error) {
	jsonStart := strings.Index(response, "[")
	jsonEnd := strings.LastIndex(response, "]")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		preview := response
		if len(preview) > 500 {
			preview = preview[:500] + "... (truncated)"
		}
		return nil, fmt.Errorf("no valid JSON array found in response (got %d chars): %q", len(response), preview)
	}

	var raw []PatternStep
	if err := llm.DecodeJSON(response[jsonStart:jsonEnd+1], &raw); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}

	steps := make([]PatternStep, 0, len(raw))
	for _, s := range raw {
		s.Description = strings.TrimSpace(s.Description)
		if s.Description == "" {
			continue
		}
		if strings.TrimSpace(s.Type) == "" {
			s.Type = defaultType
		}
		steps = append(steps, s)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("empty step list returned")
	}
	return steps, nil
}

// analyzeDependencies leaves dependencies empty and marks only the first
// subtask parallelizable, producing a sequential chain.
func analyzeDependencies(subtasks []Subtask) []Subtask {
	for i := range subtasks {
		subtasks[i].Dependencies = []string{}
		subtasks[i].Parallelizable = i == 0
	}
	return subtasks
}

// optimizeSequence is an extension point; the order is kept as is.
func optimizeSequence(subtasks []Subtask) []Subtask {
	return subtasks
}

// recordDecomposition remembers multi-step results when pattern learning is
// enabled. Persistence is best-effort.
func (e *Enhancer) recordDecomposition(ctx context.Context, task models.TaskPayload, res *Result) {
	if !e.cfg.PatternLearning || res.Source == SourcePattern || len(res.Subtasks) < 2 {
		return
	}

	p := Pattern{Signature: res.Signature, TaskType: TaskType(task)}
	for _, st := range res.Subtasks {
		p.Subtasks = append(p.Subtasks, PatternStep{Type: st.Type, Description: st.Description})
	}

	e.mu.Lock()
	e.cache[p.Signature] = &p
	store := e.store
	e.mu.Unlock()

	if store == nil {
		return
	}
	if err := store.SavePattern(ctx, p); err != nil {
		e.logger.Warn("pattern save failed", "signature", p.Signature, "error", err)
	}
}

// Stats returns a snapshot of the counters.
func (e *Enhancer) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// CachedPatterns returns the number of patterns held in memory.
func (e *Enhancer) CachedPatterns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}

// Cleanup drops the pattern cache and the store and LLM references.
// Calling it more than once is safe.
func (e *Enhancer) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]*Pattern)
	e.store = nil
	e.llm = nil
}
