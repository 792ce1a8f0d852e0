package orchestrator

import (
	"log/slog"

	"github.com/ShayCichocki/intentflow/internal/decompose"
	"github.com/ShayCichocki/intentflow/internal/events"
	"github.com/ShayCichocki/intentflow/internal/executor"
	"github.com/ShayCichocki/intentflow/internal/intent"
	"github.com/ShayCichocki/intentflow/internal/slots"
	"github.com/ShayCichocki/intentflow/internal/state"
	"github.com/ShayCichocki/intentflow/internal/toolmask"
)

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*Orchestrator)

// WithRecognizer sets the multi-intent recognizer.
func WithRecognizer(r *intent.Recognizer) Option {
	return func(o *Orchestrator) { o.recognizer = r }
}

// WithEnhancer enables decomposition of every intent with e.
func WithEnhancer(e *decompose.Enhancer) Option {
	return func(o *Orchestrator) { o.enhancer = e }
}

// WithFiller sets the slot filler.
func WithFiller(f *slots.Filler) Option {
	return func(o *Orchestrator) { o.filler = f }
}

// WithAskUser sets the callback used for missing required slots.
func WithAskUser(ask slots.AskUserFunc) Option {
	return func(o *Orchestrator) { o.ask = ask }
}

// WithTools sets the tool registry the default handler dispatches to.
func WithTools(t *toolmask.System) Option {
	return func(o *Orchestrator) { o.tools = t }
}

// WithHandler replaces the default tool dispatch.
func WithHandler(fn executor.ExecutorFunc) Option {
	return func(o *Orchestrator) { o.handler = fn }
}

// WithExecutorConfig sets the limits of each execution pass.
func WithExecutorConfig(cfg executor.Config) Option {
	return func(o *Orchestrator) { o.execCfg = cfg }
}

// WithRunStore records every execution pass.
func WithRunStore(s state.RunStore) Option {
	return func(o *Orchestrator) { o.runs = s }
}

// WithBus sets the bus that receives executor events.
func WithBus(b *events.Bus) Option {
	return func(o *Orchestrator) { o.bus = b }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}
