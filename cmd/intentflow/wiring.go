package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ShayCichocki/intentflow/internal/config"
	"github.com/ShayCichocki/intentflow/internal/decompose"
	"github.com/ShayCichocki/intentflow/internal/events"
	cmdexec "github.com/ShayCichocki/intentflow/internal/exec"
	"github.com/ShayCichocki/intentflow/internal/executor"
	"github.com/ShayCichocki/intentflow/internal/intent"
	"github.com/ShayCichocki/intentflow/internal/llm"
	"github.com/ShayCichocki/intentflow/internal/orchestrator"
	"github.com/ShayCichocki/intentflow/internal/slots"
	"github.com/ShayCichocki/intentflow/internal/state"
	"github.com/ShayCichocki/intentflow/internal/toolmask"
	"github.com/ShayCichocki/intentflow/pkg/models"
)

// app holds the process-wide instances built from configuration.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	bus     *events.Bus
	llm     llm.Completer
	db      *state.DB
	tools   *toolmask.System
	watcher *toolmask.Watcher
	orch    *orchestrator.Orchestrator
}

// appOptions are per-command choices layered over the configuration.
type appOptions struct {
	ask slots.AskUserFunc
	// maskState overrides toolmask.initial_state when set.
	maskState string
	// decompose overrides decompose.enabled when non-nil.
	decompose *bool
}

// newApp wires the recognizer, slot filler, decomposer, tool registry,
// store and orchestrator. Persistence and the LLM are optional: failures
// to set them up are logged and the app runs without them.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logger,
		bus:    events.NewBus(),
	}

	completer, err := openLLM(ctx, cfg)
	if err != nil {
		logger.Warn("llm disabled", "provider", cfg.LLM.Provider, "error", err)
	}
	a.llm = completer

	if cfg.Storage.Enabled {
		db, err := openStore(cfg.Storage)
		if err != nil {
			logger.Warn("persistence disabled", "error", err)
		} else {
			a.db = db
		}
	}

	a.tools = toolmask.New(
		toolmask.Config{DefaultAvailable: cfg.ToolMask.DefaultAvailable},
		toolmask.WithBus(a.bus),
		toolmask.WithLogger(logger),
	)
	wd, err := os.Getwd()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	if err := registerBuiltinTools(a.tools, cmdexec.NewRunner(), wd); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.configureMask(opts.maskState); err != nil {
		a.Close()
		return nil, err
	}

	recOpts := []intent.Option{
		intent.WithEnrichment(cfg.Recognizer.Enrich),
		intent.WithEnrichConcurrency(cfg.Recognizer.EnrichConcurrency),
		intent.WithMaxDepth(cfg.Recognizer.MaxDepth),
		intent.WithLogger(logger),
	}
	if cfg.Recognizer.UseLLM && a.llm != nil {
		recOpts = append(recOpts, intent.WithLLM(a.llm))
	}

	fillCfg := slots.DefaultConfig()
	fillCfg.InferOptional = cfg.Slots.InferOptional
	fillCfg.MaxAnswerLength = cfg.Slots.MaxAnswerLength
	fillCfg.HistoryLimit = cfg.Slots.HistoryLimit
	fillOpts := []slots.Option{
		slots.WithConfig(fillCfg),
		slots.WithToolMask(a.tools),
		slots.WithLogger(logger),
	}
	if a.llm != nil {
		fillOpts = append(fillOpts, slots.WithLLM(a.llm))
	}
	if a.db != nil {
		fillOpts = append(fillOpts, slots.WithHistoryStore(a.db))
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithRecognizer(intent.New(recOpts...)),
		orchestrator.WithFiller(slots.New(fillOpts...)),
		orchestrator.WithAskUser(opts.ask),
		orchestrator.WithTools(a.tools),
		orchestrator.WithExecutorConfig(executor.Config{
			MaxConcurrency: cfg.Executor.MaxConcurrency,
			TaskTimeout:    cfg.Executor.TaskTimeout,
			MaxRetries:     cfg.Executor.MaxRetries,
		}),
		orchestrator.WithBus(a.bus),
		orchestrator.WithLogger(logger),
	}
	if a.db != nil {
		orchOpts = append(orchOpts, orchestrator.WithRunStore(a.db))
	}

	enabled := cfg.Decompose.Enabled
	if opts.decompose != nil {
		enabled = *opts.decompose
	}
	if enabled {
		enhancer, err := a.newEnhancer()
		if err != nil {
			a.Close()
			return nil, err
		}
		orchOpts = append(orchOpts, orchestrator.WithEnhancer(enhancer))
	}

	a.orch = orchestrator.New(orchOpts...)
	return a, nil
}

func (a *app) newEnhancer() (*decompose.Enhancer, error) {
	g, err := decompose.ParseGranularity(a.cfg.Decompose.DefaultGranularity)
	if err != nil {
		return nil, fmt.Errorf("decompose.default_granularity: %w", err)
	}
	dcfg := decompose.Config{
		DynamicGranularity: a.cfg.Decompose.DynamicGranularity,
		DefaultGranularity: g,
		PatternLearning:    a.cfg.Decompose.PatternLearning,
		LLMAnalysis:        a.cfg.Decompose.LLMAnalysis,
		MaxSubtasks:        a.cfg.Decompose.MaxSubtasks,
	}
	opts := []decompose.Option{decompose.WithConfig(dcfg), decompose.WithLogger(a.logger)}
	if a.llm != nil {
		opts = append(opts, decompose.WithLLM(a.llm))
	}
	if a.db != nil {
		opts = append(opts, decompose.WithPatternStore(a.db))
	}
	return decompose.New(opts...), nil
}

// configureMask loads the state machine, optionally watching it, and enters
// the initial phase.
func (a *app) configureMask(override string) error {
	path := a.cfg.ToolMask.StateMachine
	initial := a.cfg.ToolMask.InitialState
	if override != "" {
		initial = override
	}
	if path == "" {
		if override != "" {
			return fmt.Errorf("--state %s: %w", override, toolmask.ErrStateMachineDisabled)
		}
		return nil
	}

	if a.cfg.ToolMask.Watch {
		w, err := toolmask.Watch(a.tools, path)
		if err != nil {
			return fmt.Errorf("watch state machine: %w", err)
		}
		a.watcher = w
	} else {
		sm, err := toolmask.LoadStateMachine(path)
		if err != nil {
			return err
		}
		a.tools.ConfigureStateMachine(sm)
	}

	if initial != "" {
		if err := a.tools.TransitionTo(initial); err != nil {
			return fmt.Errorf("enter state %s: %w", initial, err)
		}
	}
	return nil
}

// Close releases the watcher and the store.
func (a *app) Close() error {
	var errs []error
	if a.watcher != nil {
		errs = append(errs, a.watcher.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

func openLLM(ctx context.Context, cfg *config.Config) (llm.Completer, error) {
	provider := cfg.LLM.Provider
	if provider == "" || provider == llm.ProviderNone {
		return nil, nil
	}
	lc := llm.Config{
		Provider:   provider,
		Model:      cfg.LLM.Model,
		AWSRegion:  cfg.LLM.AWSRegion,
		AWSProfile: cfg.LLM.AWSProfile,
	}
	if config.APIKeyEnv(provider) != "" {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w (set %s)", err, config.APIKeyEnv(provider))
		}
		lc.APIKey = key
	}
	return llm.New(ctx, lc)
}

func openStore(sc config.StorageConfig) (*state.DB, error) {
	if sc.Path == "" {
		return state.OpenGlobal(sc.Driver)
	}
	db, err := state.OpenWithDriver(sc.Driver, sc.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// detectContext describes the working directory for slot inference.
func detectContext(userID, currentFile string) (models.Context, error) {
	dir, err := os.Getwd()
	if err != nil {
		return models.Context{}, fmt.Errorf("get working directory: %w", err)
	}
	if userID == "" {
		userID = os.Getenv("USER")
	}
	return orchestrator.DetectContext(dir, currentFile, userID), nil
}
