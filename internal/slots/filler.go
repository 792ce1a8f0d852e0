// Package slots completes the parameters an intent needs before it can run.
package slots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/ShayCichocki/intentflow/internal/classifier"
	"github.com/ShayCichocki/intentflow/internal/llm"
	"github.com/ShayCichocki/intentflow/internal/logging"
	"github.com/ShayCichocki/intentflow/internal/toolmask"
	"github.com/ShayCichocki/intentflow/pkg/models"
)

// ErrAborted is returned by an AskUserFunc when the user gives up.
var ErrAborted = errors.New("slot filling aborted")

// CannotInfer is the answer the LLM gives when it has no value for a slot.
const CannotInfer = "无法推断"

// AskUserFunc asks the user a question. options is nil for free text.
type AskUserFunc func(ctx context.Context, question string, options []string) (string, error)

// Source tells where a slot value came from.
type Source string

const (
	SourceEntity  Source = "entity"
	SourceContext Source = "context"
	SourceUser    Source = "user"
	SourceLLM     Source = "llm"
)

// Validation is the completeness check of a slot map.
type Validation struct {
	Valid           bool
	MissingRequired []string
	// Completeness is the percentage of required slots present, 0..100.
	Completeness float64
}

// Result is the outcome of FillSlots.
type Result struct {
	Intent  string
	Slots   map[string]string
	Sources map[string]Source
	Validation
	// ToolAvailable is false when a tool mask is attached and the tool
	// named after the intent is registered but disabled.
	ToolAvailable bool
}

// Params converts the filled slots into the typed parameter record.
func (r *Result) Params() models.Params {
	return models.ParamsFromSlots(r.Intent, r.Slots)
}

// Config tunes the filler.
type Config struct {
	// MaxAnswerLength is the longest accepted LLM answer, in characters.
	MaxAnswerLength int
	// InferOptional enables LLM inference of optional slots.
	InferOptional bool
	// HistoryLimit bounds the records consulted for preferences.
	HistoryLimit int
}

// DefaultConfig returns the default filler settings.
func DefaultConfig() Config {
	return Config{
		MaxAnswerLength: 50,
		InferOptional:   true,
		HistoryLimit:    20,
	}
}

// Option configures a Filler.
type Option func(*Filler)

func WithConfig(cfg Config) Option {
	return func(f *Filler) { f.cfg = cfg }
}

func WithLLM(c llm.Completer) Option {
	return func(f *Filler) { f.llm = c }
}

func WithHistoryStore(s HistoryStore) Option {
	return func(f *Filler) { f.history = s }
}

// WithToolMask lets the filler report whether the intent's tool is callable.
func WithToolMask(m *toolmask.System) Option {
	return func(f *Filler) { f.mask = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Filler) { f.logger = l }
}

// Filler fills intent slots from entities, context, the user and an LLM.
type Filler struct {
	cfg     Config
	llm     llm.Completer
	history HistoryStore
	mask    *toolmask.System
	logger  *slog.Logger
}

// New creates a Filler.
func New(opts ...Option) *Filler {
	f := &Filler{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(f)
	}
	if f.cfg.MaxAnswerLength <= 0 {
		f.cfg.MaxAnswerLength = DefaultConfig().MaxAnswerLength
	}
	if f.cfg.HistoryLimit <= 0 {
		f.cfg.HistoryLimit = DefaultConfig().HistoryLimit
	}
	f.logger = logging.Component(f.logger, "slots")
	return f
}

// ValidateSlots checks entities against the required slots of intentType.
func ValidateSlots(intentType string, entities map[string]string) Validation {
	def := Lookup(intentType)
	v := Validation{MissingRequired: []string{}}
	for _, slot := range def.Required {
		if strings.TrimSpace(entities[slot]) == "" {
			v.MissingRequired = append(v.MissingRequired, slot)
		}
	}
	if len(def.Required) == 0 {
		v.Completeness = 100
	} else {
		present := len(def.Required) - len(v.MissingRequired)
		v.Completeness = float64(present) / float64(len(def.Required)) * 100
	}
	v.Valid = len(v.MissingRequired) == 0
	return v
}

// InferFromContext derives values for the named slots from the request
// context. Slots without a rule, or whose rule finds nothing, are omitted.
func InferFromContext(slotNames []string, mctx models.Context, entities map[string]string) map[string]string {
	out := make(map[string]string)
	ext := strings.ToLower(filepath.Ext(mctx.CurrentFile))

	for _, slot := range slotNames {
		var v string
		switch slot {
		case "fileType":
			if mctx.CurrentFile != "" {
				v = classifier.FileTypeForExtension(mctx.CurrentFile)
			}
			if v == "" {
				v = projectFileTypes[strings.ToLower(mctx.ProjectType)]
			}
		case "target":
			v = entities["target"]
			if v == "" && mctx.CurrentFile != "" {
				v = filepath.Base(mctx.CurrentFile)
			}
		case "platform":
			v = mctx.ProjectConfig["deployPlatform"]
			if v == "" {
				v = DefaultPlatform
			}
		case "dataSource":
			if classifier.DataExtensions[ext] {
				v = mctx.CurrentFile
			}
		}
		if v != "" {
			out[slot] = v
		}
	}
	return out
}

// FillSlots completes the slots of node. Values come, in order, from the
// node's entities, the context, the user (required slots only, one question
// at a time) and the LLM (optional slots only, once all required are set).
// It fails only when ctx is done or ask returns ErrAborted.
func (f *Filler) FillSlots(ctx context.Context, node models.IntentNode, mctx models.Context, ask AskUserFunc) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	def := Lookup(node.Intent)
	res := &Result{
		Intent:        node.Intent,
		Slots:         make(map[string]string),
		Sources:       make(map[string]Source),
		ToolAvailable: f.toolAvailable(node.Intent),
	}
	set := func(slot, value string, src Source) {
		res.Slots[slot] = value
		res.Sources[slot] = src
	}

	for _, slot := range append(slices.Clone(def.Required), def.Optional...) {
		if v := strings.TrimSpace(node.Entities[slot]); v != "" {
			set(slot, v, SourceEntity)
		}
	}

	missing := ValidateSlots(node.Intent, res.Slots).MissingRequired
	for slot, v := range InferFromContext(missing, mctx, node.Entities) {
		set(slot, v, SourceContext)
	}

	missing = ValidateSlots(node.Intent, res.Slots).MissingRequired
	if len(missing) > 0 && ask != nil {
		prefs := f.LearnUserPreference(ctx, mctx.UserID, node.Intent)
		for _, slot := range missing {
			answer, err := ask(ctx, PromptFor(slot), orderChoices(Choices[slot], prefs[slot]))
			if err != nil {
				if errors.Is(err, ErrAborted) || ctx.Err() != nil {
					return nil, fmt.Errorf("ask %s: %w", slot, err)
				}
				f.logger.Warn("ask user failed", "slot", slot, "error", err)
				continue
			}
			if answer = strings.TrimSpace(answer); answer != "" {
				set(slot, answer, SourceUser)
			}
		}
	}

	res.Validation = ValidateSlots(node.Intent, res.Slots)
	if res.Valid && f.cfg.InferOptional && f.llm != nil {
		for _, slot := range def.Optional {
			if _, ok := res.Slots[slot]; ok {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if v := f.inferOptional(ctx, node, slot); v != "" {
				set(slot, v, SourceLLM)
			}
		}
	}

	f.logger.Debug("slots filled",
		"intent", node.Intent,
		"filled", len(res.Slots),
		"missing", len(res.MissingRequired))
	return res, nil
}

func (f *Filler) toolAvailable(intent string) bool {
	if f.mask == nil {
		return true
	}
	if _, ok := f.mask.Tool(intent); !ok {
		return true
	}
	return f.mask.IsAvailable(intent)
}

// inferOptional asks the LLM for one optional slot. Any failure, an
// oversized answer or the CannotInfer sentinel yield "".
func (f *Filler) inferOptional(ctx context.Context, node models.IntentNode, slot string) string {
	prompt := fmt.Sprintf(optionalSlotPrompt, node.Description, node.Intent, slot, CannotInfer)
	if choices := Choices[slot]; len(choices) > 0 {
		prompt += "\n可选值: " + strings.Join(choices, ", ")
	}
	answer, err := llm.Ask(ctx, f.llm, "", prompt, 0.1)
	if err != nil {
		f.logger.Debug("optional slot inference failed", "slot", slot, "error", err)
		return ""
	}
	answer = strings.Trim(strings.TrimSpace(answer), `"'`)
	if answer == "" || strings.Contains(answer, CannotInfer) {
		return ""
	}
	if utf8.RuneCountInString(answer) > f.cfg.MaxAnswerLength {
		f.logger.Debug("optional slot answer too long", "slot", slot, "length", utf8.RuneCountInString(answer))
		return ""
	}
	return answer
}

const optionalSlotPrompt = `用户请求: %s
意图: %s
请推断参数 "%s" 的值。只回答参数值本身，不要解释。如果无法从请求中推断，回答"%s"。`

// orderChoices moves preferred to the front of choices.
func orderChoices(choices []string, preferred string) []string {
	if len(choices) == 0 {
		return nil
	}
	out := slices.Clone(choices)
	if i := slices.Index(out, preferred); i > 0 {
		out = append([]string{preferred}, slices.Delete(out, i, i+1)...)
	}
	return out
}

// Summary is a display digest of a fill result.
type Summary struct {
	Intent          string
	Filled          map[string]string
	MissingRequired []string
	// Completeness is rounded to the nearest whole percent.
	Completeness int
	Valid        bool
}

// Summarize digests res.
func Summarize(res *Result) Summary {
	if res == nil {
		return Summary{}
	}
	return Summary{
		Intent:          res.Intent,
		Filled:          cloneMap(res.Slots),
		MissingRequired: slices.Clone(res.MissingRequired),
		Completeness:    int(math.Round(res.Completeness)),
		Valid:           res.Valid,
	}
}

func (s Summary) String() string {
	if len(s.MissingRequired) == 0 {
		return fmt.Sprintf("%s: %d%% complete", s.Intent, s.Completeness)
	}
	return fmt.Sprintf("%s: %d%% complete, missing %s", s.Intent, s.Completeness, strings.Join(s.MissingRequired, ", "))
}
