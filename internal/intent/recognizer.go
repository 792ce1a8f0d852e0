// Package intent splits a free-text request into ordered intents with
// dependencies between them.
package intent

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/intentflow/internal/classifier"
	"github.com/ShayCichocki/intentflow/internal/llm"
	"github.com/ShayCichocki/intentflow/internal/logging"
	"github.com/ShayCichocki/intentflow/pkg/models"
)

// Source records which strategy produced a Recognition.
type Source string

const (
	SourceClassifier Source = "classifier"
	SourceLLM        Source = "llm"
	SourceRules      Source = "rules"
)

const (
	ruleConfidence     = 0.6
	fallbackConfidence = 0.5
	emptyConfidence    = 0.1
	defaultMaxDepth    = 3
)

// Recognition is the result of ClassifyMultiple.
type Recognition struct {
	Intents  []models.IntentNode
	Multiple bool
	Source   Source
}

// Stats counts recognizer activity.
type Stats struct {
	Total          int
	Multiple       int
	LLMSplits      int
	RuleSplits     int
	LLMFailures    int
	EnrichFailures int
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithClassifier sets the single-intent classifier. Defaults to the keyword classifier.
func WithClassifier(c classifier.Classifier) Option {
	return func(r *Recognizer) { r.classifier = c }
}

// WithLLM sets the completer used to split composite requests.
func WithLLM(c llm.Completer) Option {
	return func(r *Recognizer) { r.llm = c }
}

// WithEnrichment enables per-intent classification after splitting.
func WithEnrichment(enabled bool) Option {
	return func(r *Recognizer) { r.enrich = enabled }
}

// WithEnrichConcurrency bounds concurrent classifier calls during enrichment.
func WithEnrichConcurrency(n int) Option {
	return func(r *Recognizer) { r.concurrency = n }
}

// WithMaxDepth bounds recursive splitting.
func WithMaxDepth(n int) Option {
	return func(r *Recognizer) { r.maxDepth = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recognizer) { r.logger = l }
}

// Recognizer detects and splits composite requests.
type Recognizer struct {
	classifier  classifier.Classifier
	llm         llm.Completer
	logger      *slog.Logger
	enrich      bool
	concurrency int
	maxDepth    int

	mu    sync.Mutex
	stats Stats
}

// New creates a Recognizer.
func New(opts ...Option) *Recognizer {
	r := &Recognizer{
		concurrency: 4,
		maxDepth:    defaultMaxDepth,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.classifier == nil {
		r.classifier = classifier.NewKeywordClassifier()
	}
	if r.concurrency <= 0 {
		r.concurrency = 1
	}
	r.logger = logging.Component(r.logger, "intent")
	return r
}

// DetectMultipleIntents reports whether text looks like a composite request.
func (r *Recognizer) DetectMultipleIntents(text string) bool {
	return DetectMultipleIntents(text)
}

// RuleBasedSplit splits text with the ordered splitter patterns. Every node
// after the first depends on its predecessor. Empty text yields a single
// unknown intent.
func (r *Recognizer) RuleBasedSplit(text string, mctx models.Context) []models.IntentNode {
	segments := splitSegments(text, 0, r.maxDepth)
	if len(segments) == 0 {
		return []models.IntentNode{unknownNode(text)}
	}

	nodes := make([]models.IntentNode, 0, len(segments))
	for i, seg := range segments {
		n := models.IntentNode{
			Intent:       classifier.GuessIntent(seg),
			Priority:     i + 1,
			Description:  seg,
			Entities:     ruleEntities(seg),
			Dependencies: []int{},
			Confidence:   ruleConfidence,
		}
		if i > 0 {
			n.Dependencies = []int{i}
		}
		nodes = append(nodes, n)
	}
	return nodes
}

func ruleEntities(seg string) map[string]string {
	out := make(map[string]string)
	if ft := classifier.ExtractFileType(seg); ft != "" {
		out["fileType"] = ft
	}
	if p := classifier.ExtractPlatform(seg); p != "" {
		out["platform"] = p
	}
	return out
}

func unknownNode(text string) models.IntentNode {
	return models.IntentNode{
		Intent:       models.IntentUnknown,
		Priority:     1,
		Description:  strings.TrimSpace(text),
		Entities:     map[string]string{},
		Dependencies: []int{},
		Confidence:   emptyConfidence,
	}
}

// ClassifyMultiple recognizes every intent in text. Collaborator failures
// fall back to deterministic rules; an error is returned only when ctx is done.
func (r *Recognizer) ClassifyMultiple(ctx context.Context, text string, mctx models.Context) (*Recognition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.bump(func(s *Stats) { s.Total++ })

	text = strings.TrimSpace(text)
	if text == "" {
		return &Recognition{Intents: []models.IntentNode{unknownNode("")}, Source: SourceRules}, nil
	}

	if !DetectMultipleIntents(text) {
		return r.classifySingle(ctx, text, mctx)
	}

	r.bump(func(s *Stats) { s.Multiple++ })
	rec := &Recognition{Source: SourceLLM}
	nodes, err := r.llmSplit(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if r.llm != nil {
			r.logger.Warn("llm split failed, using rules", "error", err)
			r.bump(func(s *Stats) { s.LLMFailures++ })
		}
		nodes = r.RuleBasedSplit(text, mctx)
		rec.Source = SourceRules
		r.bump(func(s *Stats) { s.RuleSplits++ })
	} else {
		r.bump(func(s *Stats) { s.LLMSplits++ })
	}

	nodes = ValidateDependencies(nodes)
	if r.enrich {
		nodes, err = r.EnrichIntents(ctx, nodes, mctx)
		if err != nil {
			return nil, err
		}
	}

	rec.Intents = nodes
	rec.Multiple = len(nodes) > 1
	r.logger.Debug("request recognized", "intents", len(nodes), "source", rec.Source)
	return rec, nil
}

func (r *Recognizer) classifySingle(ctx context.Context, text string, mctx models.Context) (*Recognition, error) {
	cl, err := r.classifier.Classify(ctx, text, mctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn("classifier failed, using rules", "error", err)
		return &Recognition{Intents: r.RuleBasedSplit(text, mctx), Source: SourceRules}, nil
	}

	entities := cl.Entities
	if entities == nil {
		entities = map[string]string{}
	}
	node := models.IntentNode{
		Intent:       cl.Intent,
		Priority:     1,
		Description:  text,
		Entities:     entities,
		Dependencies: []int{},
		Confidence:   cl.Confidence,
	}
	return &Recognition{Intents: []models.IntentNode{node}, Source: SourceClassifier}, nil
}

// EnrichIntents classifies each node's description concurrently and merges
// the result: the classifier's entities win, the node's intent is kept
// unless unknown. Nodes whose classification fails get confidence 0.5.
func (r *Recognizer) EnrichIntents(ctx context.Context, nodes []models.IntentNode, mctx models.Context) ([]models.IntentNode, error) {
	out := make([]models.IntentNode, len(nodes))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, n := range nodes {
		i, n := i, n.Clone()
		g.Go(func() error {
			cl, err := r.classifier.Classify(ctx, n.Description, mctx)
			if err != nil {
				r.bump(func(s *Stats) { s.EnrichFailures++ })
				n.Confidence = fallbackConfidence
				out[i] = n
				return nil
			}
			out[i] = merge(n, cl)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func merge(n models.IntentNode, cl classifier.Classification) models.IntentNode {
	if n.Intent == models.IntentUnknown && cl.Intent != "" {
		n.Intent = cl.Intent
	}
	if n.Entities == nil {
		n.Entities = make(map[string]string, len(cl.Entities))
	}
	for k, v := range cl.Entities {
		n.Entities[k] = v
	}
	n.Confidence = cl.Confidence
	return n
}

// Stats returns a snapshot of the counters.
func (r *Recognizer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Recognizer) bump(fn func(*Stats)) {
	r.mu.Lock()
	fn(&r.stats)
	r.mu.Unlock()
}
