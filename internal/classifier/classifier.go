// Package classifier provides the single-intent baseline used by the
// recognizer and the slot filler.
package classifier

import (
	"context"
	"strings"

	"github.com/ShayCichocki/intentflow/pkg/models"
)

const unknownIntent = models.IntentUnknown

// Classification is the verdict for one piece of text.
type Classification struct {
	Intent     string
	Entities   map[string]string
	Confidence float64
}

// Classifier recognizes a single intent.
type Classifier interface {
	Classify(ctx context.Context, text string, mctx models.Context) (Classification, error)
}

// Func adapts a function to Classifier.
type Func func(ctx context.Context, text string, mctx models.Context) (Classification, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, text string, mctx models.Context) (Classification, error) {
	return f(ctx, text, mctx)
}

// KeywordClassifier classifies by keyword table and regex entity extraction.
type KeywordClassifier struct {
	table []IntentKeywords
}

// NewKeywordClassifier returns a classifier over DefaultIntentKeywords.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{table: DefaultIntentKeywords}
}

// NewKeywordClassifierWithTable returns a classifier over a custom table.
func NewKeywordClassifierWithTable(table []IntentKeywords) *KeywordClassifier {
	return &KeywordClassifier{table: table}
}

// Classify implements Classifier.
// Confidence is 0.9 when several keywords agree, 0.7 for a single keyword,
// 0.3 when nothing matched and 0.1 for empty text.
func (c *KeywordClassifier) Classify(ctx context.Context, text string, mctx models.Context) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Classification{Intent: unknownIntent, Entities: map[string]string{}, Confidence: 0.1}, nil
	}

	m := MatchKeywords(c.table, text)
	out := Classification{Intent: m.Intent, Entities: ExtractEntities(text)}
	switch {
	case len(m.Matched) >= 2:
		out.Confidence = 0.9
	case len(m.Matched) == 1:
		out.Confidence = 0.7
	default:
		out.Confidence = 0.3
	}

	// A data file in the active editor hints at analysis when nothing else matched.
	if out.Intent == unknownIntent && mctx.CurrentFile != "" && ExtractDataSource(mctx.CurrentFile) != "" {
		if strings.Contains(text, "看") || strings.Contains(strings.ToLower(text), "look") {
			out.Intent = "analyze_data"
			out.Entities["dataSource"] = mctx.CurrentFile
			out.Confidence = 0.5
		}
	}
	return out, nil
}
