package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/intentflow/internal/classifier"
	"github.com/ShayCichocki/intentflow/internal/llm"
	"github.com/ShayCichocki/intentflow/pkg/models"
)

var errNoLLM = errors.New("no llm configured")

const splitSystemPrompt = `You split a user's request into separate actionable intents.
Respond with JSON only, no prose.`

const splitPromptTemplate = `Split the following request into intents, in the order they should run.

Request: %s

Known intent types: %s

Respond with:
{"intents":[{"intent":"<type>","description":"<the part of the request>","entities":{"<slot>":"<value>"},"dependencies":[<1-based positions this intent needs first>],"confidence":<0..1>}]}`

type llmIntent struct {
	Intent       string         `json:"intent"`
	Description  string         `json:"description"`
	Entities     map[string]any `json:"entities"`
	Dependencies []int          `json:"dependencies"`
	Confidence   float64        `json:"confidence"`
}

type llmSplitResponse struct {
	Intents []llmIntent `json:"intents"`
}

// llmSplit asks the LLM for a structured split. Positions in the response
// become priorities.
func (r *Recognizer) llmSplit(ctx context.Context, text string) ([]models.IntentNode, error) {
	if r.llm == nil {
		return nil, errNoLLM
	}

	types := make([]string, 0, len(classifier.DefaultIntentKeywords))
	for _, k := range classifier.DefaultIntentKeywords {
		types = append(types, k.Intent)
	}

	content, err := llm.Ask(ctx, r.llm, splitSystemPrompt,
		fmt.Sprintf(splitPromptTemplate, text, strings.Join(types, ", ")), 0.1)
	if err != nil {
		return nil, fmt.Errorf("llm split: %w", err)
	}

	var resp llmSplitResponse
	if err := llm.DecodeJSON(content, &resp); err != nil {
		return nil, fmt.Errorf("llm split: %w", err)
	}
	if len(resp.Intents) == 0 {
		return nil, fmt.Errorf("llm split: no intents in response")
	}

	nodes := make([]models.IntentNode, 0, len(resp.Intents))
	for i, li := range resp.Intents {
		desc := strings.TrimSpace(li.Description)
		if desc == "" {
			return nil, fmt.Errorf("llm split: intent %d has no description", i+1)
		}
		intent := strings.TrimSpace(li.Intent)
		if intent == "" {
			intent = classifier.GuessIntent(desc)
		}
		confidence := li.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = 0.8
		}
		entities := make(map[string]string, len(li.Entities))
		for k, v := range li.Entities {
			if v == nil {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				entities[k] = s
			}
		}
		deps := li.Dependencies
		if deps == nil {
			deps = []int{}
		}
		nodes = append(nodes, models.IntentNode{
			Intent:       intent,
			Priority:     i + 1,
			Description:  desc,
			Entities:     entities,
			Dependencies: deps,
			Confidence:   confidence,
		})
	}
	return nodes, nil
}
