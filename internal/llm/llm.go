// Package llm defines the completion interface used by the recognizer, the
// decomposer and the slot filler, with Anthropic and Gemini backends.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when a response contains no JSON value.
var ErrNoJSON = errors.New("no JSON found in response")

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role
	Content string
}

// Request is a single completion request.
type Request struct {
	System      string
	Messages    []Message
	Temperature float64
	// MaxTokens bounds the response. Zero uses the backend default.
	MaxTokens int
}

// Response is the text of a completion.
type Response struct {
	Content string
}

// Completer produces completions. Retries and rate limits are the
// implementation's concern.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (Response, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Ask sends a single user prompt and returns the trimmed text.
func Ask(ctx context.Context, c Completer, system, prompt string, temperature float64) (string, error) {
	resp, err := c.Complete(ctx, Request{
		System:      system,
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// ExtractJSON returns the first JSON object or array in response.
// Fenced code blocks are preferred; otherwise the first balanced {...} or
// [...] is used.
func ExtractJSON(response string) string {
	if start := strings.Index(response, "```json"); start != -1 {
		start += len("```json")
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}
	if start := strings.Index(response, "```"); start != -1 {
		start += 3
		if end := strings.Index(response[start:], "```"); end != -1 {
			if body := strings.TrimSpace(response[start : start+end]); looksLikeJSON(body) {
				return body
			}
		}
	}

	start := strings.IndexAny(response, "{[")
	if start == -1 {
		return ""
	}
	open := response[start]
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		ch := response[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}

func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// DecodeJSON extracts the JSON value from response and unmarshals it into target.
func DecodeJSON(response string, target any) error {
	raw := ExtractJSON(response)
	if raw == "" {
		return fmt.Errorf("%w: %s", ErrNoJSON, truncate(response, 200))
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("parse JSON: %w (response: %s)", err, truncate(raw, 200))
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
