package intent

import (
	"regexp"
	"strings"
)

// connectors signal that a request may hold more than one intent.
var connectors = []string{"并", "然后", "再", "以及", "和", "最后", "接着", "之后", "同时", "then"}

// splitPatterns are tried in order; the first whose captures yield more
// than one segment wins.
var splitPatterns = []*regexp.Regexp{
	// 首先 A 然后 B 最后 C
	regexp.MustCompile(`^(?:首先|先)(.+?)(?:[，,；;]\s*)?(?:然后|接着|再)(.+?)(?:(?:[，,；;]\s*)?最后(.+))?$`),
	// A 然后 B
	regexp.MustCompile(`(?i)^(.+?)(?:[，,；;]\s*)?(?:然后|接着|之后|随后|\s+then\s+)(.+)$`),
	// A 并 B
	regexp.MustCompile(`^(.+?)(?:并且|并|同时|以及)(.+)$`),
	// A，B
	regexp.MustCompile(`^(.+?)[，,；;](.+)$`),
}

const segmentCutset = " \t\r\n，,；;。.、"

// DetectMultipleIntents reports whether text looks like a composite request.
func DetectMultipleIntents(text string) bool {
	lower := strings.ToLower(text)
	for _, c := range connectors {
		if strings.Contains(lower, c) {
			return true
		}
	}
	for _, p := range splitPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// splitSegments applies splitPatterns recursively up to maxDepth.
func splitSegments(text string, depth, maxDepth int) []string {
	text = strings.Trim(text, segmentCutset)
	if text == "" {
		return nil
	}
	if depth >= maxDepth {
		return []string{text}
	}

	for _, p := range splitPatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		var parts []string
		for _, g := range m[1:] {
			parts = append(parts, splitSegments(g, depth+1, maxDepth)...)
		}
		if len(parts) > 1 {
			return parts
		}
	}
	return []string{text}
}
