package models

// IntentUnknown is the intent type used when nothing could be recognized.
const IntentUnknown = "unknown"

// IntentNode is one actionable sub-request extracted from an utterance.
type IntentNode struct {
	// Intent is the intent type, e.g. "create_file".
	Intent string `json:"intent"`
	// Priority is the 1-based position of the intent in the request.
	Priority int `json:"priority"`
	// Description is the segment of the utterance this intent came from.
	Description string `json:"description"`
	// Entities holds extracted parameter values keyed by slot name.
	Entities map[string]string `json:"entities,omitempty"`
	// Dependencies lists priorities (not IDs) of intents that must run first.
	Dependencies []int `json:"dependencies"`
	// Confidence is the recognizer's confidence in the range 0..1.
	Confidence float64 `json:"confidence"`
}

// Clone returns a deep copy of n.
func (n IntentNode) Clone() IntentNode {
	out := n
	if n.Entities != nil {
		out.Entities = make(map[string]string, len(n.Entities))
		for k, v := range n.Entities {
			out.Entities[k] = v
		}
	}
	out.Dependencies = append([]int(nil), n.Dependencies...)
	return out
}

// Context describes the environment a request was made in.
type Context struct {
	// UserID identifies the requesting user for history lookups.
	UserID string `json:"user_id,omitempty"`
	// CurrentFile is the file open in the host application, if any.
	CurrentFile string `json:"current_file,omitempty"`
	// ProjectType is a coarse project label such as "web" or "python".
	ProjectType string `json:"project_type,omitempty"`
	// ProjectConfig carries project settings such as "deployPlatform".
	ProjectConfig map[string]string `json:"project_config,omitempty"`
}
