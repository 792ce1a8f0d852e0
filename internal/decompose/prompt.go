package decompose

const analysisSystemPrompt = `You plan the execution steps of a single task. Respond with JSON only.`

// analysisPrompt is filled with type, description, parameter names,
// granularity and the step count hint.
const analysisPrompt = `Break this task into ordered execution steps.

Task type: %s
Description: %s
Known parameters: %s
Target granularity: %s (%s)

Return ONLY a JSON array with this exact structure (no other text):
[
  {"type": "create_file", "description": "What this step does"}
]

Guidelines:
- Steps run in the listed order
- Each step should be concrete enough for one tool call
- Reuse the task type for steps that do not fit a more specific type
- Do not repeat the parameters in the descriptions`

func stepHint(g Granularity) string {
	switch g {
	case Macro:
		return "1 step"
	case Coarse:
		return "1-2 steps"
	case Medium:
		return "2-3 steps"
	case Fine:
		return "3-5 steps"
	default:
		return "5-8 steps"
	}
}
