package reflexion

import (
	"fmt"
	"strings"

	"aide/internal/memory"
)

const analysisSystemPrompt = `You are the self-improvement module of a personal assistant.
You analyze interactions where the user reacted badly and extract concrete,
actionable lessons. Be specific: a lesson must change future behavior, not
restate the failure.`

// buildAnalysisPrompt renders one batch of problematic interactions
// into the analysis request. The model must answer with a JSON array,
// one object per interaction, in order.
func buildAnalysisPrompt(batch []memory.Interaction) string {
	var b strings.Builder
	b.WriteString("Analyze the following failed interactions. For each one, explain what happened, why it failed, the lesson, and a concrete new approach.\n\n")

	for i, in := range batch {
		fmt.Fprintf(&b, "--- Interaction %d (feedback: %s) ---\n", i+1, in.Feedback)
		fmt.Fprintf(&b, "User: %s\n", in.UserInput)
		fmt.Fprintf(&b, "Assistant: %s\n\n", in.Response)
	}

	b.WriteString(`Respond with ONLY a JSON array, one object per interaction, in the same order:
[
  {
    "what_happened": "one sentence",
    "why_failed": "one sentence",
    "lesson": "a specific, actionable rule for future behavior",
    "new_approach": "what to do instead next time"
  }
]
If an interaction teaches nothing useful, use an empty string for "lesson".`)
	return b.String()
}
