package chat

import (
	"strings"

	"triaged/pkg/types"
)

// Roles understood by the prompt format. Unknown roles are still formatted.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SystemPrompt is prepended to every formatted prompt. It is never stored in history.
const SystemPrompt = "You are a careful medical triage assistant. " +
	"Ask at most one targeted follow-up question at a time. " +
	"Stop asking questions once you have enough information for a probable triage, " +
	"then provide a tentative explanation with 1–3 likely conditions and generic next steps. " +
	"Always include a safety disclaimer that this is not a diagnosis."

// AssistantMarker opens an assistant turn; the formatted prompt ends with it.
var AssistantMarker = Marker(RoleAssistant)

// Marker returns the delimiter for role, e.g. "<|user|>".
func Marker(role string) string { return "<|" + role + "|>" }

// FormatHistory renders history as one line per message after the system line,
// followed by an open assistant marker. Content is not escaped: a message that
// contains marker syntax will corrupt the structure.
func FormatHistory(history []types.Message) string {
	var b strings.Builder
	b.WriteString(Marker(RoleSystem))
	b.WriteString(SystemPrompt)
	for _, m := range history {
		b.WriteByte('\n')
		b.WriteString(Marker(m.Role))
		b.WriteString(m.Content)
	}
	b.WriteByte('\n')
	b.WriteString(AssistantMarker)
	return b.String()
}
