package chat

import "strings"

// StopPhrases signal that the assistant moved from questions to a triage summary.
var StopPhrases = []string{"Based on your symptoms", "Likely causes", "Possible conditions"}

// Result is the outcome of one assistant turn.
type Result struct {
	Reply      string
	ShouldStop bool
}

// ExtractReply returns the trimmed text after the last assistant marker.
// When the marker is missing (truncated generation) the whole decoded text is
// returned, prompt included.
func ExtractReply(decoded string) string {
	if i := strings.LastIndex(decoded, AssistantMarker); i >= 0 {
		decoded = decoded[i+len(AssistantMarker):]
	}
	return strings.TrimSpace(decoded)
}

// ShouldStop reports whether reply contains any stop phrase, ignoring case.
func ShouldStop(reply string) bool {
	lower := strings.ToLower(reply)
	for _, p := range StopPhrases {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// Evaluate extracts the reply from decoded model output and applies ShouldStop.
func Evaluate(decoded string) Result {
	reply := ExtractReply(decoded)
	return Result{Reply: reply, ShouldStop: ShouldStop(reply)}
}
