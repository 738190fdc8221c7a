package chat

import (
	"bytes"
	"encoding/json"
	"fmt"

	"triaged/pkg/types"
)

// TranscriptFileName is the suggested download name for an exported transcript.
const TranscriptFileName = "chat_history.json"

// MarshalTranscript encodes history as an indented JSON array of {role, content}.
// Non-ASCII and HTML characters are written verbatim.
func MarshalTranscript(history []types.Message) ([]byte, error) {
	if history == nil {
		history = []types.Message{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(history); err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalTranscript parses a transcript produced by MarshalTranscript.
func UnmarshalTranscript(b []byte) ([]types.Message, error) {
	var msgs []types.Message
	if err := json.Unmarshal(b, &msgs); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	if msgs == nil {
		msgs = []types.Message{}
	}
	return msgs, nil
}
