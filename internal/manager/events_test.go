package manager

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogPublisher_WritesEvent(t *testing.T) {
	var buf bytes.Buffer
	p := LogPublisher{Log: zerolog.New(&buf).Level(zerolog.DebugLevel)}
	p.Publish(Event{Name: EventTriageReady, ModelID: "m", Fields: map[string]any{"should_stop": true}})
	out := buf.String()
	for _, want := range []string{`"event":"triage_ready"`, `"model":"m"`, `"should_stop":true`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %s", want, out)
		}
	}
}

func TestMemoryPublisher_Names(t *testing.T) {
	p := NewMemoryPublisher()
	p.Publish(Event{Name: EventModelLoaded})
	p.Publish(Event{Name: EventReplyGenerated})
	names := p.Names()
	if len(names) != 2 || names[0] != EventModelLoaded || names[1] != EventReplyGenerated {
		t.Fatalf("names=%v", names)
	}
}
