package chat

import (
	"strings"
	"testing"

	"triaged/pkg/types"
)

func TestTranscriptRoundTrip(t *testing.T) {
	h := []types.Message{
		{Role: "user", Content: "J'ai mal à la tête <depuis> 3 jours & plus"},
		{Role: "assistant", Content: "Based on your symptoms…"},
		{Role: "user", Content: "line1\nline2"},
	}
	b, err := MarshalTranscript(h)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := UnmarshalTranscript(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != len(h) {
		t.Fatalf("len=%d want %d", len(got), len(h))
	}
	for i := range h {
		if got[i] != h[i] {
			t.Fatalf("msg %d = %+v, want %+v", i, got[i], h[i])
		}
	}
}

func TestMarshalTranscript_Format(t *testing.T) {
	b, err := MarshalTranscript([]types.Message{{Role: "user", Content: "à <b>"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := "[\n  {\n    \"role\": \"user\",\n    \"content\": \"à <b>\"\n  }\n]"
	if string(b) != want {
		t.Fatalf("got %q\nwant %q", string(b), want)
	}
}

func TestMarshalTranscript_Empty(t *testing.T) {
	b, err := MarshalTranscript(nil)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "[]" {
		t.Fatalf("got %q", string(b))
	}
}

func TestUnmarshalTranscript_Invalid(t *testing.T) {
	if _, err := UnmarshalTranscript([]byte(`{"role":"user"}`)); err == nil || !strings.Contains(err.Error(), "decode transcript") {
		t.Fatalf("expected decode error, got %v", err)
	}
}
