package manager

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"triaged/internal/chat"
	"triaged/pkg/types"
)

func TestRespond_NotLoaded(t *testing.T) {
	m := newTestManager(t, &fakeAdapter{}, nil)
	if m.Ready() {
		t.Fatalf("ready before load")
	}
	_, err := m.Respond(context.Background(), nil, nil)
	if !IsModelNotLoaded(err) {
		t.Fatalf("expected not loaded, got %v", err)
	}
	if st := m.Status(); st.State != string(StateUnloaded) {
		t.Fatalf("state=%s", st.State)
	}
}

func TestLoad_DefaultsAndParams(t *testing.T) {
	fa := &fakeAdapter{}
	m := newTestManager(t, fa, nil)
	loadDefault(t, m)
	if !m.Ready() {
		t.Fatalf("not ready after load")
	}
	if got := m.Settings(); got != DefaultSettings() {
		t.Fatalf("settings=%+v", got)
	}
	if len(fa.started) != 1 || fa.started[0].ID != DefaultModelID || fa.started[0].Path != DefaultModelID {
		t.Fatalf("started=%+v", fa.started)
	}
	p := fa.params[0]
	if p.MaxTokens != 200 || p.Temperature != float32(0.7) || p.TopP != float32(0.95) {
		t.Fatalf("params=%+v", p)
	}
}

func TestLoad_InvalidSettings(t *testing.T) {
	fa := &fakeAdapter{}
	m := newTestManager(t, fa, nil)
	err := m.Load(context.Background(), types.Settings{ModelID: "x", MaxNewTokens: 10, Temperature: 3, TopP: 0.5})
	if !IsInvalidSettings(err) {
		t.Fatalf("expected invalid settings, got %v", err)
	}
	if !strings.Contains(err.Error(), "max_new_tokens") || !strings.Contains(err.Error(), "temperature") {
		t.Fatalf("missing problems: %v", err)
	}
	if len(fa.started) != 0 {
		t.Fatalf("adapter should not start on invalid settings")
	}
}

func TestRespond_FormatsPromptAndEvaluates(t *testing.T) {
	fa := &fakeAdapter{tokens: []string{" Based on your", " symptoms, you may have X. "}}
	pub := NewMemoryPublisher()
	m := newTestManager(t, fa, pub)
	loadDefault(t, m)

	history := []types.Message{{Role: "user", Content: "headache and fever"}}
	var streamed []string
	res, err := m.Respond(context.Background(), history, func(tok string) error {
		streamed = append(streamed, tok)
		return nil
	})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if res.Reply != "Based on your symptoms, you may have X." || !res.ShouldStop {
		t.Fatalf("res=%+v", res)
	}
	if len(streamed) != 2 {
		t.Fatalf("streamed=%v", streamed)
	}
	if fa.prompts[0] != chat.FormatHistory(history) {
		t.Fatalf("prompt=%q", fa.prompts[0])
	}
	names := pub.Names()
	want := []string{EventModelLoaded, EventReplyGenerated, EventTriageReady}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("events=%v", names)
	}
	if st := m.Status(); st.RepliesTotal != 1 || st.LoadsTotal != 1 {
		t.Fatalf("status=%+v", st)
	}
}

func TestRespond_FinalContentPreferred(t *testing.T) {
	fa := &fakeAdapter{tokens: []string{"ignored"}, final: FinalResult{Content: "Can you describe the pain more?"}}
	m := newTestManager(t, fa, nil)
	loadDefault(t, m)
	res, err := m.Respond(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if res.Reply != "Can you describe the pain more?" || res.ShouldStop {
		t.Fatalf("res=%+v", res)
	}
}

func TestRespond_GenerateErrorRecorded(t *testing.T) {
	fa := &fakeAdapter{genErr: errBoom}
	m := newTestManager(t, fa, nil)
	loadDefault(t, m)
	_, err := m.Respond(context.Background(), nil, nil)
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if st := m.Status(); st.LastError != "boom" || st.State != string(StateReady) {
		t.Fatalf("status=%+v", st)
	}
}

func TestRespond_SecondCallerTooBusy(t *testing.T) {
	block := make(chan struct{})
	fa := &fakeAdapter{block: block}
	m := newTestManager(t, fa, nil)
	loadDefault(t, m)

	done := make(chan error, 1)
	go func() {
		_, err := m.Respond(context.Background(), nil, nil)
		done <- err
	}()
	// Wait for the first generation to hold the slot.
	deadline := time.Now().Add(time.Second)
	for m.Status().Inflight == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("first generation never started")
		}
		time.Sleep(time.Millisecond)
	}
	_, err := m.Respond(context.Background(), nil, nil)
	if !IsTooBusy(err) {
		t.Fatalf("expected too busy, got %v", err)
	}
	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first respond: %v", err)
	}
}

func TestRespond_ContextCanceled(t *testing.T) {
	fa := &fakeAdapter{block: make(chan struct{})}
	m := newTestManager(t, fa, nil)
	loadDefault(t, m)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := m.Respond(ctx, nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if st := m.Status(); st.LastError != "" {
		t.Fatalf("canceled generation should not record last error: %q", st.LastError)
	}
}

func TestReload_ClosesPrevious(t *testing.T) {
	fa := &fakeAdapter{}
	m := newTestManager(t, fa, nil)
	loadDefault(t, m)
	next := types.Settings{ModelID: "other", AdapterPath: "/a/lora.gguf", MaxNewTokens: 64, Temperature: 1.5, TopP: 0.1}
	if err := m.Load(context.Background(), next); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if fa.closedCount() != 1 {
		t.Fatalf("previous chatbot not closed: %d", fa.closedCount())
	}
	if got := m.Settings(); got != next {
		t.Fatalf("settings=%+v", got)
	}
	if fa.started[1].AdapterPath != "/a/lora.gguf" {
		t.Fatalf("adapter path not passed: %+v", fa.started[1])
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if fa.closedCount() != 2 || m.Ready() {
		t.Fatalf("close did not release chatbot")
	}
}

func TestReload_FailureKeepsPrevious(t *testing.T) {
	fa := &fakeAdapter{}
	pub := NewMemoryPublisher()
	m := newTestManager(t, fa, pub)
	loadDefault(t, m)

	fa.mu.Lock()
	fa.startErr = ErrDependencyUnavailable("no llama")
	fa.mu.Unlock()
	broken := DefaultSettings()
	broken.ModelID = "broken"
	err := m.Load(context.Background(), broken)
	if !IsDependencyUnavailable(err) {
		t.Fatalf("expected dependency unavailable, got %v", err)
	}
	if !m.Ready() || m.Settings().ModelID != DefaultModelID {
		t.Fatalf("previous chatbot lost: ready=%v settings=%+v", m.Ready(), m.Settings())
	}
	if fa.closedCount() != 0 {
		t.Fatalf("previous chatbot closed on failed reload")
	}
	names := pub.Names()
	if names[len(names)-1] != EventModelLoadFailed {
		t.Fatalf("events=%v", names)
	}
}

func TestLoad_FirstFailureSetsErrorState(t *testing.T) {
	fa := &fakeAdapter{startErr: errBoom}
	m := newTestManager(t, fa, nil)
	if err := m.Load(context.Background(), DefaultSettings()); !errors.Is(err, errBoom) {
		t.Fatalf("expected boom, got %v", err)
	}
	st := m.Status()
	if st.State != string(StateError) || !strings.Contains(st.LastError, "boom") {
		t.Fatalf("status=%+v", st)
	}
}

func TestLoad_ZeroValuesRejected(t *testing.T) {
	fa := &fakeAdapter{}
	m := newTestManager(t, fa, nil)
	loadDefault(t, m)
	cases := []types.Settings{
		{ModelID: "m", MaxNewTokens: 200, Temperature: 0, TopP: 0.95},
		{ModelID: "m", MaxNewTokens: 0, Temperature: 0.7, TopP: 0.95},
		{ModelID: "m", MaxNewTokens: 200, Temperature: 0.7, TopP: 0},
		{ModelID: "  ", MaxNewTokens: 200, Temperature: 0.7, TopP: 0.95},
	}
	for _, s := range cases {
		if err := m.Load(context.Background(), s); !IsInvalidSettings(err) {
			t.Fatalf("%+v: expected invalid settings, got %v", s, err)
		}
	}
	if got := m.Settings(); got != DefaultSettings() {
		t.Fatalf("settings changed by rejected loads: %+v", got)
	}
	if len(fa.started) != 1 {
		t.Fatalf("adapter started %d times", len(fa.started))
	}
}

func TestRespond_DeadlineWhileQueuedIsTooBusy(t *testing.T) {
	block := make(chan struct{})
	fa := &fakeAdapter{block: block}
	m := newTestManager(t, fa, nil)
	loadDefault(t, m)

	done := make(chan error, 1)
	go func() {
		_, err := m.Respond(context.Background(), nil, nil)
		done <- err
	}()
	deadline := time.Now().Add(time.Second)
	for m.Status().Inflight == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("first generation never started")
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := m.Respond(ctx, nil, nil); !IsTooBusy(err) {
		t.Fatalf("expected too busy, got %v", err)
	}
	cctx, ccancel := context.WithCancel(context.Background())
	ccancel()
	if _, err := m.Respond(cctx, nil, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first respond: %v", err)
	}
}
