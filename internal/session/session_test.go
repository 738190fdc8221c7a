package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"triaged/internal/chat"
	"triaged/pkg/types"
)

// fakeResponder records the histories it sees and answers with reply.
type fakeResponder struct {
	mu    sync.Mutex
	seen  [][]types.Message
	reply string
	err   error
}

func (f *fakeResponder) Respond(ctx context.Context, history []types.Message, onToken func(string) error) (chat.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, history)
	if f.err != nil {
		return chat.Result{}, f.err
	}
	if onToken != nil {
		if err := onToken(f.reply); err != nil {
			return chat.Result{}, err
		}
	}
	return chat.Evaluate(chat.AssistantMarker + f.reply), nil
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewStore(zerolog.Nop()).Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return s
}

func TestTurn_AppendsBothMessages(t *testing.T) {
	s := newTestSession(t)
	r := &fakeResponder{reply: "Can you describe the pain more?"}

	res, err := s.Turn(context.Background(), r, "my stomach hurts", nil)
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if res.ShouldStop || res.Reply != "Can you describe the pain more?" {
		t.Fatalf("res=%+v", res)
	}
	want := []types.Message{
		{Role: "user", Content: "my stomach hurts"},
		{Role: "assistant", Content: "Can you describe the pain more?"},
	}
	got := s.Messages()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("messages=%+v", got)
	}
	// The responder saw the history including the new user message only.
	if len(r.seen[0]) != 1 || r.seen[0][0] != want[0] {
		t.Fatalf("seen=%+v", r.seen[0])
	}
}

func TestTurn_ResponderGetsCopy(t *testing.T) {
	s := newTestSession(t)
	r := &fakeResponder{reply: "ok"}
	if _, err := s.Turn(context.Background(), r, "first", nil); err != nil {
		t.Fatalf("turn: %v", err)
	}
	r.seen[0][0].Content = "tampered"
	if s.Messages()[0].Content != "first" {
		t.Fatalf("history shares memory with responder input")
	}
}

func TestTurn_ErrorRollsBack(t *testing.T) {
	s := newTestSession(t)
	r := &fakeResponder{err: errors.New("oom")}
	if _, err := s.Turn(context.Background(), r, "hello", nil); err == nil {
		t.Fatalf("expected error")
	}
	if s.Len() != 0 {
		t.Fatalf("user message not rolled back: %+v", s.Messages())
	}
}

func TestTurn_EmptyMessage(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.Turn(context.Background(), &fakeResponder{}, "   ", nil); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected empty message error, got %v", err)
	}
}

func TestTurn_StreamsTokens(t *testing.T) {
	s := newTestSession(t)
	var toks []string
	_, err := s.Turn(context.Background(), &fakeResponder{reply: "Likely causes: tension headache."}, "head", func(tok string) error {
		toks = append(toks, tok)
		return nil
	})
	if err != nil || len(toks) != 1 {
		t.Fatalf("toks=%v err=%v", toks, err)
	}
}

func TestTurn_ConcurrentTurnsSerialized(t *testing.T) {
	s := newTestSession(t)
	r := &fakeResponder{reply: "ok"}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Turn(context.Background(), r, "msg", nil); err != nil {
				t.Errorf("turn: %v", err)
			}
		}()
	}
	wg.Wait()
	msgs := s.Messages()
	if len(msgs) != 20 {
		t.Fatalf("len=%d", len(msgs))
	}
	for i, m := range msgs {
		want := chat.RoleUser
		if i%2 == 1 {
			want = chat.RoleAssistant
		}
		if m.Role != want {
			t.Fatalf("message %d role=%s, want %s", i, m.Role, want)
		}
	}
}

func TestReset(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.Turn(context.Background(), &fakeResponder{reply: "ok"}, "hi", nil); err != nil {
		t.Fatalf("turn: %v", err)
	}
	s.Reset()
	if s.Len() != 0 {
		t.Fatalf("reset left %d messages", s.Len())
	}
	if resp := s.Response(); resp.ID != s.ID || len(resp.Messages) != 0 || resp.Messages == nil {
		t.Fatalf("response=%+v", resp)
	}
}

func TestLastActivityAdvances(t *testing.T) {
	s := newTestSession(t)
	before := s.LastActivity()
	time.Sleep(2 * time.Millisecond)
	if _, err := s.Turn(context.Background(), &fakeResponder{reply: "ok"}, "hi", nil); err != nil {
		t.Fatalf("turn: %v", err)
	}
	if !s.LastActivity().After(before) {
		t.Fatalf("last activity not updated")
	}
}
