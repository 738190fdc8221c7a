package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"triaged/internal/chat"
	"triaged/pkg/types"
)

// Responder produces the assistant reply for a history it must not modify.
type Responder interface {
	Respond(ctx context.Context, history []types.Message, onToken func(string) error) (chat.Result, error)
}

// Session is one conversation. Its history is append-only except for Reset.
type Session struct {
	ID        string
	CreatedAt time.Time

	turnMu sync.Mutex // one turn at a time

	mu           sync.RWMutex
	messages     []types.Message
	lastActivity time.Time
}

func newSession(id string, now time.Time, msgs []types.Message) *Session {
	return &Session{
		ID:           id,
		CreatedAt:    now,
		messages:     append([]types.Message(nil), msgs...),
		lastActivity: now,
	}
}

// Messages returns a copy of the history.
func (s *Session) Messages() []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// LastActivity returns the time of the last turn, reset or creation.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// Reset clears the history. It waits for a running turn to finish.
func (s *Session) Reset() {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()
	s.mu.Lock()
	s.messages = nil
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Response returns the API view of the session.
func (s *Session) Response() types.SessionResponse {
	return types.SessionResponse{ID: s.ID, CreatedAt: s.CreatedAt.Unix(), Messages: s.Messages()}
}

// Turn appends the user message, asks r for a reply over a copy of the
// history and appends the assistant reply. If r fails the user message is
// removed again so a retry does not duplicate it.
func (s *Session) Turn(ctx context.Context, r Responder, content string, onToken func(string) error) (chat.Result, error) {
	if strings.TrimSpace(content) == "" {
		return chat.Result{}, ErrEmptyMessage
	}
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.mu.Lock()
	s.messages = append(s.messages, types.Message{Role: chat.RoleUser, Content: content})
	n := len(s.messages)
	snapshot := make([]types.Message, n)
	copy(snapshot, s.messages)
	s.lastActivity = time.Now()
	s.mu.Unlock()

	res, err := r.Respond(ctx, snapshot, onToken)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
	if err != nil {
		s.messages = s.messages[:n-1]
		return chat.Result{}, err
	}
	s.messages = append(s.messages, types.Message{Role: chat.RoleAssistant, Content: res.Reply})
	return res, nil
}
