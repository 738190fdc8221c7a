package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeAdapter is a lightweight in-memory adapter used for tests.
type fakeAdapter struct {
	mu       sync.Mutex
	startErr error
	genErr   error
	tokens   []string
	final    FinalResult
	block    chan struct{} // when set, Generate waits for it to close
	started  []ModelSpec
	params   []InferParams
	prompts  []string
	closed   int
}

func (f *fakeAdapter) Start(spec ModelSpec, params InferParams) (InferSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, spec)
	f.params = append(f.params, params)
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &fakeSession{f: f}, nil
}

func (f *fakeAdapter) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeSession struct{ f *fakeAdapter }

func (s *fakeSession) Generate(ctx context.Context, prompt string, onToken func(string) error) (FinalResult, error) {
	s.f.mu.Lock()
	s.f.prompts = append(s.f.prompts, prompt)
	block, genErr, tokens, final := s.f.block, s.f.genErr, s.f.tokens, s.f.final
	s.f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return FinalResult{}, ctx.Err()
		}
	}
	if genErr != nil {
		return FinalResult{}, genErr
	}
	for _, t := range tokens {
		if err := onToken(t); err != nil {
			return FinalResult{}, err
		}
	}
	return final, nil
}

func (s *fakeSession) Close() error {
	s.f.mu.Lock()
	s.f.closed++
	s.f.mu.Unlock()
	return nil
}

var errBoom = errors.New("boom")

func newTestManager(t *testing.T, fa *fakeAdapter, pub EventPublisher) *Manager {
	t.Helper()
	m, err := New(Config{Adapter: fa, Publisher: pub, MaxQueueDepth: 2, MaxWait: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func loadDefault(t *testing.T, m *Manager) {
	t.Helper()
	if err := m.Load(context.Background(), DefaultSettings()); err != nil {
		t.Fatalf("load: %v", err)
	}
}
