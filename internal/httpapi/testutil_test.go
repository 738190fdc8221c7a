package httpapi

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"triaged/internal/chat"
	"triaged/internal/manager"
	"triaged/internal/session"
	"triaged/pkg/types"
)

// fakeEngine answers every turn with a fixed reply.
type fakeEngine struct {
	mu        sync.Mutex
	reply     string
	stop      bool
	tokens    []string
	err       error
	failAfter error // returned once all tokens were sent
	loadErr   error
	block     chan struct{}
	ready     bool
	settings  types.Settings
	models    []types.Model
	histories [][]types.Message
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{reply: "How long have you had it?", ready: true, settings: manager.DefaultSettings()}
}

func (f *fakeEngine) Respond(ctx context.Context, history []types.Message, onToken func(string) error) (chat.Result, error) {
	f.mu.Lock()
	f.histories = append(f.histories, history)
	reply, stop, tokens, err, block, failAfter := f.reply, f.stop, f.tokens, f.err, f.block, f.failAfter
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return chat.Result{}, ctx.Err()
		}
	}
	if err != nil {
		return chat.Result{}, err
	}
	if onToken != nil {
		for _, t := range tokens {
			if err := onToken(t); err != nil {
				return chat.Result{}, err
			}
		}
	}
	if failAfter != nil {
		return chat.Result{}, failAfter
	}
	return chat.Result{Reply: reply, ShouldStop: stop}, nil
}

func (f *fakeEngine) Load(ctx context.Context, s types.Settings) error {
	if err := manager.ValidateSettings(s); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return f.loadErr
	}
	f.settings = s
	return nil
}

func (f *fakeEngine) Settings() types.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings
}

func (f *fakeEngine) Status() types.StatusResponse {
	return types.StatusResponse{State: "ready", Backend: "fake", Settings: f.Settings()}
}

func (f *fakeEngine) ListModels() []types.Model { return append([]types.Model(nil), f.models...) }
func (f *fakeEngine) Ready() bool               { return f.ready }

func busyErr() error { return manager.ErrTooBusy("queue full") }

func newTestMux(t *testing.T, eng *fakeEngine) (http.Handler, *session.Store) {
	t.Helper()
	st := session.NewStore(zerolog.Nop())
	return NewMux(eng, st), st
}

func jsonBody(s string) *strings.Reader { return strings.NewReader(s) }
