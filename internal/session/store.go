package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"triaged/pkg/types"
)

// Store holds live sessions keyed by id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	max      int
	log      zerolog.Logger
	now      func() time.Time
}

// NewStore returns an empty store.
func NewStore(log zerolog.Logger) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		log:      log.With().Str("component", "sessions").Logger(),
		now:      time.Now,
	}
}

// SetMaxSessions caps the number of live sessions. n <= 0 means no cap.
func (st *Store) SetMaxSessions(n int) {
	st.mu.Lock()
	st.max = n
	st.mu.Unlock()
}

// Create starts an empty session.
func (st *Store) Create() (*Session, error) { return st.Import(nil) }

// Import starts a session whose history is msgs (e.g. a re-uploaded transcript).
// It fails with a full error when the store is at its cap.
func (st *Store) Import(msgs []types.Message) (*Session, error) {
	s := newSession(uuid.NewString(), st.now(), msgs)
	st.mu.Lock()
	if st.max > 0 && len(st.sessions) >= st.max {
		st.mu.Unlock()
		return nil, fullError{max: st.max}
	}
	st.sessions[s.ID] = s
	st.mu.Unlock()
	st.log.Debug().Str("session_id", s.ID).Int("messages", len(msgs)).Msg("session created")
	return s, nil
}

// Get finds a session by id.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, notFoundError{id: id}
	}
	return s, nil
}

// Delete tears a session down.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if !ok {
		return notFoundError{id: id}
	}
	st.log.Debug().Str("session_id", id).Msg("session deleted")
	return nil
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep removes sessions idle for longer than maxIdle and returns how many.
func (st *Store) Sweep(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	cutoff := st.now().Add(-maxIdle)
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for id, s := range st.sessions {
		if s.LastActivity().Before(cutoff) {
			delete(st.sessions, id)
			n++
		}
	}
	if n > 0 {
		st.log.Info().Int("expired", n).Int("live", len(st.sessions)).Msg("expired idle sessions")
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (st *Store) Run(ctx context.Context, interval, maxIdle time.Duration) {
	if interval <= 0 || maxIdle <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st.Sweep(maxIdle)
		}
	}
}
