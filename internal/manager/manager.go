package manager

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"triaged/internal/chat"
	"triaged/pkg/types"
)

// State represents lifecycle state of the manager.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateError    State = "error"
)

// Manager holds the process-wide chatbot and admits one generation at a time.
type Manager struct {
	cfg       Config
	adapter   InferenceAdapter
	registry  []types.Model
	gate      *gate
	publisher EventPublisher
	log       zerolog.Logger
	startTime time.Time

	reloadMu sync.Mutex // serializes Load calls

	mu       sync.RWMutex
	state    State
	bot      *Chatbot
	settings types.Settings // last requested settings
	lastErr  string

	loadsTotal   atomic.Uint64
	repliesTotal atomic.Uint64
}

// New constructs a Manager. No model is loaded until Load is called.
func New(cfg Config) (*Manager, error) {
	cfg = cfg.withDefaults()
	adapter, err := newAdapter(cfg)
	if err != nil {
		return nil, err
	}
	return &Manager{
		cfg:       cfg,
		adapter:   adapter,
		registry:  append([]types.Model(nil), cfg.Registry...),
		gate:      newGate(cfg.MaxQueueDepth, cfg.MaxWait),
		publisher: cfg.Publisher,
		log:       cfg.Logger.With().Str("component", "manager").Logger(),
		startTime: time.Now(),
		state:     StateUnloaded,
		settings:  DefaultSettings(),
	}, nil
}

// Load builds a chatbot from s and swaps it in for the current one, which is
// closed once no generation uses it. On failure the current chatbot stays.
// s is validated as given; zero values are out of range, not defaults.
func (m *Manager) Load(ctx context.Context, s types.Settings) error {
	s.ModelID = strings.TrimSpace(s.ModelID)
	s.AdapterPath = strings.TrimSpace(s.AdapterPath)
	if err := ValidateSettings(s); err != nil {
		return err
	}
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	m.mu.Lock()
	m.settings = s
	if m.bot == nil {
		m.state = StateLoading
	}
	m.mu.Unlock()

	spec := m.resolveModel(s)
	start := time.Now()
	m.log.Info().Str("model", spec.ID).Str("path", spec.Path).Str("adapter", spec.AdapterPath).Msg("loading model")
	bot, err := NewChatbot(m.adapter, spec, s, paramsFromSettings(s, m.cfg.Stop, m.cfg.Seed))
	if err != nil {
		m.loadFailed(spec, err)
		return err
	}

	release, err := m.gate.acquire(ctx)
	if err != nil {
		_ = bot.Close()
		m.loadFailed(spec, err)
		return fmt.Errorf("swap model: %w", err)
	}
	m.mu.Lock()
	old := m.bot
	m.bot = bot
	m.state = StateReady
	m.lastErr = ""
	m.mu.Unlock()
	if err := old.Close(); err != nil {
		m.log.Warn().Err(err).Msg("close previous model")
	}
	release()

	m.loadsTotal.Add(1)
	modelLoadsTotal.WithLabelValues("ok").Inc()
	m.publisher.Publish(Event{Name: EventModelLoaded, ModelID: spec.ID, Fields: map[string]any{"path": spec.Path, "adapter_path": spec.AdapterPath}})
	m.log.Info().Str("model", spec.ID).Dur("dur", time.Since(start)).Msg("model loaded")
	return nil
}

func (m *Manager) loadFailed(spec ModelSpec, err error) {
	m.mu.Lock()
	m.lastErr = err.Error()
	if m.bot == nil {
		m.state = StateError
	}
	m.mu.Unlock()
	modelLoadsTotal.WithLabelValues("error").Inc()
	m.publisher.Publish(Event{Name: EventModelLoadFailed, ModelID: spec.ID, Fields: map[string]any{"error": err.Error()}})
	m.log.Error().Err(err).Str("model", spec.ID).Msg("model load failed")
}

// Respond produces the assistant reply for history. history is only read.
// onToken, if set, receives streamed fragments of the raw continuation.
func (m *Manager) Respond(ctx context.Context, history []types.Message, onToken func(string) error) (chat.Result, error) {
	if !m.Ready() {
		generationsTotal.WithLabelValues(resultLabel(ErrModelNotLoaded)).Inc()
		return chat.Result{}, ErrModelNotLoaded
	}
	release, err := m.gate.acquire(ctx)
	if err != nil {
		generationsTotal.WithLabelValues(resultLabel(err)).Inc()
		return chat.Result{}, err
	}
	defer release()

	m.mu.RLock()
	bot := m.bot
	m.mu.RUnlock()
	if bot == nil {
		return chat.Result{}, ErrModelNotLoaded
	}

	start := time.Now()
	res, final, err := bot.Respond(ctx, history, onToken)
	if err != nil {
		generationsTotal.WithLabelValues(resultLabel(err)).Inc()
		if ctx.Err() == nil {
			m.mu.Lock()
			m.lastErr = err.Error()
			m.mu.Unlock()
			m.log.Error().Err(err).Int("turns", len(history)).Msg("generation failed")
		}
		return chat.Result{}, fmt.Errorf("generate: %w", err)
	}
	dur := time.Since(start)
	generationsTotal.WithLabelValues("ok").Inc()
	generationDuration.Observe(dur.Seconds())
	m.repliesTotal.Add(1)

	modelID := bot.Settings().ModelID
	m.publisher.Publish(Event{Name: EventReplyGenerated, ModelID: modelID, Fields: map[string]any{"should_stop": res.ShouldStop}})
	if res.ShouldStop {
		triageReadyTotal.Inc()
		m.publisher.Publish(Event{Name: EventTriageReady, ModelID: modelID})
	}
	m.log.Info().
		Dur("dur", dur).
		Int("turns", len(history)).
		Bool("should_stop", res.ShouldStop).
		Str("finish_reason", final.FinishReason).
		Int("completion_tokens", final.Usage.CompletionTokens).
		Msg("reply generated")
	m.log.Debug().Str("reply", res.Reply).Msg("reply text")
	return res, nil
}

// Ready reports whether a chatbot is loaded.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bot != nil && m.state == StateReady
}

// Settings returns the settings of the loaded chatbot, or the last requested
// settings when none is loaded.
func (m *Manager) Settings() types.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.bot != nil {
		return m.bot.Settings()
	}
	return m.settings
}

// Backend returns the configured backend kind.
func (m *Manager) Backend() string { return m.cfg.Backend }

// Status builds the engine part of the /status response.
func (m *Manager) Status() types.StatusResponse {
	settings := m.Settings()
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	return types.StatusResponse{
		State:          string(m.state),
		Backend:        m.cfg.Backend,
		Settings:       settings,
		LastError:      m.lastErr,
		QueueLen:       max(0, m.gate.queued()-m.gate.inflight()),
		Inflight:       m.gate.inflight(),
		LoadsTotal:     m.loadsTotal.Load(),
		RepliesTotal:   m.repliesTotal.Load(),
		UptimeSeconds:  int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
}

// ListModels returns the models discovered in the models directory.
func (m *Manager) ListModels() []types.Model {
	out := make([]types.Model, len(m.registry))
	copy(out, m.registry)
	return out
}

// Close releases the loaded chatbot.
func (m *Manager) Close() error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()
	m.mu.Lock()
	bot := m.bot
	m.bot = nil
	m.state = StateUnloaded
	m.mu.Unlock()
	return bot.Close()
}

// LlamaBuilt reports whether the in-process llama backend is compiled in.
func LlamaBuilt() bool { return llamaBuilt }
