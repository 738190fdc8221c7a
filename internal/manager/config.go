package manager

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"triaged/pkg/types"
)

// Backend kinds.
const (
	BackendLlama  = "llama"
	BackendServer = "server"
	BackendSpawn  = "spawn"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueueDepth = 8
	defaultMaxWait       = 120 * time.Second
	defaultContextSize   = 2048
	defaultSpawnReady    = 60 * time.Second
	defaultLlamaHost     = "127.0.0.1"
)

// Config encapsulates all tunables for Manager construction.
type Config struct {
	// Backend selects the runtime: llama, server or spawn.
	Backend string
	// Registry lists model files discovered in the models directory.
	Registry []types.Model
	// Stop sequences applied to every generation (optional).
	Stop []string
	// Seed for sampling; 0 lets the runtime choose.
	Seed int

	// Admission
	MaxQueueDepth int
	MaxWait       time.Duration

	// llama.cpp options shared by the llama and spawn backends.
	ContextSize int
	Threads     int
	GPULayers   int

	// server backend
	ServerURL      string
	APIKey         string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration

	// spawn backend
	LlamaBin       string
	LlamaHost      string
	LlamaExtraArgs []string
	SpawnReady     time.Duration

	Publisher EventPublisher
	Logger    *zerolog.Logger
	// Adapter overrides backend selection (tests, embedding).
	Adapter InferenceAdapter
}

func (c Config) withDefaults() Config {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = BackendServer
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = defaultMaxQueueDepth
	}
	if c.MaxWait <= 0 {
		c.MaxWait = defaultMaxWait
	}
	if c.ContextSize <= 0 {
		c.ContextSize = defaultContextSize
	}
	if c.SpawnReady <= 0 {
		c.SpawnReady = defaultSpawnReady
	}
	if strings.TrimSpace(c.LlamaHost) == "" {
		c.LlamaHost = defaultLlamaHost
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	return c
}

// newAdapter builds the InferenceAdapter for the configured backend.
func newAdapter(c Config) (InferenceAdapter, error) {
	if c.Adapter != nil {
		return c.Adapter, nil
	}
	switch c.Backend {
	case BackendLlama:
		return NewLlamaAdapter(c.ContextSize, c.Threads, c.GPULayers), nil
	case BackendServer:
		if strings.TrimSpace(c.ServerURL) == "" {
			return nil, fmt.Errorf("backend %q requires a server url", c.Backend)
		}
		return NewLlamaServerAdapter(c.ServerURL, c.APIKey, c.RequestTimeout, c.ConnectTimeout, *c.Logger), nil
	case BackendSpawn:
		return NewLlamaSubprocessAdapter(c), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want llama, server or spawn)", c.Backend)
	}
}
