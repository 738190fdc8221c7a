package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"triaged/internal/config"
	"triaged/internal/httpapi"
	"triaged/internal/manager"
	"triaged/internal/registry"
	"triaged/internal/session"
	"triaged/pkg/types"
)

const (
	defaultAddr          = ":8080"
	defaultServerURL     = "http://127.0.0.1:8081"
	defaultSessionTTLMin = 60
	janitorInterval      = time.Minute
	shutdownTimeout      = 5 * time.Second
)

func newServeCmd(g *globalOpts) *cobra.Command {
	var (
		cfgPath    string
		corsCSV    string
		llamaExtra []string
	)
	cfg := config.Config{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chatbot HTTP server",
		Example: "  triaged serve --backend server --server-url http://127.0.0.1:8081\n" +
			"  triaged serve --backend spawn --model-id ~/models/llm/llama-2-7b-chat.Q4_K_M.gguf --adapter-path ./triage-lora.gguf",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.LogLevel, cfg.LogFormat = g.logLevel, g.logFormat
			cfg.CORSOrigins = splitCSV(corsCSV)
			if cfgPath != "" {
				fileCfg, err := config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				mergeConfig(&cfg, fileCfg, cmd.Flags().Changed)
			}
			log := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, llamaExtra, log)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfgPath, "config", envStr("TRIAGED_CONFIG", ""), "Path to a yaml, json or toml config file (env TRIAGED_CONFIG)")
	f.StringVar(&cfg.Addr, "addr", envStr("TRIAGED_ADDR", defaultAddr), "HTTP listen address, e.g. :8080")
	f.StringVar(&cfg.Backend, "backend", envStr("TRIAGED_BACKEND", manager.BackendServer), "Generation backend: llama|server|spawn")
	f.StringVar(&cfg.ModelsDir, "models-dir", envStr("TRIAGED_MODELS_DIR", ""), "Directory to scan for *.gguf model files")
	f.StringVar(&cfg.ModelID, "model-id", envStr("TRIAGED_MODEL_ID", manager.DefaultModelID), "Model id, models-dir id or gguf path")
	f.StringVar(&cfg.AdapterPath, "adapter-path", envStr("TRIAGED_ADAPTER_PATH", ""), "Optional LoRA adapter path")
	f.IntVar(&cfg.MaxNewTokens, "max-new-tokens", envInt("TRIAGED_MAX_NEW_TOKENS", manager.DefaultMaxNewTokens), "Max new tokens per reply (64..512)")
	f.Float64Var(&cfg.Temperature, "temperature", envFloat("TRIAGED_TEMPERATURE", manager.DefaultTemperature), "Sampling temperature (0.1..1.5)")
	f.Float64Var(&cfg.TopP, "top-p", envFloat("TRIAGED_TOP_P", manager.DefaultTopP), "Nucleus sampling probability (0.1..1.0)")
	f.StringSliceVar(&cfg.Stop, "stop", splitCSV(envStr("TRIAGED_STOP", "")), "Stop sequences (comma separated)")
	f.IntVar(&cfg.Seed, "seed", envInt("TRIAGED_SEED", 0), "Sampling seed (0 = runtime default)")
	f.IntVar(&cfg.GPULayers, "gpu-layers", envInt("TRIAGED_GPU_LAYERS", 0), "Layers to offload to the GPU")
	f.IntVar(&cfg.ContextSize, "context-size", envInt("TRIAGED_CONTEXT_SIZE", 2048), "Model context size in tokens")
	f.IntVar(&cfg.Threads, "threads", envInt("TRIAGED_THREADS", 0), "Generation threads (0 = runtime default)")
	f.StringVar(&cfg.ServerURL, "server-url", envStr("TRIAGED_SERVER_URL", defaultServerURL), "llama.cpp server base URL (server backend)")
	f.StringVar(&cfg.APIKey, "api-key", envStr("TRIAGED_API_KEY", ""), "Bearer token for the llama.cpp server")
	f.StringVar(&cfg.LlamaBin, "llama-bin", envStr("TRIAGED_LLAMA_BIN", ""), "llama-server binary (spawn backend; default: search PATH)")
	f.StringSliceVar(&llamaExtra, "llama-arg", nil, "Extra llama-server argument (repeatable, spawn backend)")
	f.IntVar(&cfg.MaxQueueDepth, "max-queue-depth", envInt("TRIAGED_MAX_QUEUE_DEPTH", 8), "Generations allowed to wait for the model")
	f.IntVar(&cfg.MaxWaitSeconds, "max-wait-seconds", envInt("TRIAGED_MAX_WAIT_SECONDS", 120), "Max seconds a generation waits before 429")
	f.IntVar(&cfg.InferTimeoutSeconds, "infer-timeout-seconds", envInt("TRIAGED_INFER_TIMEOUT_SECONDS", 0), "Per-turn timeout in seconds (0 = none)")
	f.IntVar(&cfg.SessionTTLMinutes, "session-ttl-minutes", envInt("TRIAGED_SESSION_TTL_MINUTES", defaultSessionTTLMin), "Idle minutes before a session expires (0 = never)")
	f.IntVar(&cfg.MaxSessions, "max-sessions", envInt("TRIAGED_MAX_SESSIONS", 0), "Live sessions allowed before creation answers 429 (0 = no limit)")
	f.Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", int64(envInt("TRIAGED_MAX_BODY_BYTES", 1<<20)), "Max JSON request body size")
	f.StringVar(&corsCSV, "cors-origins", envStr("TRIAGED_CORS_ORIGINS", ""), "Allowed CORS origins (comma separated); empty disables CORS")
	return cmd
}

// mergeConfig fills dst from file for every option whose flag was not set
// explicitly. Zero values in file are ignored.
func mergeConfig(dst *config.Config, file config.Config, changed func(string) bool) {
	str := func(flag string, d *string, v string) {
		if !changed(flag) && strings.TrimSpace(v) != "" {
			*d = v
		}
	}
	num := func(flag string, d *int, v int) {
		if !changed(flag) && v != 0 {
			*d = v
		}
	}
	flt := func(flag string, d *float64, v float64) {
		if !changed(flag) && v != 0 {
			*d = v
		}
	}
	list := func(flag string, d *[]string, v []string) {
		if !changed(flag) && len(v) > 0 {
			*d = append([]string(nil), v...)
		}
	}

	str("addr", &dst.Addr, file.Addr)
	str("backend", &dst.Backend, file.Backend)
	str("models-dir", &dst.ModelsDir, file.ModelsDir)
	str("model-id", &dst.ModelID, file.ModelID)
	str("adapter-path", &dst.AdapterPath, file.AdapterPath)
	num("max-new-tokens", &dst.MaxNewTokens, file.MaxNewTokens)
	flt("temperature", &dst.Temperature, file.Temperature)
	flt("top-p", &dst.TopP, file.TopP)
	list("stop", &dst.Stop, file.Stop)
	num("seed", &dst.Seed, file.Seed)
	num("gpu-layers", &dst.GPULayers, file.GPULayers)
	num("context-size", &dst.ContextSize, file.ContextSize)
	num("threads", &dst.Threads, file.Threads)
	str("server-url", &dst.ServerURL, file.ServerURL)
	str("api-key", &dst.APIKey, file.APIKey)
	str("llama-bin", &dst.LlamaBin, file.LlamaBin)
	num("max-queue-depth", &dst.MaxQueueDepth, file.MaxQueueDepth)
	num("max-wait-seconds", &dst.MaxWaitSeconds, file.MaxWaitSeconds)
	num("infer-timeout-seconds", &dst.InferTimeoutSeconds, file.InferTimeoutSeconds)
	num("session-ttl-minutes", &dst.SessionTTLMinutes, file.SessionTTLMinutes)
	num("max-sessions", &dst.MaxSessions, file.MaxSessions)
	if !changed("max-body-bytes") && file.MaxBodyBytes > 0 {
		dst.MaxBodyBytes = file.MaxBodyBytes
	}
	list("cors-origins", &dst.CORSOrigins, file.CORSOrigins)
	str("log-level", &dst.LogLevel, file.LogLevel)
	str("log-format", &dst.LogFormat, file.LogFormat)
}

func settingsFromConfig(cfg config.Config) types.Settings {
	return manager.WithDefaults(types.Settings{
		ModelID:      cfg.ModelID,
		AdapterPath:  cfg.AdapterPath,
		MaxNewTokens: cfg.MaxNewTokens,
		Temperature:  cfg.Temperature,
		TopP:         cfg.TopP,
	})
}

func managerConfig(cfg config.Config, reg []types.Model, llamaExtra []string, log *zerolog.Logger) manager.Config {
	return manager.Config{
		Backend:        cfg.Backend,
		Registry:       reg,
		Stop:           cfg.Stop,
		Seed:           cfg.Seed,
		MaxQueueDepth:  cfg.MaxQueueDepth,
		MaxWait:        time.Duration(cfg.MaxWaitSeconds) * time.Second,
		ContextSize:    cfg.ContextSize,
		Threads:        cfg.Threads,
		GPULayers:      cfg.GPULayers,
		ServerURL:      cfg.ServerURL,
		APIKey:         cfg.APIKey,
		LlamaBin:       cfg.LlamaBin,
		LlamaExtraArgs: llamaExtra,
		Publisher:      manager.LogPublisher{Log: *log},
		Logger:         log,
	}
}

// configureHTTP applies the package-level HTTP options from cfg.
func configureHTTP(ctx context.Context, cfg config.Config, log zerolog.Logger) {
	httpapi.SetLogger(log)
	httpapi.SetRequestLogLevel(cfg.LogLevel)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetReplyTimeoutSeconds(int64(cfg.InferTimeoutSeconds))
	if len(cfg.CORSOrigins) > 0 {
		httpapi.SetCORSOptions(true, cfg.CORSOrigins,
			[]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			[]string{"Content-Type", "X-Log-Level", "X-Request-Id"})
	}
}

func runServe(ctx context.Context, cfg config.Config, llamaExtra []string, log zerolog.Logger) error {
	reg, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		return fmt.Errorf("load models dir: %w", err)
	}
	mgr, err := manager.New(managerConfig(cfg, reg, llamaExtra, &log))
	if err != nil {
		return fmt.Errorf("init manager: %w", err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Warn().Err(err).Msg("close model")
		}
	}()

	store := session.NewStore(log)
	store.SetMaxSessions(cfg.MaxSessions)
	if cfg.SessionTTLMinutes > 0 {
		go store.Run(ctx, janitorInterval, time.Duration(cfg.SessionTTLMinutes)*time.Minute)
	}

	configureHTTP(ctx, cfg, log)

	// The model loads in the background; /readyz reports loading until it is done.
	go func() {
		if err := mgr.Load(ctx, settingsFromConfig(cfg)); err != nil {
			log.Error().Err(err).Msg("initial model load failed; POST /model/reload to retry")
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr, store),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("backend", mgr.Backend()).Int("models", len(reg)).Msg("triaged listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown (Ctrl+C / SIGTERM)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
