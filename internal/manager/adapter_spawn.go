package manager

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// llamaSubprocessAdapter spawns one llama-server process per chatbot.
type llamaSubprocessAdapter struct {
	bin        string
	host       string
	ctxSize    int
	threads    int
	gpuLayers  int
	extraArgs  []string
	readyIn    time.Duration
	reqTimeout time.Duration

	httpClient *http.Client
	publisher  EventPublisher
	log        zerolog.Logger
}

// NewLlamaSubprocessAdapter constructs a subprocess-backed adapter.
func NewLlamaSubprocessAdapter(c Config) InferenceAdapter {
	c = c.withDefaults()
	return &llamaSubprocessAdapter{
		bin:        strings.TrimSpace(c.LlamaBin),
		host:       c.LlamaHost,
		ctxSize:    c.ContextSize,
		threads:    c.Threads,
		gpuLayers:  c.GPULayers,
		extraArgs:  append([]string(nil), c.LlamaExtraArgs...),
		readyIn:    c.SpawnReady,
		reqTimeout: c.RequestTimeout,
		// Timeout=0: health checks and generations use context deadlines.
		httpClient: &http.Client{Timeout: 0},
		publisher:  c.Publisher,
		log:        *c.Logger,
	}
}

// llamaSubprocessSession owns a running llama-server.
type llamaSubprocessSession struct {
	a       *llamaSubprocessAdapter
	cmd     *exec.Cmd
	exited  chan struct{}
	baseURL string
	modelID string
	params  InferParams

	closeOnce sync.Once
}

func (a *llamaSubprocessAdapter) Start(spec ModelSpec, params InferParams) (InferSession, error) {
	if strings.TrimSpace(spec.Path) == "" {
		return nil, errors.New("model path is empty")
	}
	bin := a.bin
	if bin == "" {
		bin = discoverLlamaBin()
	}
	if bin == "" {
		return nil, ErrDependencyUnavailable("llama-server not found: set --llama-bin or install llama.cpp")
	}
	if fi, err := os.Stat(bin); err != nil || fi.IsDir() {
		return nil, ErrDependencyUnavailable(fmt.Sprintf("llama-server not found or not a file: %s", bin))
	}
	port, err := pickFreePort(a.host)
	if err != nil {
		return nil, err
	}
	baseURL := fmt.Sprintf("http://%s:%d", a.host, port)

	cmd := exec.Command(bin, a.args(spec, port)...)
	cmd.Dir = filepath.Dir(spec.Path)
	// Only the stderr tail is kept; it is reported when startup fails.
	stderr := &tailWriter{max: stderrTailBytes}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start llama-server: %w", err)
	}
	pid := cmd.Process.Pid
	a.log.Info().Str("model", spec.Path).Int("pid", pid).Str("url", baseURL).Msg("llama-server started")
	a.publisher.Publish(Event{Name: "spawn_start", ModelID: spec.ID, Fields: map[string]any{"pid": pid, "port": port}})

	s := &llamaSubprocessSession{a: a, cmd: cmd, exited: make(chan struct{}), baseURL: baseURL, modelID: spec.ID, params: params}
	waitErrCh := make(chan error, 1)
	go func() {
		waitErrCh <- cmd.Wait()
		close(s.exited)
	}()

	deadline := time.Now().Add(a.readyIn)
	for {
		select {
		case werr := <-waitErrCh:
			tail := stderr.String()
			a.publisher.Publish(Event{Name: "spawn_exit", ModelID: spec.ID, Fields: map[string]any{"pid": pid}})
			return nil, fmt.Errorf("llama-server exited before ready: %v; stderr tail: %s", werr, tail)
		default:
		}
		if a.isHealthy(baseURL, time.Second) {
			a.log.Info().Int("pid", pid).Str("url", baseURL).Msg("llama-server ready")
			a.publisher.Publish(Event{Name: "spawn_ready", ModelID: spec.ID, Fields: map[string]any{"pid": pid, "url": baseURL}})
			return s, nil
		}
		if time.Now().After(deadline) {
			_ = s.Close()
			return nil, fmt.Errorf("llama-server not ready in %s: %s", a.readyIn, baseURL)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func (a *llamaSubprocessAdapter) args(spec ModelSpec, port int) []string {
	args := []string{
		"-m", spec.Path,
		"--host", a.host,
		"--port", strconv.Itoa(port),
	}
	if spec.AdapterPath != "" {
		args = append(args, "--lora", spec.AdapterPath)
	}
	if a.ctxSize > 0 {
		args = append(args, "-c", strconv.Itoa(a.ctxSize))
	}
	if a.gpuLayers > 0 {
		args = append(args, "-ngl", strconv.Itoa(a.gpuLayers))
	}
	if a.threads > 0 {
		args = append(args, "-t", strconv.Itoa(a.threads))
	}
	return append(args, a.extraArgs...)
}

// isHealthy checks if the llama-server at baseURL responds OK to /health.
func (a *llamaSubprocessAdapter) isHealthy(baseURL string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (s *llamaSubprocessSession) Generate(ctx context.Context, prompt string, onToken func(string) error) (FinalResult, error) {
	select {
	case <-s.exited:
		return FinalResult{}, ErrDependencyUnavailable("llama-server exited")
	default:
	}
	if s.a.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.a.reqTimeout)
		defer cancel()
	}
	return streamCompletion(ctx, s.a.httpClient, s.baseURL, "", completionPayload("", prompt, s.params), onToken)
}

// Close terminates the process: SIGTERM first, SIGKILL after two seconds.
func (s *llamaSubprocessSession) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd == nil || s.cmd.Process == nil {
			return
		}
		_ = s.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-s.exited:
		case <-time.After(2 * time.Second):
			_ = s.cmd.Process.Kill()
			<-s.exited
		}
		s.a.publisher.Publish(Event{Name: "spawn_stop", ModelID: s.modelID, Fields: map[string]any{"pid": s.cmd.Process.Pid}})
	})
	return nil
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// discoverLlamaBin attempts to locate a llama.cpp server binary in common paths.
func discoverLlamaBin() string {
	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(home, "apps", "llama.cpp", "build", "bin", "llama-server"),
		"/usr/local/bin/llama-server",
		"/opt/homebrew/bin/llama-server",
	}
	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	if lp, err := exec.LookPath("llama-server"); err == nil {
		return lp
	}
	return ""
}

const stderrTailBytes = 4096

// tailWriter keeps the last max bytes written to it.
type tailWriter struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(p)
	if n >= w.max {
		w.buf = append(w.buf[:0], p[n-w.max:]...)
		return n, nil
	}
	if over := len(w.buf) + n - w.max; over > 0 {
		w.buf = append(w.buf[:0], w.buf[over:]...)
	}
	w.buf = append(w.buf, p...)
	return n, nil
}

func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.buf)
}
