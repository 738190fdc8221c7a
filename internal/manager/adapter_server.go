package manager

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// llamaServerAdapter implements InferenceAdapter by talking to a running
// llama.cpp server over its OpenAI-compatible completions endpoint.
type llamaServerAdapter struct {
	baseURL    string
	apiKey     string
	reqTimeout time.Duration
	httpClient *http.Client
	log        zerolog.Logger
}

// NewLlamaServerAdapter constructs a server-backed adapter.
func NewLlamaServerAdapter(baseURL, apiKey string, reqTimeout, connectTimeout time.Duration, log zerolog.Logger) InferenceAdapter {
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout=0: every request carries a context deadline instead.
	cli := &http.Client{Transport: tr, Timeout: 0}
	return &llamaServerAdapter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		reqTimeout: reqTimeout,
		httpClient: cli,
		log:        log,
	}
}

// llamaServerSession holds per-chatbot state: the model name and base params.
type llamaServerSession struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	reqTimeout time.Duration
	modelID    string
	params     InferParams
}

func (a *llamaServerAdapter) Start(spec ModelSpec, params InferParams) (InferSession, error) {
	if spec.AdapterPath != "" {
		// The server owns its weights; adapters must be passed with --lora at server start.
		a.log.Warn().Str("adapter_path", spec.AdapterPath).Msg("adapter path ignored by server backend")
	}
	return &llamaServerSession{
		client:     a.httpClient,
		baseURL:    a.baseURL,
		apiKey:     a.apiKey,
		reqTimeout: a.reqTimeout,
		modelID:    strings.TrimSpace(spec.ID),
		params:     params,
	}, nil
}

func (s *llamaServerSession) Generate(ctx context.Context, prompt string, onToken func(string) error) (FinalResult, error) {
	if s.client == nil {
		return FinalResult{}, errors.New("llama server adapter not initialized")
	}
	if s.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.reqTimeout)
		defer cancel()
	}
	return streamCompletion(ctx, s.client, s.baseURL, s.apiKey, completionPayload(s.modelID, prompt, s.params), onToken)
}

func (s *llamaServerSession) Close() error { return nil }

// openAICompletionRequest represents the payload for /v1/completions.
type openAICompletionRequest struct {
	Model         string   `json:"model,omitempty"`
	Prompt        string   `json:"prompt"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	Temperature   float32  `json:"temperature,omitempty"`
	TopP          float32  `json:"top_p,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	Stop          []string `json:"stop,omitempty"`
	Seed          int      `json:"seed,omitempty"`
	Stream        bool     `json:"stream"`
	RepeatPenalty float32  `json:"repeat_penalty,omitempty"`
}

// openAIStreamChoice is the subset of a streamed completion chunk we read.
// Completions stream "text"; chat-style servers stream "delta.content".
type openAIStreamChoice struct {
	Text  string `json:"text"`
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type openAIStreamResponse struct {
	Choices []openAIStreamChoice `json:"choices"`
	Usage   *Usage               `json:"usage,omitempty"`
	// llama.cpp native streaming fields
	Content string `json:"content"`
	Stop    bool   `json:"stop"`
}

func completionPayload(modelID, prompt string, p InferParams) openAICompletionRequest {
	return openAICompletionRequest{
		Model:         modelID,
		Prompt:        prompt,
		MaxTokens:     p.MaxTokens,
		Temperature:   p.Temperature,
		TopP:          p.TopP,
		TopK:          p.TopK,
		Stop:          p.Stop,
		Seed:          p.Seed,
		Stream:        true,
		RepeatPenalty: p.RepeatPenalty,
	}
}

// streamCompletion posts payload to baseURL/v1/completions and reads the SSE
// stream, forwarding fragments to onToken (which may be nil).
func streamCompletion(ctx context.Context, client *http.Client, baseURL, apiKey string, payload openAICompletionRequest, onToken func(string) error) (FinalResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return FinalResult{}, fmt.Errorf("encode completion request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return FinalResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return FinalResult{}, ctx.Err()
		}
		return FinalResult{}, ErrDependencyUnavailable("llama server unreachable: " + err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusServiceUnavailable {
			return FinalResult{}, ErrDependencyUnavailable("llama server unavailable: " + strings.TrimSpace(string(b)))
		}
		return FinalResult{}, fmt.Errorf("llama server http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	var (
		final FinalResult
		b     strings.Builder
	)
	emit := func(frag string) error {
		if frag == "" {
			return nil
		}
		b.WriteString(frag)
		if onToken != nil {
			return onToken(frag)
		}
		return nil
	}
	r := bufio.NewReader(resp.Body)
	for {
		line, rerr := r.ReadString('\n')
		if l := strings.TrimSpace(line); l != "" && strings.HasPrefix(strings.ToLower(l), "data:") {
			data := strings.TrimSpace(l[len("data:"):])
			if data == "[DONE]" {
				break
			}
			var msg openAIStreamResponse
			if err := json.Unmarshal([]byte(data), &msg); err != nil {
				return final, fmt.Errorf("decode stream chunk: %w", err)
			}
			if msg.Usage != nil {
				final.Usage = *msg.Usage
			}
			if len(msg.Choices) > 0 {
				c := msg.Choices[0]
				frag := c.Text
				if frag == "" {
					frag = c.Delta.Content
				}
				if err := emit(frag); err != nil {
					return final, err
				}
				if c.FinishReason != "" {
					final.FinishReason = c.FinishReason
				}
			} else {
				if err := emit(msg.Content); err != nil {
					return final, err
				}
				if msg.Stop && final.FinishReason == "" {
					final.FinishReason = "stop"
				}
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				return final, ctx.Err()
			}
			return final, fmt.Errorf("read stream: %w", rerr)
		}
	}
	final.Content = b.String()
	return final, nil
}
