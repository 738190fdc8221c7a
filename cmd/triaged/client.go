package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"triaged/pkg/types"
)

// apiClient talks to a running triaged server.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string, timeout time.Duration) *apiClient {
	return &apiClient{base: strings.TrimRight(base, "/"), http: &http.Client{Timeout: timeout}}
}

// apiError is a non-2xx response decoded from the server's error payload.
type apiError struct {
	Status int
	Msg    string
}

func (e *apiError) Error() string { return fmt.Sprintf("server returned %d: %s", e.Status, e.Msg) }

func (c *apiClient) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		var er types.ErrorResponse
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(b, &er) != nil || er.Error == "" {
			er.Error = strings.TrimSpace(string(b))
		}
		return nil, &apiError{Status: resp.StatusCode, Msg: er.Error}
	}
	return resp, nil
}

func (c *apiClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	ct := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body, ct = bytes.NewReader(b), "application/json"
	}
	resp, err := c.do(ctx, method, path, body, ct)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *apiClient) Info(ctx context.Context) (types.InfoResponse, error) {
	var info types.InfoResponse
	err := c.doJSON(ctx, http.MethodGet, "/info", nil, &info)
	return info, err
}

func (c *apiClient) CreateSession(ctx context.Context) (types.SessionResponse, error) {
	var sr types.SessionResponse
	err := c.doJSON(ctx, http.MethodPost, "/sessions", nil, &sr)
	return sr, err
}

// ImportSession starts a session from a transcript file's bytes.
func (c *apiClient) ImportSession(ctx context.Context, transcript []byte) (types.SessionResponse, error) {
	var sr types.SessionResponse
	resp, err := c.do(ctx, http.MethodPost, "/sessions/import", bytes.NewReader(transcript), "application/json")
	if err != nil {
		return sr, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return sr, fmt.Errorf("decode import response: %w", err)
	}
	return sr, nil
}

func (c *apiClient) Reset(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/sessions/"+id+"/reset", nil, nil)
}

// Export returns the transcript bytes exactly as served.
func (c *apiClient) Export(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/sessions/"+id+"/export", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *apiClient) Send(ctx context.Context, id, content string) (types.ChatResponse, error) {
	var cr types.ChatResponse
	err := c.doJSON(ctx, http.MethodPost, "/sessions/"+id+"/messages", types.ChatRequest{Content: content}, &cr)
	return cr, err
}

// Stream sends content with ?stream=1, passing each token to onToken, and
// returns the final reply.
func (c *apiClient) Stream(ctx context.Context, id, content string, onToken func(string)) (types.ChatResponse, error) {
	b, err := json.Marshal(types.ChatRequest{Content: content})
	if err != nil {
		return types.ChatResponse{}, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/sessions/"+id+"/messages?stream=1", bytes.NewReader(b), "application/json")
	if err != nil {
		return types.ChatResponse{}, err
	}
	defer resp.Body.Close()
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		var chunk types.StreamChunk
		if err := json.Unmarshal(sc.Bytes(), &chunk); err != nil {
			return types.ChatResponse{}, fmt.Errorf("decode stream line: %w", err)
		}
		if chunk.Done {
			if chunk.Error != "" {
				return types.ChatResponse{}, &apiError{Status: http.StatusInternalServerError, Msg: chunk.Error}
			}
			return types.ChatResponse{Reply: chunk.Reply, ShouldStop: chunk.ShouldStop, Notice: chunk.Notice}, nil
		}
		if onToken != nil {
			onToken(chunk.Token)
		}
	}
	if err := sc.Err(); err != nil {
		return types.ChatResponse{}, fmt.Errorf("read stream: %w", err)
	}
	return types.ChatResponse{}, fmt.Errorf("stream ended without a final line")
}
