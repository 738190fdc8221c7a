package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"triaged/internal/chat"
	"triaged/internal/manager"
	"triaged/internal/session"
	"triaged/pkg/types"
)

// Texts shown by front-ends.
const (
	Title       = "Medical Chatbot"
	Caption     = "Educational demo. Not a substitute for professional medical advice."
	Disclaimer  = "This chatbot is for educational purposes only. It does not provide medical diagnoses. Always consult a qualified healthcare provider for concerns."
	InputHint   = "Describe your symptoms..."
	ReadyNotice = "The assistant believes it has enough information for a preliminary triage."
	ReloadedMsg = "Model reloaded."
)

// Info returns the static texts served by GET /info.
func Info() types.InfoResponse {
	return types.InfoResponse{
		Title:       Title,
		Caption:     Caption,
		Disclaimer:  Disclaimer,
		InputHint:   InputHint,
		ReadyNotice: ReadyNotice,
	}
}

// decodeJSON enforces the content type and body limit, then decodes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) (int, error) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return http.StatusUnsupportedMediaType, fmt.Errorf("Content-Type must be application/json")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Oversized bodies also land here; report them as invalid JSON.
		return http.StatusBadRequest, fmt.Errorf("%w: invalid JSON body", errBadRequest)
	}
	return 0, nil
}

func (s *server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}

// handleInfo godoc
// @Summary  Front-end texts
// @Tags     meta
// @Produce  json
// @Success  200 {object} types.InfoResponse
// @Router   /info [get]
func (s *server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Info())
}

func (s *server) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Settings())
}

func (s *server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": s.eng.ListModels()})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.eng.Status()
	st.Sessions = s.sessions.Len()
	writeJSON(w, http.StatusOK, st)
}

// handleReload rebuilds the chatbot. Fields omitted from the body keep
// their current values.
// @Summary  Reload the model
// @Tags     model
// @Accept   json
// @Produce  json
// @Param    settings body types.Settings false "Settings to apply"
// @Success  200 {object} types.ReloadResponse
// @Failure  400 {object} types.ErrorResponse
// @Failure  503 {object} types.ErrorResponse
// @Router   /model/reload [post]
func (s *server) handleReload(w http.ResponseWriter, r *http.Request) {
	settings := s.eng.Settings()
	if r.ContentLength != 0 {
		if status, err := decodeJSON(w, r, &settings); err != nil {
			writeJSONError(w, status, err.Error())
			return
		}
	}
	l := reqLog(r)
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	start := time.Now()
	if err := s.eng.Load(ctx, settings); err != nil {
		status := writeError(w, err)
		l.Error().Err(err).Int("status", status).Dur("dur", time.Since(start)).Msg("reload failed")
		return
	}
	l.Info().Str("model", settings.ModelID).Dur("dur", time.Since(start)).Msg("model reloaded")
	writeJSON(w, http.StatusOK, types.ReloadResponse{Message: ReloadedMsg, Settings: s.eng.Settings()})
}

// handleCreateSession godoc
// @Summary  Start a conversation
// @Tags     sessions
// @Produce  json
// @Success  201 {object} types.SessionResponse
// @Failure  429 {object} types.ErrorResponse
// @Router   /sessions [post]
func (s *server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create()
	if err != nil {
		writeError(w, err)
		return
	}
	sessionEventsTotal.WithLabelValues("created").Inc()
	reqLog(r).Info().Str("session", sess.ID).Msg("session created")
	writeJSON(w, http.StatusCreated, sess.Response())
}

// handleImportSession accepts a transcript as produced by the export route.
func (s *server) handleImportSession(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	msgs, err := chat.UnmarshalTranscript(body)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	sess, err := s.sessions.Import(msgs)
	if err != nil {
		writeError(w, err)
		return
	}
	sessionEventsTotal.WithLabelValues("imported").Inc()
	reqLog(r).Info().Str("session", sess.ID).Int("messages", len(msgs)).Msg("session imported")
	writeJSON(w, http.StatusCreated, sess.Response())
}

func (s *server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Response())
}

func (s *server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	sessionEventsTotal.WithLabelValues("deleted").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Reset()
	sessionEventsTotal.WithLabelValues("reset").Inc()
	writeJSON(w, http.StatusOK, sess.Response())
}

// handleExport godoc
// @Summary  Download the transcript
// @Tags     sessions
// @Produce  json
// @Param    id path string true "Session id"
// @Success  200 {array}  types.Message
// @Failure  404 {object} types.ErrorResponse
// @Router   /sessions/{id}/export [get]
func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	b, err := chat.MarshalTranscript(sess.Messages())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode transcript")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", chat.TranscriptFileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// handleMessage runs one chat turn. With ?stream=1 the reply is streamed as
// NDJSON token lines followed by a final done line.
// @Summary  Send a user message
// @Tags     sessions
// @Accept   json
// @Produce  json
// @Param    id     path  string            true  "Session id"
// @Param    stream query string            false "Stream NDJSON when 1"
// @Param    body   body  types.ChatRequest true  "User message"
// @Success  200 {object} types.ChatResponse
// @Failure  400 {object} types.ErrorResponse
// @Failure  404 {object} types.ErrorResponse
// @Failure  429 {object} types.ErrorResponse
// @Failure  503 {object} types.ErrorResponse
// @Router   /sessions/{id}/messages [post]
func (s *server) handleMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req types.ChatRequest
	if status, err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, status, err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, session.ErrEmptyMessage)
		return
	}

	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if replyTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, replyTimeout)
		defer tcancel()
	}

	lvl := requestLogLevel(r)
	l := reqLog(r).With().Str("session", sess.ID).Logger()
	if lvl >= LevelInfo {
		l.Info().Int("history", sess.Len()).Msg("turn start")
	}
	start := time.Now()

	if stream := r.URL.Query().Get("stream"); stream == "1" || stream == "true" {
		s.streamTurn(ctx, w, r, sess, req.Content, lvl)
		return
	}

	res, err := sess.Turn(ctx, s.eng, req.Content, nil)
	if err != nil {
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		status := writeError(w, err)
		if lvl >= LevelError {
			l.Error().Err(err).Int("status", status).Dur("dur", time.Since(start)).Msg("turn end")
		}
		return
	}
	if lvl >= LevelInfo {
		l.Info().Int("status", http.StatusOK).Bool("should_stop", res.ShouldStop).Dur("dur", time.Since(start)).Msg("turn end")
	}
	writeJSON(w, http.StatusOK, chatResponse(res))
}

func (s *server) streamTurn(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *session.Session, content string, lvl LogLevel) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	l := reqLog(r).With().Str("session", sess.ID).Logger()
	var tl *tokenLogger
	if lvl >= LevelDebug {
		tl = &tokenLogger{log: l}
		defer tl.Flush()
	}

	start := time.Now()
	enc := json.NewEncoder(w)
	started := false
	onToken := func(tok string) error {
		started = true
		if tl != nil {
			_, _ = tl.Write([]byte(tok))
		}
		if err := enc.Encode(types.StreamChunk{Token: tok}); err != nil {
			return err
		}
		if flush != nil {
			flush()
		}
		return nil
	}

	res, err := sess.Turn(ctx, s.eng, content, onToken)
	if err != nil {
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		if !started {
			status := writeError(w, err)
			l.Error().Err(err).Int("status", status).Dur("dur", time.Since(start)).Msg("turn end")
			return
		}
		// Headers are gone; report the failure in-band.
		_ = enc.Encode(types.StreamChunk{Done: true, Error: err.Error()})
		l.Error().Err(err).Dur("dur", time.Since(start)).Msg("turn failed mid-stream")
		return
	}
	resp := chatResponse(res)
	_ = enc.Encode(types.StreamChunk{Done: true, Reply: resp.Reply, ShouldStop: resp.ShouldStop, Notice: resp.Notice})
	if flush != nil {
		flush()
	}
	if lvl >= LevelInfo {
		l.Info().Int("status", http.StatusOK).Bool("should_stop", res.ShouldStop).Dur("dur", time.Since(start)).Msg("turn end")
	}
}

func chatResponse(res chat.Result) types.ChatResponse {
	resp := types.ChatResponse{Reply: res.Reply, ShouldStop: res.ShouldStop}
	if res.ShouldStop {
		resp.Notice = ReadyNotice
	}
	return resp
}

var _ Engine = (*manager.Manager)(nil)
var _ Sessions = (*session.Store)(nil)
