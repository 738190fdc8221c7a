package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is the structured logger used by the HTTP layer.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l.With().Str("component", "http").Logger() }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

var defaultLogLevel = LevelInfo

// SetRequestLogLevel sets the level used when a request carries no override.
func SetRequestLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// reqLog returns the HTTP logger tagged with the chi request id.
func reqLog(r *http.Request) *zerolog.Logger {
	l := zlog
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		l = zlog.With().Str("request_id", rid).Logger()
	}
	return &l
}

// tokenLogger logs streamed fragments as complete lines at debug level.
type tokenLogger struct {
	log zerolog.Logger
	buf []byte
}

func (tl *tokenLogger) Write(p []byte) (int, error) {
	tl.buf = append(tl.buf, p...)
	for {
		idx := indexByte(tl.buf, '\n')
		if idx < 0 {
			break
		}
		if line := string(tl.buf[:idx]); line != "" {
			tl.log.Debug().Str("line", line).Msg("reply>")
		}
		tl.buf = tl.buf[idx+1:]
	}
	return len(p), nil
}

// Flush logs whatever partial line is left.
func (tl *tokenLogger) Flush() {
	if len(tl.buf) > 0 {
		tl.log.Debug().Str("line", string(tl.buf)).Msg("reply>")
		tl.buf = nil
	}
}

func indexByte(b []byte, c byte) int {
	for i := range b {
		if b[i] == c {
			return i
		}
	}
	return -1
}
