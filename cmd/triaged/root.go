package main

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// globalOpts are the flags shared by every subcommand.
type globalOpts struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	g := &globalOpts{}
	root := &cobra.Command{
		Use:           "triaged",
		Short:         "Medical triage chatbot server and terminal client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", envStr("TRIAGED_LOG_LEVEL", "info"), "Log level: debug|info|warn|error (env TRIAGED_LOG_LEVEL)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", envStr("TRIAGED_LOG_FORMAT", "json"), "Log format: json|console (env TRIAGED_LOG_FORMAT)")

	root.AddCommand(newServeCmd(g), newChatCmd(), newExportCmd())
	return root
}

// newLogger builds the process logger from level and format.
func newLogger(out io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	var l zerolog.Logger
	switch strings.ToLower(format) {
	case "console", "pretty":
		l = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"})
	default:
		l = zerolog.New(out)
	}
	return l.Level(lvl).With().Timestamp().Str("service", "triaged").Logger()
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// splitCSV splits a comma separated list, dropping blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
