package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"triaged/internal/chat"
)

type chatOpts struct {
	server  string
	load    string
	stream  bool
	timeout time.Duration
}

func newChatCmd() *cobra.Command {
	o := &chatOpts{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to a running server from the terminal",
		Long: "Starts a conversation and reads user messages from stdin.\n" +
			"Commands: /reset clears the conversation, /export [file] saves the transcript, /quit exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			c := newAPIClient(o.server, o.timeout)
			return runChat(ctx, c, o, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&o.server, "server", envStr("TRIAGED_URL", "http://127.0.0.1:8080"), "triaged server URL (env TRIAGED_URL)")
	cmd.Flags().StringVar(&o.load, "load", "", "Resume from a transcript file")
	cmd.Flags().BoolVar(&o.stream, "stream", true, "Print reply tokens as they are generated")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 5*time.Minute, "Per-request timeout")
	return cmd
}

func runChat(ctx context.Context, c *apiClient, o *chatOpts, in io.Reader, out io.Writer) error {
	info, err := c.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n%s\n\nDisclaimer: %s\n\n", info.Title, info.Caption, info.Disclaimer)

	var id string
	if o.load != "" {
		b, err := os.ReadFile(o.load)
		if err != nil {
			return fmt.Errorf("read transcript: %w", err)
		}
		sr, err := c.ImportSession(ctx, b)
		if err != nil {
			return err
		}
		id = sr.ID
		for _, m := range sr.Messages {
			fmt.Fprintf(out, "%s: %s\n", m.Role, m.Content)
		}
	} else {
		sr, err := c.CreateSession(ctx)
		if err != nil {
			return err
		}
		id = sr.ID
	}

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "%s\n> ", info.InputHint)
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/reset":
			if err := c.Reset(ctx, id); err != nil {
				return err
			}
			fmt.Fprintln(out, "Conversation reset.")
			continue
		case strings.HasPrefix(line, "/export"):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/export"))
			if path == "" {
				path = chat.TranscriptFileName
			}
			b, err := c.Export(ctx, id)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, b, 0o644); err != nil {
				return fmt.Errorf("write transcript: %w", err)
			}
			fmt.Fprintf(out, "Saved %s\n", path)
			continue
		}

		fmt.Fprint(out, "assistant: ")
		shouldStop, err := sendTurn(ctx, c, id, line, o.stream, out)
		if err != nil {
			var ae *apiError
			if errors.As(err, &ae) {
				// Server side failures leave the conversation untouched; keep going.
				fmt.Fprintf(out, "\n[error] %s\n", ae.Msg)
				continue
			}
			return err
		}
		if shouldStop {
			fmt.Fprintf(out, "\n[%s]\n", info.ReadyNotice)
		}
	}
}

// sendTurn prints the assistant reply and reports should_stop.
func sendTurn(ctx context.Context, c *apiClient, id, line string, stream bool, out io.Writer) (bool, error) {
	if !stream {
		resp, err := c.Send(ctx, id, line)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(out, resp.Reply)
		return resp.ShouldStop, nil
	}
	var streamed strings.Builder
	resp, err := c.Stream(ctx, id, line, func(tok string) {
		streamed.WriteString(tok)
		fmt.Fprint(out, tok)
	})
	if err != nil {
		return false, err
	}
	// The raw continuation may differ from the extracted reply; show the reply then.
	if strings.TrimSpace(streamed.String()) != resp.Reply {
		fmt.Fprintf(out, "\nassistant: %s", resp.Reply)
	}
	fmt.Fprintln(out)
	return resp.ShouldStop, nil
}
