package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"triaged/internal/chat"
)

func newExportCmd() *cobra.Command {
	var (
		server string
		out    string
	)
	cmd := &cobra.Command{
		Use:     "export <session-id>",
		Short:   "Download a session transcript as JSON",
		Example: "  triaged export 5b1f0c2e-8a55-4c57-9d0e-3c1a1b5b8e42 -o chat_history.json",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newAPIClient(server, 30*time.Second)
			b, err := c.Export(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(append(b, '\n'))
				return err
			}
			if err := os.WriteFile(out, b, 0o644); err != nil {
				return fmt.Errorf("write transcript: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", envStr("TRIAGED_URL", "http://127.0.0.1:8080"), "triaged server URL (env TRIAGED_URL)")
	cmd.Flags().StringVarP(&out, "output", "o", chat.TranscriptFileName, "Output file, - for stdout")
	return cmd
}
