package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/docpilot/internal/state"
	"github.com/user/docpilot/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionShowCmd, sessionExportCmd, sessionClearCmd)

	sessionShowCmd.Flags().Int("tail", 0, "show only the last N events")
	sessionExportCmd.Flags().String("format", state.FormatJSON, "export format: json, yaml or markdown")
	sessionExportCmd.Flags().String("out", "", "write to this file instead of stdout")
}

func stores() (*state.SessionStore, *state.EventStore) {
	cfg := loadConfig()
	return state.NewSessionStore(cfg.DataDir), state.NewEventStore(cfg.DataDir)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect journaled workflow sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, events := stores()

		ctx := context.Background()
		list, err := sessions.List(ctx)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}

		if len(list) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSOURCE\tWORKFLOW\tKEY\tEVENTS\tCREATED")
		for _, s := range list {
			count, err := events.Count(ctx, s.SessionID)
			if err != nil {
				count = 0
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				s.SessionID,
				s.Source,
				s.Workflow,
				s.SessionKey,
				count,
				s.CreatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

func loadTranscript(ctx context.Context, id string, tail int) (state.Transcript, error) {
	sessions, events := stores()
	sess, err := sessions.Get(ctx, types.SessionID(id))
	if err != nil {
		return state.Transcript{}, err
	}
	evs, err := events.Tail(ctx, sess.SessionID, tail)
	if err != nil {
		return state.Transcript{}, fmt.Errorf("read events: %w", err)
	}
	return state.Transcript{Session: sess, Events: evs}, nil
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a session transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tail, _ := cmd.Flags().GetInt("tail")
		t, err := loadTranscript(context.Background(), args[0], tail)
		if err != nil {
			return err
		}
		return state.Export(os.Stdout, t, state.FormatMarkdown)
	},
}

var sessionExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a session transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")

		t, err := loadTranscript(context.Background(), args[0], 0)
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if out != "" {
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			defer f.Close()
			w = f
		}
		if err := state.Export(w, t, format); err != nil {
			return fmt.Errorf("export session: %w", err)
		}
		if out != "" {
			fmt.Fprintf(os.Stderr, "Exported session %s to %s\n", args[0], out)
		}
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <id|all>",
	Short: "Delete a session or all sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, _ := stores()
		ctx := context.Background()

		if args[0] != "all" {
			if err := sessions.Delete(ctx, types.SessionID(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Session %s cleared.\n", args[0])
			return nil
		}

		list, err := sessions.List(ctx)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		for _, s := range list {
			if err := sessions.Delete(ctx, s.SessionID); err != nil {
				return err
			}
		}
		fmt.Fprintf(os.Stdout, "Cleared %d session(s).\n", len(list))
		return nil
	},
}
