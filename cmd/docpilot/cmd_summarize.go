package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/user/docpilot/internal/ingest"
	"github.com/user/docpilot/internal/state"
	"github.com/user/docpilot/internal/types"
	"github.com/user/docpilot/internal/workflow"
)

func init() {
	rootCmd.AddCommand(summarizeCmd)
	summarizeCmd.Flags().Int("clusters", 0, fmt.Sprintf("number of clusters, %d-%d (default from config)", workflow.MinClusters, workflow.MaxClusters))
	summarizeCmd.Flags().Int("max-tokens", 0, "token budget for the summary (default from config)")
	summarizeCmd.Flags().String("out", "", "directory to save the summary into")
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <file>",
	Short: "Summarize a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		clusters, _ := cmd.Flags().GetInt("clusters")
		flagTokens, _ := cmd.Flags().GetInt("max-tokens")
		outDir, _ := cmd.Flags().GetString("out")

		if clusters == 0 {
			clusters = a.cfg.Summarizer.Clusters
		}
		maxTokens, err := a.maxTokens(flagTokens)
		if err != nil {
			return err
		}

		raw, err := ingest.Describe(args[0])
		if err != nil {
			return err
		}

		summarizer := workflow.NewSummarizer(a.env(a.printer))
		if len(summarizer.Select(raw)) == 0 {
			return fmt.Errorf("%s is not an accepted document (%s)", args[0], a.constraints())
		}

		ctx, stop := signalContext()
		defer stop()

		return runWithMetrics(ctx, a, func(ctx context.Context) error {
			a.printer.Dim("Summarizing %s into %d clusters...", raw[0].Name, clusters)
			res := summarizer.Summarize(ctx, clusters, maxTokens)
			if err := resultErr(res); err != nil {
				return err
			}
			a.printer.Line("%s", res.Value)

			recordSummary(ctx, a, raw[0].Name, clusters, res.Value)

			if outDir != "" {
				path, err := summarizer.Export(outDir)
				if err != nil {
					return fmt.Errorf("export summary: %w", err)
				}
				a.printer.Dim("Saved to %s", path)
			}
			return nil
		})
	},
}

func recordSummary(ctx context.Context, a *app, document string, clusters int, summary string) {
	journal, err := state.OpenJournal(ctx, a.sessions, a.events, newCLISessionKey("summarize"), "summarize", "cli")
	if err == nil {
		err = journal.Record(ctx, types.EventSummary, state.SummaryPayload{
			Document: document,
			Clusters: clusters,
			Summary:  summary,
		})
	}
	if err != nil {
		slog.Warn("journal summary", "error", err)
	}
}
