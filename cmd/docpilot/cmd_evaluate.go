package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/docpilot/internal/history"
	"github.com/user/docpilot/internal/ingest"
	"github.com/user/docpilot/internal/lifecycle"
	"github.com/user/docpilot/internal/state"
	"github.com/user/docpilot/internal/types"
	"github.com/user/docpilot/internal/workflow"
)

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().String("context", "", "context document (required)")
	evaluateCmd.Flags().String("metrics", "", "metrics document (required)")
	evaluateCmd.Flags().Int("max-tokens", 0, "token budget per answer (default from config)")
	_ = evaluateCmd.MarkFlagRequired("context")
	_ = evaluateCmd.MarkFlagRequired("metrics")
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Ask for feedback on a document against evaluation metrics",
	Args:  cobra.NoArgs,
	RunE:  runEvaluate,
}

const evaluateHelp = "Commands: /context PATH, /metrics PATH, /process, /reset, /history, /quit"

func runEvaluate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	contextPath, _ := cmd.Flags().GetString("context")
	metricsPath, _ := cmd.Flags().GetString("metrics")
	flagTokens, _ := cmd.Flags().GetInt("max-tokens")

	maxTokens, err := a.maxTokens(flagTokens)
	if err != nil {
		return err
	}

	contextRaw, metricsRaw, err := describePair(contextPath, metricsPath)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	journal, err := state.OpenJournal(ctx, a.sessions, a.events, newCLISessionKey("evaluate"), "evaluate", "cli")
	if err != nil {
		return err
	}

	s := &evalSession{app: a, eval: workflow.NewEvaluator(a.env(a.printer)), journal: journal, maxTokens: maxTokens}
	s.eval.SelectContext(contextRaw)
	s.eval.SelectMetrics(metricsRaw)

	return runWithMetrics(ctx, a, func(ctx context.Context) error {
		if err := resultErr(s.process(ctx)); err != nil {
			return err
		}
		a.printer.Dim("Session %s. %s", journal.ID(), evaluateHelp)
		return runREPL(ctx, "eval> ", s.handle)
	})
}

// describePair stats the context and metrics files concurrently.
func describePair(contextPath, metricsPath string) (contextRaw, metricsRaw []ingest.FileDescriptor, err error) {
	var g errgroup.Group
	g.Go(func() error {
		var err error
		contextRaw, err = ingest.Describe(contextPath)
		return err
	})
	g.Go(func() error {
		var err error
		metricsRaw, err = ingest.Describe(metricsPath)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return contextRaw, metricsRaw, nil
}

type evalSession struct {
	app       *app
	eval      *workflow.Evaluator
	journal   *state.Journal
	maxTokens int
}

func (s *evalSession) process(ctx context.Context) lifecycle.Result[struct{}] {
	res := s.eval.Process(ctx)
	if res.OK() {
		contextFile, metricsFile := s.eval.Selection()
		files := append(contextFile.Names(), metricsFile.Names()...)
		if err := s.journal.Record(ctx, types.EventUpload, state.UploadPayload{Files: files}); err != nil {
			slog.Warn("journal upload", "error", err)
		}
	}
	return res
}

func (s *evalSession) handle(ctx context.Context, line string) (bool, error) {
	name, arg, isCmd := splitCommand(line)
	if !isCmd {
		s.ask(ctx, line)
		return false, nil
	}

	p := s.app.printer
	switch name {
	case "quit", "exit":
		return true, nil
	case "context", "metrics":
		raw, err := ingest.Describe(arg)
		if err != nil {
			p.Error(err.Error())
			return false, nil
		}
		var set ingest.Set
		if name == "context" {
			set = s.eval.SelectContext(raw)
		} else {
			set = s.eval.SelectMetrics(raw)
		}
		if len(set) > 0 {
			p.Info(name + " file: " + set[0].Name + ". Run /process to upload.")
		}
	case "process":
		s.process(ctx)
	case "reset":
		s.eval.Reset()
		if err := s.journal.Reset(ctx); err != nil {
			slog.Warn("journal reset", "error", err)
		}
		p.Info("Evaluation cleared. Select files with /context and /metrics, then /process.")
	case "history":
		p.Entries(s.eval.Timeline().Entries())
	case "help":
		p.Line(evaluateHelp)
	default:
		p.Error("Unknown command. " + evaluateHelp)
	}
	return false, nil
}

func (s *evalSession) ask(ctx context.Context, message string) {
	if !s.eval.Processed() {
		s.app.printer.Error("Process the context and metrics files first (/process)")
		return
	}
	res := s.eval.Ask(ctx, message, s.maxTokens)
	if res.Outcome == lifecycle.OutcomeRejected {
		return
	}
	if last, ok := s.eval.Timeline().Last(); ok && last.Role == history.RoleAssistant {
		s.app.printer.Entry(last)
	}
	if err := s.journal.Sync(ctx, s.eval.Timeline().Entries()); err != nil {
		slog.Warn("journal sync", "error", err)
	}
}
