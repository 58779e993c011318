package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/docpilot/internal/history"
	"github.com/user/docpilot/internal/ingest"
	"github.com/user/docpilot/internal/lifecycle"
	"github.com/user/docpilot/internal/state"
	"github.com/user/docpilot/internal/tokens"
	"github.com/user/docpilot/internal/types"
	"github.com/user/docpilot/internal/workflow"
)

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("upload", "", "document to chat about")
	chatCmd.Flags().String("language", "", "answer language (English, Hindi, Tamil)")
	chatCmd.Flags().Int("max-tokens", 0, "token budget per answer (default from config)")
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a document (RAG)",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

const chatHelp = "Commands: /upload PATH, /language NAME, /reset, /history, /quit"

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	upload, _ := cmd.Flags().GetString("upload")
	language, _ := cmd.Flags().GetString("language")
	flagTokens, _ := cmd.Flags().GetInt("max-tokens")

	maxTokens, err := a.maxTokens(flagTokens)
	if err != nil {
		return err
	}
	if language == "" {
		language = a.cfg.Chat.Language
	}

	chat := workflow.NewChat(a.env(a.printer))
	if err := chat.SetLanguage(language); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	journal, err := state.OpenJournal(ctx, a.sessions, a.events, newCLISessionKey("chat"), "chat", "cli")
	if err != nil {
		return err
	}
	estimator, err := tokens.Shared()
	if err != nil {
		slog.Warn("token estimator unavailable", "error", err)
	}

	s := &chatSession{app: a, chat: chat, journal: journal, estimator: estimator, maxTokens: maxTokens}

	return runWithMetrics(ctx, a, func(ctx context.Context) error {
		if upload != "" {
			s.upload(ctx, upload)
		}
		a.printer.Dim("Session %s, answers in %s, max %d tokens. %s", journal.ID(), chat.Language(), maxTokens, chatHelp)
		return runREPL(ctx, "you> ", s.handle)
	})
}

type chatSession struct {
	app       *app
	chat      *workflow.Chat
	journal   *state.Journal
	estimator *tokens.Estimator
	maxTokens int
}

func (s *chatSession) handle(ctx context.Context, line string) (bool, error) {
	name, arg, isCmd := splitCommand(line)
	if !isCmd {
		s.send(ctx, line)
		return false, nil
	}

	p := s.app.printer
	switch name {
	case "quit", "exit":
		return true, nil
	case "upload":
		if arg == "" {
			p.Error("Usage: /upload PATH")
			return false, nil
		}
		s.upload(ctx, arg)
	case "language":
		if arg == "" {
			p.Line("Answer language: %s (available: %s)", s.chat.Language(), strings.Join(workflow.Languages, ", "))
			return false, nil
		}
		if err := s.chat.SetLanguage(arg); err != nil {
			p.Error(err.Error())
			return false, nil
		}
		p.Info("Answers will be in " + s.chat.Language())
	case "reset":
		s.chat.Reset()
		if err := s.journal.Reset(ctx); err != nil {
			slog.Warn("journal reset", "error", err)
		}
		p.Info("Conversation cleared")
	case "history":
		entries := s.chat.Timeline().Entries()
		p.Entries(entries)
		if s.estimator != nil {
			est := s.estimator.Turn("", entries)
			p.Dim("History sent with the next question: %d pairs, ~%d tokens", est.Pairs, est.History)
		}
	case "help":
		p.Line(chatHelp)
	default:
		p.Error("Unknown command. " + chatHelp)
	}
	return false, nil
}

func (s *chatSession) upload(ctx context.Context, path string) {
	raw, err := ingest.Describe(path)
	if err != nil {
		s.app.printer.Error(err.Error())
		return
	}
	res := s.chat.Upload(ctx, raw)
	if res.Outcome == lifecycle.OutcomeRejected && res.Reason == lifecycle.ReasonPrecondition {
		s.app.printer.Error("Unsupported file. Accepted: " + s.app.constraints().String())
		return
	}
	if res.OK() {
		if err := s.journal.Record(ctx, types.EventUpload, state.UploadPayload{Files: res.Value.Names()}); err != nil {
			slog.Warn("journal upload", "error", err)
		}
	}
}

func (s *chatSession) send(ctx context.Context, message string) {
	if !s.chat.Processed() {
		s.app.printer.Dim("(no document uploaded yet; answers come from the current session index)")
	}
	if s.estimator != nil {
		est := s.estimator.Turn(message, s.chat.Timeline().Entries())
		slog.Debug("chat turn", "estimate", est.String(), "max_tokens", s.maxTokens)
	}

	res := s.chat.Send(ctx, message, s.maxTokens)
	if res.Outcome == lifecycle.OutcomeRejected {
		return
	}
	if last, ok := s.chat.Timeline().Last(); ok && last.Role == history.RoleAssistant {
		s.app.printer.Entry(last)
	}
	if err := s.journal.Sync(ctx, s.chat.Timeline().Entries()); err != nil {
		slog.Warn("journal sync", "error", err)
	}
}

// newCLISessionKey gives every REPL run its own journal.
func newCLISessionKey(workflowName string) types.SessionKey {
	return types.NewSessionKey("cli", workflowName, string(types.NewSessionID()))
}
