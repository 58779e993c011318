package main

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/user/docpilot/internal/lifecycle"
	"github.com/user/docpilot/internal/telegram"
)

func init() {
	rootCmd.AddCommand(telegramCmd)
}

var telegramCmd = &cobra.Command{
	Use:   "telegram",
	Short: "Serve RAG chat over a Telegram bot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if a.cfg.Telegram.Token == "" {
			return errors.New("telegram.token is not set (docpilot config set telegram.token TOKEN)")
		}

		adapter, err := telegram.New(a.cfg.Telegram.Token, telegram.Options{
			Env:         a.env(lifecycle.NopNotifier{}),
			KB:          a.kbManager(lifecycle.NopNotifier{}),
			Sessions:    a.sessions,
			Events:      a.events,
			MaxTokens:   a.cfg.MaxTokens,
			Language:    a.cfg.Chat.Language,
			DownloadDir: filepath.Join(a.cfg.DataDir, "telegram"),
		})
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		slog.Info("docpilot telegram started", "backend", a.client.BaseURL(), "data_dir", a.cfg.DataDir)
		return runWithMetrics(ctx, a, func(ctx context.Context) error {
			adapter.Start(ctx)
			slog.Info("shutting down")
			return nil
		})
	},
}
