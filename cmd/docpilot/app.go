package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/user/docpilot/internal/config"
	"github.com/user/docpilot/internal/ingest"
	"github.com/user/docpilot/internal/kb"
	"github.com/user/docpilot/internal/lifecycle"
	"github.com/user/docpilot/internal/metrics"
	"github.com/user/docpilot/internal/render"
	"github.com/user/docpilot/internal/state"
	"github.com/user/docpilot/internal/workflow"
	"github.com/user/docpilot/pkg/backend"
	"github.com/user/docpilot/pkg/backend/httpapi"
)

// app is the wiring shared by every workflow command.
type app struct {
	cfg      *config.Config
	client   *httpapi.Client
	ctrl     *lifecycle.Controller
	metrics  *metrics.Recorder
	printer  *render.Printer
	sessions *state.SessionStore
	events   *state.EventStore
}

func newApp() (*app, error) {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	recorder := metrics.New()
	client := httpapi.New(&backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
	})
	ctrl := lifecycle.NewController(
		lifecycle.WithObserver(recorder),
		lifecycle.WithLogger(slog.Default().With("component", "lifecycle")),
	)

	return &app{
		cfg:      cfg,
		client:   client,
		ctrl:     ctrl,
		metrics:  recorder,
		printer:  render.NewPrinter(os.Stdout, noColor),
		sessions: state.NewSessionStore(cfg.DataDir),
		events:   state.NewEventStore(cfg.DataDir),
	}, nil
}

func (a *app) constraints() ingest.Constraints {
	return ingest.Constraints{
		AcceptedTypes: a.cfg.Upload.AcceptedTypes,
		MaxSizeMB:     a.cfg.Upload.MaxSizeMB,
	}
}

// env builds the workflow environment with notifications going to n.
func (a *app) env(n lifecycle.Notifier) workflow.Env {
	return workflow.Env{
		Backend:     a.client,
		Controller:  a.ctrl,
		Notifier:    n,
		Constraints: a.constraints(),
		Resolve:     a.client.ResolveURL,
		Logger:      slog.Default().With("component", "workflow"),
	}
}

func (a *app) kbManager(n lifecycle.Notifier) *kb.Manager {
	return kb.NewManager(a.client, a.ctrl, n, a.constraints())
}

// maxTokens resolves a --max-tokens flag against the configured default.
func (a *app) maxTokens(flag int) (int, error) {
	n := a.cfg.MaxTokens
	if flag > 0 {
		n = flag
	}
	if err := config.ValidateMaxTokens(n); err != nil {
		return 0, err
	}
	return n, nil
}

var errRejected = errors.New("nothing was sent")

// resultErr turns the outcome of a one-shot command into its exit status.
// The user-facing notification has already been printed.
func resultErr[T any](res lifecycle.Result[T]) error {
	switch res.Outcome {
	case lifecycle.OutcomeFailed:
		return fmt.Errorf("backend call failed: %w", res.Err)
	case lifecycle.OutcomeRejected:
		return errRejected
	}
	return nil
}
