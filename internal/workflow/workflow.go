// Package workflow implements the page-level document workflows (chat,
// evaluation, summarization, translation) on top of the lifecycle
// controller.
package workflow

import (
	"log/slog"

	"github.com/user/docpilot/internal/ingest"
	"github.com/user/docpilot/internal/lifecycle"
	"github.com/user/docpilot/pkg/backend"
)

// Env holds the collaborators shared by every workflow.
type Env struct {
	Backend     backend.Backend
	Controller  *lifecycle.Controller
	Notifier    lifecycle.Notifier
	Constraints ingest.Constraints
	// Resolve turns backend-relative image references into absolute URLs.
	// Nil leaves references unchanged.
	Resolve func(ref string) string
	// Logger defaults to the controller's logger.
	Logger *slog.Logger
}

func (e Env) withDefaults() Env {
	if e.Controller == nil {
		e.Controller = lifecycle.NewController()
	}
	if e.Notifier == nil {
		e.Notifier = lifecycle.NopNotifier{}
	}
	if len(e.Constraints.AcceptedTypes) == 0 {
		e.Constraints = ingest.DefaultConstraints()
	}
	if e.Resolve == nil {
		e.Resolve = func(ref string) string { return ref }
	}
	if e.Logger == nil {
		e.Logger = e.Controller.Logger()
	}
	return e
}

func resolveAll(resolve func(string) string, refs []string) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = resolve(r)
	}
	return out
}
