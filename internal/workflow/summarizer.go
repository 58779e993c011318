package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/docpilot/internal/ingest"
	"github.com/user/docpilot/internal/lifecycle"
	"github.com/user/docpilot/pkg/backend"
)

// SlotSummarize is the summarizer's action slot.
const SlotSummarize = "summarize"

// Cluster bounds for a summarization run.
const (
	MinClusters     = 5
	MaxClusters     = 20
	DefaultClusters = 10
)

// ErrNoSummary is returned by Export before a summary exists.
var ErrNoSummary = errors.New("no summary to export")

// Summarizer summarizes one selected document.
type Summarizer struct {
	env  Env
	slot *lifecycle.Slot

	mu       sync.Mutex
	document ingest.Set
	summary  string
}

// NewSummarizer creates a summarizer with nothing selected.
func NewSummarizer(env Env) *Summarizer {
	return &Summarizer{env: env.withDefaults(), slot: lifecycle.NewSlot(SlotSummarize)}
}

// Select replaces the document with the first admissible file of raw and
// clears any previous summary. A selection with nothing admissible keeps
// the current document and summary.
func (s *Summarizer) Select(raw []ingest.FileDescriptor) ingest.Set {
	set := ingest.Accept(raw, s.env.Constraints, false, nil)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(set) > 0 {
		s.document = set
		s.summary = ""
	}
	return append(ingest.Set(nil), s.document...)
}

// Document returns the selected document, if any.
func (s *Summarizer) Document() (ingest.Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.document) == 0 {
		return ingest.Candidate{}, false
	}
	return s.document[0], true
}

// Summary returns the latest summary, empty when none.
func (s *Summarizer) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Summarize runs one summarization of the selected document. The previous
// summary is cleared as the request starts and stays cleared on failure.
func (s *Summarizer) Summarize(ctx context.Context, clusters, maxTokens int) lifecycle.Result[string] {
	doc, ok := s.Document()

	return lifecycle.Invoke(ctx, s.env.Controller, s.slot, func(ctx context.Context) (string, error) {
		resp, err := s.env.Backend.Summarize(ctx, backend.SummarizeRequest{
			File:        doc.File(),
			NumClusters: clusters,
			MaxTokens:   maxTokens,
		})
		if err != nil {
			return "", err
		}
		return resp.Summary, nil
	}, lifecycle.Hooks[string]{
		Precondition: func() bool {
			if !ok {
				s.env.Notifier.Error("Please select a file first")
				return false
			}
			if clusters < MinClusters || clusters > MaxClusters {
				s.env.Notifier.Error(fmt.Sprintf("Number of clusters must be between %d and %d", MinClusters, MaxClusters))
				return false
			}
			return true
		},
		OnOptimisticStart: func() {
			s.mu.Lock()
			s.summary = ""
			s.mu.Unlock()
		},
		OnSuccess: func(summary string) {
			s.mu.Lock()
			s.summary = summary
			s.mu.Unlock()
			s.env.Notifier.Success("Summary generated successfully!")
		},
		OnFailure: func(error) {
			s.env.Notifier.Error("Error generating summary. Please try again.")
		},
	})
}

// ExportName is the file name a summary of document is saved under.
func ExportName(document string) string {
	if document == "" {
		document = "document"
	}
	return "summary_" + document + ".txt"
}

// Export writes the summary into dir and returns the written path.
func (s *Summarizer) Export(dir string) (string, error) {
	s.mu.Lock()
	summary := s.summary
	var name string
	if len(s.document) > 0 {
		name = s.document[0].Name
	}
	s.mu.Unlock()

	if summary == "" {
		return "", ErrNoSummary
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, ExportName(name))
	if err := os.WriteFile(path, []byte(summary), 0o644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	s.env.Notifier.Success("Summary downloaded!")
	return path, nil
}
