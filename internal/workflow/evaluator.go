package workflow

import (
	"context"
	"strings"
	"sync"

	"github.com/user/docpilot/internal/history"
	"github.com/user/docpilot/internal/ingest"
	"github.com/user/docpilot/internal/lifecycle"
)

// Evaluator slots.
const (
	SlotEvalProcess = "eval-process"
	SlotEvalAsk     = "eval-ask"
)

// EvaluationFallback replaces the feedback of a failed evaluation turn.
const EvaluationFallback = "Sorry, I encountered an error while processing your evaluation request."

// Evaluator is an evaluation session over a context file and a metrics file.
type Evaluator struct {
	env         Env
	processSlot *lifecycle.Slot
	askSlot     *lifecycle.Slot
	timeline    *history.Timeline

	mu         sync.Mutex
	contextDoc ingest.Set
	metricsDoc ingest.Set
	processed  bool
}

// NewEvaluator creates an evaluator with nothing selected.
func NewEvaluator(env Env) *Evaluator {
	return &Evaluator{
		env:         env.withDefaults(),
		processSlot: lifecycle.NewSlot(SlotEvalProcess),
		askSlot:     lifecycle.NewSlot(SlotEvalAsk),
		timeline:    history.NewTimeline(),
	}
}

// Timeline returns the session timeline.
func (e *Evaluator) Timeline() *history.Timeline {
	return e.timeline
}

// Processed reports whether both files were uploaded successfully.
func (e *Evaluator) Processed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processed
}

// SelectContext replaces the context file with the first admissible file of
// raw. A selection with nothing admissible keeps the current file.
func (e *Evaluator) SelectContext(raw []ingest.FileDescriptor) ingest.Set {
	return e.selectInto(&e.contextDoc, raw)
}

// SelectMetrics replaces the metrics file the same way.
func (e *Evaluator) SelectMetrics(raw []ingest.FileDescriptor) ingest.Set {
	return e.selectInto(&e.metricsDoc, raw)
}

func (e *Evaluator) selectInto(dst *ingest.Set, raw []ingest.FileDescriptor) ingest.Set {
	set := ingest.Accept(raw, e.env.Constraints, false, nil)
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(set) > 0 {
		*dst = set
	}
	return append(ingest.Set(nil), (*dst)...)
}

// Selection returns the selected context and metrics files.
func (e *Evaluator) Selection() (contextFile, metricsFile ingest.Set) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append(ingest.Set(nil), e.contextDoc...), append(ingest.Set(nil), e.metricsDoc...)
}

// Process uploads both files. It starts a new conversation and requires
// both files to be selected.
func (e *Evaluator) Process(ctx context.Context) lifecycle.Result[struct{}] {
	contextFile, metricsFile := e.Selection()

	return lifecycle.Invoke(ctx, e.env.Controller, e.processSlot, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.env.Backend.UploadEvalFiles(ctx, contextFile[0].File(), metricsFile[0].File())
	}, lifecycle.Hooks[struct{}]{
		Precondition: func() bool {
			if len(contextFile) == 0 || len(metricsFile) == 0 {
				e.env.Notifier.Error("Please upload both context and metrics files")
				return false
			}
			return true
		},
		OnOptimisticStart: func() {
			e.mu.Lock()
			e.processed = false
			e.mu.Unlock()
			e.timeline.Reset()
		},
		OnSuccess: func(struct{}) {
			e.mu.Lock()
			e.processed = true
			e.mu.Unlock()
			e.env.Notifier.Success("Files processed successfully! You can now ask questions.")
		},
		OnFailure: func(error) {
			e.env.Notifier.Error("Error processing files. Please try again.")
		},
	})
}

// Ask requests feedback for one question. It is rejected for blank
// messages and before Process has succeeded. A failed turn appends
// EvaluationFallback.
func (e *Evaluator) Ask(ctx context.Context, message string, maxTokens int) lifecycle.Result[history.Entry] {
	var (
		prior []history.Entry
		epoch uint64
	)

	return lifecycle.Invoke(ctx, e.env.Controller, e.askSlot, func(ctx context.Context) (history.Entry, error) {
		req, err := evaluationRequest(message, prior, maxTokens)
		if err != nil {
			return history.Entry{}, err
		}
		resp, err := e.env.Backend.AskEvaluation(ctx, req)
		if err != nil {
			return history.Entry{}, err
		}
		return history.Decode(resp.Feedback, nil, e.env.Controller.Now()), nil
	}, lifecycle.Hooks[history.Entry]{
		Precondition: func() bool {
			return strings.TrimSpace(message) != "" && e.Processed()
		},
		OnOptimisticStart: func() {
			prior, epoch = e.timeline.Push(history.NewUserEntry(message, e.env.Controller.Now()))
		},
		OnSuccess: func(entry history.Entry) {
			if !e.timeline.AppendIf(epoch, entry) {
				e.env.Logger.Debug("dropping feedback for a reset timeline", "slot", SlotEvalAsk)
			}
		},
		OnFailure: func(error) {
			e.env.Notifier.Error("Error getting evaluation feedback. Please try again.")
			e.timeline.AppendIf(epoch, history.Fallback(EvaluationFallback, e.env.Controller.Now()))
		},
	})
}

// Reset discards the selection, the processed flag and the conversation.
func (e *Evaluator) Reset() {
	e.mu.Lock()
	e.contextDoc = nil
	e.metricsDoc = nil
	e.processed = false
	e.mu.Unlock()
	e.timeline.Reset()
}
