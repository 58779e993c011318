package lifecycle

import (
	"context"
	"log/slog"
	"time"
)

// Outcome discriminates the result of one invocation.
type Outcome int

const (
	// OutcomeRejected means nothing was sent and no state changed.
	OutcomeRejected Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return "rejected"
	}
}

// Reason explains a rejection.
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonBusy means the slot already had a call in flight.
	ReasonBusy
	// ReasonPrecondition means the hooks' precondition did not hold.
	ReasonPrecondition
)

// Result is what one invocation produced.
type Result[T any] struct {
	Outcome  Outcome
	Reason   Reason
	Value    T
	Err      error
	Duration time.Duration
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool {
	return r.Outcome == OutcomeSucceeded
}

// Request performs one backend call.
type Request[T any] func(ctx context.Context) (T, error)

// Hooks are the explicit phases of an invocation. All hooks are optional and
// run on the invoking goroutine.
type Hooks[T any] struct {
	// Precondition is checked before anything else changes. False rejects the
	// invocation as a no-op.
	Precondition func() bool
	// OnOptimisticStart runs after the slot turns pending and before the
	// request is dispatched.
	OnOptimisticStart func()
	// OnSuccess receives the decoded payload.
	OnSuccess func(T)
	// OnFailure must leave a user-visible trace of the failure.
	OnFailure func(error)
}

// Observer receives slot transitions and call outcomes.
type Observer interface {
	ObserveTransition(slot string, from, to Status)
	ObserveCall(slot string, outcome Outcome, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveTransition(string, Status, Status)   {}
func (nopObserver) ObserveCall(string, Outcome, time.Duration) {}

// Controller dispatches invocations. One controller serves every slot.
type Controller struct {
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver sets the transition/outcome observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController creates a controller.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		observer: nopObserver{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Logger returns the controller's logger.
func (c *Controller) Logger() *slog.Logger {
	return c.logger
}

// Now returns the controller's clock reading.
func (c *Controller) Now() time.Time {
	return c.now()
}

func (c *Controller) transition(slot *Slot, to Status, err error) {
	from := slot.set(to, err, c.now())
	if from != to {
		c.observer.ObserveTransition(slot.Name(), from, to)
	}
}

// Invoke runs req through slot. A slot that is already pending rejects the
// call outright, as does a failing precondition; neither touches state.
// Otherwise the slot goes pending, OnOptimisticStart runs, the request is
// dispatched once, and the slot settles on succeeded or failed before the
// matching hook runs. The slot admits the next call only after the hook
// returns, so responses within a slot are applied in issue order.
func Invoke[T any](ctx context.Context, c *Controller, slot *Slot, req Request[T], hooks Hooks[T]) Result[T] {
	if !slot.tryAcquire() {
		c.logger.Debug("invocation rejected", "slot", slot.Name(), "reason", "busy")
		c.observer.ObserveCall(slot.Name(), OutcomeRejected, 0)
		return Result[T]{Outcome: OutcomeRejected, Reason: ReasonBusy}
	}
	defer slot.release()

	if hooks.Precondition != nil && !hooks.Precondition() {
		c.logger.Debug("invocation rejected", "slot", slot.Name(), "reason", "precondition")
		c.observer.ObserveCall(slot.Name(), OutcomeRejected, 0)
		return Result[T]{Outcome: OutcomeRejected, Reason: ReasonPrecondition}
	}

	if st := slot.State().Status; st == StatusSucceeded || st == StatusFailed {
		c.transition(slot, StatusIdle, nil)
	}
	c.transition(slot, StatusPending, nil)

	if hooks.OnOptimisticStart != nil {
		hooks.OnOptimisticStart()
	}

	start := c.now()
	value, err := req(ctx)
	elapsed := c.now().Sub(start)

	if err != nil {
		c.transition(slot, StatusFailed, err)
		c.logger.Warn("request failed", "slot", slot.Name(), "elapsed", elapsed, "error", err)
		c.observer.ObserveCall(slot.Name(), OutcomeFailed, elapsed)
		if hooks.OnFailure != nil {
			hooks.OnFailure(err)
		}
		return Result[T]{Outcome: OutcomeFailed, Err: err, Duration: elapsed}
	}

	c.transition(slot, StatusSucceeded, nil)
	c.logger.Debug("request succeeded", "slot", slot.Name(), "elapsed", elapsed)
	c.observer.ObserveCall(slot.Name(), OutcomeSucceeded, elapsed)
	if hooks.OnSuccess != nil {
		hooks.OnSuccess(value)
	}
	return Result[T]{Outcome: OutcomeSucceeded, Value: value, Duration: elapsed}
}
