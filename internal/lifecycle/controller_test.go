package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu          sync.Mutex
	transitions []string
	outcomes    []Outcome
}

func (o *recordingObserver) ObserveTransition(slot string, from, to Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, string(from)+"->"+string(to))
}

func (o *recordingObserver) ObserveCall(slot string, outcome Outcome, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func TestInvokeSuccessOrdering(t *testing.T) {
	obs := &recordingObserver{}
	ctrl := NewController(WithObserver(obs))
	slot := NewSlot("chat-send")

	var order []string
	res := Invoke(context.Background(), ctrl, slot, func(ctx context.Context) (string, error) {
		order = append(order, "request")
		assert.Equal(t, StatusPending, slot.State().Status)
		return "payload", nil
	}, Hooks[string]{
		OnOptimisticStart: func() { order = append(order, "optimistic") },
		OnSuccess: func(v string) {
			assert.Equal(t, StatusSucceeded, slot.State().Status)
			order = append(order, "success:"+v)
		},
		OnFailure: func(error) { order = append(order, "failure") },
	})

	require.True(t, res.OK())
	assert.Equal(t, "payload", res.Value)
	assert.Equal(t, []string{"optimistic", "request", "success:payload"}, order)
	assert.Equal(t, StatusSucceeded, slot.State().Status)
	assert.Equal(t, []string{"idle->pending", "pending->succeeded"}, obs.transitions)
	assert.Equal(t, []Outcome{OutcomeSucceeded}, obs.outcomes)
}

func TestInvokeFailure(t *testing.T) {
	ctrl := NewController()
	slot := NewSlot("kb-build")
	boom := errors.New("connection refused")

	var failed error
	successCalled := false
	res := Invoke(context.Background(), ctrl, slot, func(ctx context.Context) (int, error) {
		return 0, boom
	}, Hooks[int]{
		OnSuccess: func(int) { successCalled = true },
		OnFailure: func(err error) { failed = err },
	})

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, boom)
	assert.ErrorIs(t, failed, boom)
	assert.False(t, successCalled)

	st := slot.State()
	assert.Equal(t, StatusFailed, st.Status)
	assert.ErrorIs(t, st.Err, boom)
}

func TestInvokeTerminalStatesReturnToIdle(t *testing.T) {
	obs := &recordingObserver{}
	ctrl := NewController(WithObserver(obs))
	slot := NewSlot("summarize")

	Invoke(context.Background(), ctrl, slot, func(ctx context.Context) (int, error) {
		return 0, errors.New("x")
	}, Hooks[int]{})
	Invoke(context.Background(), ctrl, slot, func(ctx context.Context) (int, error) {
		return 1, nil
	}, Hooks[int]{})

	assert.Equal(t, []string{
		"idle->pending", "pending->failed",
		"failed->idle", "idle->pending", "pending->succeeded",
	}, obs.transitions)
	assert.Nil(t, slot.State().Err)
}

func TestInvokePreconditionIsNoop(t *testing.T) {
	obs := &recordingObserver{}
	ctrl := NewController(WithObserver(obs))
	slot := NewSlot("chat-send")

	called := false
	res := Invoke(context.Background(), ctrl, slot, func(ctx context.Context) (int, error) {
		called = true
		return 0, nil
	}, Hooks[int]{
		Precondition:      func() bool { return false },
		OnOptimisticStart: func() { called = true },
		OnFailure:         func(error) { called = true },
	})

	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Equal(t, ReasonPrecondition, res.Reason)
	assert.NoError(t, res.Err)
	assert.False(t, called)
	assert.Equal(t, StatusIdle, slot.State().Status)
	assert.Empty(t, obs.transitions)
}

func TestInvokeSingleInFlight(t *testing.T) {
	ctrl := NewController()
	slot := NewSlot("chat-send")

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan Result[int])

	go func() {
		done <- Invoke(context.Background(), ctrl, slot, func(ctx context.Context) (int, error) {
			calls.Add(1)
			close(started)
			<-release
			return 1, nil
		}, Hooks[int]{})
	}()

	<-started
	require.True(t, slot.Pending())

	second := Invoke(context.Background(), ctrl, slot, func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 2, nil
	}, Hooks[int]{})

	assert.Equal(t, OutcomeRejected, second.Outcome)
	assert.Equal(t, ReasonBusy, second.Reason)
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	first := <-done
	assert.True(t, first.OK())
	assert.Equal(t, int32(1), calls.Load())

	third := Invoke(context.Background(), ctrl, slot, func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 3, nil
	}, Hooks[int]{})
	assert.True(t, third.OK())
	assert.Equal(t, int32(2), calls.Load())
}

func TestSlotsAreIndependent(t *testing.T) {
	ctrl := NewController()
	a := NewSlot("a")
	b := NewSlot("b")

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		Invoke(context.Background(), ctrl, a, func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 0, nil
		}, Hooks[int]{})
		close(done)
	}()
	<-started

	res := Invoke(context.Background(), ctrl, b, func(ctx context.Context) (int, error) {
		return 7, nil
	}, Hooks[int]{})
	assert.True(t, res.OK())

	close(release)
	<-done
}

func TestInvokeDuration(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := 0
	clock := func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Second)
	}
	ctrl := NewController(WithClock(clock))
	slot := NewSlot("s")

	res := Invoke(context.Background(), ctrl, slot, func(ctx context.Context) (int, error) {
		return 0, nil
	}, Hooks[int]{})
	assert.Equal(t, time.Second, res.Duration)
	assert.Equal(t, "succeeded", res.Outcome.String())
}

func TestRecordingNotifier(t *testing.T) {
	n := &RecordingNotifier{}
	n.Success("ok")
	n.Error("bad")
	n.Error("worse")
	n.Info("fyi")

	assert.Equal(t, 2, n.Count("error"))
	assert.Equal(t, Notification{Level: "success", Message: "ok"}, n.All()[0])

	var _ Notifier = NopNotifier{}
}
