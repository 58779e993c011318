// Package lifecycle runs backend calls through a uniform per-slot state
// machine: idle -> pending -> succeeded|failed, with at most one call in
// flight per slot.
package lifecycle

import (
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Status is the state of one action slot.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// State is a point-in-time view of a slot.
type State struct {
	Status    Status
	Err       error
	UpdatedAt time.Time
}

// Slot is a named logical action ("chat-send", "kb-build") owning at most
// one in-flight call. Slots are independent of each other.
type Slot struct {
	name  string
	guard *semaphore.Weighted

	mu    sync.RWMutex
	state State
}

// NewSlot creates an idle slot.
func NewSlot(name string) *Slot {
	return &Slot{
		name:  name,
		guard: semaphore.NewWeighted(1),
		state: State{Status: StatusIdle},
	}
}

// Name returns the slot name.
func (s *Slot) Name() string {
	return s.name
}

// State returns the current state.
func (s *Slot) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Pending reports whether a call is in flight. Interaction layers use it to
// disable the triggering control.
func (s *Slot) Pending() bool {
	return s.State().Status == StatusPending
}

func (s *Slot) set(status Status, err error, now time.Time) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state.Status
	s.state = State{Status: status, Err: err, UpdatedAt: now}
	return prev
}

func (s *Slot) tryAcquire() bool {
	return s.guard.TryAcquire(1)
}

func (s *Slot) release() {
	s.guard.Release(1)
}
