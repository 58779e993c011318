package kb

import (
	"context"
	"slices"
	"sync"

	"github.com/user/docpilot/internal/ingest"
	"github.com/user/docpilot/internal/lifecycle"
	"github.com/user/docpilot/pkg/backend"
)

// Slot names used by the manager.
const (
	SlotStatus = "kb-status"
	SlotBuild  = "kb-build"
	SlotDelete = "kb-delete"
)

// Notification texts.
const (
	msgStatusFailed  = "Error fetching index status"
	msgNoFiles       = "Please select at least one file to build the index"
	msgBuilt         = "Index built successfully!"
	msgBuildFailed   = "Error building index. Please try again."
	msgDeleted       = "Index deleted successfully"
	msgDeleteFailed  = "Error deleting index. Please try again."
	msgConfirmDelete = "Run delete again to confirm. This cannot be undone."
)

// DeleteStep says what a call to Delete did.
type DeleteStep int

const (
	// StepArmed means the gate was armed and nothing was sent.
	StepArmed DeleteStep = iota
	// StepSent means the delete request went through the lifecycle.
	StepSent
)

// Manager owns one knowledge-base session: its staged candidates, the latest
// snapshot, the delete gate and the three action slots.
type Manager struct {
	backend     backend.Backend
	ctrl        *lifecycle.Controller
	notifier    lifecycle.Notifier
	constraints ingest.Constraints

	statusSlot *lifecycle.Slot
	buildSlot  *lifecycle.Slot
	deleteSlot *lifecycle.Slot

	mu          sync.Mutex
	candidates  ingest.Set
	snapshot    Snapshot
	hasSnapshot bool
	gate        Gate
	phase       Phase
}

// NewManager creates a manager in the idle phase with no snapshot.
func NewManager(b backend.Backend, ctrl *lifecycle.Controller, notifier lifecycle.Notifier, constraints ingest.Constraints) *Manager {
	if notifier == nil {
		notifier = lifecycle.NopNotifier{}
	}
	return &Manager{
		backend:     b,
		ctrl:        ctrl,
		notifier:    notifier,
		constraints: constraints,
		statusSlot:  lifecycle.NewSlot(SlotStatus),
		buildSlot:   lifecycle.NewSlot(SlotBuild),
		deleteSlot:  lifecycle.NewSlot(SlotDelete),
		phase:       PhaseIdle,
	}
}

// Stage adds admissible files to the candidate set. Inadmissible files are
// dropped without notice.
func (m *Manager) Stage(raw []ingest.FileDescriptor) ingest.Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = ingest.Accept(raw, m.constraints, true, m.candidates)
	return append(ingest.Set(nil), m.candidates...)
}

// Unstage removes the candidate at index i.
func (m *Manager) Unstage(i int) ingest.Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = m.candidates.Remove(i)
	return append(ingest.Set(nil), m.candidates...)
}

// Candidates returns a copy of the staged set.
func (m *Manager) Candidates() ingest.Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append(ingest.Set(nil), m.candidates...)
}

// Snapshot returns the latest snapshot and whether one has been fetched.
func (m *Manager) Snapshot() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot, m.hasSnapshot
}

// Phase returns the current phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Armed reports whether the delete gate is armed.
func (m *Manager) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gate.Armed()
}

// CanDelete reports whether the latest snapshot shows an index on disk. It
// is a presentation hint; Delete itself does not consult it.
func (m *Manager) CanDelete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasSnapshot && m.snapshot.ExistsOnDisk
}

// Slots returns the manager's action slots for presentation layers that
// render pending state.
func (m *Manager) Slots() []*lifecycle.Slot {
	return []*lifecycle.Slot{m.statusSlot, m.buildSlot, m.deleteSlot}
}

// RequestStatus fetches the index status and replaces the snapshot wholesale.
// On failure the prior snapshot is kept.
func (m *Manager) RequestStatus(ctx context.Context) lifecycle.Result[Snapshot] {
	return lifecycle.Invoke(ctx, m.ctrl, m.statusSlot, func(ctx context.Context) (Snapshot, error) {
		resp, err := m.backend.IndexStatus(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		return ParseStatus(*resp, m.ctrl.Now()), nil
	}, lifecycle.Hooks[Snapshot]{
		OnSuccess: func(s Snapshot) {
			m.mu.Lock()
			m.snapshot = s
			m.hasSnapshot = true
			m.mu.Unlock()
		},
		OnFailure: func(error) {
			m.notifier.Error(msgStatusFailed)
		},
	})
}

// Build uploads the staged candidates for indexing. It is a no-op when
// nothing is staged. On success the uploaded candidates are unstaged and
// the status is fetched again. Files staged while the upload is in flight
// stay staged for the next build.
func (m *Manager) Build(ctx context.Context) lifecycle.Result[*backend.MessageResponse] {
	uploading := m.Candidates()
	files := uploading.Files()

	res := lifecycle.Invoke(ctx, m.ctrl, m.buildSlot, func(ctx context.Context) (*backend.MessageResponse, error) {
		return m.backend.UploadAndIndex(ctx, files)
	}, lifecycle.Hooks[*backend.MessageResponse]{
		Precondition: func() bool {
			if len(files) == 0 {
				m.notifier.Error(msgNoFiles)
				return false
			}
			return true
		},
		OnOptimisticStart: func() {
			m.setPhase(PhaseBuildingPending)
		},
		OnSuccess: func(resp *backend.MessageResponse) {
			m.mu.Lock()
			m.candidates = without(m.candidates, uploading)
			m.phase = PhaseBuildingDone
			m.mu.Unlock()
			m.notifier.Success(messageOr(resp, msgBuilt))
		},
		OnFailure: func(error) {
			m.setPhase(PhaseIdle)
			m.notifier.Error(msgBuildFailed)
		},
	})

	if res.OK() {
		m.RequestStatus(ctx)
	}
	return res
}

// Delete implements the two-step destructive delete. The first call only
// arms the gate. A call while armed sends the delete, and the gate is reset
// whatever the outcome of the sent request. A call rejected because a
// delete is already in flight returns StepSent and leaves the gate alone. On success the status is fetched again.
func (m *Manager) Delete(ctx context.Context) (DeleteStep, lifecycle.Result[*backend.MessageResponse]) {
	m.mu.Lock()
	if !m.gate.Armed() {
		m.gate.Arm()
		m.phase = PhaseDeleteArmed
		m.mu.Unlock()
		m.notifier.Info(msgConfirmDelete)
		return StepArmed, lifecycle.Result[*backend.MessageResponse]{Outcome: lifecycle.OutcomeRejected}
	}
	m.mu.Unlock()

	res := lifecycle.Invoke(ctx, m.ctrl, m.deleteSlot, func(ctx context.Context) (*backend.MessageResponse, error) {
		return m.backend.DeleteIndex(ctx)
	}, lifecycle.Hooks[*backend.MessageResponse]{
		OnOptimisticStart: func() {
			m.setPhase(PhaseDeletingPending)
		},
		OnSuccess: func(resp *backend.MessageResponse) {
			m.setPhase(PhaseDeletingDone)
			m.notifier.Success(messageOr(resp, msgDeleted))
		},
		OnFailure: func(error) {
			m.setPhase(PhaseIdle)
			m.notifier.Error(msgDeleteFailed)
		},
	})

	// A busy rejection leaves the gate to the delete already in flight.
	if res.Outcome != lifecycle.OutcomeRejected {
		m.mu.Lock()
		m.gate.Reset()
		if m.phase == PhaseDeleteArmed {
			m.phase = PhaseIdle
		}
		m.mu.Unlock()
	}

	if res.OK() {
		m.RequestStatus(ctx)
	}
	return StepSent, res
}

// Cancel disarms the delete gate without sending anything.
func (m *Manager) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate.Reset()
	if m.phase == PhaseDeleteArmed {
		m.phase = PhaseIdle
	}
}

func (m *Manager) setPhase(p Phase) {
	m.mu.Lock()
	m.phase = p
	m.mu.Unlock()
}

// without removes one occurrence of each member of uploaded from set.
func without(set, uploaded ingest.Set) ingest.Set {
	out := slices.Clone(set)
	for _, c := range uploaded {
		if i := slices.Index(out, c); i >= 0 {
			out = slices.Delete(out, i, i+1)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func messageOr(resp *backend.MessageResponse, fallback string) string {
	if resp == nil || resp.Message == "" {
		return fallback
	}
	return resp.Message
}
