// Package kb manages the persistent knowledge-base index: staging files,
// building, status refresh and the two-step delete.
package kb

import (
	"strconv"
	"time"

	"github.com/user/docpilot/pkg/backend"
)

// statusTrue is the only value the backend uses for a true status flag.
const statusTrue = "True"

// Snapshot is the last index status reported by the backend.
type Snapshot struct {
	LoadedInMemory bool
	ExistsOnDisk   bool
	ChunkCount     int
	StoragePath    string
	Raw            backend.StatusResponse
	FetchedAt      time.Time
}

// ParseStatus converts a status response into a Snapshot. Flags are true only
// for the literal string "True"; an unparseable chunk count reads as zero.
func ParseStatus(resp backend.StatusResponse, now time.Time) Snapshot {
	chunks, err := strconv.Atoi(resp.ChunkCount)
	if err != nil {
		chunks = 0
	}
	return Snapshot{
		LoadedInMemory: resp.IsLoadedInMemory == statusTrue,
		ExistsOnDisk:   resp.FilesExistOnDisk == statusTrue,
		ChunkCount:     chunks,
		StoragePath:    resp.PersistentDir,
		Raw:            resp,
		FetchedAt:      now,
	}
}

// Gate is the delete confirmation latch.
type Gate struct {
	armed bool
}

// Arm sets the latch.
func (g *Gate) Arm() { g.armed = true }

// Reset clears the latch.
func (g *Gate) Reset() { g.armed = false }

// Armed reports whether the next delete will be sent.
func (g *Gate) Armed() bool { return g.armed }

// Phase is the coarse state of the index workflow.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseBuildingPending Phase = "buildingPending"
	PhaseBuildingDone    Phase = "buildingDone"
	PhaseDeleteArmed     Phase = "deleteArmed"
	PhaseDeletingPending Phase = "deletingPending"
	PhaseDeletingDone    Phase = "deletingDone"
)
