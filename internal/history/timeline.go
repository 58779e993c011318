// Package history holds the conversation timeline and the codec that turns it
// into the paired history the backend expects.
package history

import (
	"sync"
	"time"

	"github.com/user/docpilot/internal/types"
)

// Role is the author of a timeline entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one conversational turn. Entries are immutable once appended.
type Entry struct {
	ID        types.EntryID `json:"id"`
	Role      Role          `json:"role"`
	Content   string        `json:"content"`
	ImageURLs []string      `json:"image_urls,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewUserEntry creates the local echo of a user message.
func NewUserEntry(content string, now time.Time) Entry {
	return Entry{
		ID:        types.NewEntryID(),
		Role:      RoleUser,
		Content:   content,
		CreatedAt: now,
	}
}

// Fallback creates the synthesized assistant entry shown when a turn fails.
func Fallback(text string, now time.Time) Entry {
	return Entry{
		ID:        types.NewEntryID(),
		Role:      RoleAssistant,
		Content:   text,
		CreatedAt: now,
	}
}

// Timeline is the append-only record of turns for one workflow session.
// It is only ever cleared wholesale; every clear starts a new epoch so that
// late responses for the previous epoch can be recognized and dropped.
type Timeline struct {
	mu      sync.RWMutex
	entries []Entry
	epoch   uint64
}

// NewTimeline creates an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{}
}

// Append adds an entry at the end.
func (t *Timeline) Append(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
}

// AppendIf adds an entry only while the timeline is still in the given epoch.
func (t *Timeline) AppendIf(epoch uint64, e Entry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.epoch != epoch {
		return false
	}
	t.entries = append(t.entries, e)
	return true
}

// Push appends e and returns the entries that preceded it together with the
// epoch it was appended in, as one atomic step.
func (t *Timeline) Push(e Entry) ([]Entry, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prior := make([]Entry, len(t.entries))
	copy(prior, t.entries)
	t.entries = append(t.entries, e)
	return prior, t.epoch
}

// Entries returns a copy of all entries in order.
func (t *Timeline) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Last returns the newest entry.
func (t *Timeline) Last() (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.entries) == 0 {
		return Entry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

// Reset clears the timeline and starts a new epoch.
func (t *Timeline) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	t.epoch++
}

// Epoch identifies the current lifetime of the timeline.
func (t *Timeline) Epoch() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.epoch
}
