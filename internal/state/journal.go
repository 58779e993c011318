package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/user/docpilot/internal/history"
	"github.com/user/docpilot/internal/types"
)

// EntryPayload is the journaled form of a timeline entry.
type EntryPayload struct {
	EntryID   types.EntryID `json:"entry_id"`
	Content   string        `json:"content"`
	ImageURLs []string      `json:"image_urls,omitempty"`
}

// UploadPayload records the files sent for one upload.
type UploadPayload struct {
	Files []string `json:"files"`
}

// SummaryPayload records one generated summary.
type SummaryPayload struct {
	Document string `json:"document"`
	Clusters int    `json:"clusters"`
	Summary  string `json:"summary"`
}

// Journal appends one live session's activity to the event store.
type Journal struct {
	sessions types.SessionStore
	events   types.EventStore
	id       types.SessionID
	source   string

	mu   sync.Mutex
	last types.EntryID
}

// OpenJournal resolves (or creates) the session for key and returns a
// journal writing into it.
func OpenJournal(ctx context.Context, sessions types.SessionStore, events types.EventStore, key types.SessionKey, workflow, source string) (*Journal, error) {
	id, err := sessions.ResolveOrCreate(ctx, key, workflow)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	return &Journal{sessions: sessions, events: events, id: id, source: source}, nil
}

// ID returns the journaled session ID.
func (j *Journal) ID() types.SessionID {
	return j.id
}

// Sync appends the timeline entries not journaled yet. entries is the full
// current timeline. When the last journaled entry is no longer part of it,
// the timeline was cleared and every entry is new.
func (j *Journal) Sync(ctx context.Context, entries []history.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := 0
	if j.last != "" {
		for i := len(entries) - 1; i >= 0; i-- {
			if entries[i].ID == j.last {
				start = i + 1
				break
			}
		}
	}
	for _, e := range entries[start:] {
		typ := types.EventUserMessage
		if e.Role == history.RoleAssistant {
			typ = types.EventAssistantMessage
		}
		payload := EntryPayload{EntryID: e.ID, Content: e.Content, ImageURLs: e.ImageURLs}
		if err := j.append(ctx, typ, e.CreatedAt, payload); err != nil {
			return err
		}
		j.last = e.ID
	}
	return nil
}

// Reset journals a timeline reset. Entries synced afterwards start from the
// beginning of the new timeline.
func (j *Journal) Reset(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.last = ""
	return j.append(ctx, types.EventReset, time.Now(), struct{}{})
}

// Record journals an arbitrary event such as an upload or a summary.
func (j *Journal) Record(ctx context.Context, typ string, payload any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.append(ctx, typ, time.Now(), payload)
}

func (j *Journal) append(ctx context.Context, typ string, at time.Time, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	event := &types.Event{
		ID:        types.NewEventID(),
		SessionID: j.id,
		Type:      typ,
		Source:    j.source,
		At:        at,
		Payload:   data,
	}
	if err := j.events.Append(ctx, event); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	sess, err := j.sessions.Get(ctx, j.id)
	if err != nil {
		return err
	}
	sess.LastEventSeq = event.Seq
	return j.sessions.Update(ctx, sess)
}
