package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/docpilot/internal/types"
)

func TestEventStore(t *testing.T) {
	dir := t.TempDir()
	store := NewEventStore(dir)
	ctx := context.Background()

	sessionID := types.NewSessionID()

	for _, text := range []string{"hello", "world", "again"} {
		event := &types.Event{
			ID:        types.NewEventID(),
			SessionID: sessionID,
			Type:      types.EventUserMessage,
			Source:    "test",
			At:        time.Now(),
			Payload:   json.RawMessage(`{"content":"` + text + `"}`),
		}
		if err := store.Append(ctx, event); err != nil {
			t.Fatal(err)
		}
	}

	events, err := store.Tail(ctx, sessionID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Errorf("expected seqs 2,3, got %d,%d", events[0].Seq, events[1].Seq)
	}

	all, err := store.Tail(ctx, sessionID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected all 3 events, got %d", len(all))
	}

	count, err := store.Count(ctx, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}
}

func TestEventStore_LongPayload(t *testing.T) {
	store := NewEventStore(t.TempDir())
	ctx := context.Background()
	sessionID := types.NewSessionID()

	summary := strings.Repeat("s", 200*1024)
	payload, _ := json.Marshal(SummaryPayload{Document: "big.pdf", Summary: summary})
	if err := store.Append(ctx, &types.Event{SessionID: sessionID, Type: types.EventSummary, Payload: payload}); err != nil {
		t.Fatal(err)
	}

	events, err := store.Tail(ctx, sessionID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
}

func TestEventStore_MissingSession(t *testing.T) {
	store := NewEventStore(t.TempDir())
	events, err := store.Tail(context.Background(), types.NewSessionID(), 10)
	if err != nil || events != nil {
		t.Errorf("expected no events and no error, got %v, %v", events, err)
	}
}

func TestEventStore_SeqRestartsAfterRemoval(t *testing.T) {
	dir := t.TempDir()
	store := NewEventStore(dir)
	ctx := context.Background()
	sessionID := types.NewSessionID()

	for range 2 {
		if err := store.Append(ctx, &types.Event{SessionID: sessionID, Type: types.EventReset}); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.RemoveAll(filepath.Join(dir, "sessions", string(sessionID))); err != nil {
		t.Fatal(err)
	}

	event := &types.Event{SessionID: sessionID, Type: types.EventReset}
	if err := store.Append(ctx, event); err != nil {
		t.Fatal(err)
	}
	if event.Seq != 1 {
		t.Errorf("expected seq 1 after removal, got %d", event.Seq)
	}
}

func TestEventStore_CountSeesOtherWriters(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	sessionID := types.NewSessionID()

	first := NewEventStore(dir)
	second := NewEventStore(dir)
	if err := first.Append(ctx, &types.Event{SessionID: sessionID, Type: types.EventReset}); err != nil {
		t.Fatal(err)
	}
	if n, _ := first.Count(ctx, sessionID); n != 1 {
		t.Fatalf("expected 1 event, got %d", n)
	}
	event := &types.Event{SessionID: sessionID, Type: types.EventReset}
	if err := second.Append(ctx, event); err != nil {
		t.Fatal(err)
	}
	if event.Seq != 2 {
		t.Errorf("expected seq 2 from second store, got %d", event.Seq)
	}
	if n, _ := first.Count(ctx, sessionID); n != 2 {
		t.Errorf("expected first store to see 2 events, got %d", n)
	}
}
