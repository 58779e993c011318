package state

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/docpilot/internal/history"
	"github.com/user/docpilot/internal/types"
)

func openTestJournal(t *testing.T) (*Journal, *SessionStore, *EventStore) {
	t.Helper()
	dir := t.TempDir()
	sessions := NewSessionStore(dir)
	events := NewEventStore(dir)
	j, err := OpenJournal(context.Background(), sessions, events, types.NewSessionKey("cli", "chat", "t"), "chat", "cli")
	if err != nil {
		t.Fatal(err)
	}
	return j, sessions, events
}

func TestJournal_SyncWritesOnlyNewEntries(t *testing.T) {
	j, sessions, events := openTestJournal(t)
	ctx := context.Background()
	now := time.Now()

	tl := history.NewTimeline()
	tl.Append(history.NewUserEntry("U1", now))
	tl.Append(history.Decode("A1", []string{"http://b/images/1.png"}, now))
	if err := j.Sync(ctx, tl.Entries()); err != nil {
		t.Fatal(err)
	}
	tl.Append(history.NewUserEntry("U2", now))
	if err := j.Sync(ctx, tl.Entries()); err != nil {
		t.Fatal(err)
	}

	got, err := events.Tail(ctx, j.ID(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	wantTypes := []string{types.EventUserMessage, types.EventAssistantMessage, types.EventUserMessage}
	for i, e := range got {
		if e.Type != wantTypes[i] {
			t.Errorf("event %d: expected %s, got %s", i, wantTypes[i], e.Type)
		}
	}
	var p EntryPayload
	if err := json.Unmarshal(got[1].Payload, &p); err != nil {
		t.Fatal(err)
	}
	if p.Content != "A1" || len(p.ImageURLs) != 1 {
		t.Errorf("unexpected payload %+v", p)
	}

	sess, err := sessions.Get(ctx, j.ID())
	if err != nil {
		t.Fatal(err)
	}
	if sess.LastEventSeq != 3 {
		t.Errorf("expected last seq 3, got %d", sess.LastEventSeq)
	}
}

func TestJournal_ResetRestartsSync(t *testing.T) {
	j, _, events := openTestJournal(t)
	ctx := context.Background()
	now := time.Now()

	tl := history.NewTimeline()
	tl.Append(history.NewUserEntry("old", now))
	tl.Append(history.Decode("old answer", nil, now))
	if err := j.Sync(ctx, tl.Entries()); err != nil {
		t.Fatal(err)
	}

	tl.Reset()
	if err := j.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	tl.Append(history.NewUserEntry("new", now))
	if err := j.Sync(ctx, tl.Entries()); err != nil {
		t.Fatal(err)
	}

	got, _ := events.Tail(ctx, j.ID(), 0)
	if len(got) != 4 {
		t.Fatalf("expected 4 events, got %d", len(got))
	}
	if got[2].Type != types.EventReset || got[3].Type != types.EventUserMessage {
		t.Errorf("unexpected tail types %s, %s", got[2].Type, got[3].Type)
	}
}

func TestJournal_SyncAfterUploadClearsTimeline(t *testing.T) {
	j, _, events := openTestJournal(t)
	ctx := context.Background()
	now := time.Now()

	tl := history.NewTimeline()
	tl.Append(history.NewUserEntry("U1", now))
	tl.Append(history.Decode("A1", nil, now))
	if err := j.Sync(ctx, tl.Entries()); err != nil {
		t.Fatal(err)
	}

	// A new upload starts the timeline over without a journaled reset.
	tl.Reset()
	if err := j.Record(ctx, types.EventUpload, UploadPayload{Files: []string{"b.pdf"}}); err != nil {
		t.Fatal(err)
	}
	tl.Append(history.NewUserEntry("U2", now))
	tl.Append(history.Decode("A2", nil, now))
	if err := j.Sync(ctx, tl.Entries()); err != nil {
		t.Fatal(err)
	}
	tl.Append(history.NewUserEntry("U3", now))
	if err := j.Sync(ctx, tl.Entries()); err != nil {
		t.Fatal(err)
	}

	got, err := events.Tail(ctx, j.ID(), 0)
	if err != nil {
		t.Fatal(err)
	}
	var contents []string
	for _, e := range got {
		var p EntryPayload
		if e.Type != types.EventUpload {
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				t.Fatal(err)
			}
		}
		contents = append(contents, e.Type+":"+p.Content)
	}
	want := []string{
		"user_message:U1",
		"assistant_message:A1",
		"upload:",
		"user_message:U2",
		"assistant_message:A2",
		"user_message:U3",
	}
	if strings.Join(contents, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, contents)
	}
}

func transcript(t *testing.T) Transcript {
	t.Helper()
	j, sessions, events := openTestJournal(t)
	ctx := context.Background()
	now := time.Now()

	if err := j.Record(ctx, types.EventUpload, UploadPayload{Files: []string{"a.pdf"}}); err != nil {
		t.Fatal(err)
	}
	if err := j.Sync(ctx, []history.Entry{
		history.NewUserEntry("What is inside?", now),
		history.Decode("A report.", []string{"http://b/images/p.png"}, now),
	}); err != nil {
		t.Fatal(err)
	}
	sess, err := sessions.Get(ctx, j.ID())
	if err != nil {
		t.Fatal(err)
	}
	evs, err := events.Tail(ctx, j.ID(), 0)
	if err != nil {
		t.Fatal(err)
	}
	return Transcript{Session: sess, Events: evs}
}

func TestExport_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, transcript(t), FormatJSON); err != nil {
		t.Fatal(err)
	}
	var d map[string]any
	if err := json.Unmarshal(buf.Bytes(), &d); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if d["workflow"] != "chat" {
		t.Errorf("expected workflow chat, got %v", d["workflow"])
	}
	if evs, _ := d["events"].([]any); len(evs) != 3 {
		t.Errorf("expected 3 events, got %v", d["events"])
	}
}

func TestExport_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, transcript(t), FormatYAML); err != nil {
		t.Fatal(err)
	}
	var d struct {
		Workflow string `yaml:"workflow"`
		Events   []struct {
			Type    string         `yaml:"type"`
			Payload map[string]any `yaml:"payload"`
		} `yaml:"events"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &d); err != nil {
		t.Fatalf("invalid yaml: %v", err)
	}
	if len(d.Events) != 3 || d.Events[2].Payload["content"] != "A report." {
		t.Errorf("unexpected yaml doc %+v", d)
	}
}

func TestExport_Markdown(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, transcript(t), FormatMarkdown); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"> Uploaded: a.pdf", "**You:** What is inside?", "**Assistant:** A report.", "![image](http://b/images/p.png)"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	if err := Export(&bytes.Buffer{}, transcript(t), "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
