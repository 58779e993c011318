package state

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/docpilot/internal/types"
)

// maxEventLine bounds one journaled event; summaries can be long.
const maxEventLine = 4 << 20

// EventStore appends events to sessions/<sessionID>/events.jsonl, one JSON
// object per line.
type EventStore struct {
	root string

	mu   sync.Mutex
	logs map[types.SessionID]*eventLog
}

// eventLog serializes access to one session's file and remembers the last
// sequence number written, keyed to the file size it was read at.
type eventLog struct {
	mu   sync.Mutex
	path string
	seq  int64
	size int64
}

func NewEventStore(root string) *EventStore {
	return &EventStore{
		root: root,
		logs: make(map[types.SessionID]*eventLog),
	}
}

func (e *EventStore) log(id types.SessionID) *eventLog {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.logs[id]
	if !ok {
		l = &eventLog{
			path: filepath.Join(e.root, "sessions", string(id), "events.jsonl"),
			size: -1,
		}
		e.logs[id] = l
	}
	return l
}

// scan calls fn for every line of the log. A missing file has no lines.
func (l *eventLog) scan(fn func(line []byte) error) error {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	for sc.Scan() {
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan events file: %w", err)
	}
	return nil
}

// lastSeq returns the number of events on disk. The cached value is reused
// while the file size matches what was last seen, so a session removed from
// under the store starts again at 1. Caller holds l.mu.
func (l *eventLog) lastSeq() (int64, error) {
	var size int64
	switch info, err := os.Stat(l.path); {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return 0, fmt.Errorf("stat events file: %w", err)
	default:
		size = info.Size()
	}
	if size == l.size {
		return l.seq, nil
	}

	var n int64
	if err := l.scan(func([]byte) error { n++; return nil }); err != nil {
		return 0, err
	}
	l.seq, l.size = n, size
	return n, nil
}

// Append stamps the event with the next sequence number of its session and
// writes it as one line.
func (e *EventStore) Append(_ context.Context, event *types.Event) error {
	l := e.log(event.SessionID)
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	seq, err := l.lastSeq()
	if err != nil {
		return err
	}
	event.Seq = seq + 1

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open events file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("write event: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close events file: %w", err)
	}

	l.seq = event.Seq
	l.size += int64(len(line))
	return nil
}

// Tail returns the last limit events of a session, or all of them when
// limit is not positive.
func (e *EventStore) Tail(_ context.Context, sessionID types.SessionID, limit int) ([]*types.Event, error) {
	l := e.log(sessionID)
	l.mu.Lock()
	defer l.mu.Unlock()

	var events []*types.Event
	err := l.scan(func(line []byte) error {
		var ev types.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("unmarshal event: %w", err)
		}
		events = append(events, &ev)
		if limit > 0 && len(events) > limit {
			events = events[1:]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (e *EventStore) Count(_ context.Context, sessionID types.SessionID) (int64, error) {
	l := e.log(sessionID)
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.lastSeq()
}
