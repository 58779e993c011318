package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/user/docpilot/internal/types"
)

// ErrSessionNotFound is returned for unknown session IDs and keys.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore indexes journaled sessions in sessions/sessions.json and
// keeps one directory per session at sessions/<sessionID>/.
type SessionStore struct {
	dir string
	mu  sync.RWMutex
}

func NewSessionStore(root string) *SessionStore {
	return &SessionStore{dir: filepath.Join(root, "sessions")}
}

// sessionIndex is the decoded sessions.json, keyed by session key.
type sessionIndex map[types.SessionKey]*types.SessionIndex

func (idx sessionIndex) byID(id types.SessionID) (types.SessionKey, *types.SessionIndex, bool) {
	for key, sess := range idx {
		if sess.SessionID == id {
			return key, sess, true
		}
	}
	return "", nil, false
}

// sorted returns the sessions oldest first.
func (idx sessionIndex) sorted() []*types.SessionIndex {
	out := make([]*types.SessionIndex, 0, len(idx))
	for _, sess := range idx {
		out = append(out, sess)
	}
	slices.SortFunc(out, func(a, b *types.SessionIndex) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

func (s *SessionStore) indexFile() string {
	return filepath.Join(s.dir, "sessions.json")
}

func (s *SessionStore) read() (sessionIndex, error) {
	idx := make(sessionIndex)
	data, err := os.ReadFile(s.indexFile())
	if errors.Is(err, fs.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session index: %w", err)
	}

	var list []*types.SessionIndex
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode session index: %w", err)
	}
	for _, sess := range list {
		idx[sess.SessionKey] = sess
	}
	return idx, nil
}

// write replaces sessions.json through a temp file and rename.
func (s *SessionStore) write(idx sessionIndex) error {
	data, err := json.MarshalIndent(idx.sorted(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode session index: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "sessions-*.json")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.indexFile()); err != nil {
		return fmt.Errorf("replace session index: %w", err)
	}
	return nil
}

// modify runs fn on the current index under the write lock and saves the
// result when fn succeeds.
func (s *SessionStore) modify(fn func(sessionIndex) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(idx); err != nil {
		return err
	}
	return s.write(idx)
}

func (s *SessionStore) ResolveOrCreate(_ context.Context, key types.SessionKey, workflow string) (types.SessionID, error) {
	s.mu.RLock()
	idx, err := s.read()
	s.mu.RUnlock()
	if err != nil {
		return "", err
	}
	if sess, ok := idx[key]; ok {
		return sess.SessionID, nil
	}

	var id types.SessionID
	err = s.modify(func(idx sessionIndex) error {
		if sess, ok := idx[key]; ok {
			id = sess.SessionID
			return nil
		}
		now := time.Now()
		id = types.NewSessionID()
		idx[key] = &types.SessionIndex{
			SessionID:  id,
			SessionKey: key,
			Workflow:   workflow,
			Source:     key.Source(),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return os.MkdirAll(filepath.Join(s.dir, string(id)), 0o755)
	})
	if err != nil {
		return "", fmt.Errorf("create session %s: %w", key, err)
	}
	return id, nil
}

func (s *SessionStore) Get(_ context.Context, id types.SessionID) (*types.SessionIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, err := s.read()
	if err != nil {
		return nil, err
	}
	if _, sess, ok := idx.byID(id); ok {
		return sess, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

func (s *SessionStore) List(_ context.Context) ([]*types.SessionIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, err := s.read()
	if err != nil {
		return nil, err
	}
	return idx.sorted(), nil
}

// Update stores session under its key and bumps UpdatedAt.
func (s *SessionStore) Update(_ context.Context, session *types.SessionIndex) error {
	return s.modify(func(idx sessionIndex) error {
		if _, ok := idx[session.SessionKey]; !ok {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, session.SessionKey)
		}
		session.UpdatedAt = time.Now()
		idx[session.SessionKey] = session
		return nil
	})
}

// Delete drops the session from the index and removes its directory.
func (s *SessionStore) Delete(_ context.Context, id types.SessionID) error {
	err := s.modify(func(idx sessionIndex) error {
		key, _, ok := idx.byID(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		delete(idx, key)
		return nil
	})
	if err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.dir, string(id))); err != nil {
		return fmt.Errorf("remove session dir: %w", err)
	}
	return nil
}
