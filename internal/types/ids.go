// Package types holds the identifiers and journal records shared by the
// workflow packages and the transcript store.
package types

import (
	"strings"

	"github.com/google/uuid"
)

// SessionKey names a conversation from the front end's point of view, for
// example "telegram:<user>:<chat>" or "cli:chat:<run>". A key resolves to
// exactly one SessionID.
type SessionKey string

// SessionID identifies one journaled session on disk.
type SessionID string

// EntryID identifies one timeline entry.
type EntryID string

// EventID identifies one journaled event.
type EventID string

const keySep = ":"

func NewSessionID() SessionID { return SessionID(uuid.NewString()) }
func NewEntryID() EntryID     { return EntryID(uuid.NewString()) }
func NewEventID() EventID     { return EventID(uuid.NewString()) }

// NewSessionKey joins parts with ":". Empty parts are skipped and a ":"
// inside a part is replaced so that Parts can split the key again.
func NewSessionKey(parts ...string) SessionKey {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		kept = append(kept, strings.ReplaceAll(p, keySep, "_"))
	}
	return SessionKey(strings.Join(kept, keySep))
}

// Parts splits the key into the parts it was built from.
func (k SessionKey) Parts() []string {
	if k == "" {
		return nil
	}
	return strings.Split(string(k), keySep)
}

// Source is the front end that owns the key: its first part.
func (k SessionKey) Source() string {
	source, _, _ := strings.Cut(string(k), keySep)
	return source
}
