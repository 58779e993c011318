package types

import "context"

// SessionStore maps session keys to journaled sessions.
type SessionStore interface {
	// ResolveOrCreate returns the session for key, creating one for the
	// given workflow on first use.
	ResolveOrCreate(ctx context.Context, key SessionKey, workflow string) (SessionID, error)
	Get(ctx context.Context, id SessionID) (*SessionIndex, error)
	// List returns every session, oldest first.
	List(ctx context.Context) ([]*SessionIndex, error)
	Update(ctx context.Context, session *SessionIndex) error
	// Delete drops the session and everything journaled for it.
	Delete(ctx context.Context, id SessionID) error
}

// EventStore is the append-only event journal of each session.
type EventStore interface {
	// Append assigns the event the next sequence number of its session
	// and persists it.
	Append(ctx context.Context, event *Event) error
	// Tail returns the last limit events, or all of them when limit is not
	// positive.
	Tail(ctx context.Context, sessionID SessionID, limit int) ([]*Event, error)
	Count(ctx context.Context, sessionID SessionID) (int64, error)
}
