// Package state keeps transcript journals of workflow sessions on disk.
// Journals are write-only from a live session's point of view: they are
// listed, shown and exported, never replayed into a timeline.
package state

import "github.com/user/docpilot/internal/types"

// Compile-time interface compliance checks.
var _ types.SessionStore = (*SessionStore)(nil)
var _ types.EventStore = (*EventStore)(nil)
