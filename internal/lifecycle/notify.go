package lifecycle

import "sync"

// Notifier surfaces transient user-visible notifications.
type Notifier interface {
	Success(msg string)
	Error(msg string)
	Info(msg string)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) Success(string) {}
func (NopNotifier) Error(string)   {}
func (NopNotifier) Info(string)    {}

// Notification is one recorded notification.
type Notification struct {
	Level   string
	Message string
}

// RecordingNotifier keeps every notification in memory.
type RecordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (r *RecordingNotifier) add(level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, Notification{Level: level, Message: msg})
}

func (r *RecordingNotifier) Success(msg string) { r.add("success", msg) }
func (r *RecordingNotifier) Error(msg string)   { r.add("error", msg) }
func (r *RecordingNotifier) Info(msg string)    { r.add("info", msg) }

// All returns a copy of the recorded notifications.
func (r *RecordingNotifier) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Count returns how many notifications of the given level were recorded.
func (r *RecordingNotifier) Count(level string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, it := range r.items {
		if it.Level == level {
			n++
		}
	}
	return n
}
