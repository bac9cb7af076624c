package state

import (
	"context"
	"sync"
)

// ChangeListener accumulates per-field changes since its last GetPatch call,
// used to serve minimal JSON diffs to a connected UI client. One is created
// per client connection via State.RegisterListener.
type ChangeListener struct {
	state *State

	mu      sync.Mutex
	changes map[string]interface{}
}

// addChange records a field's new value into the pending patch. Called by
// State's setters while holding state.mu; takes its own lock since a
// listener may be read (GetPatch) concurrently from a different goroutine.
func (l *ChangeListener) addChange(field string, value interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.changes == nil {
		l.changes = make(map[string]interface{})
	}
	l.changes[field] = value
}

// GetPatch returns the accumulated field changes and clears them. A
// listener's pending patch contains only the fields that changed since its
// last GetPatch call.
func (l *ChangeListener) GetPatch() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	patch := l.changes
	l.changes = nil
	if patch == nil {
		return map[string]interface{}{}
	}
	return patch
}

// WaitForPatch blocks until there is a pending patch to serve: if one is
// already accumulated it returns immediately, otherwise it waits for the
// state's coarse changed() signal.
func (l *ChangeListener) WaitForPatch(ctx context.Context) {
	l.mu.Lock()
	empty := len(l.changes) == 0
	l.mu.Unlock()

	if empty {
		l.state.WaitChanged(ctx)
	}
}
