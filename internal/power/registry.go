package power

import (
	"context"
	"sync"

	"RackPower/internal/driver"
)

// Handle is an admitted power change. Coalesced callers share one
// handle and therefore observe the outcome of a single underlying
// action.
type Handle struct {
	change driver.Change

	done  chan struct{}
	state driver.State
	err   error
}

func newHandle(change driver.Change) *Handle {
	return &Handle{change: change, done: make(chan struct{})}
}

// Change returns the power change this handle was admitted for.
func (h *Handle) Change() driver.Change { return h.change }

// Wait blocks until the action completes and returns its outcome. The
// context only bounds the wait; it does not cancel the action itself.
func (h *Handle) Wait(ctx context.Context) (driver.State, error) {
	select {
	case <-h.done:
		return h.state, h.err
	case <-ctx.Done():
		return driver.StateUnknown, ctx.Err()
	}
}

// Done is closed when the action has completed and its registry entry
// has been released.
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) finish(state driver.State, err error) {
	h.state = state
	h.err = err
	close(h.done)
}

// ActionRegistry tracks the single in-flight power change per node.
// Admit and Release are the only mutations, both atomic with respect
// to concurrent calls for the same system ID.
type ActionRegistry struct {
	mu      sync.Mutex
	actions map[string]*Handle
}

func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{actions: make(map[string]*Handle)}
}

// Admit registers a power change for a node. It returns a fresh handle
// with admitted=true when no action is in flight, the existing handle
// with admitted=false when the same change is already in flight, and
// an ActionInProgressError when a different change is.
func (r *ActionRegistry) Admit(systemID string, change driver.Change) (*Handle, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.actions[systemID]; ok {
		if current.change == change {
			return current, false, nil
		}
		return nil, false, &ActionInProgressError{
			SystemID:  systemID,
			Current:   current.change,
			Requested: change,
		}
	}

	h := newHandle(change)
	r.actions[systemID] = h
	return h, true, nil
}

// Release drops the node's entry. It runs on every completion path —
// success, failure, timeout or cancellation — so no entry ever
// outlives the action it represents.
func (r *ActionRegistry) Release(systemID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.actions, systemID)
}

// InProgress reports whether the node has an action in flight. The
// reconciliation sweep uses it to leave such nodes alone.
func (r *ActionRegistry) InProgress(systemID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.actions[systemID]
	return ok
}

// Len returns the number of in-flight actions.
func (r *ActionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actions)
}
