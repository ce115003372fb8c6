// Package tentative applies optimistic changes to view state and rolls them
// back when the backend rejects them.
//
// A mutation moves through apply → await → commit | rollback:
//
//	prior := state.Get()
//	state.set(m.Apply(prior))          // visible immediately
//	result, err := m.Call(ctx)         // the backend round trip
//	err == nil: state.set(m.Commit(current, result))
//	err != nil: state.set(m.Revert(current, prior)) // unless state was refreshed meanwhile
//
// Only one mutation per key may be in flight; a second returns ErrInFlight
// without touching state or calling the backend. An Exclusive mutation runs
// only when nothing else is in flight and blocks all others while it runs.
//
// Mutations with different keys may overlap on one State. Each must then
// supply Revert so that undoing it leaves the other's change in place.
package tentative

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrInFlight is returned when a mutation with the same key is running.
	ErrInFlight = errors.New("another change is still being saved")

	// ErrDetached is returned when the owning view has gone away.
	ErrDetached = errors.New("view is no longer active")
)

// State holds one piece of view state.
type State[T any] struct {
	mu       sync.Mutex
	value     T
	refreshes uint64
	exclusive bool
	detached  bool
	inFlight  map[string]struct{}
	onChange  func(T)
}

// NewState returns a State holding initial.
func NewState[T any](initial T) *State[T] {
	return &State[T]{value: initial, inFlight: make(map[string]struct{})}
}

// OnChange registers fn to observe every change. fn runs with the state's
// lock released.
func (s *State[T]) OnChange(fn func(T)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Get returns the current value.
func (s *State[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set stores an authoritative value, e.g. the result of a fresh fetch. It
// returns false if the state is detached.
func (s *State[T]) Set(v T) bool {
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return false
	}
	s.value = v
	s.refreshes++
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(v)
	}
	return true
}

// InFlight reports whether a mutation with key is running. Controls bound
// to key should be disabled while it is.
func (s *State[T]) InFlight(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[key]
	return ok
}

// Detach stops all further updates. Running mutations finish their calls but
// their results are discarded.
func (s *State[T]) Detach() {
	s.mu.Lock()
	s.detached = true
	s.mu.Unlock()
}

// Detached reports whether Detach has been called.
func (s *State[T]) Detached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detached
}

// Mutation describes one optimistic change.
type Mutation[T, R any] struct {
	// Key identifies the control; at most one mutation per key runs at once.
	Key string

	// Apply returns the optimistic value given the current one.
	Apply func(current T) T

	// Call performs the backend request.
	Call func(ctx context.Context) (R, error)

	// Commit reconciles the value with the backend's result. When nil the
	// optimistic value is kept.
	Commit func(current T, result R) T

	// Revert undoes this mutation's change on current, which may already
	// carry other mutations' changes. When nil the value seen before Apply
	// is restored.
	Revert func(current, prior T) T

	// Exclusive mutations never overlap with any other mutation on the State.
	Exclusive bool
}

// Outcome reports what happened to the state.
type Outcome int

const (
	Committed  Outcome = iota // backend accepted; state reconciled
	RolledBack                // backend rejected; change reverted
	Superseded                // an authoritative Set happened meanwhile; left alone
	Discarded                 // detached before or during the call
)

// Do runs m against s. The returned error is Call's error, ErrInFlight, or
// ErrDetached.
func Do[T, R any](ctx context.Context, s *State[T], m Mutation[T, R]) (R, Outcome, error) {
	var zero R

	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return zero, Discarded, ErrDetached
	}
	_, busy := s.inFlight[m.Key]
	if busy || s.exclusive || (m.Exclusive && len(s.inFlight) > 0) {
		s.mu.Unlock()
		return zero, Discarded, ErrInFlight
	}
	s.inFlight[m.Key] = struct{}{}
	s.exclusive = m.Exclusive
	prior := s.value
	optimistic := prior
	if m.Apply != nil {
		optimistic = m.Apply(prior)
	}
	s.value = optimistic
	refreshes := s.refreshes
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(optimistic)
	}

	result, err := m.Call(ctx)

	s.mu.Lock()
	delete(s.inFlight, m.Key)
	if m.Exclusive {
		s.exclusive = false
	}
	if s.detached {
		s.mu.Unlock()
		return result, Discarded, err
	}

	var outcome Outcome
	var changed bool
	switch {
	case err != nil && s.refreshes != refreshes:
		outcome = Superseded
	case err != nil && m.Revert != nil:
		s.value = m.Revert(s.value, prior)
		outcome, changed = RolledBack, true
	case err != nil:
		s.value = prior
		outcome, changed = RolledBack, true
	case m.Commit != nil:
		s.value = m.Commit(s.value, result)
		outcome, changed = Committed, true
	default:
		outcome = Committed
	}
	v := s.value
	fn = s.onChange
	s.mu.Unlock()

	if changed && fn != nil {
		fn(v)
	}
	return result, outcome, err
}
