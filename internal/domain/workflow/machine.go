package workflow

import (
	"context"
	"sort"
)

// StateMachine tracks one record's state. It is not safe for concurrent use;
// callers build a fresh machine per operation from the persisted status.
type StateMachine interface {
	State() State

	// CanFire reports whether any route exists for the trigger. Guards are
	// not consulted.
	CanFire(trigger Trigger) bool

	// Evaluate resolves the target of a trigger without moving
	Evaluate(ctx context.Context, trigger Trigger) (State, error)

	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers lists triggers with at least one route, sorted
	PermittedTriggers() []Trigger
}

type machine struct {
	current State
	routes  table
}

func (m *machine) State() State {
	return m.current
}

func (m *machine) CanFire(trigger Trigger) bool {
	return len(m.routes[m.current][trigger]) > 0
}

func (m *machine) Evaluate(ctx context.Context, trigger Trigger) (State, error) {
	if !m.current.IsValid() {
		return m.current, refused(m.current, trigger, ErrUnknownState)
	}
	candidates := m.routes[m.current][trigger]
	if len(candidates) == 0 {
		return m.current, refused(m.current, trigger, ErrInvalidTransition)
	}
	for _, r := range candidates {
		if r.allowed(ctx) {
			return r.to, nil
		}
	}
	return m.current, refused(m.current, trigger, ErrGuardFailed)
}

func (m *machine) Fire(ctx context.Context, trigger Trigger) error {
	next, err := m.Evaluate(ctx, trigger)
	if err != nil {
		return err
	}
	m.current = next
	return nil
}

func (m *machine) PermittedTriggers() []Trigger {
	byTrigger := m.routes[m.current]
	out := make([]Trigger, 0, len(byTrigger))
	for trig, rs := range byTrigger {
		if len(rs) > 0 {
			out = append(out, trig)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
