package workflow

import (
	"context"
	"fmt"
)

// GuardFunc decides whether a route may be taken for the given context
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder collects routes and stamps out machines that share them
type StateMachineBuilder interface {
	Configure(state State) StateConfiguration
	Build(initialState State) StateMachine
}

// StateConfiguration adds routes leaving one state. Routes for the same
// trigger are tried in the order they were added.
type StateConfiguration interface {
	Permit(trigger Trigger, toState State) StateConfiguration
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

type route struct {
	to    State
	guard GuardFunc
}

func (r route) allowed(ctx context.Context) bool {
	return r.guard == nil || r.guard(ctx)
}

// table maps a source state to its routes per trigger
type table map[State]map[Trigger][]route

func (t table) clone() table {
	out := make(table, len(t))
	for from, byTrigger := range t {
		routes := make(map[Trigger][]route, len(byTrigger))
		for trig, rs := range byTrigger {
			routes[trig] = append([]route(nil), rs...)
		}
		out[from] = routes
	}
	return out
}

type builder struct {
	routes  table
	configs map[State]*stateRoutes
}

type stateRoutes struct {
	from   State
	routes table
}

// NewBuilder returns an empty StateMachineBuilder. Configure and Permit
// panic on unknown states, since routes are wired at startup.
func NewBuilder() StateMachineBuilder {
	return &builder{
		routes:  make(table),
		configs: make(map[State]*stateRoutes),
	}
}

func (b *builder) Configure(state State) StateConfiguration {
	mustBeKnown("configured", state)
	if c, ok := b.configs[state]; ok {
		return c
	}
	c := &stateRoutes{from: state, routes: b.routes}
	b.configs[state] = c
	return c
}

// Build snapshots the routes, so later Configure calls do not leak into
// machines already built. The initial state comes from stored rows, so an
// unknown one is accepted and every trigger on it fails with ErrUnknownState.
func (b *builder) Build(initialState State) StateMachine {
	return &machine{current: initialState, routes: b.routes.clone()}
}

func (c *stateRoutes) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

func (c *stateRoutes) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	mustBeKnown("target", toState)
	byTrigger, ok := c.routes[c.from]
	if !ok {
		byTrigger = make(map[Trigger][]route)
		c.routes[c.from] = byTrigger
	}
	byTrigger[trigger] = append(byTrigger[trigger], route{to: toState, guard: guard})
	return c
}

func mustBeKnown(role string, s State) {
	if !s.IsValid() {
		panic(fmt.Sprintf("workflow: unknown %s state %q", role, s))
	}
}
