package workflow

import (
	"context"
	"fmt"
	"sort"
)

// Guard decides whether a permitted transition may proceed for the given subject.
// A non-nil error blocks it and names the unmet condition.
type Guard[T any] func(ctx context.Context, subject T) error

type edge[T any] struct {
	to    State
	guard Guard[T]
}

// Graph is the transition table for one kind of work item. Configure it with From
// before first use; afterwards it is read-only and safe to share.
type Graph[T any] struct {
	name  string
	edges map[State]map[Trigger][]edge[T]
}

// NewGraph creates an empty graph
func NewGraph[T any](name string) *Graph[T] {
	return &Graph[T]{
		name:  name,
		edges: make(map[State]map[Trigger][]edge[T]),
	}
}

// Name identifies the graph in logs and errors
func (g *Graph[T]) Name() string {
	return g.name
}

// From starts the rules for one source state
func (g *Graph[T]) From(state State) *Rules[T] {
	if !state.IsValid() {
		panic(fmt.Sprintf("workflow %s: invalid state %q", g.name, state))
	}
	if g.edges[state] == nil {
		g.edges[state] = make(map[Trigger][]edge[T])
	}
	return &Rules[T]{graph: g, from: state}
}

// Rules adds edges leaving one state
type Rules[T any] struct {
	graph *Graph[T]
	from  State
}

// On permits trigger to move to state
func (r *Rules[T]) On(trigger Trigger, to State) *Rules[T] {
	return r.OnIf(trigger, to, nil)
}

// OnIf permits trigger to move to state when guard passes. Edges for the same
// trigger are tried in the order they were added.
func (r *Rules[T]) OnIf(trigger Trigger, to State, guard Guard[T]) *Rules[T] {
	if !trigger.IsValid() {
		panic(fmt.Sprintf("workflow %s: invalid trigger %q", r.graph.name, trigger))
	}
	if !to.IsValid() {
		panic(fmt.Sprintf("workflow %s: invalid target state %q", r.graph.name, to))
	}
	r.graph.edges[r.from][trigger] = append(r.graph.edges[r.from][trigger], edge[T]{to: to, guard: guard})
	return r
}

// Stay permits triggers that leave the state unchanged
func (r *Rules[T]) Stay(triggers ...Trigger) *Rules[T] {
	for _, t := range triggers {
		r.On(t, r.from)
	}
	return r
}

// Allows reports whether trigger is legal from state. Guards are not evaluated.
func (g *Graph[T]) Allows(from State, trigger Trigger) bool {
	return len(g.edges[from][trigger]) > 0
}

// Next resolves where trigger leads from state for subject, without side effects.
// It returns ErrInvalidTransition for an illegal trigger and a *GuardError when
// every permitted edge was refused by its guard.
func (g *Graph[T]) Next(ctx context.Context, from State, trigger Trigger, subject T) (State, error) {
	edges := g.edges[from][trigger]
	if len(edges) == 0 {
		return from, fmt.Errorf("%w: %s does not allow %s from %s", ErrInvalidTransition, g.name, trigger, from)
	}

	var refused error
	for _, e := range edges {
		if e.guard == nil {
			return e.to, nil
		}
		if err := e.guard(ctx, subject); err != nil {
			refused = err
			continue
		}
		return e.to, nil
	}
	return from, &GuardError{Trigger: trigger, State: from, Cause: refused}
}

// Triggers lists the legal triggers from state, sorted
func (g *Graph[T]) Triggers(from State) []Trigger {
	out := make([]Trigger, 0, len(g.edges[from]))
	for t, edges := range g.edges[from] {
		if len(edges) > 0 {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reachable lists the states reachable from start, including start, in AllStates order
func (g *Graph[T]) Reachable(start State) []State {
	seen := map[State]bool{start: true}
	queue := []State{start}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, edges := range g.edges[s] {
			for _, e := range edges {
				if !seen[e.to] {
					seen[e.to] = true
					queue = append(queue, e.to)
				}
			}
		}
	}

	var out []State
	for _, s := range AllStates() {
		if seen[s] {
			out = append(out, s)
		}
	}
	return out
}
