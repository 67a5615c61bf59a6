package statemachine

import (
	"context"
)

// Table is an immutable transition table.
// It holds no current state: callers pass the state they transition from,
// so one Table is shared by every entity that follows the same workflow.
// Lookups use a nested map [fromState][event][]Transition.
type Table struct {
	transitions map[string]map[string][]Transition
	// events keeps registration order per source state so listings are deterministic.
	events map[string][]Event
}

func newTable() *Table {
	return &Table{
		transitions: make(map[string]map[string][]Transition),
		events:      make(map[string][]Event),
	}
}

func (t *Table) add(from, to State, event Event, guards []Guard, actions []Action) error {
	if from == nil || to == nil || event == nil {
		return ErrInvalidTransition
	}

	fromName := from.Name()
	eventName := event.Name()

	if _, ok := t.transitions[fromName]; !ok {
		t.transitions[fromName] = make(map[string][]Transition)
	}
	if _, ok := t.transitions[fromName][eventName]; !ok {
		t.events[fromName] = append(t.events[fromName], event)
	}

	// Multiple transitions allowed for same from/event to support guard-based branching
	t.transitions[fromName][eventName] = append(t.transitions[fromName][eventName], Transition{
		From:    from,
		To:      to,
		Event:   event,
		Guards:  guards,
		Actions: actions,
	})
	return nil
}

// Lookup returns the transitions declared for the state/event pair, ignoring guards.
func (t *Table) Lookup(from State, event Event) []Transition {
	if from == nil || event == nil {
		return nil
	}
	return t.transitions[from.Name()][event.Name()]
}

// Events lists the events declared for a state in registration order, ignoring guards.
func (t *Table) Events(from State) []Event {
	if from == nil {
		return nil
	}
	events := t.events[from.Name()]
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

// Resolve returns the first transition for the state/event pair whose guards pass.
// It returns ErrNoTransitionAvailable when nothing is declared for the pair and
// ErrTransitionRejected when every candidate was vetoed by a guard.
func (t *Table) Resolve(ctx context.Context, from State, event Event, data any) (Transition, error) {
	if event == nil {
		return Transition{}, ErrInvalidEvent
	}
	if from == nil {
		return Transition{}, ErrInvalidState
	}

	candidates := t.Lookup(from, event)
	if len(candidates) == 0 {
		return Transition{}, NewErrNoTransitionAvailable(from.Name(), event.Name())
	}

	// First transition with passing guards wins (enables priority ordering)
	for _, tr := range candidates {
		if tr.allowed(ctx, from, event, data) {
			return tr, nil
		}
	}

	return Transition{}, NewErrTransitionRejected(from.Name(), event.Name())
}

// Fire resolves the transition and runs its actions in order.
// It returns the destination state. Any action error aborts the chain and is
// returned wrapped in *ActionError; the caller owns rolling back whatever the
// earlier actions did.
func (t *Table) Fire(ctx context.Context, from State, event Event, data any) (State, error) {
	tr, err := t.Resolve(ctx, from, event, data)
	if err != nil {
		return nil, err
	}

	for i, action := range tr.Actions {
		if action == nil {
			continue
		}
		if err := action(ctx, from, tr.To, event, data); err != nil {
			return nil, &ActionError{Index: i, StateName: from.Name(), EventName: event.Name(), Err: err}
		}
	}

	return tr.To, nil
}

// CanFire reports whether some transition for the pair would pass its guards.
func (t *Table) CanFire(ctx context.Context, from State, event Event, data any) bool {
	_, err := t.Resolve(ctx, from, event, data)
	return err == nil
}

// ValidEvents lists the events that can currently fire from the state, guards included.
func (t *Table) ValidEvents(ctx context.Context, from State, data any) []Event {
	var valid []Event
	for _, event := range t.Events(from) {
		if t.CanFire(ctx, from, event, data) {
			valid = append(valid, event)
		}
	}
	return valid
}
