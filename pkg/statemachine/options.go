package statemachine

import "fmt"

// Option configures a Table while it is built. Tables are immutable afterwards.
type Option func(*Table) error

// TransitionOption attaches guards or actions to a transition added with WithTransition.
type TransitionOption func(*Transition)

// TransitionDef declares one transition for WithTransitions.
type TransitionDef struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard
	Actions []Action
}

// New builds a table from opts. A transition with a nil state or event is an error.
func New(opts ...Option) (*Table, error) {
	t := newTable()
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew is New for package-level tables built from static definitions.
func MustNew(opts ...Option) *Table {
	t, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("statemachine: %v", err))
	}
	return t
}

// WithTransition declares one transition.
func WithTransition(from, to State, event Event, opts ...TransitionOption) Option {
	return func(t *Table) error {
		var tr Transition
		for _, opt := range opts {
			opt(&tr)
		}
		return t.add(from, to, event, tr.Guards, tr.Actions)
	}
}

// WithTransitions adds the definitions in order. An invalid definition is
// reported with its index.
func WithTransitions(defs []TransitionDef) Option {
	return func(t *Table) error {
		for i, def := range defs {
			if err := t.add(def.From, def.To, def.Event, compactGuards(def.Guards), compactActions(def.Actions)); err != nil {
				return fmt.Errorf("transition[%d] %s->%s on %s: %w",
					i, nameOf(def.From), nameOf(def.To), nameOf(def.Event), err)
			}
		}
		return nil
	}
}

// WithGuards appends guards. Nil guards are dropped.
func WithGuards(guards ...Guard) TransitionOption {
	return func(tr *Transition) {
		tr.Guards = append(tr.Guards, compactGuards(guards)...)
	}
}

// WithActions appends actions. Nil actions are dropped.
func WithActions(actions ...Action) TransitionOption {
	return func(tr *Transition) {
		tr.Actions = append(tr.Actions, compactActions(actions)...)
	}
}

func compactGuards(in []Guard) []Guard {
	var out []Guard
	for _, g := range in {
		if g != nil {
			out = append(out, g)
		}
	}
	return out
}

func compactActions(in []Action) []Action {
	var out []Action
	for _, a := range in {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

func nameOf(v interface{ Name() string }) string {
	if v == nil {
		return "<nil>"
	}
	return v.Name()
}
