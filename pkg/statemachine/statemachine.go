package statemachine

import "context"

// State is anything with a stable name. Names are the table's lookup keys.
type State interface {
	Name() string
}

// Event names a transition trigger.
type Event interface {
	Name() string
}

// Action runs after the guards pass. A non-nil error aborts the chain.
type Action func(ctx context.Context, from, to State, event Event, data any) error

// Guard vetoes a transition by returning false.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Transition is one declared edge of the table.
type Transition struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard
	Actions []Action
}

func (t Transition) allowed(ctx context.Context, from State, event Event, data any) bool {
	for _, guard := range t.Guards {
		if !guard(ctx, from, event, data) {
			return false
		}
	}
	return true
}

// StringState and StringEvent are ready-made names for tables that need no richer type.
type (
	StringState string
	StringEvent string
)

func (s StringState) Name() string { return string(s) }
func (e StringEvent) Name() string { return string(e) }
