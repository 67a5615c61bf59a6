package moderation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/reviewkit/pkg/statemachine"
)

// TransitionContext is threaded through guards and hooks as the transition's
// data. It carries the locked item and the Action being built, so the table
// itself stays free of per-call state.
type TransitionContext struct {
	Item     *Reviewable
	Provider *Provider
	Policy   Policy
	Actor    uuid.UUID
	Trigger  Trigger
	Comment  string
	Now      time.Time

	Unit     UnitOfWork
	Notifier *Notifier

	// Set by the hooks.
	Action      *Action
	Published   bool
	Unpublished bool
}

func transitionContext(data any) (*TransitionContext, error) {
	tc, ok := data.(*TransitionContext)
	if !ok || tc == nil || tc.Item == nil {
		return nil, fmt.Errorf("moderation hook called with %T, want *TransitionContext", data)
	}
	return tc, nil
}

// ResubmissionAllowed lets a rejected item go back to pending only under pre-moderation.
func ResubmissionAllowed(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
	tc, err := transitionContext(data)
	if err != nil {
		return false
	}
	return tc.Policy.Mode == ModePreModeration
}

// PublicationHook publishes the item when it enters a public state and
// unpublishes it when it leaves one. Self-loops never change visibility.
func PublicationHook(ctx context.Context, from, to statemachine.State, _ statemachine.Event, data any) error {
	tc, err := transitionContext(data)
	if err != nil {
		return err
	}
	if from.Name() == to.Name() {
		return nil
	}

	public := tc.Policy.IsPublic(State(to.Name()))
	switch {
	case public && !tc.Item.Published:
		return publish(ctx, tc)
	case !public && tc.Item.Published:
		unpublish(tc)
	}
	return nil
}

// StateHook moves the item to the destination state and persists it.
func StateHook(ctx context.Context, _, to statemachine.State, _ statemachine.Event, data any) error {
	tc, err := transitionContext(data)
	if err != nil {
		return err
	}

	now := tc.Now
	tc.Item.State = State(to.Name())
	tc.Item.LastTransitionedAt = &now

	if err := tc.Unit.SaveReviewable(ctx, tc.Item); err != nil {
		return persistence("save reviewable", err)
	}
	return nil
}

// AuditHook appends the Action describing the transition.
func AuditHook(ctx context.Context, from, to statemachine.State, event statemachine.Event, data any) error {
	tc, err := transitionContext(data)
	if err != nil {
		return err
	}

	action := &Action{
		ID:           uuid.New(),
		ReviewableID: tc.Item.ID,
		ActorID:      tc.Actor,
		Trigger:      Trigger(event.Name()),
		FromState:    State(from.Name()),
		ToState:      State(to.Name()),
		Comment:      tc.Comment,
		CreatedAt:    tc.Now,
	}
	if err := tc.Unit.AppendAction(ctx, action); err != nil {
		return persistence("append action", err)
	}
	tc.Action = action
	return nil
}

// DefaultTransitions is the moderation workflow. Every transition runs the
// publication, state and audit hooks in that order.
func DefaultTransitions() []statemachine.TransitionDef {
	hooks := []statemachine.Action{PublicationHook, StateHook, AuditHook}
	def := func(from State, trigger Trigger, to State, guards ...statemachine.Guard) statemachine.TransitionDef {
		return statemachine.TransitionDef{
			From:    from,
			To:      to,
			Event:   trigger,
			Guards:  guards,
			Actions: hooks,
		}
	}

	return []statemachine.TransitionDef{
		def(StateInitial, TriggerSubmit, StatePending),
		def(StatePending, TriggerAccept, StateAccepted),
		def(StatePending, TriggerReject, StateRejected),
		def(StateRejected, TriggerSubmit, StatePending, ResubmissionAllowed),
		def(StateAccepted, TriggerEditComment, StateAccepted),
		def(StateRejected, TriggerEditComment, StateRejected),
	}
}

var defaultTable = sync.OnceValue(func() *statemachine.Table {
	return statemachine.MustNew(statemachine.WithTransitions(DefaultTransitions()))
})

// DefaultTable returns the shared, immutable table built from DefaultTransitions.
func DefaultTable() *statemachine.Table {
	return defaultTable()
}
