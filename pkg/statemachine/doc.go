// Package statemachine provides an immutable, stateless transition table for
// finite-state workflows.
//
// The package revolves around two minimal interfaces, State and Event, that
// leave the domain free to model its own states and events while the table
// handles transition lookup, Guard evaluation and execution of Actions.
//
// A Table never stores a current state. Callers pass the state the entity is
// in and receive the destination state back, so a single Table can be shared
// by any number of goroutines and entities without locking. Persisting the
// resulting state is the caller's job.
//
// # Usage
//
//	const (
//	    Draft    = statemachine.StringState("draft")
//	    InReview = statemachine.StringState("in_review")
//	    Submit   = statemachine.StringEvent("submit")
//	)
//
//	table := statemachine.MustNew(
//	    statemachine.WithTransition(Draft, InReview, Submit),
//	)
//
//	next, err := table.Fire(ctx, Draft, Submit, nil)
//
// # Guards and Actions
//
// Guards veto a transition based on runtime data. When several transitions
// share a state/event pair the first one whose guards all pass wins.
//
// Actions run in declaration order after guards succeed. The first failing
// action stops the chain and Fire returns an *ActionError carrying its index.
//
// # Error Handling
//
//	if statemachine.IsNoTransitionAvailableError(err) { /* not declared */ }
//	if statemachine.IsTransitionRejectedError(err)   { /* guard vetoed */ }
//	cause := statemachine.ActionCause(err)
package statemachine
