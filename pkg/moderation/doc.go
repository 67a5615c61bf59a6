// Package moderation implements the moderation workflow for submitted items.
//
// A provider chooses a workflow mode (none, pre-moderation or
// post-moderation) and every Reviewable under it moves through the states
// initial, pending, accepted and rejected by way of four triggers: submit,
// accept, reject and edit_comment.
//
// # Components
//
//   - ResolvePolicy turns a Provider into its Mode and the set of public states.
//   - DefaultTable is the immutable statemachine.Table declaring which
//     (state, trigger) pairs are legal. Resubmitting a rejected item is
//     guarded by ResubmissionAllowed and only passes under pre-moderation.
//   - Engine.Fire locks the item, opens a UnitOfWork and runs the transition's
//     hooks in order: PublicationHook, StateHook, AuditHook. Commit makes all
//     of it visible at once; any error rolls all of it back.
//   - Notifier defers PublishedTask and UnpublishedTask to the commit
//     boundary and tags them with the item id as ordering key.
//
// # Usage
//
//	engine, err := moderation.NewEngine(store, providers,
//	    moderation.WithNotifier(moderation.NewNotifier(enqueuer)),
//	    moderation.WithEventRecorder(recorder),
//	)
//	if err != nil {
//	    return err
//	}
//
//	action, err := engine.Accept(ctx, itemID, moderatorID, "looks good")
//	switch {
//	case moderation.IsInvalidTransitionError(err):
//	    // not available in the current state
//	case moderation.IsPublishPreconditionError(err):
//	    // moderation.FailedCondition(err) names what is missing
//	}
//
// # Stores
//
// MemoryStore serves tests and single-process tools. The pgstore and
// sqlitestore subpackages implement Store on PostgreSQL and SQLite.
package moderation
