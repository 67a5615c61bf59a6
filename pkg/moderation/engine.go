package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/reviewkit/pkg/logger"
	"github.com/dmitrymomot/reviewkit/pkg/statemachine"
)

// EventRecorder appends entries to a container's history.
// The engine calls it once per committed transition and ignores its failures.
type EventRecorder interface {
	RecordEvent(ctx context.Context, containerID uuid.UUID, eventType string, params map[string]any, actor uuid.UUID) error
}

// Event types recorded in the container history.
const (
	EventPublished  = "reviewable_published"
	eventTypePrefix = "reviewable_"
)

// Engine fires moderation triggers against reviewables.
// It holds no per-item state and is safe for concurrent use.
type Engine struct {
	store     Store
	providers ProviderSource
	table     *statemachine.Table
	notifier  *Notifier
	events    EventRecorder
	locker    Locker
	now       func() time.Time
	logger    *slog.Logger
	metrics   *Metrics
}

// NewEngine returns an engine over store that resolves policies through
// providers. Without options it uses DefaultTable, an in-process locker,
// no notifier and no event recorder.
func NewEngine(store Store, providers ProviderSource, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if providers == nil {
		return nil, ErrProvidersRequired
	}

	e := &Engine{
		store:     store,
		providers: providers,
		table:     DefaultTable(),
		locker:    NewLocalLocker(),
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Submit sends the item to moderation.
func (e *Engine) Submit(ctx context.Context, id, actor uuid.UUID) (*Action, error) {
	return e.Fire(ctx, id, TriggerSubmit, actor, "")
}

// Accept approves a pending item with an optional moderator comment.
func (e *Engine) Accept(ctx context.Context, id, actor uuid.UUID, comment string) (*Action, error) {
	return e.Fire(ctx, id, TriggerAccept, actor, comment)
}

// Reject declines a pending item with an optional moderator comment.
func (e *Engine) Reject(ctx context.Context, id, actor uuid.UUID, comment string) (*Action, error) {
	return e.Fire(ctx, id, TriggerReject, actor, comment)
}

// EditComment records a new moderator comment without changing state.
func (e *Engine) EditComment(ctx context.Context, id, actor uuid.UUID, comment string) (*Action, error) {
	return e.Fire(ctx, id, TriggerEditComment, actor, comment)
}

// Fire applies trigger to the reviewable and returns the recorded Action.
//
// The call serializes with other calls for the same item. ctx only bounds the
// wait for the per-item lock; once the lock is held the transition runs to
// commit or rollback regardless of cancellation. On any error the item, its
// container and its audit trail are left exactly as they were, and no deferred
// task is scheduled.
func (e *Engine) Fire(ctx context.Context, id uuid.UUID, trigger Trigger, actor uuid.UUID, comment string) (*Action, error) {
	start := time.Now()
	action, err := e.fire(ctx, id, trigger, actor, comment)
	e.metrics.observe(trigger, err, time.Since(start))
	return action, err
}

func (e *Engine) fire(ctx context.Context, id uuid.UUID, trigger Trigger, actor uuid.UUID, comment string) (*Action, error) {
	ctx = logger.ContextWithAttrs(ctx,
		logger.ReviewableID(id),
		logger.Trigger(string(trigger)),
		logger.ActorID(actor),
	)

	release, err := e.locker.Lock(ctx, id.String())
	if err != nil {
		return nil, fmt.Errorf("lock reviewable %s: %w", id, err)
	}
	ctx = context.WithoutCancel(ctx)
	defer func() {
		if err := release(ctx); err != nil {
			e.logger.WarnContext(ctx, "failed to release reviewable lock", logger.Error(err))
		}
	}()

	uow, err := e.store.Begin(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReviewableNotFound) {
			return nil, err
		}
		return nil, persistence("begin", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()

	item := uow.Reviewable()
	from := item.State

	provider, policy, err := e.resolve(ctx, item)
	if err != nil {
		e.logger.ErrorContext(ctx, "cannot resolve moderation policy", logger.Error(err))
		return nil, err
	}

	tc := &TransitionContext{
		Item:     item,
		Provider: provider,
		Policy:   policy,
		Actor:    actor,
		Trigger:  trigger,
		Comment:  comment,
		Now:      e.now().UTC(),
		Unit:     uow,
		Notifier: e.notifier,
	}

	to, err := e.table.Fire(ctx, from, trigger, tc)
	if err != nil {
		return nil, e.transitionError(ctx, tc, from, err)
	}
	if tc.Action == nil {
		return nil, &ConfigurationError{
			ProviderID: item.ProviderID,
			Reason:     fmt.Sprintf("transition %s from %s recorded no action", trigger, from),
		}
	}

	if err := uow.Commit(ctx); err != nil {
		err = persistence("commit", err)
		e.logger.ErrorContext(ctx, "failed to commit transition", logger.Error(err))
		return nil, err
	}

	e.logger.InfoContext(ctx, "transition committed",
		logger.FromState(string(from)),
		logger.ToState(to.Name()),
		slog.Bool("published", item.Published))

	e.recordEvent(ctx, tc)
	return tc.Action, nil
}

func (e *Engine) transitionError(ctx context.Context, tc *TransitionContext, from State, err error) error {
	if statemachine.IsNoTransitionAvailableError(err) || statemachine.IsTransitionRejectedError(err) {
		e.logger.DebugContext(ctx, "trigger not available", logger.FromState(string(from)))
		return &InvalidTransitionError{
			Trigger:       tc.Trigger,
			State:         from,
			ValidTriggers: e.validTriggers(ctx, from, tc),
		}
	}

	cause := statemachine.ActionCause(err)
	switch {
	case IsPublishPreconditionError(cause):
		e.logger.WarnContext(ctx, "publish precondition failed",
			slog.String("condition", FailedCondition(cause)))
	default:
		e.logger.ErrorContext(ctx, "transition failed", logger.Error(cause))
	}
	return cause
}

func (e *Engine) resolve(ctx context.Context, item *Reviewable) (*Provider, Policy, error) {
	var provider *Provider
	if item.ProviderID != uuid.Nil {
		p, err := e.providers.Provider(ctx, item.ProviderID)
		switch {
		case errors.Is(err, ErrProviderNotFound):
			return nil, Policy{}, &ConfigurationError{ProviderID: item.ProviderID, Reason: "provider not found", Err: err}
		case err != nil:
			return nil, Policy{}, persistence("load provider", err)
		}
		provider = p
	}

	policy, err := ResolvePolicy(provider)
	if err != nil {
		return nil, Policy{}, err
	}
	return provider, policy, nil
}

func (e *Engine) validTriggers(ctx context.Context, from State, tc *TransitionContext) []Trigger {
	events := e.table.ValidEvents(ctx, from, tc)
	triggers := make([]Trigger, len(events))
	for i, ev := range events {
		triggers[i] = Trigger(ev.Name())
	}
	return triggers
}

// recordEvent writes the container history entry. Failures are logged only.
func (e *Engine) recordEvent(ctx context.Context, tc *TransitionContext) {
	if e.events == nil {
		return
	}

	eventType := eventTypePrefix + string(tc.Trigger)
	if tc.Published {
		eventType = EventPublished
	}

	params := map[string]any{
		"reviewable": tc.Item.ID.String(),
		"trigger":    string(tc.Trigger),
		"from_state": string(tc.Action.FromState),
		"to_state":   string(tc.Action.ToState),
	}
	if tc.Comment != "" && (tc.Provider == nil || !tc.Provider.CommentsPrivate) {
		params["comment"] = tc.Comment
	}

	// Anonymous providers hide which moderator acted; the submitter stays visible.
	actor := tc.Actor
	if tc.Provider != nil && tc.Provider.CommentsAnonymous && tc.Trigger != TriggerSubmit {
		actor = uuid.Nil
	}

	if err := e.events.RecordEvent(ctx, tc.Item.ContainerID, eventType, params, actor); err != nil {
		e.metrics.eventFailed()
		e.logger.ErrorContext(ctx, "failed to record container event",
			logger.ContainerID(tc.Item.ContainerID),
			logger.EventType(eventType),
			logger.Error(err))
	}
}

// ValidTriggers lists the triggers that would currently be accepted for the item.
func (e *Engine) ValidTriggers(ctx context.Context, id uuid.UUID) ([]Trigger, error) {
	item, err := e.store.Reviewable(ctx, id)
	if err != nil {
		return nil, err
	}
	provider, policy, err := e.resolve(ctx, item)
	if err != nil {
		return nil, err
	}
	tc := &TransitionContext{Item: item, Provider: provider, Policy: policy}
	return e.validTriggers(ctx, item.State, tc), nil
}

// Register puts a new item into the workflow in the initial state.
// A nil ID is replaced with a fresh one. Every item must name its owning
// provider; a nil ProviderID is a ConfigurationError.
func (e *Engine) Register(ctx context.Context, item *Reviewable) error {
	if item == nil {
		return errors.New("reviewable cannot be nil")
	}
	if item.ProviderID == uuid.Nil {
		return &ConfigurationError{Reason: "reviewable has no owning provider"}
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.State = StateInitial
	item.Published = false
	item.PublishedAt = nil
	item.LastTransitionedAt = nil
	item.CreatedAt = e.now().UTC()

	if err := e.store.CreateReviewable(ctx, item); err != nil {
		if errors.Is(err, ErrReviewableExists) {
			return err
		}
		return persistence("create reviewable", err)
	}
	return nil
}

// Reviewable returns the item's committed state.
func (e *Engine) Reviewable(ctx context.Context, id uuid.UUID) (*Reviewable, error) {
	return e.store.Reviewable(ctx, id)
}

// History returns the item's actions oldest first.
func (e *Engine) History(ctx context.Context, id uuid.UUID) ([]Action, error) {
	return e.store.Actions(ctx, id)
}

// Comment returns the current moderator comment: the one carried by the most
// recent accept, reject or edit_comment action.
func (e *Engine) Comment(ctx context.Context, id uuid.UUID) (string, error) {
	actions, err := e.store.Actions(ctx, id)
	if err != nil {
		return "", err
	}
	for i := len(actions) - 1; i >= 0; i-- {
		if actions[i].Trigger != TriggerSubmit {
			return actions[i].Comment, nil
		}
	}
	return "", nil
}

// StateCounts counts a provider's public items per state. Every state is present.
func (e *Engine) StateCounts(ctx context.Context, providerID uuid.UUID) (map[State]int, error) {
	counts, err := e.store.CountByState(ctx, providerID)
	if err != nil {
		return nil, err
	}
	out := make(map[State]int, len(States()))
	for _, s := range States() {
		out[s] = counts[s]
	}
	return out, nil
}
