package moderation

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Containers is the container collaborator the publication step consults.
// Implementations bound to a UnitOfWork must stage their writes in it.
type Containers interface {
	HasValidPrimaryArtifact(ctx context.Context, item *Reviewable) (bool, error)
	ContainerIsPublic(ctx context.Context, item *Reviewable) (bool, error)
	SetContainerPublic(ctx context.Context, item *Reviewable) error
	// MarkContainerActive clears the container's abandoned flag.
	MarkContainerActive(ctx context.Context, item *Reviewable) error
}

// UnitOfWork is an atomic, row-exclusive scope around one reviewable.
// Nothing written through it is visible to others until Commit succeeds,
// and Rollback discards every write together with registered callbacks.
type UnitOfWork interface {
	Containers

	// Reviewable returns the locked item. Callers mutate it and pass it to SaveReviewable.
	Reviewable() *Reviewable
	SaveReviewable(ctx context.Context, item *Reviewable) error
	AppendAction(ctx context.Context, action *Action) error

	// AfterCommit registers fn to run once Commit has durably succeeded.
	// Callbacks run in registration order and never run after Rollback.
	AfterCommit(fn func(ctx context.Context))

	Commit(ctx context.Context) error
	// Rollback is a no-op once the unit has been committed or rolled back.
	Rollback(ctx context.Context) error
}

// Store opens units of work and serves read-only queries.
type Store interface {
	// Begin locks the reviewable for the lifetime of the returned unit.
	// It returns ErrReviewableNotFound for unknown ids.
	Begin(ctx context.Context, id uuid.UUID) (UnitOfWork, error)

	CreateReviewable(ctx context.Context, item *Reviewable) error
	Reviewable(ctx context.Context, id uuid.UUID) (*Reviewable, error)
	// Actions returns the audit trail oldest first.
	Actions(ctx context.Context, id uuid.UUID) ([]Action, error)
	// CountByState counts the provider's items whose container is public.
	CountByState(ctx context.Context, providerID uuid.UUID) (map[State]int, error)
}

// ProviderSource resolves providers by id. It returns ErrProviderNotFound for unknown ids.
type ProviderSource interface {
	Provider(ctx context.Context, id uuid.UUID) (*Provider, error)
}

// CommitHooks collects after-commit callbacks for a unit of work.
// The zero value is ready to use.
type CommitHooks struct {
	mu  sync.Mutex
	fns []func(ctx context.Context)
}

// Add registers fn. Nil callbacks are ignored.
func (h *CommitHooks) Add(fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

// Run drains and runs the callbacks in registration order.
func (h *CommitHooks) Run(ctx context.Context) {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ctx)
	}
}

// Discard drops every callback without running it.
func (h *CommitHooks) Discard() {
	h.mu.Lock()
	h.fns = nil
	h.mu.Unlock()
}

// Len returns the number of pending callbacks.
func (h *CommitHooks) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.fns)
}
