package moderation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/reviewkit/pkg/moderation"
	"github.com/dmitrymomot/reviewkit/pkg/queue"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

type recordedEvent struct {
	ContainerID uuid.UUID
	EventType   string
	Params      map[string]any
	Actor       uuid.UUID
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (r *eventRecorder) RecordEvent(_ context.Context, containerID uuid.UUID, eventType string, params map[string]any, actor uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, recordedEvent{containerID, eventType, params, actor})
	return nil
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

type fixture struct {
	store     *moderation.MemoryStore
	providers *moderation.StaticProviders
	provider  moderation.Provider
	tasks     *queue.MemoryStorage
	events    *eventRecorder
	engine    *moderation.Engine
}

func newFixture(t *testing.T, mode moderation.Mode) *fixture {
	t.Helper()
	return newWrappedFixture(t, mode, nil)
}

// newWrappedFixture builds an engine over wrap(f.store). Items are still
// seeded directly into the fixture's MemoryStore. opts are applied after the
// fixture's own options.
func newWrappedFixture(t *testing.T, mode moderation.Mode, wrap func(moderation.Store) moderation.Store, opts ...moderation.Option) *fixture {
	t.Helper()

	f := &fixture{
		store: moderation.NewMemoryStore(),
		provider: moderation.Provider{
			ID:       uuid.New(),
			Name:     "testrxiv",
			Workflow: mode,
		},
		tasks:  queue.NewMemoryStorage(),
		events: &eventRecorder{},
	}
	t.Cleanup(func() { _ = f.tasks.Close() })
	f.providers = moderation.NewStaticProviders(f.provider)

	var store moderation.Store = f.store
	if wrap != nil {
		store = wrap(f.store)
	}

	enqueuer, err := queue.NewEnqueuer(f.tasks)
	require.NoError(t, err)

	f.engine, err = moderation.NewEngine(store, f.providers, append([]moderation.Option{
		moderation.WithNotifier(moderation.NewNotifier(enqueuer)),
		moderation.WithEventRecorder(f.events),
		moderation.WithClock(func() time.Time { return fixedNow }),
		moderation.WithMetrics(moderation.NewMetrics(nil)),
	}, opts...)...)
	require.NoError(t, err)
	return f
}

type itemOption func(*moderation.Reviewable, *moderation.Container)

func inState(s moderation.State) itemOption {
	return func(r *moderation.Reviewable, _ *moderation.Container) { r.State = s }
}

func published() itemOption {
	return func(r *moderation.Reviewable, _ *moderation.Container) {
		r.Published = true
		at := fixedNow.Add(-time.Hour)
		r.PublishedAt = &at
	}
}

// newItem stores a publishable item in its own private container.
func (f *fixture) newItem(t *testing.T, opts ...itemOption) *moderation.Reviewable {
	t.Helper()

	container := moderation.Container{
		ID:        uuid.New(),
		Abandoned: true,
	}
	container.PrimaryArtifactID = uuid.New()
	container.ArtifactContainerID = container.ID

	item := &moderation.Reviewable{
		ID:          uuid.New(),
		ProviderID:  f.provider.ID,
		ContainerID: container.ID,
		State:       moderation.StateInitial,
		Subjects:    []string{"Social and Behavioral Sciences"},
		CreatedAt:   fixedNow.Add(-24 * time.Hour),
	}
	for _, opt := range opts {
		opt(item, &container)
	}

	f.store.PutContainer(container)
	require.NoError(t, f.store.CreateReviewable(context.Background(), item))
	return item
}

// snapshot captures everything a failed transition must leave untouched.
type snapshot struct {
	State     moderation.State
	Published bool
	Actions   int
	Container moderation.Container
	Tasks     int
}

func (f *fixture) snapshot(t *testing.T, id uuid.UUID) snapshot {
	t.Helper()
	ctx := context.Background()

	item, err := f.store.Reviewable(ctx, id)
	require.NoError(t, err)
	actions, err := f.store.Actions(ctx, id)
	require.NoError(t, err)
	container, _ := f.store.Container(item.ContainerID)

	return snapshot{
		State:     item.State,
		Published: item.Published,
		Actions:   len(actions),
		Container: container,
		Tasks:     len(f.tasks.Tasks()),
	}
}
