package moderation_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/reviewkit/pkg/moderation"
	"github.com/dmitrymomot/reviewkit/pkg/statemachine"
)

func TestNewEngine(t *testing.T) {
	t.Parallel()

	_, err := moderation.NewEngine(nil, moderation.NewStaticProviders())
	assert.ErrorIs(t, err, moderation.ErrStoreRequired)

	_, err = moderation.NewEngine(moderation.NewMemoryStore(), nil)
	assert.ErrorIs(t, err, moderation.ErrProvidersRequired)
}

func TestEngine_EndToEnd(t *testing.T) {
	t.Parallel()

	f := newFixture(t, moderation.ModePreModeration)
	item := f.newItem(t)
	ctx := context.Background()
	userA, userB := uuid.New(), uuid.New()

	action, err := f.engine.Submit(ctx, item.ID, userA)
	require.NoError(t, err)
	assert.Equal(t, moderation.TriggerSubmit, action.Trigger)
	assert.Equal(t, moderation.StateInitial, action.FromState)
	assert.Equal(t, moderation.StatePending, action.ToState)
	assert.Equal(t, userA, action.ActorID)

	got, err := f.engine.Reviewable(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StatePending, got.State)
	assert.False(t, got.Published)
	require.NotNil(t, got.LastTransitionedAt)
	assert.Equal(t, fixedNow, *got.LastTransitionedAt)

	history, err := f.engine.History(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Empty(t, f.tasks.Tasks(), "pending is not public under pre-moderation")

	_, err = f.engine.Accept(ctx, item.ID, userB, "looks good")
	require.NoError(t, err)

	got, err = f.engine.Reviewable(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StateAccepted, got.State)
	assert.True(t, got.Published)
	require.NotNil(t, got.PublishedAt)
	assert.Equal(t, fixedNow, *got.PublishedAt)

	container, ok := f.store.Container(item.ContainerID)
	require.True(t, ok)
	assert.True(t, container.Public)
	assert.False(t, container.Abandoned)

	history, err = f.engine.History(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	tasks := f.tasks.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "moderation.PublishedTask", tasks[0].TaskName)
	assert.Equal(t, moderation.DefaultQueue, tasks[0].Queue)
	assert.Equal(t, item.ID.String(), tasks[0].OrderingKey)

	_, err = f.engine.EditComment(ctx, item.ID, userB, "revised note")
	require.NoError(t, err)

	got, err = f.engine.Reviewable(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StateAccepted, got.State)
	assert.True(t, got.Published)
	assert.Equal(t, fixedNow, *got.PublishedAt)

	history, err = f.engine.History(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, moderation.TriggerEditComment, history[2].Trigger)
	assert.Equal(t, moderation.StateAccepted, history[2].FromState)
	assert.Equal(t, moderation.StateAccepted, history[2].ToState)

	comment, err := f.engine.Comment(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "revised note", comment)

	assert.Len(t, f.tasks.Tasks(), 1, "editing a comment schedules nothing")
	assert.Equal(t, []string{"reviewable_submit", "reviewable_published", "reviewable_edit_comment"}, f.events.types())
}

func TestEngine_LegalityClosure(t *testing.T) {
	t.Parallel()

	declared := map[moderation.State][]moderation.Trigger{
		moderation.StateInitial:  {moderation.TriggerSubmit},
		moderation.StatePending:  {moderation.TriggerAccept, moderation.TriggerReject},
		moderation.StateAccepted: {moderation.TriggerEditComment},
		moderation.StateRejected: {moderation.TriggerSubmit, moderation.TriggerEditComment},
	}

	for _, state := range moderation.States() {
		for _, trigger := range append(moderation.Triggers(), moderation.Trigger("withdraw")) {
			if containsTrigger(declared[state], trigger) {
				continue
			}

			t.Run(string(state)+"/"+string(trigger), func(t *testing.T) {
				t.Parallel()

				f := newFixture(t, moderation.ModePreModeration)
				item := f.newItem(t, inState(state))
				before := f.snapshot(t, item.ID)

				_, err := f.engine.Fire(context.Background(), item.ID, trigger, uuid.New(), "note")
				require.Error(t, err)
				assert.True(t, moderation.IsInvalidTransitionError(err))

				var invalid *moderation.InvalidTransitionError
				require.ErrorAs(t, err, &invalid)
				assert.Equal(t, trigger, invalid.Trigger)
				assert.Equal(t, state, invalid.State)
				assert.ElementsMatch(t, declared[state], invalid.ValidTriggers)

				assert.Equal(t, before, f.snapshot(t, item.ID))
				assert.Empty(t, f.events.types())
			})
		}
	}
}

func TestEngine_AuditFidelity(t *testing.T) {
	t.Parallel()

	f := newFixture(t, moderation.ModePreModeration)
	item := f.newItem(t)
	ctx := context.Background()
	actor := uuid.New()

	steps := []struct {
		trigger moderation.Trigger
		to      moderation.State
	}{
		{moderation.TriggerSubmit, moderation.StatePending},
		{moderation.TriggerReject, moderation.StateRejected},
		{moderation.TriggerEditComment, moderation.StateRejected},
		{moderation.TriggerSubmit, moderation.StatePending},
		{moderation.TriggerAccept, moderation.StateAccepted},
	}

	for i, step := range steps {
		before, err := f.engine.Reviewable(ctx, item.ID)
		require.NoError(t, err)

		action, err := f.engine.Fire(ctx, item.ID, step.trigger, actor, "")
		require.NoError(t, err, "step %d (%s)", i, step.trigger)

		history, err := f.engine.History(ctx, item.ID)
		require.NoError(t, err)
		require.Len(t, history, i+1)

		last := history[i]
		assert.Equal(t, *action, last)
		assert.Equal(t, item.ID, last.ReviewableID)
		assert.Equal(t, step.trigger, last.Trigger)
		assert.Equal(t, before.State, last.FromState)
		assert.Equal(t, step.to, last.ToState)
	}
}

func TestEngine_PublishPreconditions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		opts      []itemOption
		condition string
	}{
		{
			name: "no primary artifact",
			opts: []itemOption{func(_ *moderation.Reviewable, c *moderation.Container) {
				c.PrimaryArtifactID = uuid.Nil
			}},
			condition: moderation.ConditionPrimaryArtifact,
		},
		{
			name: "artifact owned by another container",
			opts: []itemOption{func(_ *moderation.Reviewable, c *moderation.Container) {
				c.ArtifactContainerID = uuid.New()
			}},
			condition: moderation.ConditionPrimaryArtifact,
		},
		{
			name: "missing container",
			opts: []itemOption{func(r *moderation.Reviewable, _ *moderation.Container) {
				r.ContainerID = uuid.New()
			}},
			condition: moderation.ConditionPrimaryArtifact,
		},
		{
			name: "no provider",
			opts: []itemOption{func(r *moderation.Reviewable, _ *moderation.Container) {
				r.ProviderID = uuid.Nil
			}},
			condition: moderation.ConditionProvider,
		},
		{
			name: "no subjects",
			opts: []itemOption{func(r *moderation.Reviewable, _ *moderation.Container) {
				r.Subjects = nil
			}},
			condition: moderation.ConditionSubjects,
		},
		{
			name: "blank subjects only",
			opts: []itemOption{func(r *moderation.Reviewable, _ *moderation.Container) {
				r.Subjects = []string{"", "  "}
			}},
			condition: moderation.ConditionSubjects,
		},
		{
			name: "artifact checked before subjects",
			opts: []itemOption{func(r *moderation.Reviewable, c *moderation.Container) {
				r.Subjects = nil
				c.PrimaryArtifactID = uuid.Nil
			}},
			condition: moderation.ConditionPrimaryArtifact,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, moderation.ModePreModeration)
			item := f.newItem(t, append([]itemOption{inState(moderation.StatePending)}, tt.opts...)...)
			before := f.snapshot(t, item.ID)

			_, err := f.engine.Accept(context.Background(), item.ID, uuid.New(), "looks good")
			require.Error(t, err)
			assert.True(t, moderation.IsPublishPreconditionError(err))
			assert.Equal(t, tt.condition, moderation.FailedCondition(err))

			after := f.snapshot(t, item.ID)
			assert.Equal(t, before, after)
			assert.Equal(t, moderation.StatePending, after.State)
			assert.False(t, after.Published)
			assert.Empty(t, f.events.types())
		})
	}
}

func TestEngine_ResubmissionGate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode    moderation.Mode
		allowed bool
	}{
		{moderation.ModePreModeration, true},
		{moderation.ModePostModeration, false},
		{moderation.ModeNone, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, tt.mode)
			item := f.newItem(t, inState(moderation.StateRejected))
			before := f.snapshot(t, item.ID)

			action, err := f.engine.Submit(context.Background(), item.ID, uuid.New())
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, moderation.StatePending, action.ToState)
				assert.Equal(t, moderation.StatePending, f.snapshot(t, item.ID).State)
				return
			}

			require.ErrorIs(t, err, moderation.ErrInvalidTransition)
			var invalid *moderation.InvalidTransitionError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, []moderation.Trigger{moderation.TriggerEditComment}, invalid.ValidTriggers)
			assert.Equal(t, before, f.snapshot(t, item.ID))
		})
	}
}

func TestEngine_ConcurrentAcceptReject(t *testing.T) {
	t.Parallel()

	f := newFixture(t, moderation.ModePreModeration)
	ctx := context.Background()

	for range 25 {
		item := f.newItem(t, inState(moderation.StatePending))

		var wg sync.WaitGroup
		results := make([]error, 2)
		start := make(chan struct{})
		for i, trigger := range []moderation.Trigger{moderation.TriggerAccept, moderation.TriggerReject} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, results[i] = f.engine.Fire(ctx, item.ID, trigger, uuid.New(), "")
			}()
		}
		close(start)
		wg.Wait()

		var ok, invalid int
		for _, err := range results {
			switch {
			case err == nil:
				ok++
			case moderation.IsInvalidTransitionError(err):
				invalid++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, 1, invalid)

		history, err := f.engine.History(ctx, item.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)

		got, err := f.engine.Reviewable(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, history[0].ToState, got.State)
		assert.Equal(t, got.State == moderation.StateAccepted, got.Published)
	}
}

func TestEngine_PostModerationVisibility(t *testing.T) {
	t.Parallel()

	f := newFixture(t, moderation.ModePostModeration)
	item := f.newItem(t)
	ctx := context.Background()

	_, err := f.engine.Submit(ctx, item.ID, uuid.New())
	require.NoError(t, err)

	got, err := f.engine.Reviewable(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, got.Published, "pending is public under post-moderation")

	_, err = f.engine.Reject(ctx, item.ID, uuid.New(), "off topic")
	require.NoError(t, err)

	got, err = f.engine.Reviewable(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, got.Published)

	tasks := f.tasks.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "moderation.PublishedTask", tasks[0].TaskName)
	assert.Equal(t, "moderation.UnpublishedTask", tasks[1].TaskName)
	assert.Equal(t, tasks[0].OrderingKey, tasks[1].OrderingKey)
	assert.Less(t, tasks[0].Seq, tasks[1].Seq)

	assert.Equal(t, []string{"reviewable_published", "reviewable_reject"}, f.events.types())
}

func TestEngine_NoModeration(t *testing.T) {
	t.Parallel()

	f := newFixture(t, moderation.ModeNone)
	item := f.newItem(t)

	_, err := f.engine.Submit(context.Background(), item.ID, uuid.New())
	require.NoError(t, err)

	snap := f.snapshot(t, item.ID)
	assert.Equal(t, moderation.StatePending, snap.State)
	assert.True(t, snap.Published)
	assert.True(t, snap.Container.Public)
}

func TestEngine_UnpublishSkipsPreconditions(t *testing.T) {
	t.Parallel()

	f := newFixture(t, moderation.ModePostModeration)
	item := f.newItem(t, inState(moderation.StatePending), published(), func(r *moderation.Reviewable, _ *moderation.Container) {
		r.Subjects = nil
	})

	_, err := f.engine.Reject(context.Background(), item.ID, uuid.New(), "")
	require.NoError(t, err)

	snap := f.snapshot(t, item.ID)
	assert.Equal(t, moderation.StateRejected, snap.State)
	assert.False(t, snap.Published)
}

func TestEngine_ConfigurationErrors(t *testing.T) {
	t.Parallel()

	t.Run("unknown provider", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, moderation.ModePreModeration)
		item := f.newItem(t, func(r *moderation.Reviewable, _ *moderation.Container) {
			r.ProviderID = uuid.New()
		})
		before := f.snapshot(t, item.ID)

		_, err := f.engine.Submit(context.Background(), item.ID, uuid.New())
		require.Error(t, err)
		assert.True(t, moderation.IsConfigurationError(err))
		assert.ErrorIs(t, err, moderation.ErrProviderNotFound)
		assert.Equal(t, before, f.snapshot(t, item.ID))
	})

	t.Run("unrecognized workflow", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, moderation.Mode("peer-review"))
		item := f.newItem(t)
		before := f.snapshot(t, item.ID)

		_, err := f.engine.Submit(context.Background(), item.ID, uuid.New())
		require.Error(t, err)
		assert.True(t, moderation.IsConfigurationError(err))

		var ce *moderation.ConfigurationError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, f.provider.ID, ce.ProviderID)
		assert.Equal(t, before, f.snapshot(t, item.ID))

		_, err = f.engine.ValidTriggers(context.Background(), item.ID)
		assert.True(t, moderation.IsConfigurationError(err))
	})
}

func TestEngine_UnknownReviewable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, moderation.ModePreModeration)
	_, err := f.engine.Submit(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, moderation.ErrReviewableNotFound)
}

func TestEngine_ValidTriggers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode  moderation.Mode
		state moderation.State
		want  []moderation.Trigger
	}{
		{moderation.ModePreModeration, moderation.StateInitial, []moderation.Trigger{moderation.TriggerSubmit}},
		{moderation.ModePreModeration, moderation.StatePending, []moderation.Trigger{moderation.TriggerAccept, moderation.TriggerReject}},
		{moderation.ModePreModeration, moderation.StateAccepted, []moderation.Trigger{moderation.TriggerEditComment}},
		{moderation.ModePreModeration, moderation.StateRejected, []moderation.Trigger{moderation.TriggerSubmit, moderation.TriggerEditComment}},
		{moderation.ModePostModeration, moderation.StateRejected, []moderation.Trigger{moderation.TriggerEditComment}},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode)+"/"+string(tt.state), func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, tt.mode)
			item := f.newItem(t, inState(tt.state))

			got, err := f.engine.ValidTriggers(context.Background(), item.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngine_Register(t *testing.T) {
	t.Parallel()

	f := newFixture(t, moderation.ModePreModeration)
	ctx := context.Background()

	item := &moderation.Reviewable{
		ProviderID: f.provider.ID,
		State:      moderation.StateAccepted,
		Published:  true,
	}
	require.NoError(t, f.engine.Register(ctx, item))
	require.NotEqual(t, uuid.Nil, item.ID)

	got, err := f.engine.Reviewable(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StateInitial, got.State)
	assert.False(t, got.Published)
	assert.Equal(t, fixedNow, got.CreatedAt)

	err = f.engine.Register(ctx, &moderation.Reviewable{ID: item.ID, ProviderID: f.provider.ID})
	assert.ErrorIs(t, err, moderation.ErrReviewableExists)
}

func TestEngine_RegisterRequiresProvider(t *testing.T) {
	t.Parallel()

	f := newFixture(t, moderation.ModePreModeration)
	ctx := context.Background()

	item := &moderation.Reviewable{ID: uuid.New(), ContainerID: uuid.New()}
	err := f.engine.Register(ctx, item)
	require.Error(t, err)
	assert.True(t, moderation.IsConfigurationError(err))
	assert.ErrorContains(t, err, "no owning provider")

	_, err = f.engine.Reviewable(ctx, item.ID)
	assert.ErrorIs(t, err, moderation.ErrReviewableNotFound, "nothing is stored")
}

func TestEngine_CustomTable(t *testing.T) {
	t.Parallel()

	// Accepted items can be retracted with reject.
	defs := append(moderation.DefaultTransitions(), statemachine.TransitionDef{
		From:    moderation.StateAccepted,
		To:      moderation.StateRejected,
		Event:   moderation.TriggerReject,
		Actions: []statemachine.Action{moderation.PublicationHook, moderation.StateHook, moderation.AuditHook},
	})
	table := statemachine.MustNew(statemachine.WithTransitions(defs))

	f := newWrappedFixture(t, moderation.ModePreModeration, nil, moderation.WithTable(table))
	item := f.newItem(t, inState(moderation.StateAccepted), published())
	ctx := context.Background()

	triggers, err := f.engine.ValidTriggers(ctx, item.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []moderation.Trigger{moderation.TriggerEditComment, moderation.TriggerReject}, triggers)

	action, err := f.engine.Reject(ctx, item.ID, uuid.New(), "retracted")
	require.NoError(t, err)
	assert.Equal(t, moderation.StateAccepted, action.FromState)
	assert.Equal(t, moderation.StateRejected, action.ToState)

	got, err := f.engine.Reviewable(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, got.Published)

	tasks := f.tasks.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "moderation.UnpublishedTask", tasks[0].TaskName)

	// The default table still refuses the same trigger.
	other := newFixture(t, moderation.ModePreModeration)
	item = other.newItem(t, inState(moderation.StateAccepted), published())
	_, err = other.engine.Reject(ctx, item.ID, uuid.New(), "retracted")
	assert.True(t, moderation.IsInvalidTransitionError(err))
}

func TestEngine_StateCounts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, moderation.ModePreModeration)
	public := func(_ *moderation.Reviewable, c *moderation.Container) { c.Public = true }

	f.newItem(t, inState(moderation.StatePending), public)
	f.newItem(t, inState(moderation.StatePending), public)
	f.newItem(t, inState(moderation.StateAccepted), public)
	f.newItem(t, inState(moderation.StateRejected)) // private container

	counts, err := f.engine.StateCounts(context.Background(), f.provider.ID)
	require.NoError(t, err)
	assert.Equal(t, map[moderation.State]int{
		moderation.StateInitial:  0,
		moderation.StatePending:  2,
		moderation.StateAccepted: 1,
		moderation.StateRejected: 0,
	}, counts)

	counts, err = f.engine.StateCounts(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Len(t, counts, 4)
}

func TestEngine_EventRecordingIsBestEffort(t *testing.T) {
	t.Parallel()

	f := newFixture(t, moderation.ModePreModeration)
	f.events.err = errors.New("history store down")
	item := f.newItem(t)

	_, err := f.engine.Submit(context.Background(), item.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, moderation.StatePending, f.snapshot(t, item.ID).State)
}

func TestEngine_PrivateCommentsStayOutOfHistory(t *testing.T) {
	t.Parallel()

	f := newFixture(t, moderation.ModePreModeration)
	f.provider.CommentsPrivate = true
	f.providers.Put(f.provider)
	item := f.newItem(t, inState(moderation.StatePending))

	_, err := f.engine.Reject(context.Background(), item.ID, uuid.New(), "internal note")
	require.NoError(t, err)

	require.Len(t, f.events.events, 1)
	assert.NotContains(t, f.events.events[0].Params, "comment")
	assert.Equal(t, item.ContainerID, f.events.events[0].ContainerID)
}

func TestEngine_AnonymousModerators(t *testing.T) {
	t.Parallel()

	f := newFixture(t, moderation.ModePreModeration)
	f.provider.CommentsAnonymous = true
	f.providers.Put(f.provider)
	item := f.newItem(t)
	author, moderator := uuid.New(), uuid.New()

	_, err := f.engine.Submit(context.Background(), item.ID, author)
	require.NoError(t, err)
	_, err = f.engine.Accept(context.Background(), item.ID, moderator, "fine")
	require.NoError(t, err)

	require.Len(t, f.events.events, 2)
	assert.Equal(t, author, f.events.events[0].Actor)
	assert.Equal(t, uuid.Nil, f.events.events[1].Actor)
	assert.Equal(t, "fine", f.events.events[1].Params["comment"])
}

func TestEngine_WithoutNotifier(t *testing.T) {
	t.Parallel()

	store := moderation.NewMemoryStore()
	provider := moderation.Provider{ID: uuid.New(), Workflow: moderation.ModePreModeration}
	engine, err := moderation.NewEngine(store, moderation.NewStaticProviders(provider))
	require.NoError(t, err)

	container := moderation.Container{ID: uuid.New(), PrimaryArtifactID: uuid.New()}
	container.ArtifactContainerID = container.ID
	store.PutContainer(container)

	item := &moderation.Reviewable{ID: uuid.New(), ProviderID: provider.ID, ContainerID: container.ID, State: moderation.StatePending, Subjects: []string{"Law"}}
	require.NoError(t, store.CreateReviewable(context.Background(), item))

	_, err = engine.Accept(context.Background(), item.ID, uuid.New(), "")
	require.NoError(t, err)

	got, err := engine.Reviewable(context.Background(), item.ID)
	require.NoError(t, err)
	assert.True(t, got.Published)
}

func containsTrigger(list []moderation.Trigger, t moderation.Trigger) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}
