package moderation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/reviewkit/pkg/moderation"
)

var errInjected = errors.New("injected failure")

// faultyStore wraps a Store and fails the named step of every unit of work.
type faultyStore struct {
	moderation.Store
	failAt string
}

func (s *faultyStore) Begin(ctx context.Context, id uuid.UUID) (moderation.UnitOfWork, error) {
	if s.failAt == "begin" {
		return nil, errInjected
	}
	uow, err := s.Store.Begin(ctx, id)
	if err != nil {
		return nil, err
	}
	return &faultyUnit{UnitOfWork: uow, failAt: s.failAt}, nil
}

type faultyUnit struct {
	moderation.UnitOfWork
	failAt string
}

func (u *faultyUnit) fail(step string) error {
	if u.failAt == step {
		return errInjected
	}
	return nil
}

func (u *faultyUnit) HasValidPrimaryArtifact(ctx context.Context, item *moderation.Reviewable) (bool, error) {
	if err := u.fail("artifact"); err != nil {
		return false, err
	}
	return u.UnitOfWork.HasValidPrimaryArtifact(ctx, item)
}

func (u *faultyUnit) ContainerIsPublic(ctx context.Context, item *moderation.Reviewable) (bool, error) {
	if err := u.fail("container_is_public"); err != nil {
		return false, err
	}
	return u.UnitOfWork.ContainerIsPublic(ctx, item)
}

func (u *faultyUnit) SetContainerPublic(ctx context.Context, item *moderation.Reviewable) error {
	if err := u.fail("set_public"); err != nil {
		return err
	}
	return u.UnitOfWork.SetContainerPublic(ctx, item)
}

func (u *faultyUnit) MarkContainerActive(ctx context.Context, item *moderation.Reviewable) error {
	if err := u.fail("mark_active"); err != nil {
		return err
	}
	return u.UnitOfWork.MarkContainerActive(ctx, item)
}

func (u *faultyUnit) SaveReviewable(ctx context.Context, item *moderation.Reviewable) error {
	if err := u.fail("save"); err != nil {
		return err
	}
	return u.UnitOfWork.SaveReviewable(ctx, item)
}

func (u *faultyUnit) AppendAction(ctx context.Context, action *moderation.Action) error {
	if err := u.fail("append"); err != nil {
		return err
	}
	return u.UnitOfWork.AppendAction(ctx, action)
}

// Commit fails before anything is written, the way a database rejecting
// COMMIT leaves the transaction rolled back.
func (u *faultyUnit) Commit(ctx context.Context) error {
	if u.failAt == "commit" {
		_ = u.UnitOfWork.Rollback(ctx)
		return errInjected
	}
	return u.UnitOfWork.Commit(ctx)
}

func TestEngine_Atomicity(t *testing.T) {
	t.Parallel()

	steps := []string{
		"begin",
		"artifact",
		"mark_active",
		"container_is_public",
		"set_public",
		"save",
		"append",
		"commit",
	}

	for _, step := range steps {
		t.Run(step, func(t *testing.T) {
			t.Parallel()

			f := newWrappedFixture(t, moderation.ModePreModeration, func(s moderation.Store) moderation.Store {
				return &faultyStore{Store: s, failAt: step}
			})
			item := f.newItem(t, inState(moderation.StatePending))
			before := f.snapshot(t, item.ID)

			action, err := f.engine.Accept(context.Background(), item.ID, uuid.New(), "looks good")
			require.Error(t, err)
			assert.Nil(t, action)
			assert.True(t, moderation.IsPersistenceError(err), "got %v", err)
			assert.ErrorIs(t, err, errInjected)

			after := f.snapshot(t, item.ID)
			assert.Equal(t, before, after)
			assert.Equal(t, moderation.StatePending, after.State)
			assert.False(t, after.Published)
			assert.False(t, after.Container.Public)
			assert.True(t, after.Container.Abandoned)
			assert.Empty(t, f.tasks.Tasks())
			assert.Empty(t, f.events.types())

			// The item lock was released: a healthy engine can proceed.
			healthy, err := moderation.NewEngine(f.store, f.providers)
			require.NoError(t, err)
			_, err = healthy.Accept(context.Background(), item.ID, uuid.New(), "")
			require.NoError(t, err)
		})
	}
}
