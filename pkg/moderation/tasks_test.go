package moderation_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/reviewkit/pkg/moderation"
)

func TestPublishedHandler(t *testing.T) {
	t.Parallel()

	t.Run("indexes and requests identifiers for the queued task", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, moderation.ModePreModeration)
		item := f.newItem(t, inState(moderation.StatePending))
		actor := uuid.New()
		_, err := f.engine.Accept(context.Background(), item.ID, actor, "")
		require.NoError(t, err)

		tasks := f.tasks.Tasks()
		require.Len(t, tasks, 1)

		ids := &MockIdentifierRequester{}
		ids.On("RequestIdentifier", mock.Anything,
			mock.MatchedBy(func(r *moderation.Reviewable) bool { return r.ID == item.ID && r.Published }),
			mock.MatchedBy(func(task moderation.PublishedTask) bool {
				return task.ReviewableID == item.ID && task.ActorID == actor && task.PublishedAt.Equal(fixedNow)
			}),
		).Return(nil).Once()
		search := &MockSearchIndexer{}
		search.On("IndexReviewable", mock.Anything, mock.MatchedBy(func(r *moderation.Reviewable) bool {
			return r.ID == item.ID
		})).Return(nil).Once()

		h := moderation.NewPublishedHandler(f.store, ids, search)
		assert.Equal(t, tasks[0].TaskName, h.Name())
		require.NoError(t, h.Handle(context.Background(), tasks[0].Payload))

		ids.AssertExpectations(t)
		search.AssertExpectations(t)
	})

	t.Run("skips items unpublished since", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, moderation.ModePreModeration)
		item := f.newItem(t, inState(moderation.StateAccepted))

		payload, err := json.Marshal(moderation.PublishedTask{ReviewableID: item.ID})
		require.NoError(t, err)

		ids := &MockIdentifierRequester{}
		search := &MockSearchIndexer{}
		h := moderation.NewPublishedHandler(f.store, ids, search)
		require.NoError(t, h.Handle(context.Background(), payload))

		ids.AssertNotCalled(t, "RequestIdentifier", mock.Anything, mock.Anything, mock.Anything)
		search.AssertNotCalled(t, "IndexReviewable", mock.Anything, mock.Anything)
	})

	t.Run("propagates identifier failures for retry", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, moderation.ModePreModeration)
		item := f.newItem(t, inState(moderation.StateAccepted), published())
		payload, err := json.Marshal(moderation.PublishedTask{ReviewableID: item.ID})
		require.NoError(t, err)

		boom := errors.New("registry unavailable")
		ids := &MockIdentifierRequester{}
		ids.On("RequestIdentifier", mock.Anything, mock.Anything, mock.Anything).Return(boom)

		h := moderation.NewPublishedHandler(f.store, ids, nil)
		assert.ErrorIs(t, h.Handle(context.Background(), payload), boom)
	})

	t.Run("unknown reviewable", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, moderation.ModePreModeration)
		payload, err := json.Marshal(moderation.PublishedTask{ReviewableID: uuid.New()})
		require.NoError(t, err)

		h := moderation.NewPublishedHandler(f.store, nil, nil)
		assert.ErrorIs(t, h.Handle(context.Background(), payload), moderation.ErrReviewableNotFound)
	})
}

func TestUnpublishedHandler(t *testing.T) {
	t.Parallel()

	t.Run("removes unpublished items from search", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, moderation.ModePostModeration)
		item := f.newItem(t, inState(moderation.StatePending), published())
		_, err := f.engine.Reject(context.Background(), item.ID, uuid.New(), "")
		require.NoError(t, err)

		tasks := f.tasks.Tasks()
		require.Len(t, tasks, 1)

		search := &MockSearchIndexer{}
		search.On("RemoveReviewable", mock.Anything, item.ID).Return(nil).Once()

		h := moderation.NewUnpublishedHandler(f.store, search)
		assert.Equal(t, tasks[0].TaskName, h.Name())
		require.NoError(t, h.Handle(context.Background(), tasks[0].Payload))
		search.AssertExpectations(t)
	})

	t.Run("keeps items published again", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, moderation.ModePostModeration)
		item := f.newItem(t, inState(moderation.StatePending), published())
		payload, err := json.Marshal(moderation.UnpublishedTask{ReviewableID: item.ID})
		require.NoError(t, err)

		search := &MockSearchIndexer{}
		h := moderation.NewUnpublishedHandler(f.store, search)
		require.NoError(t, h.Handle(context.Background(), payload))
		search.AssertNotCalled(t, "RemoveReviewable", mock.Anything, mock.Anything)
	})
}
