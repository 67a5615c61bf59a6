package moderation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/reviewkit/pkg/queue"
)

// PublishedTask is enqueued after a transition publishes a reviewable.
type PublishedTask struct {
	ReviewableID uuid.UUID `json:"reviewable_id"`
	ProviderID   uuid.UUID `json:"provider_id"`
	ContainerID  uuid.UUID `json:"container_id"`
	ActorID      uuid.UUID `json:"actor_id"`
	PublishedAt  time.Time `json:"published_at"`
}

// UnpublishedTask is enqueued after a transition hides a published reviewable.
type UnpublishedTask struct {
	ReviewableID  uuid.UUID `json:"reviewable_id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	ContainerID   uuid.UUID `json:"container_id"`
	ActorID       uuid.UUID `json:"actor_id"`
	UnpublishedAt time.Time `json:"unpublished_at"`
}

// IdentifierRequester asks the external registry to mint identifiers for a published item.
type IdentifierRequester interface {
	RequestIdentifier(ctx context.Context, item *Reviewable, task PublishedTask) error
}

// SearchIndexer keeps the public search index in step with publication.
type SearchIndexer interface {
	IndexReviewable(ctx context.Context, item *Reviewable) error
	RemoveReviewable(ctx context.Context, id uuid.UUID) error
}

// NewPublishedHandler processes PublishedTask. Tasks for items that were
// unpublished again before the worker got to them are skipped.
// Either collaborator may be nil.
func NewPublishedHandler(store Store, ids IdentifierRequester, search SearchIndexer) queue.Handler {
	return queue.NewTaskHandler(func(ctx context.Context, task PublishedTask) error {
		item, err := store.Reviewable(ctx, task.ReviewableID)
		if err != nil {
			return err
		}
		if !item.Published {
			return nil
		}
		if ids != nil {
			if err := ids.RequestIdentifier(ctx, item, task); err != nil {
				return err
			}
		}
		if search != nil {
			return search.IndexReviewable(ctx, item)
		}
		return nil
	})
}

// NewUnpublishedHandler processes UnpublishedTask by dropping the item from search.
func NewUnpublishedHandler(store Store, search SearchIndexer) queue.Handler {
	return queue.NewTaskHandler(func(ctx context.Context, task UnpublishedTask) error {
		item, err := store.Reviewable(ctx, task.ReviewableID)
		if err != nil {
			return err
		}
		if item.Published || search == nil {
			return nil
		}
		return search.RemoveReviewable(ctx, task.ReviewableID)
	})
}
