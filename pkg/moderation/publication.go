package moderation

import (
	"context"

	"github.com/google/uuid"
)

// CheckPublishPreconditions verifies, in order, that the item has a valid
// primary artifact, a provider and at least one subject. The first failure
// is returned as a *PublishPreconditionError.
func CheckPublishPreconditions(ctx context.Context, c Containers, item *Reviewable) error {
	ok, err := c.HasValidPrimaryArtifact(ctx, item)
	if err != nil {
		return persistence("check primary artifact", err)
	}
	if !ok {
		return &PublishPreconditionError{Condition: ConditionPrimaryArtifact}
	}
	if item.ProviderID == uuid.Nil {
		return &PublishPreconditionError{Condition: ConditionProvider}
	}
	if !item.HasSubjects() {
		return &PublishPreconditionError{Condition: ConditionSubjects}
	}
	return nil
}

// publish flips the item to published inside the transition's unit of work
// and queues PublishedTask for after commit.
func publish(ctx context.Context, tc *TransitionContext) error {
	uow := tc.Unit
	item := tc.Item

	if err := CheckPublishPreconditions(ctx, uow, item); err != nil {
		return err
	}

	now := tc.Now
	item.Published = true
	item.PublishedAt = &now

	if err := uow.MarkContainerActive(ctx, item); err != nil {
		return persistence("mark container active", err)
	}
	public, err := uow.ContainerIsPublic(ctx, item)
	if err != nil {
		return persistence("read container visibility", err)
	}
	if !public {
		if err := uow.SetContainerPublic(ctx, item); err != nil {
			return persistence("set container public", err)
		}
	}

	tc.Published = true
	tc.Notifier.Schedule(uow, item.ID.String(), PublishedTask{
		ReviewableID: item.ID,
		ProviderID:   item.ProviderID,
		ContainerID:  item.ContainerID,
		ActorID:      tc.Actor,
		PublishedAt:  now,
	})
	return nil
}

// unpublish hides the item without re-checking preconditions.
func unpublish(tc *TransitionContext) {
	item := tc.Item
	item.Published = false

	tc.Unpublished = true
	tc.Notifier.Schedule(tc.Unit, item.ID.String(), UnpublishedTask{
		ReviewableID:  item.ID,
		ProviderID:    item.ProviderID,
		ContainerID:   item.ContainerID,
		ActorID:       tc.Actor,
		UnpublishedAt: tc.Now,
	})
}
