package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/reviewkit/pkg/moderation"
)

type unit struct {
	tx      *sql.Tx
	item    *moderation.Reviewable
	hooks   moderation.CommitHooks
	release func()
	done    bool
}

func (u *unit) Reviewable() *moderation.Reviewable { return u.item }

func (u *unit) SaveReviewable(ctx context.Context, item *moderation.Reviewable) error {
	_, err := u.tx.ExecContext(ctx, `
		UPDATE reviewables
		SET state = ?, published = ?, published_at = ?, last_transitioned_at = ?
		WHERE id = ?`,
		string(item.State), item.Published, formatTimePtr(item.PublishedAt),
		formatTimePtr(item.LastTransitionedAt), item.ID.String())
	return err
}

func (u *unit) AppendAction(ctx context.Context, a *moderation.Action) error {
	_, err := u.tx.ExecContext(ctx, `
		INSERT INTO reviewable_actions (id, reviewable_id, actor_id, trigger_name, from_state, to_state, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.ReviewableID.String(), a.ActorID.String(), string(a.Trigger),
		string(a.FromState), string(a.ToState), a.Comment, formatTime(a.CreatedAt))
	return err
}

func (u *unit) AfterCommit(fn func(ctx context.Context)) {
	u.hooks.Add(fn)
}

func (u *unit) HasValidPrimaryArtifact(ctx context.Context, item *moderation.Reviewable) (bool, error) {
	c, ok, err := loadContainer(ctx, u.tx, item.ContainerID)
	if err != nil {
		return false, err
	}
	return ok && c.HasValidPrimaryArtifact(), nil
}

func (u *unit) ContainerIsPublic(ctx context.Context, item *moderation.Reviewable) (bool, error) {
	c, ok, err := loadContainer(ctx, u.tx, item.ContainerID)
	if err != nil {
		return false, err
	}
	return ok && c.Public, nil
}

func (u *unit) SetContainerPublic(ctx context.Context, item *moderation.Reviewable) error {
	return u.updateContainer(ctx, item.ContainerID, `UPDATE containers SET public = 1 WHERE id = ?`)
}

func (u *unit) MarkContainerActive(ctx context.Context, item *moderation.Reviewable) error {
	return u.updateContainer(ctx, item.ContainerID, `UPDATE containers SET abandoned = 0 WHERE id = ?`)
}

func (u *unit) updateContainer(ctx context.Context, id uuid.UUID, query string) error {
	res, err := u.tx.ExecContext(ctx, query, id.String())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: %s", moderation.ErrContainerNotFound, id)
	}
	return nil
}

func (u *unit) Commit(ctx context.Context) error {
	if u.done {
		return moderation.ErrUnitOfWorkClosed
	}
	u.done = true

	err := u.tx.Commit()
	u.release()
	if err != nil {
		u.hooks.Discard()
		return err
	}
	u.hooks.Run(ctx)
	return nil
}

func (u *unit) Rollback(context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	u.hooks.Discard()
	defer u.release()

	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
