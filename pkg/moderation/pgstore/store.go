// Package pgstore implements the moderation store, provider registry, container
// history and task queue on PostgreSQL.
package pgstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/reviewkit/pkg/moderation"
	"github.com/dmitrymomot/reviewkit/pkg/moderation/pgstore/migrations"
	"github.com/dmitrymomot/reviewkit/pkg/pg"
)

// Store is a moderation.Store backed by a pgx pool. Begin takes a row lock
// with SELECT ... FOR UPDATE that is held until the unit commits or rolls back.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a store on pool. Run Migrate first.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate applies the embedded schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg pg.Config, log *slog.Logger) error {
	return pg.Migrate(ctx, pool, migrations.FS, ".", cfg, log)
}

const reviewableColumns = `id, provider_id, container_id, state, published, published_at,
	last_transitioned_at, subjects, created_at`

func scanReviewable(row pgx.Row) (*moderation.Reviewable, error) {
	var (
		item       moderation.Reviewable
		providerID *uuid.UUID
		state      string
	)
	err := row.Scan(&item.ID, &providerID, &item.ContainerID, &state, &item.Published,
		&item.PublishedAt, &item.LastTransitionedAt, &item.Subjects, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	if providerID != nil {
		item.ProviderID = *providerID
	}
	item.State = moderation.State(state)
	return &item, nil
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

// CreateReviewable inserts item. A duplicate id is ErrReviewableExists.
func (s *Store) CreateReviewable(ctx context.Context, item *moderation.Reviewable) error {
	subjects := item.Subjects
	if subjects == nil {
		subjects = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reviewables (`+reviewableColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, nullableUUID(item.ProviderID), item.ContainerID, string(item.State), item.Published,
		item.PublishedAt, item.LastTransitionedAt, subjects, item.CreatedAt)
	if pg.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", moderation.ErrReviewableExists, item.ID)
	}
	return err
}

// Reviewable loads the committed item or ErrReviewableNotFound.
func (s *Store) Reviewable(ctx context.Context, id uuid.UUID) (*moderation.Reviewable, error) {
	item, err := scanReviewable(s.pool.QueryRow(ctx,
		`SELECT `+reviewableColumns+` FROM reviewables WHERE id = $1`, id))
	if pg.IsNotFoundError(err) {
		return nil, fmt.Errorf("%w: %s", moderation.ErrReviewableNotFound, id)
	}
	return item, err
}

// Actions returns the item's actions oldest first.
func (s *Store) Actions(ctx context.Context, id uuid.UUID) ([]moderation.Action, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reviewables WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", moderation.ErrReviewableNotFound, id)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, reviewable_id, actor_id, trigger, from_state, to_state, comment, created_at
		FROM reviewable_actions
		WHERE reviewable_id = $1
		ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (moderation.Action, error) {
		var (
			a                     moderation.Action
			trigger, from, toName string
		)
		err := row.Scan(&a.ID, &a.ReviewableID, &a.ActorID, &trigger, &from, &toName, &a.Comment, &a.CreatedAt)
		a.Trigger = moderation.Trigger(trigger)
		a.FromState = moderation.State(from)
		a.ToState = moderation.State(toName)
		return a, err
	})
}

// CountByState counts the provider's items in public containers.
func (s *Store) CountByState(ctx context.Context, providerID uuid.UUID) (map[moderation.State]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.state, COUNT(*)
		FROM reviewables r
		JOIN containers c ON c.id = r.container_id
		WHERE r.provider_id = $1 AND c.public
		GROUP BY r.state`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[moderation.State]int, len(moderation.States()))
	for _, st := range moderation.States() {
		counts[st] = 0
	}
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[moderation.State(state)] = n
	}
	return counts, rows.Err()
}

// PutContainer creates or replaces a container.
func (s *Store) PutContainer(ctx context.Context, c moderation.Container) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO containers (id, primary_artifact_id, artifact_container_id, public, abandoned)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			primary_artifact_id = EXCLUDED.primary_artifact_id,
			artifact_container_id = EXCLUDED.artifact_container_id,
			public = EXCLUDED.public,
			abandoned = EXCLUDED.abandoned`,
		c.ID, nullableUUID(c.PrimaryArtifactID), nullableUUID(c.ArtifactContainerID), c.Public, c.Abandoned)
	return err
}

// Container returns the committed container.
func (s *Store) Container(ctx context.Context, id uuid.UUID) (moderation.Container, error) {
	c, err := scanContainer(s.pool.QueryRow(ctx, containerQuery, id))
	if pg.IsNotFoundError(err) {
		return c, fmt.Errorf("%w: %s", moderation.ErrContainerNotFound, id)
	}
	return c, err
}

const containerQuery = `
	SELECT id, primary_artifact_id, artifact_container_id, public, abandoned
	FROM containers WHERE id = $1`

func scanContainer(row pgx.Row) (moderation.Container, error) {
	var (
		c                  moderation.Container
		artifact, artOwner *uuid.UUID
	)
	if err := row.Scan(&c.ID, &artifact, &artOwner, &c.Public, &c.Abandoned); err != nil {
		return c, err
	}
	if artifact != nil {
		c.PrimaryArtifactID = *artifact
	}
	if artOwner != nil {
		c.ArtifactContainerID = *artOwner
	}
	return c, nil
}

// Begin starts a transaction and locks the reviewable row.
func (s *Store) Begin(ctx context.Context, id uuid.UUID) (moderation.UnitOfWork, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}

	item, err := scanReviewable(tx.QueryRow(ctx,
		`SELECT `+reviewableColumns+` FROM reviewables WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		_ = tx.Rollback(ctx)
		if pg.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", moderation.ErrReviewableNotFound, id)
		}
		return nil, err
	}

	return &unit{tx: tx, item: item}, nil
}

type unit struct {
	tx    pgx.Tx
	item  *moderation.Reviewable
	hooks moderation.CommitHooks
	done  bool
}

func (u *unit) Reviewable() *moderation.Reviewable { return u.item }

func (u *unit) SaveReviewable(ctx context.Context, item *moderation.Reviewable) error {
	_, err := u.tx.Exec(ctx, `
		UPDATE reviewables
		SET state = $2, published = $3, published_at = $4, last_transitioned_at = $5
		WHERE id = $1`,
		item.ID, string(item.State), item.Published, item.PublishedAt, item.LastTransitionedAt)
	return err
}

func (u *unit) AppendAction(ctx context.Context, a *moderation.Action) error {
	_, err := u.tx.Exec(ctx, `
		INSERT INTO reviewable_actions (id, reviewable_id, actor_id, trigger, from_state, to_state, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.ReviewableID, a.ActorID, string(a.Trigger), string(a.FromState), string(a.ToState), a.Comment, a.CreatedAt)
	if pg.IsForeignKeyViolationError(err) {
		return fmt.Errorf("%w: %s", moderation.ErrReviewableNotFound, a.ReviewableID)
	}
	return err
}

func (u *unit) AfterCommit(fn func(ctx context.Context)) {
	u.hooks.Add(fn)
}

func (u *unit) container(ctx context.Context, item *moderation.Reviewable) (moderation.Container, bool, error) {
	c, err := scanContainer(u.tx.QueryRow(ctx, containerQuery+` FOR UPDATE`, item.ContainerID))
	if pg.IsNotFoundError(err) {
		return c, false, nil
	}
	return c, err == nil, err
}

func (u *unit) HasValidPrimaryArtifact(ctx context.Context, item *moderation.Reviewable) (bool, error) {
	c, ok, err := u.container(ctx, item)
	if err != nil {
		return false, err
	}
	return ok && c.HasValidPrimaryArtifact(), nil
}

func (u *unit) ContainerIsPublic(ctx context.Context, item *moderation.Reviewable) (bool, error) {
	c, ok, err := u.container(ctx, item)
	if err != nil {
		return false, err
	}
	return ok && c.Public, nil
}

func (u *unit) SetContainerPublic(ctx context.Context, item *moderation.Reviewable) error {
	return u.updateContainer(ctx, item.ContainerID, `UPDATE containers SET public = TRUE WHERE id = $1`)
}

func (u *unit) MarkContainerActive(ctx context.Context, item *moderation.Reviewable) error {
	return u.updateContainer(ctx, item.ContainerID, `UPDATE containers SET abandoned = FALSE WHERE id = $1`)
}

func (u *unit) updateContainer(ctx context.Context, id uuid.UUID, query string) error {
	tag, err := u.tx.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", moderation.ErrContainerNotFound, id)
	}
	return nil
}

func (u *unit) Commit(ctx context.Context) error {
	if u.done {
		return moderation.ErrUnitOfWorkClosed
	}
	u.done = true

	if err := u.tx.Commit(ctx); err != nil {
		u.hooks.Discard()
		if pg.IsSerializationError(err) {
			return fmt.Errorf("reviewable %s: concurrent update: %w", u.item.ID, err)
		}
		return err
	}
	u.hooks.Run(ctx)
	return nil
}

func (u *unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	u.hooks.Discard()

	if err := u.tx.Rollback(ctx); err != nil && !pg.IsTxClosedError(err) {
		return err
	}
	return nil
}
