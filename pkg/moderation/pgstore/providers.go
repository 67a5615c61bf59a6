package pgstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/reviewkit/pkg/moderation"
	"github.com/dmitrymomot/reviewkit/pkg/pg"
)

// Provider implements moderation.ProviderSource. The workflow column is
// returned as stored; the engine rejects unknown modes when it resolves them.
func (s *Store) Provider(ctx context.Context, id uuid.UUID) (*moderation.Provider, error) {
	var (
		p        moderation.Provider
		workflow string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, workflow, comments_private, comments_anonymous
		FROM providers WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &workflow, &p.CommentsPrivate, &p.CommentsAnonymous)
	if pg.IsNotFoundError(err) {
		return nil, fmt.Errorf("%w: %s", moderation.ErrProviderNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	p.Workflow = moderation.Mode(workflow)
	return &p, nil
}

// SyncProviders upserts the given providers in one transaction, typically the
// contents of the providers file.
func (s *Store) SyncProviders(ctx context.Context, providers []moderation.Provider) error {
	return pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range providers {
			batch.Queue(`
				INSERT INTO providers (id, name, workflow, comments_private, comments_anonymous)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO UPDATE SET
					name = EXCLUDED.name,
					workflow = EXCLUDED.workflow,
					comments_private = EXCLUDED.comments_private,
					comments_anonymous = EXCLUDED.comments_anonymous`,
				p.ID, p.Name, string(p.Workflow), p.CommentsPrivate, p.CommentsAnonymous)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}
