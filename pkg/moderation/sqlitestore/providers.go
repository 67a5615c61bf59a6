package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/reviewkit/pkg/moderation"
)

// Provider implements moderation.ProviderSource.
func (s *Store) Provider(ctx context.Context, id uuid.UUID) (*moderation.Provider, error) {
	var (
		p        moderation.Provider
		workflow string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT name, workflow, comments_private, comments_anonymous
		FROM providers WHERE id = ?`, id.String()).
		Scan(&p.Name, &workflow, &p.CommentsPrivate, &p.CommentsAnonymous)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", moderation.ErrProviderNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	p.ID = id
	p.Workflow = moderation.Mode(workflow)
	return &p, nil
}

// SyncProviders upserts the given providers in one transaction.
func (s *Store) SyncProviders(ctx context.Context, providers []moderation.Provider) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range providers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO providers (id, name, workflow, comments_private, comments_anonymous)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				workflow = excluded.workflow,
				comments_private = excluded.comments_private,
				comments_anonymous = excluded.comments_anonymous`,
			p.ID.String(), p.Name, string(p.Workflow), p.CommentsPrivate, p.CommentsAnonymous)
		if err != nil {
			return fmt.Errorf("upsert provider %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}
