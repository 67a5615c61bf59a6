package pgstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/reviewkit/pkg/audit"
	"github.com/dmitrymomot/reviewkit/pkg/pg"
)

// Store, StoreBatch and Events make the store an audit backend for container history.

// Store implements audit.Storage.
func (s *Store) Store(ctx context.Context, event audit.Event) error {
	return s.StoreBatch(ctx, []audit.Event{event})
}

// StoreBatch inserts events in one round trip.
func (s *Store) StoreBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	return pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range events {
			params := e.Params
			if params == nil {
				params = map[string]any{}
			}
			batch.Queue(`
				INSERT INTO container_events (id, container_id, actor_id, event_type, params, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				e.ID, e.ContainerID, e.ActorID, e.EventType, params, e.CreatedAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// Events returns a container's history oldest first.
func (s *Store) Events(ctx context.Context, containerID uuid.UUID) ([]audit.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, container_id, actor_id, event_type, params, created_at
		FROM container_events
		WHERE container_id = $1
		ORDER BY seq`, containerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (audit.Event, error) {
		var e audit.Event
		err := row.Scan(&e.ID, &e.ContainerID, &e.ActorID, &e.EventType, &e.Params, &e.CreatedAt)
		return e, err
	})
}
