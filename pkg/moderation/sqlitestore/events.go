package sqlitestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/reviewkit/pkg/audit"
)

// Store implements audit.Storage.
func (s *Store) Store(ctx context.Context, event audit.Event) error {
	return s.StoreBatch(ctx, []audit.Event{event})
}

// StoreBatch writes the events in one transaction.
func (s *Store) StoreBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}

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

	for _, e := range events {
		params := e.Params
		if params == nil {
			params = map[string]any{}
		}
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode params of event %s: %w", e.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO container_events (id, container_id, actor_id, event_type, params, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID.String(), e.ContainerID.String(), e.ActorID.String(), e.EventType, string(raw), formatTime(e.CreatedAt))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Events returns a container's history oldest first.
func (s *Store) Events(ctx context.Context, containerID uuid.UUID) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, event_type, params, created_at
		FROM container_events
		WHERE container_id = ?
		ORDER BY seq`, containerID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e                           audit.Event
			rawID, actor, params, createdAt string
		)
		if err := rows.Scan(&rawID, &actor, &e.EventType, &params, &createdAt); err != nil {
			return nil, err
		}
		if e.ID, err = uuid.Parse(rawID); err != nil {
			return nil, err
		}
		if e.ActorID, err = uuid.Parse(actor); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(params), &e.Params); err != nil {
			return nil, err
		}
		e.ContainerID = containerID
		events = append(events, e)
	}
	return events, rows.Err()
}
