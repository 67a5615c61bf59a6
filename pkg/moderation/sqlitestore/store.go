// Package sqlitestore implements the moderation store, provider registry and
// container history on SQLite for single-process deployments.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dmitrymomot/reviewkit/pkg/moderation"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 2

const maxOpenConns = 4

// Store is a moderation.Store on a SQLite file in WAL mode. SQLite allows one
// writer at a time, so write transactions take the writer slot first and
// units of work run one after another while reads proceed in parallel.
type Store struct {
	db     *sql.DB
	writer chan struct{}
}

// Open creates or opens the database file at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_txlock=immediate&_foreign_keys=on&_busy_timeout=5000"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, writer: make(chan struct{}, 1)}, nil
}

// acquire takes the writer slot. The returned func releases it.
func (s *Store) acquire(ctx context.Context) (func(), error) {
	select {
	case s.writer <- struct{}{}:
		return func() { <-s.writer }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return err
	}
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	return err
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Times are stored as RFC 3339 text with nanoseconds, in UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id.String()
}

func parseNullableID(s sql.NullString) (uuid.UUID, error) {
	if !s.Valid {
		return uuid.Nil, nil
	}
	return uuid.Parse(s.String)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const reviewableQuery = `
	SELECT id, provider_id, container_id, state, published, published_at,
		last_transitioned_at, subjects, created_at
	FROM reviewables WHERE id = ?`

func loadReviewable(ctx context.Context, q queryer, id uuid.UUID) (*moderation.Reviewable, error) {
	var (
		item                         moderation.Reviewable
		rawID, state, subjects, made string
		providerID                   sql.NullString
		containerID                  string
		publishedAt, transitionedAt  sql.NullString
	)
	err := q.QueryRowContext(ctx, reviewableQuery, id.String()).Scan(
		&rawID, &providerID, &containerID, &state, &item.Published,
		&publishedAt, &transitionedAt, &subjects, &made)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", moderation.ErrReviewableNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	item.ID = id
	item.State = moderation.State(state)
	if item.ProviderID, err = parseNullableID(providerID); err != nil {
		return nil, err
	}
	if item.ContainerID, err = uuid.Parse(containerID); err != nil {
		return nil, err
	}
	if item.PublishedAt, err = parseTimePtr(publishedAt); err != nil {
		return nil, err
	}
	if item.LastTransitionedAt, err = parseTimePtr(transitionedAt); err != nil {
		return nil, err
	}
	if item.CreatedAt, err = parseTime(made); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(subjects), &item.Subjects); err != nil {
		return nil, fmt.Errorf("decode subjects: %w", err)
	}
	return &item, nil
}

// CreateReviewable inserts item. A duplicate id is ErrReviewableExists.
func (s *Store) CreateReviewable(ctx context.Context, item *moderation.Reviewable) error {
	subjects := item.Subjects
	if subjects == nil {
		subjects = []string{}
	}
	rawSubjects, err := json.Marshal(subjects)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reviewables (id, provider_id, container_id, state, published, published_at,
			last_transitioned_at, subjects, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		item.ID.String(), nullableID(item.ProviderID), item.ContainerID.String(), string(item.State),
		item.Published, formatTimePtr(item.PublishedAt), formatTimePtr(item.LastTransitionedAt),
		string(rawSubjects), formatTime(item.CreatedAt))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", moderation.ErrReviewableExists, item.ID)
	}
	return nil
}

// Reviewable loads the committed item or ErrReviewableNotFound.
func (s *Store) Reviewable(ctx context.Context, id uuid.UUID) (*moderation.Reviewable, error) {
	return loadReviewable(ctx, s.db, id)
}

// Actions returns the item's actions oldest first.
func (s *Store) Actions(ctx context.Context, id uuid.UUID) ([]moderation.Action, error) {
	if _, err := loadReviewable(ctx, s.db, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, trigger_name, from_state, to_state, comment, created_at
		FROM reviewable_actions
		WHERE reviewable_id = ?
		ORDER BY seq`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []moderation.Action
	for rows.Next() {
		var (
			a                                          moderation.Action
			rawID, actor, trigger, from, to, createdAt string
		)
		if err := rows.Scan(&rawID, &actor, &trigger, &from, &to, &a.Comment, &createdAt); err != nil {
			return nil, err
		}
		if a.ID, err = uuid.Parse(rawID); err != nil {
			return nil, err
		}
		if a.ActorID, err = uuid.Parse(actor); err != nil {
			return nil, err
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		a.ReviewableID = id
		a.Trigger = moderation.Trigger(trigger)
		a.FromState = moderation.State(from)
		a.ToState = moderation.State(to)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// CountByState counts the provider's items in public containers.
func (s *Store) CountByState(ctx context.Context, providerID uuid.UUID) (map[moderation.State]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.state, COUNT(*)
		FROM reviewables r
		JOIN containers c ON c.id = r.container_id
		WHERE r.provider_id = ? AND c.public = 1
		GROUP BY r.state`, providerID.String())
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO containers (id, primary_artifact_id, artifact_container_id, public, abandoned)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			primary_artifact_id = excluded.primary_artifact_id,
			artifact_container_id = excluded.artifact_container_id,
			public = excluded.public,
			abandoned = excluded.abandoned`,
		c.ID.String(), nullableID(c.PrimaryArtifactID), nullableID(c.ArtifactContainerID), c.Public, c.Abandoned)
	return err
}

// Container returns the committed container.
func (s *Store) Container(ctx context.Context, id uuid.UUID) (moderation.Container, error) {
	c, ok, err := loadContainer(ctx, s.db, id)
	if err == nil && !ok {
		err = fmt.Errorf("%w: %s", moderation.ErrContainerNotFound, id)
	}
	return c, err
}

func loadContainer(ctx context.Context, q queryer, id uuid.UUID) (moderation.Container, bool, error) {
	var (
		c                  moderation.Container
		artifact, artOwner sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT primary_artifact_id, artifact_container_id, public, abandoned
		FROM containers WHERE id = ?`, id.String()).Scan(&artifact, &artOwner, &c.Public, &c.Abandoned)
	if errors.Is(err, sql.ErrNoRows) {
		return c, false, nil
	}
	if err != nil {
		return c, false, err
	}

	c.ID = id
	if c.PrimaryArtifactID, err = parseNullableID(artifact); err != nil {
		return c, false, err
	}
	if c.ArtifactContainerID, err = parseNullableID(artOwner); err != nil {
		return c, false, err
	}
	return c, true, nil
}

// Begin opens an IMMEDIATE transaction, which takes the database write lock.
func (s *Store) Begin(ctx context.Context, id uuid.UUID) (moderation.UnitOfWork, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		release()
		return nil, err
	}

	item, err := loadReviewable(ctx, tx, id)
	if err != nil {
		_ = tx.Rollback()
		release()
		return nil, err
	}
	return &unit{tx: tx, item: item, release: release}, nil
}
