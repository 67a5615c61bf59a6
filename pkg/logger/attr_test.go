package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/reviewkit/pkg/logger"
)

func TestGroup(t *testing.T) {
	t.Parallel()

	attr := logger.Group("req", slog.String("id", "1"), slog.Int("n", 2))
	require.Equal(t, "req", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "n", g[1].Key)
}

func TestErrors(t *testing.T) {
	t.Parallel()

	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	assert.True(t, logger.Errors(nil).Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	t.Parallel()

	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestDomainAttrs(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	tests := []struct {
		name string
		attr slog.Attr
		key  string
	}{
		{"reviewable", logger.ReviewableID(id), "reviewable_id"},
		{"provider", logger.ProviderID(id), "provider_id"},
		{"container", logger.ContainerID(id), "container_id"},
		{"actor", logger.ActorID(id), "actor_id"},
		{"task", logger.TaskID(id), "task_id"},
		{"worker", logger.WorkerID(id), "worker_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.key, tt.attr.Key)
			assert.Equal(t, id, tt.attr.Value.Any())
		})
	}

	assert.True(t, logger.ReviewableID(nil).Equal(slog.Attr{}))
	assert.True(t, logger.ActorID(nil).Equal(slog.Attr{}))
}

func TestStringAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "accept", logger.Trigger("accept").Value.String())
	assert.Equal(t, "pending", logger.FromState("pending").Value.String())
	assert.Equal(t, "accepted", logger.ToState("accepted").Value.String())
	assert.Equal(t, "moderation", logger.Queue("moderation").Value.String())
	assert.Equal(t, "engine", logger.Component("engine").Value.String())
}
