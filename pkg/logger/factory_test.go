package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/reviewkit/pkg/logger"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.New(logger.WithOutput(buf), logger.WithAttr(slog.String("component", "engine")))
	log.Debug("hidden")
	log.Info("hello")

	entry := decode(t, buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "engine", entry["component"])
}

func TestNew_Formats(t *testing.T) {
	t.Parallel()

	t.Run("text", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		logger.New(logger.WithOutput(buf), logger.WithTextFormatter()).Info("hello")
		assert.Contains(t, buf.String(), "level=INFO msg=hello")
	})

	t.Run("last option wins", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		logger.New(logger.WithOutput(buf), logger.WithTextFormatter(), logger.WithJSONFormatter()).Info("hello")
		assert.Equal(t, "hello", decode(t, buf)["msg"])
	})

	t.Run("unknown panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { logger.New(logger.WithFormat(logger.Format("xml"))) })
	})
}

func TestWithEnvironment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env      string
		wantEnv  string
		wantText bool
		debug    bool
	}{
		{env: "prod", wantEnv: "production"},
		{env: "staging", wantEnv: "staging"},
		{env: "development", wantEnv: "development", wantText: true, debug: true},
		{env: "qa", wantEnv: "development", wantText: true, debug: true},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Parallel()

			buf := &bytes.Buffer{}
			log := logger.New(logger.WithEnvironment(tt.env, "reviewkit"), logger.WithOutput(buf))
			log.Debug("probe")
			if !tt.debug {
				assert.Empty(t, buf.String())
				log.Info("probe")
			}

			if tt.wantText {
				assert.Contains(t, buf.String(), "service=reviewkit")
				assert.Contains(t, buf.String(), "env="+tt.wantEnv)
				return
			}
			entry := decode(t, buf)
			assert.Equal(t, "reviewkit", entry["service"])
			assert.Equal(t, tt.wantEnv, entry["env"])
		})
	}
}

func TestWithConfig(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.New(
		logger.WithProduction("reviewkit"),
		logger.WithOutput(buf),
		logger.WithConfig(logger.Config{Level: "warn", Format: "text"}),
	)
	log.Info("dropped")
	log.Warn("kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "level=WARN")

	t.Run("garbage is ignored", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		logger.New(logger.WithOutput(buf), logger.WithConfig(logger.Config{Level: "loud", Format: "xml"})).Info("hello")
		assert.Equal(t, "INFO", decode(t, buf)["level"])
	})
}

func TestContextAttributes(t *testing.T) {
	t.Parallel()

	type key struct{}
	buf := &bytes.Buffer{}
	log := logger.New(
		logger.WithOutput(buf),
		logger.WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
			v, ok := ctx.Value(key{}).(string)
			return slog.String("request_id", v), ok
		}),
	)

	ctx := context.WithValue(context.Background(), key{}, "r-1")
	ctx = logger.ContextWithAttrs(ctx, logger.Trigger("accept"))
	ctx = logger.ContextWithAttrs(ctx, logger.ToState("accepted"), logger.Error(nil))
	log.InfoContext(ctx, "transition committed")

	entry := decode(t, buf)
	assert.Equal(t, "r-1", entry["request_id"])
	assert.Equal(t, "accept", entry["trigger"])
	assert.Equal(t, "accepted", entry["to_state"])
	assert.NotContains(t, entry, "error")
}

func TestSetAsDefault(t *testing.T) {
	buf := &bytes.Buffer{}
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger.SetAsDefault(logger.New(logger.WithOutput(buf)))
	slog.Info("default")
	assert.Equal(t, "default", decode(t, buf)["msg"])
}
