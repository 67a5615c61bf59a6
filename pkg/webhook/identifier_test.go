package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/reviewkit/pkg/moderation"
	"github.com/dmitrymomot/reviewkit/pkg/webhook"
)

func TestIdentifierClient_RequestIdentifier(t *testing.T) {
	t.Parallel()

	published := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	item := &moderation.Reviewable{
		ID:          uuid.New(),
		ProviderID:  uuid.New(),
		ContainerID: uuid.New(),
		State:       moderation.StateAccepted,
		Published:   true,
		PublishedAt: &published,
		Subjects:    []string{"Biology"},
	}
	task := moderation.PublishedTask{ReviewableID: item.ID, ActorID: uuid.New(), PublishedAt: published.Add(time.Second)}

	var got webhook.IdentifierRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		sig, err := webhook.ParseSignature(r.Header)
		require.NoError(t, err)
		assert.NoError(t, webhook.Verify("registry-secret", body, sig, time.Minute))
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := webhook.NewIdentifierClient(nil, server.URL, "registry-secret", webhook.WithNoRetry())
	require.NoError(t, client.RequestIdentifier(context.Background(), item, task))

	assert.Equal(t, item.ID.String(), got.ReviewableID)
	assert.Equal(t, item.ProviderID.String(), got.ProviderID)
	assert.Equal(t, item.ContainerID.String(), got.ContainerID)
	assert.Equal(t, task.ActorID.String(), got.ActorID)
	assert.Equal(t, []string{"Biology"}, got.Subjects)
	assert.True(t, published.Equal(got.PublishedAt))
}

func TestIdentifierClient_PermanentFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := webhook.NewIdentifierClient(webhook.NewSender(), server.URL, "")
	item := &moderation.Reviewable{ID: uuid.New(), ContainerID: uuid.New()}
	err := client.RequestIdentifier(context.Background(), item, moderation.PublishedTask{ReviewableID: item.ID})
	assert.True(t, webhook.IsPermanent(err))
}
