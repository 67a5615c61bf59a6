package webhook_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/reviewkit/pkg/webhook"
)

func TestSign(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	payload := []byte(`{"id":"1"}`)

	sig, err := webhook.Sign("secret", payload, now)
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), sig.Timestamp)
	assert.Len(t, sig.Value, 64)

	again, err := webhook.Sign("secret", payload, now)
	require.NoError(t, err)
	assert.Equal(t, sig.Value, again.Value, "same input, same digest")
	assert.NotEqual(t, sig.DeliveryID, again.DeliveryID)

	_, err = webhook.Sign("", payload, now)
	assert.ErrorIs(t, err, webhook.ErrInvalidConfiguration)
	_, err = webhook.Sign("secret", nil, now)
	assert.ErrorIs(t, err, webhook.ErrInvalidPayload)
}

func TestVerify(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"id":"1"}`)
	fresh, err := webhook.Sign("secret", payload, time.Now())
	require.NoError(t, err)
	stale, err := webhook.Sign("secret", payload, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	future, err := webhook.Sign("secret", payload, time.Now().Add(time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name    string
		secret  string
		payload []byte
		sig     webhook.Signature
		maxAge  time.Duration
		wantErr error
	}{
		{"valid", "secret", payload, fresh, time.Minute, nil},
		{"tampered payload", "secret", []byte(`{"id":"2"}`), fresh, time.Minute, webhook.ErrInvalidSignature},
		{"wrong secret", "nope", payload, fresh, time.Minute, webhook.ErrInvalidSignature},
		{"stale", "secret", payload, stale, time.Minute, webhook.ErrInvalidSignature},
		{"stale without max age", "secret", payload, stale, 0, nil},
		{"from the future", "secret", payload, future, time.Minute, webhook.ErrInvalidSignature},
		{"missing signature", "secret", payload, webhook.Signature{}, 0, webhook.ErrInvalidSignature},
		{"missing secret", "", payload, fresh, 0, webhook.ErrInvalidConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := webhook.Verify(tt.secret, tt.payload, tt.sig, tt.maxAge)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseSignature(t *testing.T) {
	t.Parallel()

	sig, err := webhook.Sign("secret", []byte("x"), time.Now())
	require.NoError(t, err)

	h := http.Header{}
	sig.Apply(h)
	got, err := webhook.ParseSignature(h)
	require.NoError(t, err)
	assert.Equal(t, sig, got)

	h.Set(webhook.HeaderTimestamp, "yesterday")
	_, err = webhook.ParseSignature(h)
	assert.ErrorIs(t, err, webhook.ErrInvalidSignature)

	_, err = webhook.ParseSignature(http.Header{})
	assert.ErrorIs(t, err, webhook.ErrInvalidSignature)
}
