package moderation_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/reviewkit/pkg/moderation"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    moderation.Mode
		wantErr bool
	}{
		{"", moderation.ModeNone, false},
		{"none", moderation.ModeNone, false},
		{"pre_moderation", moderation.ModePreModeration, false},
		{"pre-moderation", moderation.ModePreModeration, false},
		{" Post-Moderation ", moderation.ModePostModeration, false},
		{"post_moderation", moderation.ModePostModeration, false},
		{"moderated", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := moderation.ParseMode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, moderation.IsConfigurationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPublicStates(t *testing.T) {
	t.Parallel()

	all := map[moderation.State]bool{
		moderation.StateInitial:  true,
		moderation.StatePending:  true,
		moderation.StateAccepted: true,
		moderation.StateRejected: true,
	}

	tests := []struct {
		name     string
		provider *moderation.Provider
		want     map[moderation.State]bool
	}{
		{"nil provider", nil, all},
		{"empty workflow", &moderation.Provider{ID: uuid.New()}, all},
		{"none", &moderation.Provider{ID: uuid.New(), Workflow: moderation.ModeNone}, all},
		{
			name:     "pre-moderation",
			provider: &moderation.Provider{ID: uuid.New(), Workflow: moderation.ModePreModeration},
			want:     map[moderation.State]bool{moderation.StateAccepted: true},
		},
		{
			name:     "post-moderation",
			provider: &moderation.Provider{ID: uuid.New(), Workflow: "post-moderation"},
			want:     map[moderation.State]bool{moderation.StatePending: true, moderation.StateAccepted: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := moderation.PublicStates(tt.provider)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			policy, err := moderation.ResolvePolicy(tt.provider)
			require.NoError(t, err)
			for _, s := range moderation.States() {
				assert.Equal(t, tt.want[s], policy.IsPublic(s), "state %s", s)
			}
		})
	}
}

func TestPublicStates_ReturnsCopy(t *testing.T) {
	t.Parallel()

	p := &moderation.Provider{ID: uuid.New(), Workflow: moderation.ModePreModeration}
	got, err := moderation.PublicStates(p)
	require.NoError(t, err)
	got[moderation.StateRejected] = true

	again, err := moderation.PublicStates(p)
	require.NoError(t, err)
	assert.False(t, again[moderation.StateRejected])
}

func TestPublicStates_UnknownMode(t *testing.T) {
	t.Parallel()

	p := &moderation.Provider{ID: uuid.New(), Workflow: "community"}
	_, err := moderation.PublicStates(p)
	require.ErrorIs(t, err, moderation.ErrConfiguration)

	var ce *moderation.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, p.ID, ce.ProviderID)
	assert.Contains(t, err.Error(), p.ID.String())
}

func TestProvider_IsReviewed(t *testing.T) {
	t.Parallel()

	var nilProvider *moderation.Provider
	assert.False(t, nilProvider.IsReviewed())
	assert.False(t, (&moderation.Provider{}).IsReviewed())
	assert.False(t, (&moderation.Provider{Workflow: "bogus"}).IsReviewed())
	assert.True(t, (&moderation.Provider{Workflow: moderation.ModePreModeration}).IsReviewed())
	assert.True(t, (&moderation.Provider{Workflow: "post-moderation"}).IsReviewed())
}
