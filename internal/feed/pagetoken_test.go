package feed

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageTokenRoundTrip(t *testing.T) {
	integrationID := uuid.New().String()
	states := []PageState{
		StartState(),
		{Phase: PhaseInternal, InternalOffset: 150},
		{
			Phase: PhaseExternal,
			Providers: map[string]ProviderCursor{
				integrationID: {StartAt: 50, PageToken: "abc"},
				uuid.New().String(): {Page: 3},
				uuid.New().String(): {Exhausted: true},
			},
		},
	}

	for _, st := range states {
		token, err := st.Token()
		require.NoError(t, err)
		assert.Equal(t, st, ParseToken(token))
	}
}

func TestParseTokenMalformedResetsToStart(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "not base64", token: "not-a-valid-token!!!"},
		{name: "base64 but not json", token: "bm90LWpzb24"},
		{name: "json with unknown phase", token: mustToken(t, PageState{Phase: "sideways"})},
		{name: "negative offset", token: mustToken(t, PageState{Phase: PhaseInternal, InternalOffset: -4})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, StartState(), ParseToken(tt.token))
		})
	}
}

func mustToken(t *testing.T, st PageState) string {
	t.Helper()
	token, err := st.Token()
	require.NoError(t, err)
	return token
}

func TestNormalizePageSize(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{name: "absent defaults", requested: 0, want: DefaultPageSize},
		{name: "negative defaults", requested: -10, want: DefaultPageSize},
		{name: "in range passes through", requested: 25, want: 25},
		{name: "minimum allowed", requested: 1, want: 1},
		{name: "above max clamps", requested: 500, want: MaxPageSize},
		{name: "max allowed", requested: MaxPageSize, want: MaxPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePageSize(tt.requested))
		})
	}
}
