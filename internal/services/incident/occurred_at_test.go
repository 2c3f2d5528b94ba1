package incident

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOccurredAt(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-01-10T22:15:00Z", time.Date(2025, 1, 10, 22, 15, 0, 0, time.UTC)},
		{"2025-01-10T22:15:00.250Z", time.Date(2025, 1, 10, 22, 15, 0, 250000000, time.UTC)},
		{"2025-01-10T23:15:00+01:00", time.Date(2025, 1, 10, 22, 15, 0, 0, time.UTC)},
		{"2025-01-10T22:15:00", time.Date(2025, 1, 10, 22, 15, 0, 0, time.UTC)},
		{"2025-01-10T22:15", time.Date(2025, 1, 10, 22, 15, 0, 0, time.UTC)},
		{"2025-01-10 22:15:00", time.Date(2025, 1, 10, 22, 15, 0, 0, time.UTC)},
		{" 2025-01-10 ", time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOccurredAt(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	for _, bad := range []string{"", "not-a-date", "2025-13-01", "10/01/2025"} {
		_, err := ParseOccurredAt(bad)
		assert.Error(t, err, bad)
	}
}

func TestDecodePatch(t *testing.T) {
	patch, err := DecodePatch(map[string]any{
		"location":      "Dock 4",
		"status":        "Closed",
		"closingReason": nil,
		"reportedById":  "someone-else",
	})
	require.NoError(t, err)
	require.NotNil(t, patch.Location)
	assert.Equal(t, "Dock 4", *patch.Location)
	assert.Equal(t, "Closed", *patch.Status)
	assert.True(t, patch.ClosingReasonSet)
	assert.Nil(t, patch.ClosingReason)
	assert.Nil(t, patch.OccurredAt)
	assert.False(t, patch.Empty())

	patch, err = DecodePatch(map[string]any{"unknown": 1})
	require.NoError(t, err)
	assert.True(t, patch.Empty())

	_, err = DecodePatch(map[string]any{"location": 42})
	assert.Error(t, err)
}
