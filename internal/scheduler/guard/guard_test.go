package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldEmbeddedRunDefersToFreshHeartbeat(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hb := now.Add(-89 * time.Minute)
	require.False(t, ShouldEmbeddedRun(now, &hb))
}

func TestShouldEmbeddedRunAtExactThresholdStillDefers(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hb := now.Add(-WarningThreshold)
	require.False(t, ShouldEmbeddedRun(now, &hb))
}

func TestShouldEmbeddedRunTakesOverFromStaleHeartbeat(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hb := now.Add(-91 * time.Minute)
	require.True(t, ShouldEmbeddedRun(now, &hb))
}

func TestShouldEmbeddedRunWithoutAnyHeartbeat(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.True(t, ShouldEmbeddedRun(now, nil))
}

func TestIsStale(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.False(t, IsStale(now, now.Add(-time.Minute)))
	require.True(t, IsStale(now, now.Add(-2*time.Hour)))
}
