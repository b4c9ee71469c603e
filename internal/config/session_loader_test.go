package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeLimits(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session_limits.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSessionLimits_Valid(t *testing.T) {
	path := writeLimits(t, `
window_start: "09:30:00"
window_end: "16:00:00"
orders_per_interval: 100
tick_interval_ms: 500
window_check_interval_ms: 30000
`)

	limits, err := LoadSessionLimits(path)
	require.NoError(t, err)
	require.Equal(t, 100, limits.OrdersPerInterval)
	require.Equal(t, 500*time.Millisecond, limits.TickInterval())
	require.Equal(t, 30*time.Second, limits.WindowCheckInterval())

	start, err := limits.StartOfDay()
	require.NoError(t, err)
	require.Equal(t, 9*time.Hour+30*time.Minute, start)

	end, err := limits.EndOfDay()
	require.NoError(t, err)
	require.Equal(t, 16*time.Hour, end)
}

func TestLoadSessionLimits_DefaultsIntervals(t *testing.T) {
	path := writeLimits(t, `
window_start: "09:30:00"
window_end: "16:00:00"
orders_per_interval: 10
`)

	limits, err := LoadSessionLimits(path)
	require.NoError(t, err)
	require.Equal(t, time.Second, limits.TickInterval())
	require.Equal(t, time.Minute, limits.WindowCheckInterval())
}

func TestLoadSessionLimits_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"end before start", `
window_start: "16:00:00"
window_end: "09:30:00"
orders_per_interval: 100
`},
		{"zero rate", `
window_start: "09:30:00"
window_end: "16:00:00"
orders_per_interval: 0
`},
		{"negative rate", `
window_start: "09:30:00"
window_end: "16:00:00"
orders_per_interval: -5
`},
		{"bad time format", `
window_start: "9.30am"
window_end: "16:00:00"
orders_per_interval: 100
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadSessionLimits(writeLimits(t, tc.content))
			require.Error(t, err)
		})
	}
}

func TestLoadSessionLimits_MissingFile(t *testing.T) {
	_, err := LoadSessionLimits(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
