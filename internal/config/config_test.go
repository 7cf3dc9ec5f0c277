package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, 10.0, cfg.Dispatch.DefaultRadiusMiles)
	require.Equal(t, 30*time.Second, cfg.StaleAfter())
	require.Equal(t, 2*time.Minute, cfg.SessionExpiry())
	require.Equal(t, 15*time.Minute, cfg.ReadyAttentionAfter())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("COURIERD_HTTP_ADDR", ":9090")
	t.Setenv("COURIERD_LOCATION_STALE_AFTER", "45")
	t.Setenv("COURIERD_DEFAULT_RADIUS_MILES", "3.5")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTP.Addr)
	require.Equal(t, 45*time.Second, cfg.StaleAfter())
	require.Equal(t, 3.5, cfg.Dispatch.DefaultRadiusMiles)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("COURIERD_SESSION_EXPIRY", "not-a-number")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 2*time.Minute, cfg.SessionExpiry())
}
