package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"CHATKIT_BASE_URL", "CHATKIT_HTTP_TIMEOUT", "CHATKIT_AUTH_MODE",
		"CHATKIT_LOG_LEVEL", "CHATKIT_TRACING_ENABLED",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.Equal(t, "http://localhost:8000/api", cfg.BaseURL)
	require.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	require.Equal(t, "session", cfg.DefaultAuthMode)
	require.Equal(t, "info", cfg.LogLevel)
	require.False(t, cfg.TracingEnabled)
	require.NotEmpty(t, cfg.StateDir)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CHATKIT_BASE_URL", "https://chat.example.com/api")
	t.Setenv("CHATKIT_HTTP_TIMEOUT", "5s")
	t.Setenv("CHATKIT_AUTH_MODE", "token")
	t.Setenv("CHATKIT_TRACING_ENABLED", "true")

	cfg := Load()
	require.Equal(t, "https://chat.example.com/api", cfg.BaseURL)
	require.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	require.Equal(t, "token", cfg.DefaultAuthMode)
	require.True(t, cfg.TracingEnabled)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("CHATKIT_HTTP_TIMEOUT", "soon")
	t.Setenv("CHATKIT_TRACING_ENABLED", "maybe")

	cfg := Load()
	require.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	require.False(t, cfg.TracingEnabled)
}
