package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gemtable.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
	assert.Equal(t, zerolog.InfoLevel, Defaults().Level())
}

func TestLoad(t *testing.T) {
	t.Run("no file uses defaults", func(t *testing.T) {
		s, err := load("", noEnv)
		require.NoError(t, err)
		assert.Equal(t, Defaults(), s)
	})

	t.Run("file overrides defaults in milliseconds", func(t *testing.T) {
		path := writeFile(t, `{"addr": ":9000", "heartbeat_interval_ms": 1500, "termination_threshold_ms": 9000, "warn_threshold_ms": 4000}`)
		s, err := load(path, noEnv)
		require.NoError(t, err)
		assert.Equal(t, ":9000", s.Addr)
		assert.Equal(t, 1500*time.Millisecond, s.HeartbeatInterval)
		assert.Equal(t, 9*time.Second, s.TerminationThreshold)
		assert.Equal(t, 4*time.Second, s.WarnThreshold)
		assert.Equal(t, Defaults().HealthCheckInterval, s.HealthCheckInterval)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		path := writeFile(t, `{"addr": ":9000"}`)
		s, err := load(path, envMap(map[string]string{
			"GEMTABLE_ADDR":             ":7000",
			"GEMTABLE_RATE_LIMIT":       "2.5",
			"GEMTABLE_RATE_BURST":       "5",
			"GEMTABLE_SEND_BUFFER_SIZE": "16",
			"GEMTABLE_LOG_LEVEL":        "debug",
		}))
		require.NoError(t, err)
		assert.Equal(t, ":7000", s.Addr)
		assert.Equal(t, 2.5, s.RateLimit)
		assert.Equal(t, 5, s.RateBurst)
		assert.Equal(t, 16, s.SendBufferSize)
		assert.Equal(t, zerolog.DebugLevel, s.Level())
	})

	t.Run("bad environment values", func(t *testing.T) {
		_, err := load("", envMap(map[string]string{
			"GEMTABLE_HEARTBEAT_INTERVAL_MS": "soon",
			"GEMTABLE_RATE_LIMIT":            "fast",
		}))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidConfig))
		assert.Contains(t, err.Error(), "GEMTABLE_HEARTBEAT_INTERVAL_MS")
		assert.Contains(t, err.Error(), "GEMTABLE_RATE_LIMIT")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := load(filepath.Join(t.TempDir(), "absent.json"), noEnv)
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		_, err := load(writeFile(t, "{"), noEnv)
		assert.Error(t, err)
	})

	t.Run("real environment", func(t *testing.T) {
		t.Setenv("GEMTABLE_ADDR", ":6000")
		s, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, ":6000", s.Addr)
	})
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	s := Defaults()
	s.Addr = ""
	s.HealthCheckInterval = 0
	s.WarnThreshold = time.Hour
	s.SendBufferSize = 0
	s.LogLevel = "loud"

	err := s.Validate()
	require.Error(t, err)
	for _, want := range []string{"addr", "health check", "warn threshold", "send buffer", "log level"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestManager(t *testing.T) {
	path := writeFile(t, `{"addr": ":9000"}`)
	m, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", m.Current().Addr)
	assert.Equal(t, path, m.Path())

	t.Run("reload picks up changes", func(t *testing.T) {
		updated := Defaults()
		updated.Addr = ":9100"
		require.NoError(t, Save(path, updated))

		s, err := m.Reload()
		require.NoError(t, err)
		assert.Equal(t, ":9100", s.Addr)
		assert.Equal(t, updated, m.Current())
	})

	t.Run("failed reload keeps current settings", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte(`{"send_buffer_size": -1}`), 0644))
		_, err := m.Reload()
		require.Error(t, err)
		assert.Equal(t, ":9100", m.Current().Addr)
	})

	t.Run("save rejects invalid settings", func(t *testing.T) {
		bad := Defaults()
		bad.MaxMessageSize = 0
		assert.Error(t, Save(filepath.Join(t.TempDir(), "x.json"), bad))
	})
}
