package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Offline())
	assert.Equal(t, "strict", cfg.Practice.Policy)
	assert.Equal(t, 30, cfg.Practice.Budget)
	assert.Equal(t, 20, cfg.Progress.DailyGoal)
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoad_DefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	dir := filepath.Join(home, "tensequest")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("progress:\n  daily_goal: 35\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 35, cfg.Progress.DailyGoal)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `backend:
  url: https://api.example.com/
  token: secret
  timeout: 5s
practice:
  policy: lru
  budget: 45
  tick_interval: 500ms
  levels: 10
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/", cfg.Backend.URL)
	assert.Equal(t, "secret", cfg.Backend.Token)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.False(t, cfg.Offline())
	assert.Equal(t, "lru", cfg.Practice.Policy)
	assert.Equal(t, 45, cfg.Practice.Budget)
	assert.Equal(t, 500*time.Millisecond, cfg.Practice.TickInterval)
	assert.Equal(t, 10, cfg.Practice.Levels)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Server, cfg.Server)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "practice:\n  budget: 45\nlog:\n  format: json\n")
	t.Setenv("TENSEQUEST_PRACTICE_BUDGET", "60")
	t.Setenv("TENSEQUEST_PRACTICE_TICK_INTERVAL", "2s")
	t.Setenv("TENSEQUEST_BACKEND_URL", "http://localhost:8000")
	t.Setenv("TENSEQUEST_SERVER_ADDR", ":9999")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Practice.Budget)
	assert.Equal(t, 2*time.Second, cfg.Practice.TickInterval)
	assert.Equal(t, "http://localhost:8000", cfg.Backend.URL)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "practice: [budget"},
		{"unknown policy", "practice:\n  policy: newest\n"},
		{"ladder policy", "practice:\n  policy: ladder\n"},
		{"negative budget", "practice:\n  budget: -5\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"bad log format", "log:\n  format: xml\n"},
		{"bad url scheme", "backend:\n  url: ftp://example.com\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Errorf("Load(%q) error = nil, want error", tt.content)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"TENSEQUEST_BACKEND_URL", "backend.url"},
		{"TENSEQUEST_PRACTICE_TICK_INTERVAL", "practice.tick_interval"},
		{"TENSEQUEST_PROGRESS_DAILY_GOAL", "progress.daily_goal"},
		{"TENSEQUEST_DB", "db"},
	}
	for _, tt := range tests {
		if got := envKey(tt.in); got != tt.want {
			t.Errorf("envKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
