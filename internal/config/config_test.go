package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.Equal(t, 300*time.Millisecond, cfg.Preview.Debounce)
	assert.Equal(t, 2*time.Second, cfg.Preview.Timeout)
	assert.Equal(t, 262144, cfg.Preview.MaxSourceBytes)
	assert.False(t, cfg.Preview.Sanitize)
	assert.Equal(t, "Loading preview...", cfg.Preview.Fallback)
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                     "9000",
		"HOST":                     "127.0.0.1",
		"LOG_LEVEL":                "debug",
		"LOG_DEV":                  "true",
		"RATE_LIMIT_RPS":           "500",
		"RATE_LIMIT_BURST":         "1000",
		"RATE_LIMIT_ENABLED":       "false",
		"RATE_LIMIT_EVALUATE_RPS":  "20",
		"PREVIEW_DEBOUNCE":         "50ms",
		"PREVIEW_TIMEOUT":          "5s",
		"PREVIEW_MAX_SOURCE_BYTES": "1024",
		"PREVIEW_SANITIZE":         "true",
		"PREVIEW_HEIGHT":           "400px",
		"PREVIEW_SERVER_URL":       "http://preview:8000",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 20, cfg.RateLimit.EvaluateRPS)
	assert.Equal(t, 50*time.Millisecond, cfg.Preview.Debounce)
	assert.Equal(t, 5*time.Second, cfg.Preview.Timeout)
	assert.Equal(t, 1024, cfg.Preview.MaxSourceBytes)
	assert.True(t, cfg.Preview.Sanitize)
	assert.Equal(t, "400px", cfg.Preview.Height)
	assert.Equal(t, "http://preview:8000", cfg.Remote.URL)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"duration", "PREVIEW_DEBOUNCE", "soon"},
		{"integer", "RATE_LIMIT_RPS", "many"},
		{"boolean", "PREVIEW_SANITIZE", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)

			cfg := LoadOrDefault()
			assert.Equal(t, Default(), cfg)
		})
	}
}

func TestPreviewConversions(t *testing.T) {
	p := PreviewConfig{
		Debounce:       10 * time.Millisecond,
		Timeout:        time.Second,
		MaxSourceBytes: 99,
		MaxConsole:     7,
		Fallback:       "wait",
		Height:         "300px",
	}

	engine := p.Engine()
	assert.Equal(t, time.Second, engine.Sandbox.Timeout)
	assert.Equal(t, 7, engine.Sandbox.MaxConsole)
	assert.Equal(t, 99, engine.MaxSourceBytes)
	assert.True(t, engine.Sandbox.EnableConsole)

	opts := p.Host()
	assert.Equal(t, 10*time.Millisecond, opts.Debounce)
	assert.Equal(t, "wait", opts.Fallback)
	assert.Equal(t, "300px", opts.Height)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preview.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = "7000"

[preview]
debounce = "150ms"
sanitize = true
fallback = "Rendering..."

[remote]
url = "http://remote:9000"
timeout = "3s"
`), 0o644))

	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 150*time.Millisecond, cfg.Preview.Debounce)
	assert.Equal(t, 2*time.Second, cfg.Preview.Timeout)
	assert.True(t, cfg.Preview.Sanitize)
	assert.Equal(t, "Rendering...", cfg.Preview.Fallback)
	assert.Equal(t, "http://remote:9000", cfg.Remote.URL)
	assert.Equal(t, 3*time.Second, cfg.Remote.Timeout)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[preview]\ndebounce = \"later\"\n"), 0o644))
	_, err = LoadFile(bad)
	assert.Error(t, err)
}
