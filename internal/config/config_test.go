package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir()) // no .env here

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.Equal(t, "ws://localhost:8000/ws", cfg.WSURL)
	assert.Equal(t, 3*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 10*time.Second, cfg.PCBAStageTimeout)
	assert.False(t, cfg.CloudUploadEnabled)
	assert.Equal(t, time.Hour, cfg.UploadScheduleInterval)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:3001"}, cfg.CORSOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("WS_RECONNECT_DELAY", "250ms")
	t.Setenv("CLOUD_UPLOAD_ENABLED", "true")
	t.Setenv("CLOUD_API_URL", "https://cloud.example/upload")
	t.Setenv("CORS_ORIGINS", " http://a.local , http://b.local")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.HTTPPort)
	assert.Equal(t, 250*time.Millisecond, cfg.ReconnectDelay)
	assert.True(t, cfg.CloudUploadEnabled)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.CORSOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	chdir(t, t.TempDir())

	t.Run("bad port", func(t *testing.T) {
		t.Setenv("HTTP_PORT", "eighty")
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "HTTP_PORT")
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("WS_RECONNECT_DELAY", "soon")
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "WS_RECONNECT_DELAY")
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			HTTPPort:         8000,
			ReconnectDelay:   3 * time.Second,
			PCBAStageTimeout: 10 * time.Second,
			LogLevel:         "info",
			LogFormat:        "json",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"port out of range", func(c *Config) { c.HTTPPort = 70000 }, "HTTP_PORT"},
		{"zero reconnect delay", func(c *Config) { c.ReconnectDelay = 0 }, "WS_RECONNECT_DELAY"},
		{"unknown log level", func(c *Config) { c.LogLevel = "trace" }, "LOG_LEVEL"},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
		{"cloud without url", func(c *Config) {
			c.CloudUploadEnabled = true
			c.UploadScheduleInterval = time.Hour
		}, "CLOUD_API_URL"},
		{"short station secret", func(c *Config) { c.StationJWTSecret = "short" }, "STATION_JWT_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{LogLevel: "debug"}).SlogLevel())
	assert.Equal(t, slog.LevelWarn, (&Config{LogLevel: "warn"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{LogLevel: ""}).SlogLevel())
}

// chdir stands in for testing.T.Chdir (Go 1.24+): it switches the working
// directory for the duration of the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
