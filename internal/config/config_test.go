package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "reditto", cfg.Auth.JWTIssuer)
	assert.Equal(t, 24*time.Hour, cfg.Auth.JWTDuration())
	assert.Equal(t, "/api/chat/completions", cfg.Gateway.APIPath)
	assert.Equal(t, 20, cfg.RateLimit.Limit)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REDITTO_HTTP_ADDR", ":9999")
	t.Setenv("N8N_WEBHOOK_URL", "https://flows.example.com/webhook/abc")
	t.Setenv("N8N_API_KEY", "0123456789abcdef0123")
	t.Setenv("OPEN_WEBUI_BASE_URL", "http://gateway:3000")
	t.Setenv("REDITTO_RATE_LIMIT", "5")

	cfg := Load()

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "https://flows.example.com/webhook/abc", cfg.Webhook.URL)
	assert.Equal(t, "0123456789abcdef0123", cfg.Webhook.APIKey)
	assert.Equal(t, "http://gateway:3000", cfg.Gateway.BaseURL)
	assert.Equal(t, 5, cfg.RateLimit.Limit)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":7070"
webhook:
  url: "https://flows.example.com/webhook/xyz"
gateway:
  model: "llama3:8b"
rateLimit:
  limit: 10
  windowSeconds: 30
`), 0o644))
	t.Setenv("REDITTO_CONFIG", path)

	cfg := Load()

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "https://flows.example.com/webhook/xyz", cfg.Webhook.URL)
	assert.Equal(t, "llama3:8b", cfg.Gateway.Model)
	assert.Equal(t, 10, cfg.RateLimit.Limit)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window())

	// env still wins over file
	t.Setenv("REDITTO_HTTP_ADDR", ":6060")
	cfg = Load()
	assert.Equal(t, ":6060", cfg.Server.Addr)
}
