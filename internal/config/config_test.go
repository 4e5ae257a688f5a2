package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://pricedb.io/api", cfg.Targets.APIBaseURL)
	assert.Equal(t, "https://spells.pricedb.io/api", cfg.Targets.SpellsBaseURL)
	assert.Equal(t, "https://status.pricedb.io", cfg.Targets.StatusBaseURL)
	assert.Equal(t, "https://pricedb.io", cfg.Targets.SiteBaseURL)
	assert.Equal(t, "ws://ws.pricedb.io:5500", cfg.Targets.RealtimeURL)

	assert.Equal(t, 5, cfg.Suite.MaxWorkers)
	assert.Equal(t, 30, cfg.Suite.HTTPTimeout)
	assert.Equal(t, 300, cfg.Suite.SweepTimeout)
	assert.Equal(t, 10, cfg.Suite.ConnectTimeout)
	assert.Equal(t, 5, cfg.Suite.HeartbeatTimeout)
	assert.Equal(t, 3, cfg.Suite.HoldDuration)
	assert.Equal(t, 10, cfg.Suite.ConcurrencyN)
	assert.Equal(t, 3, cfg.Suite.FanOutSessions)

	assert.Equal(t, "reports", cfg.Reporting.OutputDir)
	assert.Equal(t, "logs", cfg.Reporting.LogDir)
	assert.False(t, cfg.OpenAPI.Enabled)
	assert.Equal(t, "gpt-4", cfg.Triage.Model)
}

func TestLoadConfigFromFile(t *testing.T) {
	content := `
targets:
  api_base_url: "http://localhost:8080/api"
  realtime_url: "ws://localhost:5500"
suite:
  max_workers: 2
  concurrent_requests: 25
reporting:
  output_dir: "/tmp/reports"
  detailed: true
openapi:
  enabled: true
  doc_url: "http://localhost:8080/swagger.json"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api", cfg.Targets.APIBaseURL)
	assert.Equal(t, "ws://localhost:5500", cfg.Targets.RealtimeURL)
	assert.Equal(t, 2, cfg.Suite.MaxWorkers)
	assert.Equal(t, 25, cfg.Suite.ConcurrencyN)
	assert.Equal(t, "/tmp/reports", cfg.Reporting.OutputDir)
	assert.True(t, cfg.Reporting.Detailed)
	assert.True(t, cfg.OpenAPI.Enabled)

	// Unset fields still fall back to defaults.
	assert.Equal(t, "https://spells.pricedb.io/api", cfg.Targets.SpellsBaseURL)
	assert.Equal(t, 30, cfg.Suite.HTTPTimeout)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("targets: [not a map"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	content := `
targets:
  api_base_url: "http://from-file:8080/api"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("PRICEDB_API_URL", "http://from-env:9090/api")
	t.Setenv("PRICEDB_REALTIME_URL", "ws://from-env:5500")
	t.Setenv("TRIAGE_API_KEY", "sk-test")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:9090/api", cfg.Targets.APIBaseURL)
	assert.Equal(t, "ws://from-env:5500", cfg.Targets.RealtimeURL)
	assert.Equal(t, "sk-test", cfg.Triage.APIKey)
}
