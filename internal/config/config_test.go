package config

import (
	"os"
	"path/filepath"
	"testing"

	"wearlog/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: wearlog
  environment: test
api:
  enabled: true
database:
  path: data/wearlog.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.True(t, cfg.API.HTTP.Enabled)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, "data/queue.db", cfg.Agent.QueuePath)
	assert.Equal(t, 8090, cfg.Agent.ListenPort)
	assert.Equal(t, models.DefaultRetryInitialDelay, cfg.Agent.Retry.InitialDelaySeconds)
	assert.Equal(t, models.DefaultRetryMaxDelay, cfg.Agent.Retry.MaxDelaySeconds)
	assert.Equal(t, float64(2), cfg.Agent.Retry.BackoffFactor)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("WEARLOG_API_KEY", "from-env")
	path := writeConfig(t, `
agent:
  server_url: http://localhost:8080
  api_key: ${WEARLOG_API_KEY}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Agent.APIKey)
}

func TestValidateRejectsServerWithoutDatabase(t *testing.T) {
	path := writeConfig(t, `
api:
  enabled: true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database path")
}

func TestValidateItems(t *testing.T) {
	err := ValidateItems([]models.Item{{Name: "Shirt"}, {Name: "Shirt"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate item name")

	err = ValidateItems([]models.Item{{ID: "a", Name: "Shirt"}, {ID: "a", Name: "Jeans"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate item ID")

	require.NoError(t, ValidateItems([]models.Item{{ID: "a", Name: "Shirt"}, {Name: "Jeans"}}))
}

func TestAgentProbeInterval(t *testing.T) {
	cfg := AgentConfig{ProbeIntervalSeconds: 30}
	assert.Equal(t, "30s", cfg.ProbeInterval().String())

	cfg = AgentConfig{}
	assert.Equal(t, "15s", cfg.ProbeInterval().String())
}
