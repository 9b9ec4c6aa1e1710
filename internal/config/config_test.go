package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("ELEVENLABS_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultBaseURL, cfg.OpenRouter.BaseURL)
	assert.Equal(t, DefaultModel, cfg.OpenRouter.Model)
	assert.Equal(t, DefaultImageModel, cfg.OpenRouter.ImageModel)
	assert.Equal(t, DefaultStorageDir, cfg.Storage.Directory)
	assert.Equal(t, DefaultTelemetrySize, cfg.Telemetry.BufferSize)
}

func TestLoadParsesYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  allowed_origins: ["https://app.example.com"]
openrouter:
  api_key: from-file
  model: openai/gpt-4o
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "from-file", cfg.OpenRouter.APIKey)
	assert.Equal(t, "openai/gpt-4o", cfg.OpenRouter.Model)
	// Unset fields still receive defaults.
	assert.Equal(t, DefaultImageModel, cfg.OpenRouter.ImageModel)
}

func TestEnvironmentFallbackForCredentials(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.OpenRouter.APIKey)
}

func TestFileCredentialWinsOverEnvironment(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "from-env")
	path := writeConfig(t, `
openrouter:
  api_key: from-file
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.OpenRouter.APIKey)
}

func TestValidateRejectsBadPort(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 99999
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidateRejectsEmptyOrigin(t *testing.T) {
	path := writeConfig(t, `
server:
  allowed_origins: [""]
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowed_origins")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
