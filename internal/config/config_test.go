package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/docpoller/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"AIFORGED_CONFIG_FILE", "AIFORGED_ENDPOINT", "AIFORGED_API_KEY", "AIFORGED_USERNAME",
	"AIFORGED_PASSWORD", "AIFORGED_PROJECT_ID", "AIFORGED_SERVICE_ID",
	"AIFORGED_START_DATE_TIME_SPAN", "AIFORGED_INTERVAL", "AIFORGED_SCHEDULE",
	"AIFORGED_APP_NAME", "AIFORGED_TOKEN_PATH", "AIFORGED_CLIENT_ID",
	"AIFORGED_REQUEST_TIMEOUT", "AIFORGED_REQUESTS_PER_SECOND", "AIFORGED_SOURCE_STATUS",
	"AIFORGED_TARGET_STATUS", "AIFORGED_COMMENT", "AIFORGED_FIELD_DEFINITION_ID",
	"LOG_LEVEL", "LOG_PRETTY", "STATUS_PORT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_APIKeyFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("AIFORGED_API_KEY", "secret-key")
	t.Setenv("AIFORGED_PROJECT_ID", "12")
	t.Setenv("AIFORGED_SERVICE_ID", "34")
	t.Setenv("AIFORGED_START_DATE_TIME_SPAN", "1.00:00:00")
	t.Setenv("AIFORGED_INTERVAL", "00:00:30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, "secret-key", cfg.APIKey)
	assert.Equal(t, 12, cfg.ProjectID)
	assert.Equal(t, 34, cfg.ServiceID)
	assert.Equal(t, 24*time.Hour, cfg.Lookback)
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, domain.StatusCustomVerified, cfg.SourceStatus)
	assert.Equal(t, domain.StatusCustomProcessed, cfg.TargetStatus)
	assert.Equal(t, DefaultFieldDefinitionID, cfg.FieldDefinitionID)
	assert.True(t, cfg.UsesAPIKey())
	assert.Equal(t, "api_key", cfg.AuthMode())
}

func TestLoad_PasswordMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("AIFORGED_USERNAME", "worker@example.com")
	t.Setenv("AIFORGED_PASSWORD", "hunter2")
	t.Setenv("AIFORGED_PROJECT_ID", "1")
	t.Setenv("AIFORGED_SERVICE_ID", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.UsesAPIKey())
	assert.Equal(t, "password", cfg.AuthMode())
}

func TestLoad_MissingCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("AIFORGED_PROJECT_ID", "1")
	t.Setenv("AIFORGED_SERVICE_ID", "2")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required when no API key is set")
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("AIFORGED_API_KEY", "k")
	t.Setenv("AIFORGED_PROJECT_ID", "twelve")
	t.Setenv("AIFORGED_INTERVAL", "soon")
	t.Setenv("AIFORGED_SOURCE_STATUS", "Shredded")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AIFORGED_PROJECT_ID")
	assert.Contains(t, err.Error(), "AIFORGED_INTERVAL")
	assert.Contains(t, err.Error(), "AIFORGED_SOURCE_STATUS")
}

func TestLoad_ConfigFileWithEnvironmentOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "appsettings.yaml")
	content := `config:
  endpoint: https://aiforged.example.com
  apiKey: file-key
  projectId: 5
  serviceId: 6
  startDateTimeSpan: "7.00:00:00"
  interval: "00:01:00"
  sourceStatus: Processed
  fieldDefinitionId: 1001
  requestsPerSecond: 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("AIFORGED_CONFIG_FILE", path)
	t.Setenv("AIFORGED_SERVICE_ID", "60")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://aiforged.example.com", cfg.Endpoint)
	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, 5, cfg.ProjectID)
	assert.Equal(t, 60, cfg.ServiceID)
	assert.Equal(t, 7*24*time.Hour, cfg.Lookback)
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, domain.StatusProcessed, cfg.SourceStatus)
	assert.Equal(t, 1001, cfg.FieldDefinitionID)
	assert.Equal(t, 0.0, cfg.RequestsPerSecond)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("AIFORGED_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func validConfig() *Config {
	cfg := Default()
	cfg.APIKey = "k"
	cfg.ProjectID = 1
	cfg.ServiceID = 2
	return cfg
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.Schedule = "@every 10m"
	assert.NoError(t, cfg.Validate())

	cfg.Schedule = "whenever"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Endpoint = "not a url"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Interval = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.TargetStatus = domain.DocumentStatus(99)
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.StatusPort = 70000
	assert.Error(t, cfg.Validate())
}

func TestRedacted_OmitsCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Password = "hunter2"

	redacted := cfg.Redacted()
	for _, v := range redacted {
		assert.NotEqual(t, "k", v)
		assert.NotEqual(t, "hunter2", v)
	}
	assert.Equal(t, "api_key", redacted["auth_mode"])
	assert.Equal(t, "CustomVerified", redacted["source_status"])
}
