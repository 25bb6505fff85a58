package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEnv sets up environment variables for testing
func setupEnv(t *testing.T, envVars map[string]string) func() {
	// Save current environment values
	originalValues := make(map[string]string)
	for name := range envVars {
		originalValues[name] = os.Getenv(name)
	}

	for name, value := range envVars {
		err := os.Setenv(name, value)
		require.NoError(t, err, "Failed to set environment variable %s", name)
	}

	return func() {
		for name, value := range originalValues {
			if value == "" {
				os.Unsetenv(name)
			} else {
				os.Setenv(name, value)
			}
		}
	}
}

// TestLoadDefaults verifies the defaults used when nothing is configured.
func TestLoadDefaults(t *testing.T) {
	cleanup := setupEnv(t, map[string]string{
		"STUDBUD_SERVER_PORT":      "",
		"STUDBUD_SERVER_LOG_LEVEL": "",
		"STUDBUD_LLM_PROVIDER":     "",
		"STUDBUD_LLM_API_KEY":      "",
	})
	defer cleanup()

	cfg, err := Load()

	require.NoError(t, err, "Load() should not return an error with default values")
	require.NotNil(t, cfg)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Empty(t, cfg.LLM.APIKey, "an empty API key is accepted at load time")
	assert.Equal(t, int64(4), cfg.LLM.MaxConcurrent)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 100, cfg.Content.MinAlphanumeric)
	assert.Equal(t, int64(20<<20), cfg.Content.MaxFileBytes)
	assert.Equal(t, 10, cfg.Session.DefaultCount)
	assert.Equal(t, "FLASHCARDS", cfg.Session.DefaultMode)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)
}

// TestLoadFromEnv verifies that the Load function correctly reads values from environment variables.
func TestLoadFromEnv(t *testing.T) {
	cleanup := setupEnv(t, map[string]string{
		"STUDBUD_SERVER_PORT":              "9090",
		"STUDBUD_SERVER_LOG_LEVEL":         "debug",
		"STUDBUD_LLM_PROVIDER":             "cerebras",
		"STUDBUD_LLM_API_KEY":              "test-api-key",
		"STUDBUD_LLM_MODEL":                "llama3.3-70b",
		"STUDBUD_LLM_TIMEOUT":              "45s",
		"STUDBUD_CONTENT_MIN_ALPHANUMERIC": "50",
		"STUDBUD_AUTH_SESSION_SECRET":      "thisisasecretkeythatis32charslong!!",
	})
	defer cleanup()

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "cerebras", cfg.LLM.Provider)
	assert.Equal(t, "test-api-key", cfg.LLM.APIKey)
	assert.Equal(t, "llama3.3-70b", cfg.LLM.ModelName)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 50, cfg.Content.MinAlphanumeric)
	assert.Equal(t, "thisisasecretkeythatis32charslong!!", cfg.Auth.SessionSecret)
}

// TestLoadValidationErrors verifies that the Load function correctly validates the configuration.
func TestLoadValidationErrors(t *testing.T) {
	testCases := []struct {
		name    string
		envVars map[string]string
	}{
		{
			name:    "Invalid port number",
			envVars: map[string]string{"STUDBUD_SERVER_PORT": "999999"},
		},
		{
			name:    "Invalid log level",
			envVars: map[string]string{"STUDBUD_SERVER_LOG_LEVEL": "verbose"},
		},
		{
			name:    "Unknown provider",
			envVars: map[string]string{"STUDBUD_LLM_PROVIDER": "mystery"},
		},
		{
			name:    "Short session secret",
			envVars: map[string]string{"STUDBUD_AUTH_SESSION_SECRET": "too-short"},
		},
		{
			name:    "Default count out of range",
			envVars: map[string]string{"STUDBUD_SESSION_DEFAULT_COUNT": "101"},
		},
		{
			name:    "Invalid base URL",
			envVars: map[string]string{"STUDBUD_LLM_BASE_URL": "not a url"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cleanup := setupEnv(t, tc.envVars)
			defer cleanup()

			cfg, err := Load()

			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), "validation failed")
		})
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studbud.yaml")
	content := `
server:
  port: 7070
llm:
  provider: openai
  base_url: https://api.cerebras.ai/v1
session:
  default_count: 25
  default_mode: QUIZ
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cleanup := setupEnv(t, map[string]string{"STUDBUD_SERVER_PORT": "7171"})
	defer cleanup()

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7171, cfg.Server.Port, "environment takes precedence over the file")
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "https://api.cerebras.ai/v1", cfg.LLM.BaseURL)
	assert.Equal(t, 25, cfg.Session.DefaultCount)
	assert.Equal(t, "QUIZ", cfg.Session.DefaultMode)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
