package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "boardofone", cfg.Server.Name)
	assert.Equal(t, "development", cfg.Server.Environment)

	assert.Equal(t, 0.80, cfg.Quality.DedupThreshold)
	assert.Equal(t, 0.90, cfg.Quality.NearIdenticalThreshold)
	assert.Equal(t, 3, cfg.Safety.MinRounds)
	assert.Equal(t, 10, cfg.Safety.MaxRounds)
	assert.Equal(t, 1.00, cfg.Safety.MaxCostPerSessionUSD)
	assert.Equal(t, 0.15, cfg.Safety.MaxCostPerSubProblemUSD)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "boardofone", cfg.Server.Name)
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)

	os.Setenv("BOARDOFONE_SERVER_NAME", "test-server")
	os.Setenv("BOARDOFONE_SAFETY_MAX_ROUNDS", "20")
	os.Setenv("BOARDOFONE_QUALITY_DEDUP_THRESHOLD", "0.75")
	os.Setenv("BOARDOFONE_LOGGING_LEVEL", "debug")
	defer clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-server", cfg.Server.Name)
	assert.Equal(t, 20, cfg.Safety.MaxRounds)
	assert.Equal(t, 0.75, cfg.Quality.DedupThreshold)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	configJSON := `{
		"server": {"name": "file-server", "version": "2.0.0", "environment": "staging"},
		"safety": {"max_rounds": 15, "min_rounds": 2, "max_cost_per_session_usd": 2.5, "max_cost_per_subproblem_usd": 0.3},
		"quality": {"dedup_threshold": 0.85, "near_identical_threshold": 0.95, "dominance_share_max": 0.3},
		"logging": {"level": "warn", "format": "json"}
	}`

	require.NoError(t, os.WriteFile(configPath, []byte(configJSON), 0644))

	clearEnv(t)
	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, "file-server", cfg.Server.Name)
	assert.Equal(t, "staging", cfg.Server.Environment)
	assert.Equal(t, 15, cfg.Safety.MaxRounds)
	assert.Equal(t, 0.85, cfg.Quality.DedupThreshold)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	configJSON := `{"server": {"name": "file-server", "environment": "staging"}}`
	require.NoError(t, os.WriteFile(configPath, []byte(configJSON), 0644))

	clearEnv(t)
	os.Setenv("BOARDOFONE_SERVER_NAME", "env-server")
	defer clearEnv(t)

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, "env-server", cfg.Server.Name, "env overrides file")
	assert.Equal(t, "staging", cfg.Server.Environment, "file value preserved where not overridden")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid default", func(c *Config) {}, ""},
		{"empty server name", func(c *Config) { c.Server.Name = "" }, "server.name cannot be empty"},
		{"max rounds below min", func(c *Config) { c.Safety.MaxRounds = 1; c.Safety.MinRounds = 3 }, "max_rounds must be >= safety.min_rounds"},
		{"zero session cost cap", func(c *Config) { c.Safety.MaxCostPerSessionUSD = 0 }, "max_cost_per_session_usd must be > 0"},
		{"dedup threshold out of range", func(c *Config) { c.Quality.DedupThreshold = 1.5 }, "dedup_threshold must be in"},
		{"near-identical below dedup", func(c *Config) { c.Quality.NearIdenticalThreshold = c.Quality.DedupThreshold }, "near_identical_threshold must be >"},
		{"invalid checkpoint backend", func(c *Config) { c.Checkpoint.Backend = "redis" }, "checkpoint.backend must be"},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestToJSONAndSaveToFile(t *testing.T) {
	cfg := Default()
	data, err := cfg.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), "server")
	assert.Contains(t, string(data), "safety")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "saved-config.json")
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Server.Name, loaded.Server.Name)
}

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"BOARDOFONE_SERVER_NAME",
		"BOARDOFONE_SERVER_ENVIRONMENT",
		"BOARDOFONE_SAFETY_MAX_COST_PER_SESSION_USD",
		"BOARDOFONE_SAFETY_MAX_COST_PER_SUBPROBLEM_USD",
		"BOARDOFONE_SAFETY_MAX_ROUNDS",
		"BOARDOFONE_SAFETY_MIN_ROUNDS",
		"BOARDOFONE_SAFETY_MAX_STEPS",
		"BOARDOFONE_QUALITY_DEDUP_THRESHOLD",
		"BOARDOFONE_QUALITY_EXPLORATION_THRESHOLD",
		"BOARDOFONE_QUALITY_DOMINANCE_SHARE_MAX",
		"BOARDOFONE_LLM_PROVIDER",
		"BOARDOFONE_LLM_FAST_MODEL",
		"BOARDOFONE_LLM_STRONG_MODEL",
		"BOARDOFONE_CHECKPOINT_BACKEND",
		"BOARDOFONE_CHECKPOINT_PATH",
		"BOARDOFONE_CHECKPOINT_TTL_DAYS",
		"BOARDOFONE_LOGGING_LEVEL",
		"BOARDOFONE_LOGGING_FORMAT",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}
