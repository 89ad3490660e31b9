// Package config provides configuration management for the deliberation
// engine.
//
// Configuration can be loaded from multiple sources (in order of
// precedence):
//  1. Environment variables (highest priority)
//  2. Configuration file (JSON)
//  3. Default values (lowest priority)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config represents the complete engine configuration.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Safety     SafetyConfig     `json:"safety"`
	Quality    QualityConfig    `json:"quality"`
	LLM        LLMConfig        `json:"llm"`
	Embeddings EmbeddingsConfig `json:"embeddings"`
	Checkpoint CheckpointConfig `json:"checkpoint"`
	Logging    LoggingConfig    `json:"logging"`
}

// ServerConfig contains process-level configuration.
type ServerConfig struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// SafetyConfig holds the cost/time/recursion safety limits (spec §4.14, §6).
type SafetyConfig struct {
	MaxCostPerSessionUSD        float64 `json:"max_cost_per_session_usd"`
	MaxCostPerSubProblemUSD     float64 `json:"max_cost_per_subproblem_usd"`
	MaxDurationPerSubProblemSec int     `json:"max_duration_per_subproblem_sec"`
	MaxRounds                   int     `json:"max_rounds"`
	MinRounds                   int     `json:"min_rounds"`
	MaxSteps                    int     `json:"max_steps"`
	MaxSubProblems              int     `json:"max_sub_problems"`
}

// QualityConfig holds the thresholds used by convergence/dedup/facilitator
// scoring (spec §4.10, §4.9).
type QualityConfig struct {
	DedupThreshold           float64 `json:"dedup_threshold"`
	NearIdenticalThreshold   float64 `json:"near_identical_threshold"`
	ExplorationThreshold     float64 `json:"exploration_threshold"`
	FocusThreshold           float64 `json:"focus_threshold"`
	ConvergenceVoteThreshold float64 `json:"convergence_vote_threshold"`
	DominanceShareMax        float64 `json:"dominance_share_max"`
	ConsecutiveSpeakerMax    int     `json:"consecutive_speaker_max"`
}

// LLMConfig selects broker models per tier and bounds retry behavior.
type LLMConfig struct {
	FastModel      string `json:"fast_model"`
	StrongModel    string `json:"strong_model"`
	Provider       string `json:"provider"` // "anthropic" or "openai"
	MaxRetries     int    `json:"max_retries"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// EmbeddingsConfig mirrors the teacher's opt-in embeddings config, scoped to
// what the deliberation engine needs for semantic dedup.
type EmbeddingsConfig struct {
	Enabled  bool   `json:"enabled"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// CheckpointConfig controls the durable checkpoint store.
type CheckpointConfig struct {
	Backend    string `json:"backend"` // "memory" or "sqlite"
	Path       string `json:"path"`
	TTLDays    int    `json:"ttl_days"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level            string `json:"level"`
	Format           string `json:"format"`
	EnableTimestamps bool   `json:"enable_timestamps"`
}

// Default returns the default configuration with the numeric defaults
// named in the specification (§6).
func Default() Config {
	return Config{
		Server: ServerConfig{
			Name:        "boardofone",
			Version:     "1.0.0",
			Environment: "development",
		},
		Safety: SafetyConfig{
			MaxCostPerSessionUSD:        1.00,
			MaxCostPerSubProblemUSD:     0.15,
			MaxDurationPerSubProblemSec: 180,
			MaxRounds:                   10,
			MinRounds:                   3,
			MaxSteps:                    200,
			MaxSubProblems:              12,
		},
		Quality: QualityConfig{
			DedupThreshold:           0.80,
			NearIdenticalThreshold:   0.90,
			ExplorationThreshold:     0.60,
			FocusThreshold:           0.50,
			ConvergenceVoteThreshold: 0.70,
			DominanceShareMax:        0.25,
			ConsecutiveSpeakerMax:    3,
		},
		LLM: LLMConfig{
			FastModel:      "claude-haiku-4-5",
			StrongModel:    "claude-sonnet-4-5-20250929",
			Provider:       "anthropic",
			MaxRetries:     3,
			TimeoutSeconds: 120,
		},
		Embeddings: EmbeddingsConfig{
			Enabled:  true,
			Provider: "voyage",
			Model:    "voyage-3-lite",
		},
		Checkpoint: CheckpointConfig{
			Backend: "memory",
			Path:    "boardofone.db",
			TTLDays: 7,
		},
		Logging: LoggingConfig{
			Level:            "info",
			Format:           "text",
			EnableTimestamps: true,
		},
	}
}

// Load loads configuration from environment variables and applies defaults.
func Load() (Config, error) {
	cfg := Default()
	if err := cfg.loadFromEnv(); err != nil {
		return Config{}, fmt.Errorf("failed to load from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a JSON file, then applies
// environment overrides on top.
func LoadFromFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.loadFromEnv(); err != nil {
		return Config{}, fmt.Errorf("failed to load from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromEnv loads configuration from environment variables.
// Environment variables follow the pattern BOARDOFONE_<SECTION>_<KEY>,
// e.g. BOARDOFONE_SAFETY_MAX_ROUNDS, BOARDOFONE_LLM_PROVIDER.
func (c *Config) loadFromEnv() error {
	if v := os.Getenv("BOARDOFONE_SERVER_NAME"); v != "" {
		c.Server.Name = v
	}
	if v := os.Getenv("BOARDOFONE_SERVER_ENVIRONMENT"); v != "" {
		c.Server.Environment = v
	}

	if v := os.Getenv("BOARDOFONE_SAFETY_MAX_COST_PER_SESSION_USD"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			c.Safety.MaxCostPerSessionUSD = n
		}
	}
	if v := os.Getenv("BOARDOFONE_SAFETY_MAX_COST_PER_SUBPROBLEM_USD"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			c.Safety.MaxCostPerSubProblemUSD = n
		}
	}
	if v := os.Getenv("BOARDOFONE_SAFETY_MAX_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Safety.MaxRounds = n
		}
	}
	if v := os.Getenv("BOARDOFONE_SAFETY_MIN_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Safety.MinRounds = n
		}
	}
	if v := os.Getenv("BOARDOFONE_SAFETY_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Safety.MaxSteps = n
		}
	}

	if v := os.Getenv("BOARDOFONE_QUALITY_DEDUP_THRESHOLD"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			c.Quality.DedupThreshold = n
		}
	}
	if v := os.Getenv("BOARDOFONE_QUALITY_EXPLORATION_THRESHOLD"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			c.Quality.ExplorationThreshold = n
		}
	}
	if v := os.Getenv("BOARDOFONE_QUALITY_DOMINANCE_SHARE_MAX"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			c.Quality.DominanceShareMax = n
		}
	}

	if v := os.Getenv("BOARDOFONE_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("BOARDOFONE_LLM_FAST_MODEL"); v != "" {
		c.LLM.FastModel = v
	}
	if v := os.Getenv("BOARDOFONE_LLM_STRONG_MODEL"); v != "" {
		c.LLM.StrongModel = v
	}

	if v := os.Getenv("BOARDOFONE_CHECKPOINT_BACKEND"); v != "" {
		c.Checkpoint.Backend = v
	}
	if v := os.Getenv("BOARDOFONE_CHECKPOINT_PATH"); v != "" {
		c.Checkpoint.Path = v
	}
	if v := os.Getenv("BOARDOFONE_CHECKPOINT_TTL_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Checkpoint.TTLDays = n
		}
	}

	if v := os.Getenv("BOARDOFONE_LOGGING_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("BOARDOFONE_LOGGING_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return fmt.Errorf("server.name cannot be empty")
	}
	if c.Safety.MinRounds < 1 {
		return fmt.Errorf("safety.min_rounds must be >= 1")
	}
	if c.Safety.MaxRounds < c.Safety.MinRounds {
		return fmt.Errorf("safety.max_rounds must be >= safety.min_rounds")
	}
	if c.Safety.MaxCostPerSessionUSD <= 0 {
		return fmt.Errorf("safety.max_cost_per_session_usd must be > 0")
	}
	if c.Safety.MaxCostPerSubProblemUSD <= 0 {
		return fmt.Errorf("safety.max_cost_per_subproblem_usd must be > 0")
	}
	if c.Quality.DedupThreshold <= 0 || c.Quality.DedupThreshold >= 1 {
		return fmt.Errorf("quality.dedup_threshold must be in (0, 1)")
	}
	if c.Quality.NearIdenticalThreshold <= c.Quality.DedupThreshold {
		return fmt.Errorf("quality.near_identical_threshold must be > quality.dedup_threshold")
	}
	if c.Quality.DominanceShareMax <= 0 || c.Quality.DominanceShareMax >= 1 {
		return fmt.Errorf("quality.dominance_share_max must be in (0, 1)")
	}
	if c.Checkpoint.Backend != "memory" && c.Checkpoint.Backend != "sqlite" {
		return fmt.Errorf("checkpoint.backend must be 'memory' or 'sqlite'")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	return nil
}

// ToJSON serializes the configuration to JSON.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// SaveToFile saves the configuration to a JSON file.
func (c *Config) SaveToFile(path string) error {
	data, err := c.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
