package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/orbitdesk/orbit/go-companion/internal/brain"
	"github.com/orbitdesk/orbit/go-companion/internal/engine"
	"github.com/orbitdesk/orbit/go-companion/internal/fsm"
)

// #region config-struct

// Config is the full companion configuration. Durations are whole seconds in
// the file; accessors convert. A config is applied whole or not at all:
// validation failures are fatal at startup and reject hot reloads entirely.
type Config struct {
	// Admission policy
	ConfidenceThreshold float32 `toml:"confidence_threshold"`
	GlobalCooldown      int     `toml:"global_cooldown"`
	PerIntentCooldown   int     `toml:"per_intent_cooldown"`
	DismissCooldown     int     `toml:"dismiss_cooldown"`
	SameIntentWindow    int     `toml:"same_intent_window"`
	MaxPopupsPerHour    int     `toml:"max_popups_per_hour"`

	// Behavior timings
	BubbleTimeout  int `toml:"bubble_timeout"`
	ExecuteTimeout int `toml:"execute_timeout"`

	// Loop
	PollInterval     int  `toml:"poll_interval"`
	GeneratorTimeout int  `toml:"generator_timeout"`
	Enabled          bool `toml:"enabled"`

	// Collaborators
	Mode           string `toml:"mode"` // auto | ollama | rule
	OllamaEndpoint string `toml:"ollama_endpoint"`
	OllamaModel    string `toml:"ollama_model"`
	DBPath         string `toml:"db_path"`
	ListenAddr     string `toml:"listen_addr"`
}

// Default returns the production configuration.
func Default() Config {
	return Config{
		ConfidenceThreshold: 0.7,
		GlobalCooldown:      60,
		PerIntentCooldown:   180,
		DismissCooldown:     600,
		SameIntentWindow:    900,
		MaxPopupsPerHour:    5,
		BubbleTimeout:       60,
		ExecuteTimeout:      10,
		PollInterval:        10,
		GeneratorTimeout:    5,
		Enabled:             true,
		Mode:                "auto",
		OllamaEndpoint:      "http://localhost:11434",
		OllamaModel:         "llama3.2",
		DBPath:              "companion.db",
		ListenAddr:          "localhost:8012",
	}
}

// #endregion config-struct

// #region load

// Load reads the TOML file at path (missing file falls back to defaults),
// applies environment overrides, and validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// No file: defaults + env.
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays ORBIT_* environment variables.
func applyEnv(cfg *Config) {
	cfg.DBPath = envOr("ORBIT_DB", cfg.DBPath)
	cfg.ListenAddr = envOr("ORBIT_ADDR", cfg.ListenAddr)
	cfg.OllamaEndpoint = envOr("ORBIT_OLLAMA_ENDPOINT", cfg.OllamaEndpoint)
	cfg.OllamaModel = envOr("ORBIT_OLLAMA_MODEL", cfg.OllamaModel)
	cfg.Mode = envOr("ORBIT_MODE", cfg.Mode)
	if v := os.Getenv("ORBIT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Enabled = b
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion load

// #region validate

// Validate rejects configurations the runtime must never see.
func (c Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold %.2f outside [0, 1]", c.ConfidenceThreshold)
	}
	durations := []struct {
		name  string
		value int
	}{
		{"global_cooldown", c.GlobalCooldown},
		{"per_intent_cooldown", c.PerIntentCooldown},
		{"dismiss_cooldown", c.DismissCooldown},
		{"same_intent_window", c.SameIntentWindow},
		{"bubble_timeout", c.BubbleTimeout},
		{"execute_timeout", c.ExecuteTimeout},
	}
	for _, d := range durations {
		if d.value < 0 {
			return fmt.Errorf("%s must not be negative, got %d", d.name, d.value)
		}
	}
	if c.MaxPopupsPerHour <= 0 {
		return fmt.Errorf("max_popups_per_hour must be positive, got %d", c.MaxPopupsPerHour)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %d", c.PollInterval)
	}
	if c.GeneratorTimeout <= 0 {
		return fmt.Errorf("generator_timeout must be positive, got %d", c.GeneratorTimeout)
	}
	return nil
}

// #endregion validate

// #region accessors

// Engine projects the admission policy subset.
func (c Config) Engine() engine.Config {
	return engine.Config{
		ConfidenceThreshold: c.ConfidenceThreshold,
		GlobalCooldown:      time.Duration(c.GlobalCooldown) * time.Second,
		PerIntentCooldown:   time.Duration(c.PerIntentCooldown) * time.Second,
		DismissCooldown:     time.Duration(c.DismissCooldown) * time.Second,
		SameIntentWindow:    time.Duration(c.SameIntentWindow) * time.Second,
		MaxPopupsPerHour:    c.MaxPopupsPerHour,
	}
}

// FSM projects the behavior timing subset.
func (c Config) FSM() fsm.Config {
	return fsm.Config{
		BubbleTimeout:   time.Duration(c.BubbleTimeout) * time.Second,
		ExecuteTimeout:  time.Duration(c.ExecuteTimeout) * time.Second,
		DismissCooldown: time.Duration(c.DismissCooldown) * time.Second,
	}
}

// PollEvery returns the snapshot polling interval.
func (c Config) PollEvery() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// GeneratorDeadline returns the candidate-generator call budget.
func (c Config) GeneratorDeadline() time.Duration {
	return time.Duration(c.GeneratorTimeout) * time.Second
}

// BrainMode returns the parsed generator mode.
func (c Config) BrainMode() brain.Mode {
	return brain.ParseMode(c.Mode)
}

// #endregion accessors
