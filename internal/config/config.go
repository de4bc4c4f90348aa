package config

import (
	"fmt"
	"strings"

	"github.com/kalambet/hintd/internal/engine"
	"github.com/kalambet/hintd/internal/notes"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
	Engine  EngineConfig
	Hint    HintConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type StorageConfig struct {
	DataDir       string
	RetentionDays int
	// LogRequests keeps each request's note history in the suggestion log.
	LogRequests bool
}

type LogConfig struct {
	Level string
}

type EngineConfig struct {
	SimilarityThreshold float64
	MinMembers          int
	DueFraction         float64
	LeadFraction        float64
	RoundMinutes        int
}

type HintConfig struct {
	PhrasebookFile string
}

// Default returns the built-in configuration, before any file or environment
// overrides.
func Default() Config {
	d := engine.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir:       defaultDataDir(),
			RetentionDays: 30,
		},
		Log: LogConfig{
			Level: "info",
		},
		Engine: EngineConfig{
			SimilarityThreshold: d.SimilarityThreshold,
			MinMembers:          d.MinMembers,
			DueFraction:         d.DueFraction,
			LeadFraction:        d.LeadFraction,
			RoundMinutes:        d.RoundMinutes,
		},
	}
}

// Load reads configuration from the YAML file at
// $XDG_CONFIG_HOME/hintd/config.yaml, then applies HINTD_* environment
// overrides. The API token is a secret: it is read from HINTD_API_TOKEN or,
// failing that, from the secrets file under $XDG_DATA_HOME/hintd.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), secretsFile{})
}

// keychain abstracts secret storage for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := Default()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Server.APIToken == "" {
		if token, err := kc.Get("hintd", "api_token"); err == nil && token != "" {
			cfg.Server.APIToken = token
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// EngineConfig converts the engine section into engine.Config with the given
// category labels.
func (c Config) EngineConfig(labels map[notes.CategoryType]string) engine.Config {
	return engine.Config{
		SimilarityThreshold: c.Engine.SimilarityThreshold,
		MinMembers:          c.Engine.MinMembers,
		DueFraction:         c.Engine.DueFraction,
		LeadFraction:        c.Engine.LeadFraction,
		DisableLead:         c.Engine.LeadFraction == 0,
		RoundMinutes:        c.Engine.RoundMinutes,
		Labels:              labels,
	}
}

func (c Config) validate() error {
	switch {
	case c.Server.Port < 1 || c.Server.Port > 65535:
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	case c.Storage.DataDir == "":
		return fmt.Errorf("storage.data_dir is empty")
	case c.Storage.RetentionDays < 0:
		return fmt.Errorf("storage.retention_days must not be negative, got %d", c.Storage.RetentionDays)
	case c.Engine.SimilarityThreshold <= 0 || c.Engine.SimilarityThreshold > 1:
		return fmt.Errorf("engine.similarity_threshold must be in (0, 1], got %v", c.Engine.SimilarityThreshold)
	case c.Engine.MinMembers < 2:
		return fmt.Errorf("engine.min_members must be at least 2, got %d", c.Engine.MinMembers)
	case c.Engine.DueFraction <= 0:
		return fmt.Errorf("engine.due_fraction must be positive, got %v", c.Engine.DueFraction)
	case c.Engine.LeadFraction < 0 || c.Engine.LeadFraction >= 1:
		return fmt.Errorf("engine.lead_fraction must be in [0, 1), got %v", c.Engine.LeadFraction)
	case c.Engine.RoundMinutes < 1 || c.Engine.RoundMinutes > 60:
		return fmt.Errorf("engine.round_minutes must be in [1, 60], got %d", c.Engine.RoundMinutes)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}
