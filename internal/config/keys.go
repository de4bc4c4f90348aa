package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

// keySpec binds a dotted config key to its environment variable and to the
// Config field it sets.
type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "HINTD_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "HINTD_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "storage.data_dir", typ: kString, env: "HINTD_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.retention_days", typ: kInt, env: "HINTD_STORAGE_RETENTION_DAYS",
		apply:   func(cfg *Config, v any) { cfg.Storage.RetentionDays = v.(int) },
		extract: func(cfg Config) any { return cfg.Storage.RetentionDays },
	},
	{
		key: "storage.log_requests", typ: kBool, env: "HINTD_STORAGE_LOG_REQUESTS",
		apply:   func(cfg *Config, v any) { cfg.Storage.LogRequests = v.(bool) },
		extract: func(cfg Config) any { return cfg.Storage.LogRequests },
	},
	{
		key: "log.level", typ: kString, env: "HINTD_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "engine.similarity_threshold", typ: kFloat, env: "HINTD_ENGINE_SIMILARITY_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Engine.SimilarityThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Engine.SimilarityThreshold },
	},
	{
		key: "engine.min_members", typ: kInt, env: "HINTD_ENGINE_MIN_MEMBERS",
		apply:   func(cfg *Config, v any) { cfg.Engine.MinMembers = v.(int) },
		extract: func(cfg Config) any { return cfg.Engine.MinMembers },
	},
	{
		key: "engine.due_fraction", typ: kFloat, env: "HINTD_ENGINE_DUE_FRACTION",
		apply:   func(cfg *Config, v any) { cfg.Engine.DueFraction = v.(float64) },
		extract: func(cfg Config) any { return cfg.Engine.DueFraction },
	},
	{
		key: "engine.lead_fraction", typ: kFloat, env: "HINTD_ENGINE_LEAD_FRACTION",
		apply:   func(cfg *Config, v any) { cfg.Engine.LeadFraction = v.(float64) },
		extract: func(cfg Config) any { return cfg.Engine.LeadFraction },
	},
	{
		key: "engine.round_minutes", typ: kInt, env: "HINTD_ENGINE_ROUND_MINUTES",
		apply:   func(cfg *Config, v any) { cfg.Engine.RoundMinutes = v.(int) },
		extract: func(cfg Config) any { return cfg.Engine.RoundMinutes },
	},
	{
		key: "hint.phrasebook_file", typ: kString, env: "HINTD_HINT_PHRASEBOOK_FILE",
		apply:   func(cfg *Config, v any) { cfg.Hint.PhrasebookFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Hint.PhrasebookFile },
	},
}

func parseValue(typ keyType, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch typ {
	case kInt:
		i, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", raw)
		}
		return i, nil
	case kFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", raw)
		}
		return f, nil
	case kBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q", raw)
		}
		return b, nil
	default:
		return raw, nil
	}
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// applyBackend copies stored values into cfg. A stored value that does not
// parse is an error: the file was written by hand and should be fixed.
func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		raw, ok, err := b.Get(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			return fmt.Errorf("config key %s: %w", s.key, err)
		}
		s.apply(cfg, v)
	}
	return nil
}

// applyEnvOverrides applies HINTD_* variables. Unparsable values are reported
// and skipped.
func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if s.env == "" || raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			warnf("ignoring env var %s: %v", s.env, err)
			continue
		}
		s.apply(cfg, v)
	}
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[WARN] "+format+"\n", args...)
}
