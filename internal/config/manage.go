package config

import (
	"fmt"
)

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all config key/value pairs from the current config.
// Secrets are reported as set or unset, never by value.
func ShowAll(cfg Config) []KeyInfo {
	result := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		val := fmt.Sprintf("%v", s.extract(cfg))
		if s.secret {
			val = "(unset)"
			if s.extract(cfg) != "" {
				val = "(set)"
			}
		}
		result = append(result, KeyInfo{Key: s.key, EnvVar: s.env, Value: val})
	}
	return result
}

// secretSetter stores a secret outside the regular config file.
type secretSetter interface {
	Set(service, account, value string) error
}

// SetKey validates value against the key's type and persists it. The API
// token goes to the secrets file instead of the config file.
func SetKey(key, value string) error {
	return setKeyWith(newPlatformBackend(), secretsFile{}, key, value)
}

func setKeyWith(b ConfigBackend, secrets secretSetter, key, value string) error {
	s, ok := lookupSpec(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return secrets.Set("hintd", "api_token", value)
	}

	v, err := parseValue(s.typ, value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	cfg := Default()
	s.apply(&cfg, v)
	if err := cfg.validate(); err != nil {
		return err
	}
	return b.Set(key, v)
}

// ValidKeys returns the list of config key names accepted by SetKey.
func ValidKeys() []string {
	keys := make([]string, 0, len(specs))
	for _, s := range specs {
		keys = append(keys, s.key)
	}
	return keys
}
