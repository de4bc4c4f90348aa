package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

func secretsFilePath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "hintd", "secrets.yaml")
}

// secretsFile stores secrets by service and account in a 0600 YAML file,
// apart from the regular config. An empty path means secretsFilePath().
type secretsFile struct {
	path string
}

func (f secretsFile) file() string {
	if f.path != "" {
		return f.path
	}
	return secretsFilePath()
}

func (f secretsFile) read() (map[string]map[string]string, error) {
	data, err := os.ReadFile(f.file())
	if err != nil {
		return nil, err
	}
	secrets := make(map[string]map[string]string)
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return secrets, nil
}

func (f secretsFile) Get(service, account string) (string, error) {
	secrets, err := f.read()
	if err != nil {
		return "", err
	}
	val, ok := secrets[service][account]
	if !ok {
		return "", fmt.Errorf("secret %s/%s not set", service, account)
	}
	return strings.TrimSpace(val), nil
}

func (f secretsFile) Set(service, account, value string) error {
	secrets, err := f.read()
	if errors.Is(err, os.ErrNotExist) {
		secrets = make(map[string]map[string]string)
	} else if err != nil {
		return err
	}
	if secrets[service] == nil {
		secrets[service] = make(map[string]string)
	}
	secrets[service][account] = value

	out, err := yaml.Marshal(secrets)
	if err != nil {
		return err
	}
	return writeFileAtomic(f.file(), out, 0o600)
}
