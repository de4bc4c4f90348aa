package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "hintd-data"
		}
	}
	return filepath.Join(dir, "hintd")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "hintd", "config.yaml")
}

// fileBackend keeps config in a YAML file with one mapping per section:
//
//	server:
//	  port: 4100
//	engine:
//	  due_fraction: 0.5
type fileBackend struct {
	path string
	doc  map[string]map[string]any
}

func newPlatformBackend() ConfigBackend {
	return newFileBackend(configFilePath())
}

// newFileBackend reads path if it exists. An unreadable or malformed file is
// reported and treated as empty.
func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, doc: make(map[string]map[string]any)}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		warnf("could not read config file %s: %v. Using default values.", path, err)
	case len(bytes.TrimSpace(data)) > 0:
		if err := yaml.Unmarshal(data, &b.doc); err != nil {
			warnf("could not parse config file %s: %v. Using default values.", path, err)
			b.doc = make(map[string]map[string]any)
		}
	}
	return b
}

func splitKey(key string) (section, name string, err error) {
	section, name, ok := strings.Cut(key, ".")
	if !ok || section == "" || name == "" {
		return "", "", fmt.Errorf("config key %q is not section.name", key)
	}
	return section, name, nil
}

func (b *fileBackend) Get(key string) (string, bool, error) {
	section, name, err := splitKey(key)
	if err != nil {
		return "", false, err
	}
	v, ok := b.doc[section][name]
	if !ok || v == nil {
		return "", false, nil
	}
	switch val := v.(type) {
	case string:
		return val, true, nil
	case int:
		return strconv.Itoa(val), true, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true, nil
	case bool:
		return strconv.FormatBool(val), true, nil
	default:
		return "", true, fmt.Errorf("%s: unsupported value of type %T", key, v)
	}
}

func (b *fileBackend) Set(key string, val any) error {
	section, name, err := splitKey(key)
	if err != nil {
		return err
	}
	if b.doc[section] == nil {
		b.doc[section] = make(map[string]any)
	}
	b.doc[section][name] = val
	return b.save()
}

func (b *fileBackend) Delete(key string) error {
	section, name, err := splitKey(key)
	if err != nil {
		return err
	}
	delete(b.doc[section], name)
	if len(b.doc[section]) == 0 {
		delete(b.doc, section)
	}
	return b.save()
}

func (b *fileBackend) save() error {
	data, err := yaml.Marshal(b.doc)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return writeFileAtomic(b.path, data, 0o600)
}

// writeFileAtomic replaces path with data so readers never see a partial file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
