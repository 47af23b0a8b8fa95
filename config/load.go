package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load reads the config file at path, picking the decoder by file extension.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed opening config: %w", err)
	}
	defer f.Close()

	var conf Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.NewDecoder(f).Decode(&conf)
	case ".yaml", ".yml":
		err = yaml.NewDecoder(f).Decode(&conf)
	case ".json":
		err = json.NewDecoder(f).Decode(&conf)
	default:
		return nil, fmt.Errorf("unknown config format %q", filepath.Ext(path))
	}

	if err != nil {
		return nil, fmt.Errorf("failed decoding config: %w", err)
	}

	conf.Updater.Config = expandEnv(conf.Updater.Config)

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return &conf, nil
}

// Validate rejects configs the daemon cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Record.Type == "" {
		errs = append(errs, errors.New("record.type is required"))
	}
	if c.Record.Name == "" {
		errs = append(errs, errors.New("record.name is required"))
	}
	if len(c.Fetcher.Sources) == 0 {
		errs = append(errs, errors.New("fetcher.sources needs at least one source"))
	}
	if c.Updater.Type == "" {
		errs = append(errs, errors.New("updater.type is required"))
	}

	if len(errs) != 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func expandEnv(m map[string]any) map[string]any {
	for k, v := range m {
		switch v := v.(type) {
		case string:
			m[k] = os.ExpandEnv(v)
		case map[string]any:
			m[k] = expandEnv(v)
		}
	}
	return m
}
