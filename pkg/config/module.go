package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DEFAULT []byte

func readFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch filepath.Ext(path) {
	case ".json":
		return json.Unmarshal(data, config)
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	}

	return fmt.Errorf(
		"not in a valid format",
	)
}

// Process starts from the default configuration, merges the provided files
// over it in order and then applies any TUNDRA_* environment variables. Keys
// missing from a file keep their earlier values; lists are replaced whole.
func Process(configPaths []string) (*Config, error) {
	config := Config{}
	if err := yaml.Unmarshal(DEFAULT, &config); err != nil {
		return nil, fmt.Errorf(
			"invalid default config file: %v",
			err,
		)
	}

	for _, path := range configPaths {
		if err := readFile(path, &config); err != nil {
			return nil, fmt.Errorf(
				"could not process config file %s: %v",
				path,
				err,
			)
		}
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf(
			"could not read environment: %v",
			err,
		)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Dump renders a configuration as YAML.
func Dump(config *Config) ([]byte, error) {
	return yaml.Marshal(config)
}
