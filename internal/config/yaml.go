package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigFile           = "SHAPEX_STUDIO_CONFIG_FILE"
	defaultConfigFileName   = "config.yaml"
	alternateConfigFileName = "config.yml"
)

type fileConfig struct {
	Version int              `yaml:"version"`
	Studio  fileStudioConfig `yaml:"studio"`
}

type fileStudioConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	DBDriver           string `yaml:"db_driver"`
	DBDSN              string `yaml:"db_dsn"`
	StageTimeout       string `yaml:"stage_timeout"`
	StaleSessionWindow string `yaml:"stale_session_window"`
	ReapInterval       string `yaml:"reap_interval"`
	WebhookURL         string `yaml:"webhook_url"`
	AnthropicAPIKey    string `yaml:"anthropic_api_key"`
}

func loadFileConfig() (fileConfig, error) {
	path, ok, err := resolveConfigFilePath()
	if err != nil {
		return fileConfig{}, err
	}
	if !ok {
		return fileConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("decode config file %s: %w", path, err)
	}

	return cfg, nil
}

func resolveConfigFilePath() (string, bool, error) {
	if explicit := envString(EnvConfigFile); explicit != "" {
		info, err := os.Stat(explicit)
		if err != nil {
			return "", false, fmt.Errorf("config file %s: %w", explicit, err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config file %s is a directory", explicit)
		}
		return explicit, true, nil
	}

	for _, candidate := range []string{defaultConfigFileName, alternateConfigFileName} {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", false, fmt.Errorf("config path %s is a directory", candidate)
			}
			return candidate, true, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("stat config path %s: %w", candidate, err)
		}
	}
	return "", false, nil
}
