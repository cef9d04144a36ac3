package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	EnvHTTPAddr           = "SHAPEX_STUDIO_HTTP_ADDR"
	EnvDBDriver           = "SHAPEX_STUDIO_DB_DRIVER"
	EnvDBDSN              = "SHAPEX_STUDIO_DB_DSN"
	EnvStageTimeout       = "SHAPEX_STUDIO_STAGE_TIMEOUT"
	EnvStaleSessionWindow = "SHAPEX_STUDIO_STALE_SESSION_WINDOW"
	EnvReapInterval       = "SHAPEX_STUDIO_REAP_INTERVAL"
	EnvWebhookURL         = "SHAPEX_STUDIO_WEBHOOK_URL"
	EnvAnthropicAPIKey    = "ANTHROPIC_API_KEY"
)

const (
	DefaultHTTPAddr           = ":8080"
	DefaultDBDriver           = "sqlite"
	DefaultDBDSN              = "studio.db"
	DefaultStageTimeout       = 5 * time.Minute
	DefaultStaleSessionWindow = 15 * time.Minute
	DefaultReapInterval       = time.Minute
)

// Config is the studio gateway's runtime configuration. Values resolve in
// three layers: defaults, then the optional YAML file, then environment.
type Config struct {
	HTTPAddr           string
	DBDriver           string
	DBDSN              string
	StageTimeout       time.Duration
	StaleSessionWindow time.Duration
	ReapInterval       time.Duration
	WebhookURL         string
	AnthropicAPIKey    string
}

func FromEnv() Config {
	cfg := defaults()
	applyEnv(&cfg)
	return cfg
}

func FromYAMLAndEnv() (Config, error) {
	cfg := defaults()

	fileCfg, err := loadFileConfig()
	if err != nil {
		return Config{}, err
	}
	if err := applyYAML(&cfg, fileCfg.Studio); err != nil {
		return Config{}, err
	}
	applyEnv(&cfg)

	return cfg, nil
}

func defaults() Config {
	return Config{
		HTTPAddr:           DefaultHTTPAddr,
		DBDriver:           DefaultDBDriver,
		DBDSN:              DefaultDBDSN,
		StageTimeout:       DefaultStageTimeout,
		StaleSessionWindow: DefaultStaleSessionWindow,
		ReapInterval:       DefaultReapInterval,
	}
}

func applyYAML(cfg *Config, source fileStudioConfig) error {
	if value := strings.TrimSpace(source.HTTPAddr); value != "" {
		cfg.HTTPAddr = value
	}
	if value := strings.TrimSpace(source.DBDriver); value != "" {
		cfg.DBDriver = strings.ToLower(value)
	}
	if value := strings.TrimSpace(source.DBDSN); value != "" {
		cfg.DBDSN = value
	}

	stageTimeout, err := parseOptionalDuration(source.StageTimeout, cfg.StageTimeout, "studio.stage_timeout")
	if err != nil {
		return err
	}
	cfg.StageTimeout = stageTimeout

	staleWindow, err := parseOptionalDuration(source.StaleSessionWindow, cfg.StaleSessionWindow, "studio.stale_session_window")
	if err != nil {
		return err
	}
	cfg.StaleSessionWindow = staleWindow

	reapInterval, err := parseOptionalDuration(source.ReapInterval, cfg.ReapInterval, "studio.reap_interval")
	if err != nil {
		return err
	}
	cfg.ReapInterval = reapInterval

	if value := strings.TrimSpace(source.WebhookURL); value != "" {
		cfg.WebhookURL = value
	}
	if value := strings.TrimSpace(source.AnthropicAPIKey); value != "" {
		cfg.AnthropicAPIKey = value
	}

	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = envOrDefault(EnvHTTPAddr, cfg.HTTPAddr)
	cfg.DBDriver = strings.ToLower(envOrDefault(EnvDBDriver, cfg.DBDriver))
	cfg.DBDSN = envOrDefault(EnvDBDSN, cfg.DBDSN)

	for _, entry := range []struct {
		key    string
		target *time.Duration
	}{
		{EnvStageTimeout, &cfg.StageTimeout},
		{EnvStaleSessionWindow, &cfg.StaleSessionWindow},
		{EnvReapInterval, &cfg.ReapInterval},
	} {
		if raw := envString(entry.key); raw != "" {
			parsed, err := time.ParseDuration(raw)
			if err == nil && parsed > 0 {
				*entry.target = parsed
			}
		}
	}

	cfg.WebhookURL = envOrDefault(EnvWebhookURL, cfg.WebhookURL)
	cfg.AnthropicAPIKey = envOrDefault(EnvAnthropicAPIKey, cfg.AnthropicAPIKey)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("%s must not be empty", EnvHTTPAddr)
	}
	switch strings.ToLower(strings.TrimSpace(c.DBDriver)) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%s must be sqlite or postgres", EnvDBDriver)
	}
	if strings.TrimSpace(c.DBDSN) == "" {
		return fmt.Errorf("%s must not be empty", EnvDBDSN)
	}
	if c.StageTimeout <= 0 {
		return fmt.Errorf("%s must be > 0", EnvStageTimeout)
	}
	if c.StaleSessionWindow <= 0 {
		return fmt.Errorf("%s must be > 0", EnvStaleSessionWindow)
	}
	if c.ReapInterval <= 0 {
		return fmt.Errorf("%s must be > 0", EnvReapInterval)
	}
	return nil
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envOrDefault(key, fallback string) string {
	value := envString(key)
	if value == "" {
		return fallback
	}
	return value
}

func parseOptionalDuration(raw string, fallback time.Duration, field string) (time.Duration, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration %q: %w", field, value, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be > 0", field)
	}
	return parsed, nil
}
