package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader. An empty path means no config file;
// defaults and environment variables still apply.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file and environment. Precedence, lowest
// to highest: defaults, config file, environment.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")

	// Environment variables: MADLEN_SERVER_PORT, MADLEN_LOGGING_LEVEL, ...
	v.SetEnvPrefix("MADLEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The credential keeps its original well-known names.
	_ = v.BindEnv("openrouter.api_key", "MADLEN_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("openrouter.base_url", "MADLEN_OPENROUTER_BASE_URL", "OPENROUTER_BASE_URL")
	_ = v.BindEnv("openrouter.site_url", "MADLEN_OPENROUTER_SITE_URL", "OPENROUTER_SITE_URL")
	_ = v.BindEnv("openrouter.app_name", "MADLEN_OPENROUTER_APP_NAME", "OPENROUTER_APP_NAME")
	_ = v.BindEnv("telemetry.otlp_endpoint", "MADLEN_TELEMETRY_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")

	if l.configPath != "" {
		if _, err := os.Stat(l.configPath); err != nil {
			return nil, fmt.Errorf("config file %s: %w", l.configPath, err)
		}
		v.SetConfigFile(l.configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
