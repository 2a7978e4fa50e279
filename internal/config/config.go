package config

import "time"

// Config is the full configuration of the chat backend.
type Config struct {
	// Env names the deployment environment (development, production).
	Env string `json:"env" mapstructure:"env"`

	// Server holds HTTP listener settings.
	Server ServerConfig `json:"server" mapstructure:"server"`

	// OpenRouter holds the completion API settings.
	OpenRouter OpenRouterConfig `json:"openrouter" mapstructure:"openrouter"`

	// History holds the conversation ledger settings.
	History HistoryConfig `json:"history" mapstructure:"history"`

	// Uploads holds file upload settings.
	Uploads UploadsConfig `json:"uploads" mapstructure:"uploads"`

	// ModelCache holds model catalog cache settings.
	ModelCache ModelCacheConfig `json:"model_cache" mapstructure:"model_cache"`

	// Telemetry holds tracing settings.
	Telemetry TelemetryConfig `json:"telemetry" mapstructure:"telemetry"`

	// Logging holds logger settings.
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// OpenRouterConfig holds the completion API settings.
type OpenRouterConfig struct {
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	SiteURL string `json:"site_url" mapstructure:"site_url"` // sent as HTTP-Referer
	AppName string `json:"app_name" mapstructure:"app_name"` // sent as X-Title
}

// HistoryConfig holds the conversation ledger settings.
type HistoryConfig struct {
	File string `json:"file" mapstructure:"file"`
}

// UploadsConfig holds file upload settings.
type UploadsConfig struct {
	Dir      string `json:"dir" mapstructure:"dir"`
	MaxBytes int64  `json:"max_bytes" mapstructure:"max_bytes"`
}

// ModelCacheConfig holds model catalog cache settings.
type ModelCacheConfig struct {
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`
	// BackgroundRefresh enables the periodic warm refresh of the catalog.
	BackgroundRefresh bool `json:"background_refresh" mapstructure:"background_refresh"`
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	ServiceName  string `json:"service_name" mapstructure:"service_name"`
	OTLPEndpoint string `json:"otlp_endpoint" mapstructure:"otlp_endpoint"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the configuration used when no file or environment
// overrides are present. Values mirror the original deployment defaults.
func DefaultConfig() *Config {
	return &Config{
		Env: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 4000,
		},
		OpenRouter: OpenRouterConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			SiteURL: "http://localhost:3000",
			AppName: "Madlen Chat",
		},
		History: HistoryConfig{
			File: "data/history.json",
		},
		Uploads: UploadsConfig{
			Dir:      "uploads",
			MaxBytes: 10 << 20,
		},
		ModelCache: ModelCacheConfig{
			TTL: 5 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "madlen-chat-backend",
			OTLPEndpoint: "http://localhost:4318/v1/traces",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}
