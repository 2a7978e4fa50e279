package config

import "fmt"

// Validate checks a loaded configuration for values that cannot work.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.OpenRouter.BaseURL == "" {
		return fmt.Errorf("openrouter.base_url cannot be empty")
	}
	if cfg.History.File == "" {
		return fmt.Errorf("history.file cannot be empty")
	}
	if cfg.Uploads.Dir == "" {
		return fmt.Errorf("uploads.dir cannot be empty")
	}
	if cfg.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("uploads.max_bytes must be positive, got %d", cfg.Uploads.MaxBytes)
	}
	if cfg.ModelCache.TTL <= 0 {
		return fmt.Errorf("model_cache.ttl must be positive, got %s", cfg.ModelCache.TTL)
	}

	switch cfg.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of trace, debug, info, warn, error; got %q", cfg.Logging.Level)
	}

	return nil
}
