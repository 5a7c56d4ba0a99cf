package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables use the
// CERTSCAN_ prefix with underscores for nesting (e.g. CERTSCAN_SERVER_PORT)
// and take precedence over file values. Returns a validated Config or an
// error describing what failed.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; env vars and defaults carry it.
	}

	v.SetEnvPrefix("CERTSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults seeds production-shaped limits; everything is overridable per
// environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)

	// Secrets default empty so viper knows the keys; AutomaticEnv only
	// surfaces values for registered keys during Unmarshal, and validation
	// rejects the empty values if nothing supplies them.
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.use_ssl", false)

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)
	v.SetDefault("llm.max_prompt_chars", 6000)
	v.SetDefault("llm.calls_per_minute", 50)

	v.SetDefault("pipeline.worker_count", 8)
	v.SetDefault("pipeline.queue_capacity", 1000)
	v.SetDefault("pipeline.job_timeout_seconds", 300)
	v.SetDefault("pipeline.max_file_size_mb", 50)
	v.SetDefault("pipeline.cache_ttl_hours", 24)
	v.SetDefault("pipeline.claim_lease_seconds", 360)
	v.SetDefault("pipeline.status_ttl_seconds", 3600)
	v.SetDefault("pipeline.terminal_retention_seconds", 900)
	v.SetDefault("pipeline.reconcile_interval_seconds", 60)
	v.SetDefault("pipeline.grace_margin_seconds", 60)
}
