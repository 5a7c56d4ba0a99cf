package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"    validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"  validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// RedisConfig contains the shared cache store connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"      validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"        validate:"gte=0"`
	PoolSize int    `mapstructure:"pool_size" validate:"gte=0"`
}

// StorageConfig contains the document object store settings.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"   validate:"required"`
	AccessKey string `mapstructure:"access_key" validate:"required"`
	SecretKey string `mapstructure:"secret_key" validate:"required"`
	Bucket    string `mapstructure:"bucket"     validate:"required"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// LLMConfig contains the structured-extraction (Gemini) settings.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"      validate:"required"`
	ModelName         string `mapstructure:"model_name"          validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"gte=0,lte=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=1"`
	MaxPromptChars    int    `mapstructure:"max_prompt_chars"    validate:"gte=1000"`
	CallsPerMinute    int    `mapstructure:"calls_per_minute"    validate:"gte=0"`
}

// PipelineConfig contains the job-processing limits and budgets.
type PipelineConfig struct {
	WorkerCount              int `mapstructure:"worker_count"               validate:"required,gt=0"`
	QueueCapacity            int `mapstructure:"queue_capacity"             validate:"required,gt=0"`
	JobTimeoutSeconds        int `mapstructure:"job_timeout_seconds"        validate:"required,gt=0"`
	MaxFileSizeMB            int `mapstructure:"max_file_size_mb"           validate:"required,gt=0"`
	CacheTTLHours            int `mapstructure:"cache_ttl_hours"            validate:"required,gt=0"`
	ClaimLeaseSeconds        int `mapstructure:"claim_lease_seconds"        validate:"required,gt=0"`
	StatusTTLSeconds         int `mapstructure:"status_ttl_seconds"         validate:"required,gt=0"`
	TerminalRetentionSeconds int `mapstructure:"terminal_retention_seconds" validate:"required,gt=0"`
	ReconcileIntervalSeconds int `mapstructure:"reconcile_interval_seconds" validate:"required,gt=0"`
	GraceMarginSeconds       int `mapstructure:"grace_margin_seconds"       validate:"required,gt=0"`
}

// JobTimeout returns the whole-job wall-clock budget.
func (p PipelineConfig) JobTimeout() time.Duration {
	return time.Duration(p.JobTimeoutSeconds) * time.Second
}

// CacheTTL returns the result cache TTL.
func (p PipelineConfig) CacheTTL() time.Duration {
	return time.Duration(p.CacheTTLHours) * time.Hour
}

// ClaimLease returns the dedup claim lease duration.
func (p PipelineConfig) ClaimLease() time.Duration {
	return time.Duration(p.ClaimLeaseSeconds) * time.Second
}

// StatusTTL returns the retention for records that have not reached a
// terminal state.
func (p PipelineConfig) StatusTTL() time.Duration {
	return time.Duration(p.StatusTTLSeconds) * time.Second
}

// TerminalRetention returns the post-terminal record retention window.
func (p PipelineConfig) TerminalRetention() time.Duration {
	return time.Duration(p.TerminalRetentionSeconds) * time.Second
}

// ReconcileInterval returns how often the reconciliation pass runs.
func (p PipelineConfig) ReconcileInterval() time.Duration {
	return time.Duration(p.ReconcileIntervalSeconds) * time.Second
}

// StaleAfter returns the processing-staleness threshold: the claim lease
// plus the grace margin.
func (p PipelineConfig) StaleAfter() time.Duration {
	return p.ClaimLease() + time.Duration(p.GraceMarginSeconds)*time.Second
}

// MaxFileSizeBytes returns the admission size limit in bytes.
func (p PipelineConfig) MaxFileSizeBytes() int64 {
	return int64(p.MaxFileSizeMB) * 1024 * 1024
}
