package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	ExternalAPI    ExternalAPIConfig    `mapstructure:"external_api"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Pipeline       PipelineConfig       `mapstructure:"pipeline"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	MCP            MCPConfig            `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig selects and configures the annotation store.
// Driver is "sqlite" (default) or "postgres".
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// ExternalAPIConfig represents external API configuration
type ExternalAPIConfig struct {
	VariantValidator VariantValidatorConfig `mapstructure:"variant_validator"`
	ClinVar          ClinVarConfig          `mapstructure:"clinvar"`
}

// VariantValidatorConfig configures the transcript resolver service
type VariantValidatorConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	GenomeBuild string        `mapstructure:"genome_build"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RateLimit   int           `mapstructure:"rate_limit"` // requests per second
	RetryCount  int           `mapstructure:"retry_count"`
	MemoSize    int           `mapstructure:"memo_size"`
	MemoTTL     time.Duration `mapstructure:"memo_ttl"`

	// SelectTranscripts is the transcript filter path segment: all, mane_select, raw or transcript ids
	SelectTranscripts string `mapstructure:"select_transcripts"`
}

// ClinVarConfig represents ClinVar E-utilities configuration
type ClinVarConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RequestDelay time.Duration `mapstructure:"request_delay"` // fixed spacing between calls
	RetryCount   int           `mapstructure:"retry_count"`
}

// CircuitBreakerConfig is shared by both external clients
type CircuitBreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

// CacheConfig represents annotation cache configuration.
// Backend is "memory" (unbounded, default), "lru" or "redis".
type CacheConfig struct {
	Backend    string        `mapstructure:"backend"`
	MaxEntries int           `mapstructure:"max_entries"`
	RedisURL   string        `mapstructure:"redis_url"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	KeyPrefix  string        `mapstructure:"key_prefix"`
}

// PipelineConfig controls the ingest pipeline
type PipelineConfig struct {
	Workers      int    `mapstructure:"workers"`
	ProcessedDir string `mapstructure:"processed_dir"`
	ErrorDir     string `mapstructure:"error_dir"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
}
