package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/clinvar-query/internal/domain"
)

// EnvPrefix is prepended to every environment override, e.g. CLINVAR_QUERY_PIPELINE_WORKERS
const EnvPrefix = "CLINVAR_QUERY"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager loads configuration from defaults, an optional YAML file and the
// environment. An empty configFile searches the default locations.
func NewManager(configFile string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	if err := m.loadConfig(configFile); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig(configFile string) error {
	v := m.v
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/clinvar-query/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it during Unmarshal
func (m *Manager) setDefaults() {
	v := m.v

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "10m")

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/clinvar_query.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "clinvar_query")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "30m")
	v.SetDefault("database.auto_migrate", true)

	// External API defaults
	v.SetDefault("external_api.variant_validator.base_url", "https://rest.variantvalidator.org")
	v.SetDefault("external_api.variant_validator.genome_build", "GRCh38")
	v.SetDefault("external_api.variant_validator.select_transcripts", "all")
	v.SetDefault("external_api.variant_validator.timeout", "20s")
	v.SetDefault("external_api.variant_validator.rate_limit", 2)
	v.SetDefault("external_api.variant_validator.retry_count", 2)
	v.SetDefault("external_api.variant_validator.memo_size", 10000)
	v.SetDefault("external_api.variant_validator.memo_ttl", "24h")

	v.SetDefault("external_api.clinvar.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("external_api.clinvar.api_key", "")
	v.SetDefault("external_api.clinvar.timeout", "10s")
	v.SetDefault("external_api.clinvar.request_delay", "350ms")
	v.SetDefault("external_api.clinvar.retry_count", 2)

	v.SetDefault("circuit_breaker.max_requests", 3)
	v.SetDefault("circuit_breaker.interval", "60s")
	v.SetDefault("circuit_breaker.timeout", "30s")
	v.SetDefault("circuit_breaker.min_requests", 5)
	v.SetDefault("circuit_breaker.failure_ratio", 0.6)

	// Cache defaults
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.max_entries", 50000)
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	v.SetDefault("cache.default_ttl", "168h")
	v.SetDefault("cache.key_prefix", "clinvar:hgvs:")

	// Pipeline defaults
	v.SetDefault("pipeline.workers", 8)
	v.SetDefault("pipeline.processed_dir", "./data/processed")
	v.SetDefault("pipeline.error_dir", "./data/errors")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.filename", "")

	v.SetDefault("mcp.server_name", "clinvar-query")
	v.SetDefault("mcp.server_version", "1.0.0")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetExternalAPIConfig returns external API configuration
func (m *Manager) GetExternalAPIConfig() *domain.ExternalAPIConfig {
	return &m.config.ExternalAPI
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return domain.NewValidationError("server.port", "must be between 1 and 65535", config.Server.Port)
	}

	switch strings.ToLower(config.Database.Driver) {
	case "sqlite":
		if config.Database.SQLitePath == "" {
			return domain.NewValidationError("database.sqlite_path", "is required for the sqlite driver", "")
		}
	case "postgres":
		if config.Database.Host == "" {
			return domain.NewValidationError("database.host", "is required for the postgres driver", "")
		}
		if config.Database.Database == "" {
			return domain.NewValidationError("database.database", "is required for the postgres driver", "")
		}
		if config.Database.Username == "" {
			return domain.NewValidationError("database.username", "is required for the postgres driver", "")
		}
	default:
		return domain.NewValidationError("database.driver", "must be sqlite or postgres", config.Database.Driver)
	}

	if config.ExternalAPI.VariantValidator.BaseURL == "" {
		return domain.NewValidationError("external_api.variant_validator.base_url", "is required", "")
	}
	if config.ExternalAPI.ClinVar.BaseURL == "" {
		return domain.NewValidationError("external_api.clinvar.base_url", "is required", "")
	}
	if config.ExternalAPI.VariantValidator.Timeout <= 0 || config.ExternalAPI.ClinVar.Timeout <= 0 {
		return domain.NewValidationError("external_api.timeout", "request timeouts must be positive", nil)
	}
	if config.ExternalAPI.ClinVar.RequestDelay < 0 {
		return domain.NewValidationError("external_api.clinvar.request_delay", "must not be negative", config.ExternalAPI.ClinVar.RequestDelay)
	}

	switch strings.ToLower(config.Cache.Backend) {
	case "memory":
	case "lru":
		if config.Cache.MaxEntries <= 0 {
			return domain.NewValidationError("cache.max_entries", "must be positive for the lru backend", config.Cache.MaxEntries)
		}
	case "redis":
		if config.Cache.RedisURL == "" {
			return domain.NewValidationError("cache.redis_url", "is required for the redis backend", "")
		}
	default:
		return domain.NewValidationError("cache.backend", "must be memory, lru or redis", config.Cache.Backend)
	}

	if config.Pipeline.Workers <= 0 {
		return domain.NewValidationError("pipeline.workers", "must be positive", config.Pipeline.Workers)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return domain.NewValidationError("logging.level", "invalid log level", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a postgres:// URL usable by both pgx and golang-migrate
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.Username, db.Password),
		Host:     db.Host + ":" + strconv.Itoa(db.Port),
		Path:     "/" + db.Database,
		RawQuery: "sslmode=" + url.QueryEscape(db.SSLMode),
	}
	return u.String()
}
