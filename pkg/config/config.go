// Package config holds configuration for dataquay sessions, data sources,
// the reasoning oracle, and the cache. Configuration can come from a YAML
// file or environment variables; environment variables always override YAML
// values. Secrets (passwords, API keys) must only come from environment
// variables.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/dataquay/pkg/apperrors"
)

// Supported data source types.
const (
	SourceTypePostgres = "postgres"
	SourceTypeMSSQL    = "mssql"
	SourceTypeSQLite   = "sqlite"
)

// Cache backend kinds.
const (
	CacheKindMemory = "memory"
	CacheKindSQLite = "sqlite"
	CacheKindRedis  = "redis"
)

// Oracle providers.
const (
	OracleProviderOpenAI    = "openai"
	OracleProviderAnthropic = "anthropic"
)

// SourceConfig describes one data source connection.
type SourceConfig struct {
	// SourceType selects the adapter: postgres, mssql, or sqlite.
	SourceType string `yaml:"source_type" env:"DATAQUAY_SOURCE_TYPE"`
	// Name identifies the source within a session; must be unique.
	Name string `yaml:"name" env:"DATAQUAY_SOURCE_NAME"`

	// DSN is the full connection string. If set it takes precedence over
	// the individual fields below.
	DSN string `yaml:"-" env:"DATAQUAY_SOURCE_DSN"`

	Host     string `yaml:"host" env:"DATAQUAY_SOURCE_HOST"`
	Port     int    `yaml:"port" env:"DATAQUAY_SOURCE_PORT"`
	User     string `yaml:"user" env:"DATAQUAY_SOURCE_USER"`
	Password string `yaml:"-" env:"DATAQUAY_SOURCE_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DATAQUAY_SOURCE_DATABASE"`
	// Options are extra connection parameters appended to the DSN,
	// without the leading question mark.
	Options string `yaml:"options" env:"DATAQUAY_SOURCE_OPTIONS"`

	// Path is the database file for sqlite sources; ":memory:" for an
	// in-memory table source.
	Path string `yaml:"path" env:"DATAQUAY_SOURCE_PATH"`

	// LimitMaxRows caps how many rows any query may return. 0 disables
	// the cap. This is a best-effort guard applied per backend, not a
	// hard guarantee.
	LimitMaxRows int `yaml:"limit_max_rows" env:"DATAQUAY_SOURCE_LIMIT_MAX_ROWS" env-default:"10000"`

	// QueryTimeoutSeconds bounds each query where the backend supports
	// it. 0 means the backend default (usually no timeout).
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" env:"DATAQUAY_SOURCE_QUERY_TIMEOUT" env-default:"120"`

	// MaxConcurrentRequests bounds simultaneous backend operations for
	// this source instance, shared by queries and schema profiling.
	MaxConcurrentRequests int `yaml:"max_concurrent_requests" env:"DATAQUAY_SOURCE_MAX_CONCURRENT" env-default:"8"`
}

// Validate checks the source configuration at construction time.
func (c *SourceConfig) Validate() error {
	if c.Name == "" {
		return apperrors.NewConfigurationError("name", "source name is required")
	}
	switch c.SourceType {
	case SourceTypePostgres, SourceTypeMSSQL:
		if c.DSN == "" && c.Host == "" {
			return apperrors.NewConfigurationError("host", "host or dsn is required for "+c.SourceType)
		}
	case SourceTypeSQLite:
		if c.Path == "" {
			return apperrors.NewConfigurationError("path", "path is required for sqlite (use :memory: for in-memory)")
		}
	case "":
		return apperrors.NewConfigurationError("source_type", "source type is required")
	default:
		return apperrors.NewConfigurationError("source_type", fmt.Sprintf("unsupported source type %q", c.SourceType))
	}
	if c.MaxConcurrentRequests < 0 {
		return apperrors.NewConfigurationError("max_concurrent_requests", "must be >= 0")
	}
	return nil
}

// OracleConfig configures the reasoning oracle client.
type OracleConfig struct {
	// Provider selects the client: openai (any OpenAI-compatible
	// endpoint) or anthropic.
	Provider string `yaml:"provider" env:"DATAQUAY_ORACLE_PROVIDER" env-default:"openai"`
	// Endpoint is the base URL for openai-compatible providers.
	Endpoint string `yaml:"endpoint" env:"DATAQUAY_ORACLE_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"DATAQUAY_ORACLE_MODEL"`
	APIKey   string `yaml:"-" env:"DATAQUAY_ORACLE_API_KEY"` // Secret - not in YAML
	// Temperature for oracle calls; 0 uses the provider default.
	Temperature float64 `yaml:"temperature" env:"DATAQUAY_ORACLE_TEMPERATURE" env-default:"0"`
}

// Validate checks oracle configuration.
func (c *OracleConfig) Validate() error {
	switch c.Provider {
	case OracleProviderOpenAI, OracleProviderAnthropic:
	default:
		return apperrors.NewConfigurationError("provider", fmt.Sprintf("unsupported oracle provider %q", c.Provider))
	}
	if c.Model == "" {
		return apperrors.NewConfigurationError("model", "oracle model is required")
	}
	return nil
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	// Kind is memory, sqlite, or redis.
	Kind string `yaml:"kind" env:"DATAQUAY_CACHE_KIND" env-default:"memory"`
	// Path is the sqlite cache file; defaults to dataquay-cache.db.
	Path string `yaml:"path" env:"DATAQUAY_CACHE_PATH" env-default:"dataquay-cache.db"`

	RedisAddr     string `yaml:"redis_addr" env:"DATAQUAY_REDIS_ADDR"`
	RedisPassword string `yaml:"-" env:"DATAQUAY_REDIS_PASSWORD"` // Secret - not in YAML
	RedisDB       int    `yaml:"redis_db" env:"DATAQUAY_REDIS_DB" env-default:"0"`
}

// Validate checks cache configuration.
func (c *CacheConfig) Validate() error {
	switch c.Kind {
	case CacheKindMemory, CacheKindSQLite:
	case CacheKindRedis:
		if c.RedisAddr == "" {
			return apperrors.NewConfigurationError("redis_addr", "redis_addr is required for the redis cache")
		}
	default:
		return apperrors.NewConfigurationError("kind", fmt.Sprintf("unsupported cache kind %q", c.Kind))
	}
	return nil
}

// AgentConfig bounds the agent loop.
type AgentConfig struct {
	// MaxIterations is the reasoning/tool iteration ceiling per Ask.
	MaxIterations int `yaml:"max_iterations" env:"DATAQUAY_AGENT_MAX_ITERATIONS" env-default:"50"`
	// RowsLimit caps rows shown to the oracle per tool result.
	RowsLimit int `yaml:"rows_limit" env:"DATAQUAY_AGENT_ROWS_LIMIT" env-default:"100"`
	// KeepHistory persists conversation history across Ask calls within
	// one thread, scoped by the thread key in the cache.
	KeepHistory bool `yaml:"keep_history" env:"DATAQUAY_AGENT_KEEP_HISTORY" env-default:"true"`
	// CacheQueryResults memoizes successful tool queries in the cache.
	// The cache has no expiry; enable only for static data.
	CacheQueryResults bool `yaml:"cache_query_results" env:"DATAQUAY_AGENT_CACHE_QUERY_RESULTS" env-default:"false"`
}

// Config is the top-level session configuration.
type Config struct {
	Env     string         `yaml:"env" env:"DATAQUAY_ENV" env-default:"local"`
	Oracle  OracleConfig   `yaml:"oracle"`
	Cache   CacheConfig    `yaml:"cache"`
	Agent   AgentConfig    `yaml:"agent"`
	Sources []SourceConfig `yaml:"sources"`
}

// Load reads configuration from the given YAML file (if it exists) and the
// environment, then validates it. Pass "" to load from environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read config from environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the whole configuration tree.
func (c *Config) Validate() error {
	if err := c.Oracle.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if c.Agent.MaxIterations <= 0 {
		return apperrors.NewConfigurationError("agent.max_iterations", "must be > 0")
	}
	seen := make(map[string]bool, len(c.Sources))
	for i := range c.Sources {
		if err := c.Sources[i].Validate(); err != nil {
			return err
		}
		if seen[c.Sources[i].Name] {
			return apperrors.NewConfigurationError("sources", fmt.Sprintf("duplicate source name %q", c.Sources[i].Name))
		}
		seen[c.Sources[i].Name] = true
	}
	return nil
}
