// Package config loads and validates service configuration using Viper,
// layering defaults, an optional YAML file, and EVIDENCE_-prefixed
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SourceConfig configures one external literature database client.
type SourceConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Email      string        `mapstructure:"email"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"` // requests per rolling minute
	MaxResults int           `mapstructure:"max_results"`
}

// SourcesConfig configures all literature databases the orchestrator fans
// out to.
type SourcesConfig struct {
	PubMed SourceConfig `mapstructure:"pubmed"`
	PLOS   SourceConfig `mapstructure:"plos"`
	BMC    SourceConfig `mapstructure:"bmc"`
	TRIP   SourceConfig `mapstructure:"trip"`
}

// RetrievalConfig governs the fan-out behavior of the orchestrator.
type RetrievalConfig struct {
	AdapterTimeout    time.Duration `mapstructure:"adapter_timeout"`
	DefaultMaxResults int           `mapstructure:"default_max_results"`
}

// ScreeningConfig carries the screening rule thresholds.
type ScreeningConfig struct {
	MinQualityScore   float64 `mapstructure:"min_quality_score"`
	MinRelevanceScore float64 `mapstructure:"min_relevance_score"`
}

// CacheConfig configures the Redis adapter-response cache.
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// StorageConfig selects and configures the screening log store backend.
type StorageConfig struct {
	Backend        string `mapstructure:"backend"` // memory | sqlite | postgres
	SQLitePath     string `mapstructure:"sqlite_path"`
	DatabaseURL    string `mapstructure:"database_url"`
	MigrationsPath string `mapstructure:"migrations_path"`
	MemoryCapacity int    `mapstructure:"memory_capacity"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | text
	Output string `mapstructure:"output"`
}

// Config is the complete service configuration.
type Config struct {
	Server         ServerConfig    `mapstructure:"server"`
	Sources        SourcesConfig   `mapstructure:"sources"`
	Retrieval      RetrievalConfig `mapstructure:"retrieval"`
	Screening      ScreeningConfig `mapstructure:"screening"`
	Cache          CacheConfig     `mapstructure:"cache"`
	Storage        StorageConfig   `mapstructure:"storage"`
	Logging        LoggingConfig   `mapstructure:"logging"`
	VocabularyPath string          `mapstructure:"vocabulary_path"`
}

// Manager loads and holds the service configuration.
type Manager struct {
	config *Config
}

// NewManager creates a configuration manager and loads configuration from
// defaults, config file, and environment.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/evidence-triage/")

	viper.SetEnvPrefix("EVIDENCE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; defaults and environment variables apply.
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	viper.SetDefault("sources.pubmed.enabled", true)
	viper.SetDefault("sources.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/")
	viper.SetDefault("sources.pubmed.timeout", "30s")
	viper.SetDefault("sources.pubmed.rate_limit", 180)
	viper.SetDefault("sources.pubmed.max_results", 50)

	viper.SetDefault("sources.plos.enabled", true)
	viper.SetDefault("sources.plos.base_url", "https://api.plos.org/search")
	viper.SetDefault("sources.plos.timeout", "30s")
	viper.SetDefault("sources.plos.rate_limit", 60)
	viper.SetDefault("sources.plos.max_results", 50)

	viper.SetDefault("sources.bmc.enabled", true)
	viper.SetDefault("sources.bmc.base_url", "https://api.springernature.com/openaccess/json")
	viper.SetDefault("sources.bmc.timeout", "30s")
	viper.SetDefault("sources.bmc.rate_limit", 60)
	viper.SetDefault("sources.bmc.max_results", 50)

	viper.SetDefault("sources.trip.enabled", true)
	viper.SetDefault("sources.trip.base_url", "https://www.tripdatabase.com/api/search")
	viper.SetDefault("sources.trip.timeout", "30s")
	viper.SetDefault("sources.trip.rate_limit", 60)
	viper.SetDefault("sources.trip.max_results", 50)

	viper.SetDefault("retrieval.adapter_timeout", "20s")
	viper.SetDefault("retrieval.default_max_results", 100)

	viper.SetDefault("screening.min_quality_score", 40)
	viper.SetDefault("screening.min_relevance_score", 30)

	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "6h")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")

	viper.SetDefault("storage.backend", "memory")
	viper.SetDefault("storage.sqlite_path", "./data/screening_logs.db")
	viper.SetDefault("storage.migrations_path", "./internal/database/migrations")
	viper.SetDefault("storage.memory_capacity", 1024)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	viper.SetDefault("vocabulary_path", "")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Validate validates the loaded configuration.
func (m *Manager) Validate() error {
	cfg := m.config

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	switch cfg.Storage.Backend {
	case "memory":
		if cfg.Storage.MemoryCapacity <= 0 {
			return fmt.Errorf("memory storage capacity must be positive")
		}
	case "sqlite":
		if cfg.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite storage requires storage.sqlite_path")
		}
	case "postgres":
		if cfg.Storage.DatabaseURL == "" {
			return fmt.Errorf("postgres storage requires storage.database_url")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}

	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		return fmt.Errorf("cache enabled but redis URL is empty")
	}

	for name, src := range map[string]SourceConfig{
		"pubmed": cfg.Sources.PubMed,
		"plos":   cfg.Sources.PLOS,
		"bmc":    cfg.Sources.BMC,
		"trip":   cfg.Sources.TRIP,
	} {
		if src.Enabled && src.BaseURL == "" {
			return fmt.Errorf("source %s enabled without base URL", name)
		}
		if src.Enabled && src.RateLimit <= 0 {
			return fmt.Errorf("source %s requires a positive rate limit", name)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	return nil
}
