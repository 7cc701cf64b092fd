package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/nullstream/sqlfed/internal/vault"
)

// Config holds all application configuration for the runtime: the set
// of backend connections it accelerates/federates, the embedding cache
// it uses for vector search, and the ambient observability stack.
type Config struct {
	App        AppConfig                `mapstructure:"app"`
	Backends   map[string]BackendConfig `mapstructure:"backends"`
	Redis      RedisConfig              `mapstructure:"redis"`
	Vault      vault.Config             `mapstructure:"vault"`
	Monitoring MonitoringConfig         `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// BackendConfig describes one external-table connection: its vendor
// type and the vendor-specific options a connector needs to connect,
// query, and (if the vendor supports it) provision tables.
type BackendConfig struct {
	VendorType string `mapstructure:"vendor_type"` // "postgres", "sqlite", "snowflake", "odbc", "flightsql"

	// PostgreSQL
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`

	// SQLite
	SQLiteFile string `mapstructure:"sqlite_file"`
	Mode       string `mapstructure:"mode"` // "file" or "memory"

	// Snowflake
	Account   string `mapstructure:"account"`
	Warehouse string `mapstructure:"warehouse"`
	Schema    string `mapstructure:"schema"`
	Role      string `mapstructure:"role"`

	// ODBC
	ConnectionString string `mapstructure:"connection_string"`

	// FlightSQL
	Endpoint string `mapstructure:"endpoint"`
	UseTLS   bool   `mapstructure:"use_tls"`

	// VaultSecretPath, if set, tells LoadSecretsFromVault where under
	// Vault's mount to look for this backend's credentials, overlaying
	// whatever was set above.
	VaultSecretPath string `mapstructure:"vault_secret_path"`
}

// GetPostgresDSN returns the PostgreSQL connection string.
func (c *BackendConfig) GetPostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig contains Redis settings for the embedding cache.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      int    `mapstructure:"ttl_seconds"`

	// VaultSecretPathValue, if set via mapstructure key
	// "vault_secret_path", tells LoadSecretsFromVault where to look
	// for the cache password.
	VaultSecretPathValue string `mapstructure:"vault_secret_path"`
}

// VaultSecretPath returns the Vault path to look up this cache's
// password, or "" if Vault lookups are not configured for it.
func (c *RedisConfig) VaultSecretPath() string {
	return c.VaultSecretPathValue
}

// GetRedisAddr returns the Redis address.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MonitoringConfig contains monitoring settings.
type MonitoringConfig struct {
	MetricsPort   int  `mapstructure:"metrics_port"`
	EnableMetrics bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("SQLFED")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "sqlfed")
	v.SetDefault("app.version", Version)
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl_seconds", 3600)

	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.auth_method", "token")
	v.SetDefault("vault.mount_path", "secret")
	v.SetDefault("vault.secret_path", "sqlfed")

	v.SetDefault("monitoring.metrics_port", 9100)
	v.SetDefault("monitoring.enable_metrics", true)
}

// GetTimeout returns dur as a time.Duration given milliseconds, a
// helper shared across backend configs with a millisecond field.
func GetTimeout(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
