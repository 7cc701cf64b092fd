package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullstream/sqlfed/internal/vault"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "sqlfed",
			Version:     "0.1.0",
			Environment: "development",
			LogLevel:    "info",
		},
		Backends: map[string]BackendConfig{
			"analytics": {
				VendorType: "postgres",
				Host:       "localhost",
				Port:       5432,
				User:       "postgres",
				Password:   "dev",
				Database:   "analytics",
				SSLMode:    "disable",
				PoolSize:   10,
			},
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379, DB: 0},
		Vault: vault.Config{Enabled: false},
	}
}

func TestValidate_AcceptsValidConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_RejectsMissingAppName(t *testing.T) {
	cfg := validConfig()
	cfg.App.Name = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.name")
}

func TestValidate_RejectsUnknownEnvironment(t *testing.T) {
	cfg := validConfig()
	cfg.App.Environment = "prod"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.environment")
}

func TestValidate_RejectsUnknownVendorType(t *testing.T) {
	cfg := validConfig()
	b := cfg.Backends["analytics"]
	b.VendorType = "oracle"
	cfg.Backends["analytics"] = b

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vendor_type")
}

func TestValidate_PostgresRequiresPasswordOutsideDev(t *testing.T) {
	cfg := validConfig()
	cfg.App.Environment = "production"
	b := cfg.Backends["analytics"]
	b.Password = ""
	cfg.Backends["analytics"] = b

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
}

func TestValidate_PostgresPasswordExemptWithVaultPath(t *testing.T) {
	cfg := validConfig()
	cfg.App.Environment = "production"
	b := cfg.Backends["analytics"]
	b.Password = ""
	b.VaultSecretPath = "backends/analytics"
	cfg.Backends["analytics"] = b

	require.NoError(t, cfg.Validate())
}

func TestValidate_SnowflakeRequiresAccountAndWarehouse(t *testing.T) {
	cfg := validConfig()
	cfg.Backends["warehouse"] = BackendConfig{VendorType: "snowflake"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account")
	assert.Contains(t, err.Error(), "warehouse")
}

func TestValidate_FlightSQLRequiresEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Backends["flight"] = BackendConfig{VendorType: "flightsql"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint")
}

func TestValidate_VaultRequiresAddressWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Vault = vault.Config{Enabled: true}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault.address")
}

func TestValidate_RejectsInvalidRedisPort(t *testing.T) {
	cfg := validConfig()
	cfg.Redis.Port = 70000

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.port")
}
