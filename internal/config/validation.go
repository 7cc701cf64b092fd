package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nPlease fix the above errors and try again.\n")
	return sb.String()
}

var validVendorTypes = []string{"postgres", "sqlite", "snowflake", "odbc", "flightsql"}

// Validate performs comprehensive configuration validation.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validateBackends()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateVault()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.Name == "" {
		errors = append(errors, ValidationError{Field: "app.name", Message: "application name is required"})
	}

	if c.App.Environment == "" {
		errors = append(errors, ValidationError{Field: "app.environment", Message: "environment is required (development, staging, or production)"})
	} else {
		validEnvs := []string{"development", "staging", "production"}
		valid := false
		for _, env := range validEnvs {
			if c.App.Environment == env {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, ValidationError{
				Field:   "app.environment",
				Message: fmt.Sprintf("invalid environment %q, must be one of: %v", c.App.Environment, validEnvs),
			})
		}
	}

	if c.App.LogLevel == "" {
		errors = append(errors, ValidationError{Field: "app.log_level", Message: "log level is required (debug, info, warn, error)"})
	}

	return errors
}

func (c *Config) validateBackends() ValidationErrors {
	var errors ValidationErrors

	for name, b := range c.Backends {
		field := fmt.Sprintf("backends.%s", name)

		valid := false
		for _, vt := range validVendorTypes {
			if b.VendorType == vt {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, ValidationError{
				Field:   field + ".vendor_type",
				Message: fmt.Sprintf("invalid vendor_type %q, must be one of: %v", b.VendorType, validVendorTypes),
			})
			continue
		}

		switch b.VendorType {
		case "postgres":
			if b.Host == "" {
				errors = append(errors, ValidationError{Field: field + ".host", Message: "postgres backend requires host"})
			}
			if b.Port < 1 || b.Port > 65535 {
				errors = append(errors, ValidationError{Field: field + ".port", Message: fmt.Sprintf("invalid port %d, must be 1-65535", b.Port)})
			}
			if b.Database == "" {
				errors = append(errors, ValidationError{Field: field + ".database", Message: "postgres backend requires database"})
			}
			if b.Password == "" && c.App.Environment != "development" && b.VaultSecretPath == "" {
				errors = append(errors, ValidationError{Field: field + ".password", Message: "postgres password required in non-development environments unless vault_secret_path is set"})
			}
		case "snowflake":
			if b.Account == "" {
				errors = append(errors, ValidationError{Field: field + ".account", Message: "snowflake backend requires account"})
			}
			if b.Warehouse == "" {
				errors = append(errors, ValidationError{Field: field + ".warehouse", Message: "snowflake backend requires warehouse"})
			}
		case "odbc":
			if b.ConnectionString == "" && b.VaultSecretPath == "" {
				errors = append(errors, ValidationError{Field: field + ".connection_string", Message: "odbc backend requires connection_string or vault_secret_path"})
			}
		case "flightsql":
			if b.Endpoint == "" {
				errors = append(errors, ValidationError{Field: field + ".endpoint", Message: "flightsql backend requires endpoint"})
			}
		case "sqlite":
			// sqlite_file defaults to "<name>_sqlite.db" if unset; nothing required.
		}
	}

	return errors
}

func (c *Config) validateRedis() ValidationErrors {
	var errors ValidationErrors

	if c.Redis.Host == "" {
		errors = append(errors, ValidationError{Field: "redis.host", Message: "redis host is required"})
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errors = append(errors, ValidationError{Field: "redis.port", Message: fmt.Sprintf("invalid port %d, must be 1-65535", c.Redis.Port)})
	}

	return errors
}

func (c *Config) validateVault() ValidationErrors {
	var errors ValidationErrors

	if !c.Vault.Enabled {
		return errors
	}
	if c.Vault.Address == "" {
		errors = append(errors, ValidationError{Field: "vault.address", Message: "vault address is required when vault.enabled is true"})
	}

	validMethods := []string{"token", "kubernetes", "approle", ""}
	valid := false
	for _, m := range validMethods {
		if c.Vault.AuthMethod == m {
			valid = true
			break
		}
	}
	if !valid {
		errors = append(errors, ValidationError{Field: "vault.auth_method", Message: fmt.Sprintf("invalid auth_method %q", c.Vault.AuthMethod)})
	}

	return errors
}
