package config

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/nullstream/sqlfed/internal/vault"
)

// LoadSecretsFromVault overlays each configured backend's credentials
// (and the Redis cache password) with values read from Vault, when
// Vault integration is enabled. Backends without a VaultSecretPath are
// left untouched; a lookup failure for one backend is logged and
// skipped rather than aborting the whole load, since the remaining
// backends may still be usable from their env-var-sourced defaults.
func LoadSecretsFromVault(ctx context.Context, cfg *Config) error {
	if !cfg.Vault.Enabled {
		log.Info().Msg("vault integration disabled, using configured/env-var secrets")
		return nil
	}

	client, err := vault.NewClient(cfg.Vault)
	if err != nil {
		return fmt.Errorf("create vault client: %w", err)
	}

	for name, backend := range cfg.Backends {
		if backend.VaultSecretPath == "" {
			continue
		}
		secrets, err := client.GetSecret(ctx, backend.VaultSecretPath)
		if err != nil {
			log.Warn().Str("backend", name).Err(err).Msg("failed to load backend secrets from vault")
			continue
		}
		overlayBackendSecrets(&backend, secrets)
		cfg.Backends[name] = backend
		log.Info().Str("backend", name).Msg("loaded backend secrets from vault")
	}

	if path := cfg.Redis.VaultSecretPath(); path != "" {
		if password, err := client.GetSecretString(ctx, path, "password"); err == nil {
			cfg.Redis.Password = password
		} else {
			log.Warn().Err(err).Msg("failed to load redis secret from vault")
		}
	}

	return nil
}

func overlayBackendSecrets(b *BackendConfig, secrets map[string]any) {
	if v, ok := secrets["password"].(string); ok && v != "" {
		b.Password = v
	}
	if v, ok := secrets["user"].(string); ok && v != "" {
		b.User = v
	}
	if v, ok := secrets["connection_string"].(string); ok && v != "" {
		b.ConnectionString = v
	}
}
