// Package vault resolves backend connection secrets (passwords,
// connection strings, API tokens) from HashiCorp Vault's KV v2 engine,
// so they never need to sit in a config file or environment variable
// in production. This is adapted from the real hashicorp/vault/api
// integration the teacher kept alongside a hand-rolled HTTP client;
// that duplication is dropped here in favor of the real SDK
// throughout, since there is no reason to hand-roll what the SDK
// already does correctly.
package vault

import (
	"context"
	"fmt"
	"os"

	vaultapi "github.com/hashicorp/vault/api"
	"github.com/rs/zerolog/log"
)

// Config holds Vault connection configuration.
type Config struct {
	Enabled    bool   `mapstructure:"enabled"`
	Address    string `mapstructure:"address"`     // e.g. "https://vault.example.com:8200"
	Token      string `mapstructure:"token"`       // from VAULT_TOKEN env var if unset
	AuthMethod string `mapstructure:"auth_method"` // "token", "kubernetes", "approle"
	MountPath  string `mapstructure:"mount_path"`  // KV v2 mount, default "secret"
	SecretPath string `mapstructure:"secret_path"` // base path for this module's secrets
	Namespace  string `mapstructure:"namespace"`   // Vault Enterprise namespace
}

// Client wraps the HashiCorp Vault API client for this module's
// secret layout.
type Client struct {
	raw    *vaultapi.Client
	config Config
}

// NewClient creates a Vault client from cfg, authenticating with the
// configured method.
func NewClient(cfg Config) (*Client, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("vault: not enabled in configuration")
	}

	vaultCfg := vaultapi.DefaultConfig()
	vaultCfg.Address = cfg.Address

	raw, err := vaultapi.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("vault: create client: %w", err)
	}

	if cfg.Namespace != "" {
		raw.SetNamespace(cfg.Namespace)
	}

	switch cfg.AuthMethod {
	case "token", "":
		token := cfg.Token
		if token == "" {
			token = os.Getenv("VAULT_TOKEN")
		}
		if token == "" {
			return nil, fmt.Errorf("vault: VAULT_TOKEN not set for token authentication")
		}
		raw.SetToken(token)

	case "kubernetes":
		if err := authenticateKubernetes(raw, cfg); err != nil {
			return nil, fmt.Errorf("vault: kubernetes authentication: %w", err)
		}

	case "approle":
		if err := authenticateAppRole(raw, cfg); err != nil {
			return nil, fmt.Errorf("vault: approle authentication: %w", err)
		}

	default:
		return nil, fmt.Errorf("vault: unsupported auth method %q", cfg.AuthMethod)
	}

	log.Info().
		Str("address", cfg.Address).
		Str("auth_method", cfg.AuthMethod).
		Str("mount_path", cfg.MountPath).
		Str("secret_path", cfg.SecretPath).
		Msg("vault client initialized")

	return &Client{raw: raw, config: cfg}, nil
}

// GetSecret reads the secret at path, relative to the configured
// SecretPath, unwrapping the KV v2 "data" envelope transparently.
func (c *Client) GetSecret(ctx context.Context, path string) (map[string]any, error) {
	fullPath := fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, path)

	log.Debug().Str("path", fullPath).Msg("reading secret from vault")

	secret, err := c.raw.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		return nil, fmt.Errorf("vault: read secret %s: %w", fullPath, err)
	}
	if secret == nil {
		return nil, fmt.Errorf("vault: secret not found at %s", fullPath)
	}

	if data, ok := secret.Data["data"].(map[string]any); ok {
		return data, nil
	}
	return secret.Data, nil
}

// GetSecretString reads a single string field from the secret at path.
func (c *Client) GetSecretString(ctx context.Context, path, key string) (string, error) {
	data, err := c.GetSecret(ctx, path)
	if err != nil {
		return "", err
	}
	value, ok := data[key].(string)
	if !ok {
		return "", fmt.Errorf("vault: key %q missing or not a string at %s", key, path)
	}
	return value, nil
}

func authenticateKubernetes(client *vaultapi.Client, cfg Config) error {
	jwtPath := "/var/run/secrets/kubernetes.io/serviceaccount/token"
	jwt, err := os.ReadFile(jwtPath)
	if err != nil {
		return fmt.Errorf("read service account token: %w", err)
	}

	role := os.Getenv("VAULT_K8S_ROLE")
	if role == "" {
		role = "sqlfed"
	}

	secret, err := client.Logical().Write("auth/kubernetes/login", map[string]any{
		"jwt":  string(jwt),
		"role": role,
	})
	if err != nil {
		return fmt.Errorf("kubernetes login: %w", err)
	}
	if secret == nil || secret.Auth == nil {
		return fmt.Errorf("kubernetes authentication returned no token")
	}
	client.SetToken(secret.Auth.ClientToken)
	return nil
}

func authenticateAppRole(client *vaultapi.Client, cfg Config) error {
	roleID := os.Getenv("VAULT_ROLE_ID")
	secretID := os.Getenv("VAULT_SECRET_ID")
	if roleID == "" || secretID == "" {
		return fmt.Errorf("VAULT_ROLE_ID and VAULT_SECRET_ID must be set for AppRole authentication")
	}

	secret, err := client.Logical().Write("auth/approle/login", map[string]any{
		"role_id":   roleID,
		"secret_id": secretID,
	})
	if err != nil {
		return fmt.Errorf("approle login: %w", err)
	}
	if secret == nil || secret.Auth == nil {
		return fmt.Errorf("approle authentication returned no token")
	}
	client.SetToken(secret.Auth.ClientToken)
	log.Info().Msg("authenticated to vault using approle")
	return nil
}
