package config

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"rjdctl/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Address   string        `mapstructure:"address"`
	Token     string        `mapstructure:"token"`
	TokenFile string        `mapstructure:"tokenFile"`
	Namespace string        `mapstructure:"namespace"`
	Mount     string        `mapstructure:"mount"`
	Timeout   time.Duration `mapstructure:"timeout"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets defines where to find secrets under the KVv2 mount
type VaultSecrets struct {
	ServiceKey  string `mapstructure:"serviceKey"`  // key "api_key": analysis service API key
	ArchiveKeys string `mapstructure:"archiveKeys"` // keys "access_key", "secret_key": archive credentials
}

// VaultSecret is a KVv2 secret version
type VaultSecret struct {
	Data    map[string]any
	Version int
}

// secretReader is what the secret loaders need from Vault
type secretReader interface {
	GetSecret(ctx context.Context, path string) (*VaultSecret, error)
}

// VaultClient reads KVv2 secrets from a single mount
type VaultClient struct {
	kv     *api.KVv2
	sys    *api.Sys
	logger *errors.Logger
}

// NewVaultClient creates a Vault client and checks the server is reachable.
// It returns nil when Vault is disabled.
func NewVaultClient(ctx context.Context, cfg VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if !cfg.Enabled {
		logger.Debug("Vault integration disabled")
		return nil, nil
	}

	apiCfg := api.DefaultConfig()
	if cfg.Address != "" {
		apiCfg.Address = cfg.Address
	}
	if cfg.Timeout > 0 {
		apiCfg.Timeout = cfg.Timeout
	}

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to create vault client", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	token, err := resolveVaultToken(cfg)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	vc := &VaultClient{
		kv:     client.KVv2(mountOrDefault(cfg.Mount)),
		sys:    client.Sys(),
		logger: logger,
	}

	health, err := vc.sys.HealthWithContext(ctx)
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeNetworkFailure, "failed to connect to vault", err).
			WithContext("address", apiCfg.Address)
	}
	logger.Info("Connected to Vault",
		"address", apiCfg.Address,
		"version", health.Version,
		"sealed", health.Sealed)

	return vc, nil
}

func mountOrDefault(mount string) string {
	if mount == "" {
		return "secret"
	}
	return strings.Trim(mount, "/")
}

// resolveVaultToken prefers the inline token over the token file
func resolveVaultToken(cfg VaultConfig) (string, error) {
	token := cfg.Token
	if token == "" && cfg.TokenFile != "" {
		data, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return "", errors.NewConfigError(errors.ErrCodeFileNotReadable, "failed to read vault token file", err).
				WithContext("file", cfg.TokenFile)
		}
		token = strings.TrimSpace(string(data))
	}

	if token == "" {
		return "", errors.NewConfigError(errors.ErrCodeInvalidConfig, "vault token is required when vault is enabled", nil)
	}
	return token, nil
}

// GetSecret reads the latest version of a KVv2 secret
func (vc *VaultClient) GetSecret(ctx context.Context, path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}

	vc.logger.Debug("Reading secret from Vault", "path", path)
	kvSecret, err := vc.kv.Get(ctx, path)
	if err != nil {
		if stderrors.Is(err, api.ErrSecretNotFound) {
			return nil, fmt.Errorf("secret not found at path: %s", path)
		}
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}

	secret := &VaultSecret{Data: kvSecret.Data}
	if kvSecret.VersionMetadata != nil {
		secret.Version = kvSecret.VersionMetadata.Version
	}
	return secret, nil
}

// stringField returns a string value from a secret, or an error naming the key
func stringField(secret *VaultSecret, path, key string) (string, error) {
	value, ok := secret.Data[key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret %s", key, path)
	}
	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("value for key '%s' is not a string in secret %s", key, path)
	}
	return str, nil
}

// maskSecret keeps the first and last four characters of long values
func maskSecret(value string) string {
	switch {
	case len(value) > 8:
		return value[:4] + "****" + value[len(value)-4:]
	case value != "":
		return "****"
	default:
		return ""
	}
}

// ApplyVaultSecrets loads secrets from Vault and applies them to the config
func ApplyVaultSecrets(ctx context.Context, config *Config, logger *errors.Logger) error {
	if !config.Vault.Enabled {
		logger.Debug("Vault integration disabled, skipping secret loading")
		return nil
	}

	logger.Info("Loading secrets from Vault",
		"service_key_path", config.Vault.Secrets.ServiceKey,
		"archive_keys_path", config.Vault.Secrets.ArchiveKeys)

	client, err := NewVaultClient(ctx, config.Vault, logger)
	if err != nil {
		logger.LogError(err, "Failed to initialize Vault client")
		return fmt.Errorf("failed to initialize vault client: %w", err)
	}

	return loadSecrets(ctx, client, config, logger)
}

func loadSecrets(ctx context.Context, client secretReader, config *Config, logger *errors.Logger) error {
	if path := config.Vault.Secrets.ServiceKey; path != "" {
		secret, err := client.GetSecret(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to load service API key from vault: %w", err)
		}
		key, err := stringField(secret, path, "api_key")
		if err != nil {
			return fmt.Errorf("failed to load service API key from vault: %w", err)
		}
		if key != "" {
			config.Service.APIKey = key
			logger.Info("Service API key loaded from Vault", "masked_value", maskSecret(key), "version", secret.Version)
		} else {
			logger.Warn("Empty service API key found in Vault", "path", path)
		}
	}

	if path := config.Vault.Secrets.ArchiveKeys; path != "" {
		secret, err := client.GetSecret(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to load archive credentials from vault: %w", err)
		}
		loaded := 0
		for key, target := range map[string]*string{
			"access_key": &config.Archive.AccessKey,
			"secret_key": &config.Archive.SecretKey,
		} {
			if value, ok := secret.Data[key].(string); ok && value != "" {
				*target = value
				loaded++
			}
		}
		logger.Info("Archive credentials loaded from Vault", "keys_loaded", loaded)
	}

	return nil
}
