package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"rjdctl/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets map[string]*VaultSecret

func (f fakeSecrets) GetSecret(_ context.Context, path string) (*VaultSecret, error) {
	secret, ok := f[path]
	if !ok {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}
	return secret, nil
}

func TestResolveVaultToken(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("  file-token\n"), 0o600))

	tests := []struct {
		name      string
		cfg       VaultConfig
		want      string
		expectErr bool
	}{
		{name: "inline token", cfg: VaultConfig{Token: "inline", TokenFile: tokenFile}, want: "inline"},
		{name: "token file", cfg: VaultConfig{TokenFile: tokenFile}, want: "file-token"},
		{name: "missing file", cfg: VaultConfig{TokenFile: filepath.Join(t.TempDir(), "nope")}, expectErr: true},
		{name: "no token", cfg: VaultConfig{}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := resolveVaultToken(tt.cfg)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, token)
		})
	}
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "abcd****6789", maskSecret("abcdef0123456789"))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "", maskSecret(""))
}

func TestLoadSecrets(t *testing.T) {
	cfg := &Config{Vault: VaultConfig{Secrets: VaultSecrets{
		ServiceKey:  "rjdctl/service",
		ArchiveKeys: "rjdctl/archive",
	}}}
	secrets := fakeSecrets{
		"rjdctl/service": {Data: map[string]any{"api_key": "service-key-123456"}, Version: 2},
		"rjdctl/archive": {Data: map[string]any{"access_key": "AKIA", "secret_key": "s3cr3t"}},
	}

	require.NoError(t, loadSecrets(context.Background(), secrets, cfg, errors.NewNop()))
	assert.Equal(t, "service-key-123456", cfg.Service.APIKey)
	assert.Equal(t, "AKIA", cfg.Archive.AccessKey)
	assert.Equal(t, "s3cr3t", cfg.Archive.SecretKey)
}

func TestLoadSecretsErrors(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		cfg := &Config{Vault: VaultConfig{Secrets: VaultSecrets{ServiceKey: "missing"}}}
		err := loadSecrets(context.Background(), fakeSecrets{}, cfg, errors.NewNop())
		assert.ErrorContains(t, err, "service API key")
	})

	t.Run("non-string key", func(t *testing.T) {
		cfg := &Config{Vault: VaultConfig{Secrets: VaultSecrets{ServiceKey: "svc"}}}
		secrets := fakeSecrets{"svc": {Data: map[string]any{"api_key": 42}}}
		err := loadSecrets(context.Background(), secrets, cfg, errors.NewNop())
		assert.ErrorContains(t, err, "is not a string")
	})
}

func TestApplyVaultSecretsDisabled(t *testing.T) {
	cfg := &Config{Service: ServiceConfig{APIKey: "from-env"}}
	require.NoError(t, ApplyVaultSecrets(context.Background(), cfg, errors.NewNop()))
	assert.Equal(t, "from-env", cfg.Service.APIKey)
}

func TestApplyVaultSecretsFromServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/sys/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"initialized": true, "sealed": false, "version": "1.17.0"})
	})
	mux.HandleFunc("/v1/kv/data/rjdctl/service", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("X-Vault-Token"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"data":     map[string]any{"api_key": "vault-service-key"},
				"metadata": map[string]any{"version": 4, "created_time": "2024-01-01T00:00:00Z"},
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := &Config{Vault: VaultConfig{
		Enabled: true,
		Address: server.URL,
		Token:   "test-token",
		Mount:   "kv",
		Secrets: VaultSecrets{ServiceKey: "rjdctl/service"},
	}}

	require.NoError(t, ApplyVaultSecrets(context.Background(), cfg, errors.NewNop()))
	assert.Equal(t, "vault-service-key", cfg.Service.APIKey)
}
