// Package vault implements a HashiCorp Vault KV secrets backend for
// pkg/secretprovider over the raw Vault HTTP API, with AppRole
// authentication and KV v2/v1 fallback.
package vault

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/restbench/core/internal/logging"
	internalerrors "github.com/restbench/core/internal/errors"
)

const (
	DefaultAddr    = "https://vault.example.com:8200"
	DefaultTimeout = 30 * time.Second
)

// Config holds Vault connection and AppRole credentials. Values are
// read from application settings with environment variable overrides,
// matching the teacher's provider-config convention.
type Config struct {
	Address   string // Vault server address
	RoleID    string // AppRole role_id
	SecretID  string // AppRole secret_id (discouraged in config, prefer env var)
	Mount     string // KV mount point, e.g. "secret"
	Namespace string // Vault Enterprise namespace, sent on the login call only
	TLSSkip   bool   // Skip TLS verification (not recommended)
}

// ConfigFromMap parses a Config from a generic settings map, the same
// shape internal/settings hands providers, with VAULT_* environment
// variables taking precedence exactly as the teacher's provider
// constructors do.
func ConfigFromMap(m map[string]interface{}) Config {
	cfg := Config{Address: DefaultAddr, Mount: "secret"}

	if v, ok := m["address"].(string); ok && v != "" {
		cfg.Address = v
	}
	if v, ok := m["role_id"].(string); ok {
		cfg.RoleID = v
	}
	if v, ok := m["secret_id"].(string); ok {
		cfg.SecretID = v
	}
	if v, ok := m["mount"].(string); ok && v != "" {
		cfg.Mount = v
	}
	if v, ok := m["namespace"].(string); ok {
		cfg.Namespace = v
	}
	if v, ok := m["tls_skip"].(bool); ok {
		cfg.TLSSkip = v
	}

	if addr := os.Getenv("VAULT_ADDR"); addr != "" {
		cfg.Address = addr
	}
	if roleID := os.Getenv("VAULT_ROLE_ID"); roleID != "" {
		cfg.RoleID = roleID
	}
	if secretID := os.Getenv("VAULT_SECRET_ID"); secretID != "" {
		cfg.SecretID = secretID
	}
	if namespace := os.Getenv("VAULT_NAMESPACE"); namespace != "" {
		cfg.Namespace = namespace
	}
	if tlsSkip := os.Getenv("VAULT_SKIP_VERIFY"); tlsSkip == "1" || strings.ToLower(tlsSkip) == "true" {
		cfg.TLSSkip = true
	}
	return cfg
}

// VaultClient is the transport-level interface Provider depends on, so
// tests can substitute a fake without an HTTP server, matching the
// teacher's VaultClient split between authentication/transport and
// provider-level secret shaping.
type VaultClient interface {
	Login(ctx context.Context) error
	List(ctx context.Context, path string) ([]string, error)
	Read(ctx context.Context, path string) (map[string]interface{}, error)
	Write(ctx context.Context, path string, data map[string]interface{}) error
	Delete(ctx context.Context, path string) error
	MountExists(ctx context.Context, mount string) (bool, error)
}

// Provider implements pkg/secretprovider.Provider against a Vault KV
// engine, tolerating both the v1 and v2 KV mount shapes.
type Provider struct {
	config Config
	log    *logging.Logger
	client VaultClient
}

// New constructs a Provider from configMap, the generic map
// internal/settings hands every provider constructor.
func New(configMap map[string]interface{}, log *logging.Logger) *Provider {
	if log == nil {
		log = logging.New(false, false)
	}
	cfg := ConfigFromMap(configMap)
	return &Provider{
		config: cfg,
		log:    log,
		client: newHTTPClient(cfg, log),
	}
}

func (p *Provider) Name() string { return "vault" }

// TestConnection verifies AppRole authentication succeeds and that the
// configured mount actually exists, without reading or writing any secret.
func (p *Provider) TestConnection(ctx context.Context) error {
	if p.config.RoleID == "" || p.config.SecretID == "" {
		return internalerrors.ProviderAuthError{
			Provider: p.Name(),
			Err:      fmt.Errorf("role_id and secret_id are required for AppRole authentication"),
		}
	}
	if err := p.client.Login(ctx); err != nil {
		return internalerrors.ProviderAuthError{Provider: p.Name(), Err: err}
	}

	exists, err := p.client.MountExists(ctx, p.config.Mount)
	if err != nil {
		return internalerrors.ProviderError(p.Name(), "verify mount", err)
	}
	if !exists {
		return internalerrors.ProviderError(p.Name(), "verify mount", fmt.Errorf("mount %q not found", p.config.Mount))
	}
	return nil
}

func (p *Provider) ListSecrets(ctx context.Context, pathPrefix string) ([]string, error) {
	paths, err := p.client.List(ctx, p.mounted(pathPrefix))
	if err != nil {
		return nil, internalerrors.ProviderError(p.Name(), "list secrets", err)
	}
	return paths, nil
}

func (p *Provider) GetSecrets(ctx context.Context, path string) (map[string]string, error) {
	raw, err := p.client.Read(ctx, p.mounted(path))
	if err != nil {
		return nil, internalerrors.ProviderError(p.Name(), "get secrets", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = stringify(v)
	}
	return out, nil
}

func (p *Provider) PutSecrets(ctx context.Context, path string, values map[string]string) error {
	existing, err := p.client.Read(ctx, p.mounted(path))
	if err != nil && !isNotFound(err) {
		return internalerrors.ProviderError(p.Name(), "put secrets", err)
	}
	data := make(map[string]interface{}, len(existing)+len(values))
	for k, v := range existing {
		data[k] = v
	}
	for k, v := range values {
		data[k] = v
	}
	if err := p.client.Write(ctx, p.mounted(path), data); err != nil {
		return internalerrors.ProviderError(p.Name(), "put secrets", err)
	}
	return nil
}

func (p *Provider) DeleteSecrets(ctx context.Context, path string) error {
	if err := p.client.Delete(ctx, p.mounted(path)); err != nil {
		return internalerrors.ProviderError(p.Name(), "delete secrets", err)
	}
	return nil
}

func (p *Provider) mounted(path string) string {
	path = strings.TrimPrefix(path, "/")
	if p.config.Mount == "" || strings.HasPrefix(path, p.config.Mount+"/") {
		return path
	}
	return p.config.Mount + "/" + path
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
