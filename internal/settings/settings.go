// Package settings orchestrates the two-tier workspace/global key-value
// store: it adds a "did you mean" suggestion on unknown keys and ties
// writes of provider-shaped keys back to the secret provider cache, so a
// changed vault address or token never serves a stale client.
package settings

import (
	"context"
	"sort"
	"strings"

	internalerrors "github.com/restbench/core/internal/errors"
	"github.com/restbench/core/internal/store"
	"github.com/restbench/core/pkg/secretprovider"
)

// ProviderInvalidatingKeys enumerates settings that shape how a secret
// provider or sync adapter is constructed. Writing any of them discards
// the cached provider instance for the affected scope so the next access
// rebuilds (and re-authenticates) it from the new value.
var ProviderInvalidatingKeys = map[string]bool{
	"vault.addr":            true,
	"vault.token":           true,
	"vault.role_id":         true,
	"vault.secret_id":       true,
	"vault.namespace":       true,
	"vault.kv_version":      true,
	"vault.tls_skip_verify": true,
	"sync.provider":         true,
	"sync.repository":       true,
	"sync.branch":           true,
	"sync.token":            true,
}

// Service wraps a Store's two-tier settings with the provider-reset side
// effect and the unknown-key suggestion message.
type Service struct {
	store *store.Store
	cache *secretprovider.Cache
}

func NewService(s *store.Store, cache *secretprovider.Cache) *Service {
	return &Service{store: s, cache: cache}
}

// Get reads workspace[key] falling back to global[key]. An unknown key
// returns a ConfigError naming every provider-invalidating key as a hint,
// mirroring the fallback-with-suggestion shape used for provider lookups.
func (s *Service) Get(ctx context.Context, workspaceID, key string) (string, error) {
	v, err := s.store.Settings.Get(ctx, workspaceID, key)
	if err != nil {
		if _, ok := err.(internalerrors.NotFoundError); ok {
			return "", internalerrors.ConfigError{
				Field:      "key",
				Value:      key,
				Message:    "setting not found",
				Suggestion: "Known provider-shaped keys: " + strings.Join(knownKeys(), ", "),
			}
		}
		return "", err
	}
	return v, nil
}

// GetAll returns every non-sensitive key in scope, workspace overlaying
// global.
func (s *Service) GetAll(ctx context.Context, workspaceID string) (map[string]string, error) {
	return s.store.Settings.GetAll(ctx, workspaceID)
}

// Set writes key in the given scope and, if key shapes provider
// construction, resets the cached provider for that scope so the change
// takes effect on the next access rather than at next process restart.
func (s *Service) Set(ctx context.Context, workspaceID, key, value string) error {
	if err := s.store.Settings.Set(ctx, workspaceID, key, value); err != nil {
		return err
	}
	if ProviderInvalidatingKeys[key] && s.cache != nil {
		s.cache.ResetProvider(workspaceID)
	}
	return nil
}

func knownKeys() []string {
	out := make([]string, 0, len(ProviderInvalidatingKeys))
	for k := range ProviderInvalidatingKeys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
