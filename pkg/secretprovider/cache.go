package secretprovider

import (
	"context"
	"sync"

	internalerrors "github.com/restbench/core/internal/errors"
	"github.com/restbench/core/internal/store"
)

// globalScope is the provider-instance cache key used when no
// workspace-specific provider configuration overrides the global one.
const globalScope = "__global__"

// Factory builds the Provider configured for a workspace (or the
// global provider when workspaceID is empty). Constructing a Provider
// may itself perform a login (e.g. Vault AppRole), so the Cache only
// calls it once per scope and reuses the result until ResetProvider
// invalidates it.
type Factory func(ctx context.Context, workspaceID string) (Provider, error)

// Cache holds vault-synced environment variables and their backing
// Provider instances in memory only. Nothing here is ever serialized;
// values live for the life of the process and are rebuilt from the
// provider on restart.
type Cache struct {
	mu        sync.Mutex
	store     *store.Store
	newClient Factory

	providers map[string]Provider
	variables map[string][]Variable // keyed by environment ID
}

// NewCache constructs a Cache backed by s (for environment/vault-path
// lookups) and newClient (for building Provider instances on demand).
func NewCache(s *store.Store, newClient Factory) *Cache {
	return &Cache{
		store:     s,
		newClient: newClient,
		providers: map[string]Provider{},
		variables: map[string][]Variable{},
	}
}

// GetCached returns a previously loaded variable set without touching
// the provider.
func (c *Cache) GetCached(envID string) ([]Variable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vars, ok := c.variables[envID]
	return vars, ok
}

// SetCached overwrites the in-memory variable set for an environment.
func (c *Cache) SetCached(envID string, vars []Variable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables[envID] = vars
}

// ResetProvider discards the cached Provider instance for a scope so
// the next access rebuilds it (and re-authenticates) from current
// settings, and flushes every cached secret value: a stale Vault session
// must never leave stale secrets behind it. workspaceID empty resets the
// global provider.
func (c *Cache) ResetProvider(workspaceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.providers, scopeKey(workspaceID))
	c.variables = map[string][]Variable{}
}

// EnsureLoaded returns the cached variable set for envID, fetching it
// from the provider on first access.
func (c *Cache) EnsureLoaded(ctx context.Context, envID, workspaceID string) ([]Variable, error) {
	if vars, ok := c.GetCached(envID); ok {
		return vars, nil
	}
	return c.FetchVariables(ctx, envID, workspaceID)
}

// FetchVariables always reloads from the provider, overwriting
// whatever was cached for envID.
func (c *Cache) FetchVariables(ctx context.Context, envID, workspaceID string) ([]Variable, error) {
	env, err := c.store.Environments.FindByID(ctx, envID)
	if err != nil {
		return nil, err
	}

	provider, err := c.providerFor(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	raw, err := provider.GetSecrets(ctx, env.VaultPath)
	if err != nil {
		return nil, internalerrors.ProviderError(provider.Name(), "fetch secrets", err)
	}

	vars := make([]Variable, 0, len(raw))
	for k, v := range raw {
		vars = append(vars, Variable{Key: k, Value: v, Enabled: true})
	}
	c.SetCached(envID, vars)
	return vars, nil
}

// PushVariables writes vars to the provider at the environment's vault
// path, then updates the cache to match. Intended for the script
// executor's post-response write path when the target environment is
// vault-synced.
func (c *Cache) PushVariables(ctx context.Context, envID, workspaceID string, vars []Variable) error {
	env, err := c.store.Environments.FindByID(ctx, envID)
	if err != nil {
		return err
	}

	provider, err := c.providerFor(ctx, workspaceID)
	if err != nil {
		return err
	}

	values := make(map[string]string, len(vars))
	for _, v := range vars {
		if !v.Enabled {
			continue
		}
		values[v.Key] = v.Value
	}
	if err := provider.PutSecrets(ctx, env.VaultPath, values); err != nil {
		return internalerrors.ProviderError(provider.Name(), "push secrets", err)
	}

	merged, ok := c.GetCached(envID)
	if !ok {
		merged = nil
	}
	for _, v := range vars {
		found := false
		for i := range merged {
			if merged[i].Key == v.Key {
				merged[i].Value = v.Value
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, v)
		}
	}
	c.SetCached(envID, merged)
	return nil
}

// DeleteSecrets removes the environment's entire secret path from the
// provider and clears the in-memory cache entry.
func (c *Cache) DeleteSecrets(ctx context.Context, envID, workspaceID string) error {
	env, err := c.store.Environments.FindByID(ctx, envID)
	if err != nil {
		return err
	}

	provider, err := c.providerFor(ctx, workspaceID)
	if err != nil {
		return err
	}
	if err := provider.DeleteSecrets(ctx, env.VaultPath); err != nil {
		return internalerrors.ProviderError(provider.Name(), "delete secrets", err)
	}

	c.mu.Lock()
	delete(c.variables, envID)
	c.mu.Unlock()
	return nil
}

func (c *Cache) providerFor(ctx context.Context, workspaceID string) (Provider, error) {
	key := scopeKey(workspaceID)

	c.mu.Lock()
	if p, ok := c.providers[key]; ok {
		c.mu.Unlock()
		return p, nil
	}
	c.mu.Unlock()

	p, err := c.newClient(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.providers[key] = p
	c.mu.Unlock()
	return p, nil
}

func scopeKey(workspaceID string) string {
	if workspaceID == "" {
		return globalScope
	}
	return workspaceID
}
