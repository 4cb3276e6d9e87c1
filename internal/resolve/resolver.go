// Package resolve merges environment and collection variables into a
// single lookup map and substitutes {{name}} placeholders in request text.
package resolve

import (
	"context"
	"strings"
	"sync"

	"github.com/restbench/core/internal/logging"
	"github.com/restbench/core/internal/store"
	"github.com/restbench/core/pkg/secretprovider"
)

// MaxVariableNesting bounds re-substitution of nested {{name}} references.
const MaxVariableNesting = 10

// Source attributes where a resolved variable's value came from.
type Source string

const (
	SourceEnvironment Source = "environment"
	SourceCollection  Source = "collection"
	SourceVault       Source = "vault"
)

// Resolved pairs a value with the layer it was read from.
type Resolved struct {
	Value  string
	Source Source
}

// Resolver merges per-workspace environment variables with a collection's
// overlay, consulting the secret cache for vault-synced environments.
type Resolver struct {
	mu    sync.RWMutex
	store *store.Store
	cache *secretprovider.Cache
	log   *logging.Logger
}

// New creates a Resolver backed by the given store and secret cache.
func New(s *store.Store, cache *secretprovider.Cache, log *logging.Logger) *Resolver {
	return &Resolver{store: s, cache: cache, log: log}
}

// Resolve returns the full source-tagged variable map for a workspace,
// optionally overlaid by a collection's own variables.
func (r *Resolver) Resolve(ctx context.Context, workspaceID, collectionID string) (map[string]Resolved, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := map[string]Resolved{}

	env, err := r.store.Environments.ActiveEnvironment(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if env != nil {
		if env.VaultSynced {
			vars, err := r.cache.EnsureLoaded(ctx, env.ID, workspaceID)
			if err != nil {
				return nil, err
			}
			for _, v := range vars {
				if v.Enabled {
					out[v.Key] = Resolved{Value: v.Value, Source: SourceVault}
				}
			}
		} else {
			for _, v := range env.Variables {
				if v.Enabled {
					out[v.Key] = Resolved{Value: v.Value, Source: SourceEnvironment}
				}
			}
		}
	}

	if collectionID != "" {
		col, err := r.store.Collections.FindByID(ctx, collectionID)
		if err != nil {
			return nil, err
		}
		for k, v := range col.Variables {
			out[k] = Resolved{Value: v, Source: SourceCollection}
		}
	}

	return out, nil
}

// FlatMap discards the per-variable Source tag.
func FlatMap(resolved map[string]Resolved) map[string]string {
	flat := make(map[string]string, len(resolved))
	for k, v := range resolved {
		flat[k] = v.Value
	}
	return flat
}

// Substitute replaces every {{name}} occurrence in text with its resolved
// value. Names missing from vars are left as literal placeholders.
// Nested references (a value that itself contains {{...}}) are re-run
// until the text stops changing or MaxVariableNesting iterations pass;
// exceeding the bound returns the last iteration's result, never an error.
func Substitute(text string, vars map[string]string) string {
	current := text
	for i := 0; i < MaxVariableNesting; i++ {
		next := substituteOnce(current, vars)
		if next == current {
			return next
		}
		current = next
	}
	return current
}

// SubstituteRecord substitutes within both keys and values of a map.
func SubstituteRecord(record map[string]string, vars map[string]string) map[string]string {
	out := make(map[string]string, len(record))
	for k, v := range record {
		out[Substitute(k, vars)] = Substitute(v, vars)
	}
	return out
}

func substituteOnce(text string, vars map[string]string) string {
	var b strings.Builder
	b.Grow(len(text))

	i := 0
	for i < len(text) {
		start := strings.Index(text[i:], "{{")
		if start == -1 {
			b.WriteString(text[i:])
			break
		}
		start += i
		b.WriteString(text[i:start])

		end := strings.Index(text[start+2:], "}}")
		if end == -1 {
			b.WriteString(text[start:])
			break
		}
		end = start + 2 + end

		name := strings.TrimSpace(text[start+2 : end])
		if value, ok := vars[name]; ok {
			b.WriteString(value)
		} else {
			b.WriteString(text[start : end+2])
		}
		i = end + 2
	}
	return b.String()
}
