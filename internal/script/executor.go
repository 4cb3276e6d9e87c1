// Package script runs a request's pre-request dependency chain and
// post-response variable-extraction actions. It has no HTTP
// dependency of its own: a RequestSender is injected so the executor
// stays unit-testable with a fake.
package script

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	internalerrors "github.com/restbench/core/internal/errors"
	"github.com/restbench/core/internal/logging"
	"github.com/restbench/core/internal/metrics"
	"github.com/restbench/core/internal/resolve"
	"github.com/restbench/core/internal/store"
	"github.com/restbench/core/pkg/secretprovider"
)

// MaxScriptChainDepth bounds how many pre-request hops a single
// execution will follow before giving up.
const MaxScriptChainDepth = 3

// Executor resolves variables, walks a request's pre-request chain,
// sends the resolved request, and applies its post-response actions.
type Executor struct {
	store    *store.Store
	resolver *resolve.Resolver
	cache    *secretprovider.Cache
	sender   RequestSender
	log      *logging.Logger
}

// New constructs an Executor. log may be nil.
func New(s *store.Store, r *resolve.Resolver, cache *secretprovider.Cache, sender RequestSender, log *logging.Logger) *Executor {
	if log == nil {
		log = logging.New(false, true)
	}
	return &Executor{store: s, resolver: r, cache: cache, sender: sender, log: log}
}

// Execute runs requestID's pre-request chain (if any), sends the
// request itself, applies its post-response actions, and returns the
// final response.
func (e *Executor) Execute(ctx context.Context, requestID string) (Response, error) {
	visited := map[string]bool{requestID: true}
	if err := e.runChain(ctx, requestID, visited, 0); err != nil {
		return Response{}, err
	}

	req, err := e.store.Requests.FindByID(ctx, requestID)
	if err != nil {
		return Response{}, err
	}
	resp, err := e.sendResolved(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if err := e.runPostActions(ctx, req, resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// runChain walks and executes req's pre-request dependency (and its
// own dependency, etc.) before req itself runs, bounded by
// MaxScriptChainDepth and guarded against cycles within this single
// invocation's visited set.
func (e *Executor) runChain(ctx context.Context, requestID string, visited map[string]bool, depth int) error {
	if depth >= MaxScriptChainDepth {
		return internalerrors.ScriptLimitError{RequestID: requestID, Reason: "max depth"}
	}

	req, err := e.store.Requests.FindByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Scripts.PreRequest == nil || req.Scripts.PreRequest.RequestID == "" {
		return nil
	}
	depID := req.Scripts.PreRequest.RequestID

	if visited[depID] {
		return internalerrors.ScriptLimitError{RequestID: depID, Reason: "cycle"}
	}
	visited[depID] = true

	if err := e.runChain(ctx, depID, visited, depth+1); err != nil {
		return err
	}

	depReq, err := e.store.Requests.FindByID(ctx, depID)
	if err != nil {
		return err
	}
	resp, err := e.sendResolved(ctx, depReq)
	if err != nil {
		return err
	}
	return e.runPostActions(ctx, depReq, resp)
}

func (e *Executor) sendResolved(ctx context.Context, req store.Request) (Response, error) {
	col, err := e.store.Collections.FindByID(ctx, req.CollectionID)
	if err != nil {
		return Response{}, err
	}

	resolved, err := e.resolver.Resolve(ctx, col.WorkspaceID, req.CollectionID)
	if err != nil {
		return Response{}, err
	}
	vars := resolve.FlatMap(resolved)

	url := resolve.Substitute(req.URL, vars)
	headers := map[string]string{}
	for _, h := range req.Headers {
		if h.Enabled {
			headers[resolve.Substitute(h.Key, vars)] = resolve.Substitute(h.Value, vars)
		}
	}
	applyAuth(headers, req.Auth, vars)

	body := []byte(resolve.Substitute(req.Body, vars))

	start := time.Now()
	resp, err := e.sender.Send(ctx, string(req.Method), url, headers, body)
	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.Status)
	}
	metrics.RecordRequest(string(req.Method), status, time.Since(start).Seconds())
	return resp, err
}

func applyAuth(headers map[string]string, auth store.AuthConfig, vars map[string]string) {
	switch auth.Type {
	case store.AuthBearer:
		headers["Authorization"] = "Bearer " + resolve.Substitute(auth.BearerToken, vars)
	case store.AuthBasic:
		user := resolve.Substitute(auth.BasicUsername, vars)
		pass := resolve.Substitute(auth.BasicPassword, vars)
		headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
	case store.AuthAPIKey:
		if strings.EqualFold(auth.APIKeyIn, "header") {
			headers[auth.APIKeyName] = resolve.Substitute(auth.APIKeyValue, vars)
		}
	}
}

// runPostActions extracts each configured value from resp and writes
// it to the workspace's active environment when that environment already
// defines the name, and otherwise to the collection's own variable overlay.
func (e *Executor) runPostActions(ctx context.Context, req store.Request, resp Response) error {
	col, err := e.store.Collections.FindByID(ctx, req.CollectionID)
	if err != nil {
		return err
	}

	for _, action := range req.Scripts.PostResponse {
		value, err := Extract(resp, action.Source)
		if err != nil {
			e.log.Warn("post-response extraction for %s (source %s) failed, skipping: %v", action.Target, action.Source, err)
			continue
		}
		value = stripPlaceholders(value)

		if err := e.writeVariable(ctx, col.WorkspaceID, col.ID, action.Target, value); err != nil {
			e.log.Warn("post-response write of %s failed, skipping: %v", action.Target, err)
		}
	}
	return nil
}

func (e *Executor) writeVariable(ctx context.Context, workspaceID, collectionID, key, value string) error {
	env, err := e.store.Environments.ActiveEnvironment(ctx, workspaceID)
	if err != nil {
		return err
	}

	hasKey := false
	if env != nil {
		hasKey, err = e.environmentHasKey(ctx, *env, key)
		if err != nil {
			return err
		}
	}

	if env == nil || !hasKey {
		_, err := e.store.Collections.Update(ctx, collectionID, func(c *store.Collection) {
			if c.Variables == nil {
				c.Variables = map[string]string{}
			}
			c.Variables[key] = value
		})
		if err != nil {
			return err
		}
		return e.store.Collections.MarkDirty(ctx, collectionID)
	}

	if !env.VaultSynced {
		return e.store.Environments.SetVariable(ctx, env.ID, key, value)
	}

	// Vault-synced: update the in-memory cache immediately, push to the
	// provider in the background so a slow backend never blocks the
	// response path that produced this value.
	cached, _ := e.cache.GetCached(env.ID)
	merged := mergeVariable(cached, key, value)
	e.cache.SetCached(env.ID, merged)

	go func() {
		pushCtx := context.Background()
		if err := e.cache.PushVariables(pushCtx, env.ID, workspaceID, []secretprovider.Variable{{Key: key, Value: value, Enabled: true}}); err != nil {
			e.log.Warn("background push of %s to vault-synced environment %s failed: %v", key, env.ID, err)
		}
	}()
	return nil
}

// environmentHasKey reports whether key is already one of env's
// variables, so a post-response write only updates the active
// environment for an existing name and routes new names to the
// collection overlay instead. A vault-synced environment never persists
// its variables to the store (see store.EnvironmentRepo), so its keys
// are read from the secret cache rather than env.Variables.
func (e *Executor) environmentHasKey(ctx context.Context, env store.Environment, key string) (bool, error) {
	if !env.VaultSynced {
		for _, v := range env.Variables {
			if v.Key == key {
				return true, nil
			}
		}
		return false, nil
	}

	vars, err := e.cache.EnsureLoaded(ctx, env.ID, env.WorkspaceID)
	if err != nil {
		return false, err
	}
	for _, v := range vars {
		if v.Key == key {
			return true, nil
		}
	}
	return false, nil
}

func mergeVariable(vars []secretprovider.Variable, key, value string) []secretprovider.Variable {
	for i := range vars {
		if vars[i].Key == key {
			vars[i].Value = value
			return vars
		}
	}
	return append(vars, secretprovider.Variable{Key: key, Value: value, Enabled: true})
}

// stripPlaceholders defangs any {{...}} syntax in an extracted value
// before it is persisted as a variable, so a response body can never
// smuggle a substitution directive into a later request.
func stripPlaceholders(value string) string {
	value = strings.ReplaceAll(value, "{{", "")
	value = strings.ReplaceAll(value, "}}", "")
	return value
}
