package vault

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/restbench/core/internal/logging"
)

// httpClient is the default VaultClient, talking to the raw Vault HTTP
// API rather than the official SDK (matching the teacher's
// HTTPVaultClient, which predates an SDK dependency in this tree).
type httpClient struct {
	config Config
	log    *logging.Logger
	tokens tokenCache
	http   *http.Client
}

func newHTTPClient(cfg Config, log *logging.Logger) *httpClient {
	if log == nil {
		log = logging.New(false, true)
	}
	hc := &http.Client{Timeout: DefaultTimeout}
	if cfg.TLSSkip {
		hc.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	return &httpClient{config: cfg, log: log, http: hc}
}

// Login performs AppRole authentication and caches the returned client
// token until its lease nears expiry.
func (c *httpClient) Login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"role_id":   c.config.RoleID,
		"secret_id": c.config.SecretID,
	})
	if err != nil {
		return fmt.Errorf("marshal approle login body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("auth/approle/login"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build approle login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", c.config.Namespace)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("approle login request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("approle login returned status %d: %s", resp.StatusCode, string(raw))
	}

	var login struct {
		Auth struct {
			ClientToken   string `json:"client_token"`
			LeaseDuration int    `json:"lease_duration"`
		} `json:"auth"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return fmt.Errorf("decode approle login response: %w", err)
	}
	if login.Auth.ClientToken == "" {
		return fmt.Errorf("vault returned no client token for approle login")
	}

	c.tokens.set(login.Auth.ClientToken, time.Duration(login.Auth.LeaseDuration)*time.Second)
	c.log.Debug("vault approle login succeeded, lease %ds", login.Auth.LeaseDuration)
	return nil
}

// List tries the KV v2 metadata path, then the v1 path, each with both
// the LIST verb and the GET-with-list-query fallback some proxies
// require (four strategies total).
func (c *httpClient) List(ctx context.Context, path string) ([]string, error) {
	attempts := []func() ([]string, error){
		func() ([]string, error) { return c.listOnce(ctx, kv2MetadataPath(path), true) },
		func() ([]string, error) { return c.listOnce(ctx, kv2MetadataPath(path), false) },
		func() ([]string, error) { return c.listOnce(ctx, path, true) },
		func() ([]string, error) { return c.listOnce(ctx, path, false) },
	}

	var lastErr error
	for _, attempt := range attempts {
		keys, err := attempt()
		if err == nil {
			return keys, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *httpClient) listOnce(ctx context.Context, path string, useListVerb bool) ([]string, error) {
	var req *http.Request
	var err error
	if useListVerb {
		req, err = http.NewRequestWithContext(ctx, "LIST", c.url(path), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.url(path)+"?list=true", nil)
	}
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var listResp struct {
		Data struct {
			Keys []string `json:"keys"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}
	return listResp.Data.Keys, nil
}

// Read tries the KV v2 data shape first, falling back to the v1 shape
// when the mount turns out not to be versioned.
func (c *httpClient) Read(ctx context.Context, path string) (map[string]interface{}, error) {
	if data, err := c.readOnce(ctx, kv2DataPath(path), true); err == nil {
		return data, nil
	} else if !isNotFound(err) {
		return nil, err
	}
	return c.readOnce(ctx, path, false)
}

func (c *httpClient) readOnce(ctx context.Context, path string, unwrapV2 bool) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode read response: %w", err)
	}

	if unwrapV2 {
		var v2 struct {
			Data map[string]interface{} `json:"data"`
		}
		if err := json.Unmarshal(body.Data, &v2); err != nil {
			return nil, fmt.Errorf("decode kv2 data envelope: %w", err)
		}
		if v2.Data == nil {
			return nil, notFoundError{}
		}
		return v2.Data, nil
	}

	var v1 map[string]interface{}
	if err := json.Unmarshal(body.Data, &v1); err != nil {
		return nil, fmt.Errorf("decode kv1 data: %w", err)
	}
	return v1, nil
}

// Write tries the KV v2 data shape (wrapping the payload under "data"),
// falling back to writing the fields directly for a v1 mount.
func (c *httpClient) Write(ctx context.Context, path string, data map[string]interface{}) error {
	if err := c.writeOnce(ctx, kv2DataPath(path), map[string]interface{}{"data": data}); err == nil {
		return nil
	} else if !isNotFound(err) {
		return err
	}
	return c.writeOnce(ctx, path, data)
}

func (c *httpClient) writeOnce(ctx context.Context, path string, body map[string]interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal write body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return nil
}

// Delete tries a full KV v2 metadata destroy (removes every version),
// falling back to a plain v1 delete.
func (c *httpClient) Delete(ctx context.Context, path string) error {
	if err := c.deleteOnce(ctx, kv2MetadataPath(path)); err == nil {
		return nil
	} else if !isNotFound(err) {
		return err
	}
	return c.deleteOnce(ctx, path)
}

func (c *httpClient) deleteOnce(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.url(path), nil)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return nil
}

// MountExists queries the sys/mounts endpoint and reports whether mount
// is registered, used by TestConnection to confirm the configured KV
// mount actually exists rather than only checking AppRole credentials.
func (c *httpClient) MountExists(ctx context.Context, mount string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("sys/mounts"), nil)
	if err != nil {
		return false, err
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	var mounts map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&mounts); err != nil {
		return false, fmt.Errorf("decode mounts response: %w", err)
	}

	mount = strings.TrimSuffix(strings.TrimPrefix(mount, "/"), "/")
	_, ok := mounts[mount+"/"]
	return ok, nil
}

// do authenticates the request, executes it, and retries exactly once
// after a fresh login if Vault returns 403 (token expired or revoked
// out from under the cache).
func (c *httpClient) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.doOnce(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusForbidden {
		return checkStatus(resp)
	}
	_ = resp.Body.Close()

	c.tokens.clear()
	if loginErr := c.Login(ctx); loginErr != nil {
		return nil, fmt.Errorf("token refresh after 403 failed: %w", loginErr)
	}

	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return nil, bodyErr
		}
		retry.Body = body
	}
	resp, err = c.doOnce(ctx, retry)
	if err != nil {
		return nil, err
	}
	return checkStatus(resp)
}

func (c *httpClient) doOnce(ctx context.Context, req *http.Request) (*http.Response, error) {
	token, ok := c.tokens.get()
	if !ok {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
		token, _ = c.tokens.get()
	}
	req.Header.Set("X-Vault-Token", token)
	return c.http.Do(req)
}

func checkStatus(resp *http.Response) (*http.Response, error) {
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, notFoundError{}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("vault returned status %d: %s", resp.StatusCode, string(raw))
	}
	return resp, nil
}

func (c *httpClient) url(path string) string {
	return strings.TrimSuffix(c.config.Address, "/") + "/v1/" + strings.TrimPrefix(path, "/")
}

type notFoundError struct{}

func (notFoundError) Error() string { return "vault: not found" }

func isNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

// kv2DataPath inserts the "data" segment a KV v2 mount requires after
// its first path component (the mount name).
func kv2DataPath(path string) string { return insertSegment(path, "data") }

// kv2MetadataPath inserts "metadata", the segment KV v2 uses for
// listing and full-destroy delete.
func kv2MetadataPath(path string) string { return insertSegment(path, "metadata") }

func insertSegment(path, segment string) string {
	path = strings.TrimPrefix(path, "/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		return path
	}
	return parts[0] + "/" + segment + "/" + parts[1]
}
