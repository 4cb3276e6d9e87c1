package vault

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVaultClient is an in-memory VaultClient used to exercise Provider
// without a real Vault server.
type fakeVaultClient struct {
	loginCalls  int
	loginErr    error
	data        map[string]map[string]interface{}
	listErr     error
	mountExists bool
	mountErr    error
}

func (f *fakeVaultClient) Login(ctx context.Context) error {
	f.loginCalls++
	return f.loginErr
}

func (f *fakeVaultClient) List(ctx context.Context, path string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []string
	for p := range f.data {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeVaultClient) Read(ctx context.Context, path string) (map[string]interface{}, error) {
	v, ok := f.data[path]
	if !ok {
		return nil, notFoundError{}
	}
	return v, nil
}

func (f *fakeVaultClient) Write(ctx context.Context, path string, data map[string]interface{}) error {
	if f.data == nil {
		f.data = map[string]map[string]interface{}{}
	}
	if f.data[path] == nil {
		f.data[path] = map[string]interface{}{}
	}
	for k, v := range data {
		f.data[path][k] = v
	}
	return nil
}

func (f *fakeVaultClient) Delete(ctx context.Context, path string) error {
	delete(f.data, path)
	return nil
}

func (f *fakeVaultClient) MountExists(ctx context.Context, mount string) (bool, error) {
	if f.mountErr != nil {
		return false, f.mountErr
	}
	return f.mountExists, nil
}

func newTestProvider(client VaultClient) *Provider {
	return &Provider{config: Config{Mount: "secret"}, client: client, log: nil}
}

func TestProviderGetSecretsStringifiesValues(t *testing.T) {
	client := &fakeVaultClient{data: map[string]map[string]interface{}{
		"secret/payments/prod": {"API_KEY": "sk-live-xyz", "TIMEOUT": 30},
	}}
	p := New(map[string]interface{}{"mount": "secret"}, nil)
	p.client = client

	got, err := p.GetSecrets(context.Background(), "payments/prod")
	require.NoError(t, err)
	assert.Equal(t, "sk-live-xyz", got["API_KEY"])
	assert.Equal(t, "30", got["TIMEOUT"])
}

func TestProviderPutSecretsWritesAtMountedPath(t *testing.T) {
	client := &fakeVaultClient{}
	p := newTestProvider(client)

	err := p.PutSecrets(context.Background(), "payments/prod", map[string]string{"TOKEN": "t-1"})
	require.NoError(t, err)
	assert.Equal(t, "t-1", client.data["secret/payments/prod"]["TOKEN"])
}

func TestProviderDeleteSecretsRemovesMountedPath(t *testing.T) {
	client := &fakeVaultClient{data: map[string]map[string]interface{}{
		"secret/payments/prod": {"TOKEN": "t-1"},
	}}
	p := newTestProvider(client)

	require.NoError(t, p.DeleteSecrets(context.Background(), "payments/prod"))
	_, present := client.data["secret/payments/prod"]
	assert.False(t, present)
}

func TestProviderTestConnectionRequiresAppRoleCredentials(t *testing.T) {
	p := New(map[string]interface{}{}, nil)
	err := p.TestConnection(context.Background())
	require.Error(t, err)
}

func TestProviderTestConnectionLogsInWithAppRole(t *testing.T) {
	client := &fakeVaultClient{mountExists: true}
	p := New(map[string]interface{}{"role_id": "r", "secret_id": "s"}, nil)
	p.client = client

	require.NoError(t, p.TestConnection(context.Background()))
	assert.Equal(t, 1, client.loginCalls)
}

func TestProviderTestConnectionFailsWhenMountMissing(t *testing.T) {
	client := &fakeVaultClient{mountExists: false}
	p := New(map[string]interface{}{"role_id": "r", "secret_id": "s"}, nil)
	p.client = client

	require.Error(t, p.TestConnection(context.Background()))
}

func TestMountedPathDoesNotDoublePrefix(t *testing.T) {
	p := newTestProvider(&fakeVaultClient{})
	assert.Equal(t, "secret/foo", p.mounted("foo"))
	assert.Equal(t, "secret/foo", p.mounted("secret/foo"))
}

func TestKV2PathHelpers(t *testing.T) {
	assert.Equal(t, "secret/data/payments/prod", kv2DataPath("secret/payments/prod"))
	assert.Equal(t, "secret/metadata/payments/prod", kv2MetadataPath("secret/payments/prod"))
}
