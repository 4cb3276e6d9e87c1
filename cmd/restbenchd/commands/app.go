// Package commands wires one cobra.Command per CLI verb, following the
// teacher's per-command-file layout: every constructor takes the shared
// *App and returns a ready *cobra.Command.
package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/restbench/core/internal/crypto"
	"github.com/restbench/core/internal/logging"
	"github.com/restbench/core/internal/metrics"
	"github.com/restbench/core/internal/providers/vault"
	"github.com/restbench/core/internal/resolve"
	"github.com/restbench/core/internal/script"
	"github.com/restbench/core/internal/sessionlog"
	"github.com/restbench/core/internal/settings"
	"github.com/restbench/core/internal/store"
	"github.com/restbench/core/internal/sync"
	"github.com/restbench/core/pkg/secretprovider"

	"github.com/restbench/core/internal/httpsender"
)

// App is the process-lifetime state every command operates against. It
// is constructed once in main and threaded through every subcommand the
// same way the teacher threads its *config.Config.
type App struct {
	DBPath   string
	NoColor  bool
	Debug    bool
	GitToken string
	GitOwner string
	GitRepo  string
	GitRef   string

	// GitHub App installation auth, used instead of GitToken when set.
	GitAppID          int64
	GitInstallationID int64
	GitPrivateKeyPath string

	Logger *logging.Logger

	store    *store.Store
	cache    *secretprovider.Cache
	resolver *resolve.Resolver
	exec     *script.Executor
	engine   *sync.Engine
	settings *settings.Service
	session  *sessionlog.Log
}

// Open initializes every subsystem: the encrypted store, the secret
// cache with its Vault factory, the resolver, the script executor, and
// (when Git credentials are present) the sync engine.
func (a *App) Open() error {
	a.Logger = logging.New(a.Debug, a.NoColor)
	metrics.Init()
	a.session = sessionlog.New()

	keyPath := crypto.DefaultDataDir() + "/master.key"
	keys, err := crypto.InitEncryption(keyPath)
	if err != nil {
		return err
	}

	dbPath := a.DBPath
	if dbPath == "" {
		dbPath = crypto.DefaultDataDir() + "/restbench.db"
	}
	s, err := store.Open(dbPath, keys)
	if err != nil {
		return err
	}
	a.store = s

	a.cache = secretprovider.NewCache(s, func(ctx context.Context, workspaceID string) (secretprovider.Provider, error) {
		cfg, err := a.settings.GetAll(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
		// GetAll leaves sensitive keys out, so the AppRole credentials are
		// read one by one.
		for _, key := range []string{"vault.role_id", "vault.secret_id"} {
			if v, err := a.settings.Get(ctx, workspaceID, key); err == nil {
				cfg[key] = v
			}
		}
		return vault.New(vaultConfigMap(cfg), a.Logger), nil
	})
	a.settings = settings.NewService(s, a.cache)
	a.resolver = resolve.New(s, a.cache, a.Logger)
	a.exec = script.New(s, a.resolver, a.cache, httpsender.New(30*time.Second), a.Logger)

	if a.GitOwner != "" && a.GitRepo != "" {
		gh, err := a.buildGitHubClient()
		if err != nil {
			return err
		}
		if gh != nil {
			branch := a.GitRef
			if branch == "" {
				branch = "main"
			}
			adapter := sync.NewTreeAdapter(sync.Config{Client: gh, Owner: a.GitOwner, Repo: a.GitRepo, Branch: branch})
			a.engine = sync.NewEngine(s, adapter)
		}
	}

	return nil
}

// buildGitHubClient prefers a GitHub App installation token (minted and
// auto-refreshed by ghinstallation) over a static personal access token,
// mirroring how the teacher's githubapp.App chooses between AppClient and
// InstallationClient. Returns nil, nil when neither is configured.
func (a *App) buildGitHubClient() (*github.Client, error) {
	if a.GitAppID != 0 && a.GitInstallationID != 0 && a.GitPrivateKeyPath != "" {
		pem, err := os.ReadFile(a.GitPrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("reading GitHub App private key: %w", err)
		}
		tr, err := ghinstallation.New(http.DefaultTransport, a.GitAppID, a.GitInstallationID, pem)
		if err != nil {
			return nil, fmt.Errorf("building GitHub App transport: %w", err)
		}
		return github.NewClient(&http.Client{Transport: tr}), nil
	}
	if a.GitToken != "" {
		oauthClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: a.GitToken}))
		return github.NewClient(oauthClient), nil
	}
	return nil, nil
}

// vaultConfigMap translates the "vault.*" settings keys into the bare
// keys vault.ConfigFromMap expects.
func vaultConfigMap(settings map[string]string) map[string]interface{} {
	out := map[string]interface{}{}
	rename := map[string]string{
		"vault.addr": "address", "vault.role_id": "role_id", "vault.secret_id": "secret_id",
		"vault.mount": "mount", "vault.namespace": "namespace",
	}
	for settingKey, bareKey := range rename {
		if v, ok := settings[settingKey]; ok {
			out[bareKey] = v
		}
	}
	if v, ok := settings["vault.tls_skip_verify"]; ok {
		out["tls_skip"] = v == "true"
	}
	return out
}

func (a *App) requireEngine() (*sync.Engine, error) {
	if a.engine == nil {
		return nil, fmt.Errorf("no git remote configured: set --git-token, --git-owner, and --git-repo")
	}
	return a.engine, nil
}

func (a *App) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}
