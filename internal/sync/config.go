package sync

import "github.com/google/go-github/v66/github"

// Config is the remote target both adapters operate against. Client's
// auth is the caller's responsibility — an injected *http.Client wrapping
// golang.org/x/oauth2 (personal token) or bradleyfalzon/ghinstallation/v2
// (GitHub App installation), exactly as githubapp.App builds one.
type Config struct {
	Client *github.Client
	Owner  string
	Repo   string
	Branch string
}
