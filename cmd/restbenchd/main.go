package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/restbench/core/cmd/restbenchd/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app := &commands.App{}

	rootCmd := &cobra.Command{
		Use:   "restbenchd",
		Short: "Persistence and sync core for an API-client workspace",
		Long: `restbenchd stores workspaces, collections, requests, and environments
in an encrypted local database, resolves {{variables}} against them, runs
pre/post-request scripts, and reconciles collections against a Git remote.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "completion" {
				return nil
			}
			return app.Open()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.Close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&app.DBPath, "db", "", "path to the encrypted database (default: platform data dir)")
	rootCmd.PersistentFlags().BoolVar(&app.NoColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&app.Debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&app.GitToken, "git-token", os.Getenv("RESTBENCH_GIT_TOKEN"), "Git remote access token")
	rootCmd.PersistentFlags().StringVar(&app.GitOwner, "git-owner", os.Getenv("RESTBENCH_GIT_OWNER"), "Git remote repository owner")
	rootCmd.PersistentFlags().StringVar(&app.GitRepo, "git-repo", os.Getenv("RESTBENCH_GIT_REPO"), "Git remote repository name")
	rootCmd.PersistentFlags().StringVar(&app.GitRef, "git-ref", "main", "Git branch to sync against")
	rootCmd.PersistentFlags().Int64Var(&app.GitAppID, "git-app-id", 0, "GitHub App ID (overrides --git-token when set with --git-installation-id)")
	rootCmd.PersistentFlags().Int64Var(&app.GitInstallationID, "git-installation-id", 0, "GitHub App installation ID")
	rootCmd.PersistentFlags().StringVar(&app.GitPrivateKeyPath, "git-private-key", os.Getenv("RESTBENCH_GIT_PRIVATE_KEY"), "path to the GitHub App private key PEM")

	rootCmd.AddCommand(
		commands.NewWorkspaceCommand(app),
		commands.NewCollectionCommand(app),
		commands.NewEnvironmentCommand(app),
		commands.NewSendCommand(app),
		commands.NewSettingsCommand(app),
		commands.NewHistoryCommand(app),
		commands.NewCompletionCommand(app),
	)

	return rootCmd.Execute()
}
