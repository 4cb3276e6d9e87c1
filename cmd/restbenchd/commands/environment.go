package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/restbench/core/internal/store"
)

func NewEnvironmentCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "environment",
		Short: "Manage environments",
	}
	cmd.AddCommand(
		newEnvironmentCreateCommand(app),
		newEnvironmentListCommand(app),
		newEnvironmentActivateCommand(app),
	)
	return cmd
}

func newEnvironmentCreateCommand(app *App) *cobra.Command {
	var workspaceID, vaultPath string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an environment in a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workspaceID == "" {
				return fmt.Errorf("--workspace is required")
			}
			env, err := app.store.Environments.Create(context.Background(), store.Environment{
				WorkspaceID: workspaceID, Name: args[0], VaultPath: vaultPath,
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\n", env.ID, env.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace id")
	cmd.Flags().StringVar(&vaultPath, "vault-path", "", "vault-synced secret path")
	return cmd
}

func newEnvironmentListCommand(app *App) *cobra.Command {
	var workspaceID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List environments in a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workspaceID == "" {
				return fmt.Errorf("--workspace is required")
			}
			envs, err := app.store.Environments.FindByParent(context.Background(), workspaceID)
			if err != nil {
				return err
			}
			for _, e := range envs {
				active := ""
				if e.IsActive {
					active = " (active)"
				}
				fmt.Printf("%s\t%s%s\n", e.ID, e.Name, active)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace id")
	return cmd
}

func newEnvironmentActivateCommand(app *App) *cobra.Command {
	var workspaceID string
	cmd := &cobra.Command{
		Use:   "activate <environment-id>",
		Short: "Activate an environment, deactivating any other in its workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workspaceID == "" {
				return fmt.Errorf("--workspace is required")
			}
			return app.store.Environments.Activate(context.Background(), workspaceID, args[0])
		},
	}
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace id")
	return cmd
}
