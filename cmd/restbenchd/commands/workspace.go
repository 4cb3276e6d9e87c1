package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/restbench/core/internal/store"
)

func NewWorkspaceCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage workspaces",
	}
	cmd.AddCommand(newWorkspaceCreateCommand(app), newWorkspaceListCommand(app))
	return cmd
}

func newWorkspaceCreateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := app.store.Workspaces.Create(context.Background(), store.Workspace{Name: args[0]})
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\n", ws.ID, ws.Name)
			return nil
		},
	}
}

func newWorkspaceListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspaces, err := app.store.Workspaces.List(context.Background())
			if err != nil {
				return err
			}
			for _, ws := range workspaces {
				fmt.Printf("%s\t%s\n", ws.ID, ws.Name)
			}
			return nil
		},
	}
}
