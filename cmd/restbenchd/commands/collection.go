package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/restbench/core/internal/store"
)

func NewCollectionCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage collections",
	}
	cmd.AddCommand(
		newCollectionCreateCommand(app),
		newCollectionListCommand(app),
		newCollectionPushCommand(app),
		newCollectionPullCommand(app),
		newCollectionForceLocalCommand(app),
		newCollectionForceRemoteCommand(app),
		newCollectionDeleteRemoteCommand(app),
	)
	return cmd
}

func newCollectionCreateCommand(app *App) *cobra.Command {
	var workspaceID string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a collection in a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workspaceID == "" {
				return fmt.Errorf("--workspace is required")
			}
			col, err := app.store.Collections.Create(context.Background(), store.Collection{
				WorkspaceID: workspaceID, Name: args[0],
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\n", col.ID, col.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace id")
	return cmd
}

func newCollectionPushCommand(app *App) *cobra.Command {
	var workspaceID string
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push all dirty collections in a workspace to the remote",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workspaceID == "" {
				return fmt.Errorf("--workspace is required")
			}
			engine, err := app.requireEngine()
			if err != nil {
				return err
			}
			result, err := engine.PushAll(context.Background(), workspaceID)
			if err != nil {
				return err
			}
			fmt.Printf("pushed=%v conflicts=%v errors=%v\n", result.Pushed, result.Conflicts, result.Errors)
			if !result.Success {
				return fmt.Errorf("push completed with conflicts or errors")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace id")
	return cmd
}

func newCollectionPullCommand(app *App) *cobra.Command {
	var workspaceID string
	cmd := &cobra.Command{
		Use:   "pull <collection-id>",
		Short: "Reconcile a single collection against the remote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workspaceID == "" {
				return fmt.Errorf("--workspace is required")
			}
			engine, err := app.requireEngine()
			if err != nil {
				return err
			}
			conflicts, err := engine.PullSingleCollection(context.Background(), workspaceID, args[0])
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				fmt.Printf("conflicts: %v\n", conflicts)
				return fmt.Errorf("pull surfaced unresolved conflicts")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace id")
	return cmd
}

func newCollectionForceLocalCommand(app *App) *cobra.Command {
	var workspaceID string
	cmd := &cobra.Command{
		Use:   "force-local <collection-id>",
		Short: "Resolve all conflicting paths in favor of the local copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workspaceID == "" {
				return fmt.Errorf("--workspace is required")
			}
			engine, err := app.requireEngine()
			if err != nil {
				return err
			}
			return engine.ForceKeepLocal(context.Background(), workspaceID, args[0])
		},
	}
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace id")
	return cmd
}

func newCollectionForceRemoteCommand(app *App) *cobra.Command {
	var workspaceID string
	cmd := &cobra.Command{
		Use:   "force-remote <collection-id>",
		Short: "Resolve all conflicting paths in favor of the remote copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workspaceID == "" {
				return fmt.Errorf("--workspace is required")
			}
			engine, err := app.requireEngine()
			if err != nil {
				return err
			}
			return engine.ForceKeepRemote(context.Background(), workspaceID, args[0])
		},
	}
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace id")
	return cmd
}

func newCollectionDeleteRemoteCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-remote <collection-id>",
		Short: "Delete a collection's directory from the remote without touching local data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := app.requireEngine()
			if err != nil {
				return err
			}
			return engine.DeleteRemoteCollection(context.Background(), args[0])
		},
	}
	return cmd
}

func newCollectionListCommand(app *App) *cobra.Command {
	var workspaceID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List collections in a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workspaceID == "" {
				return fmt.Errorf("--workspace is required")
			}
			cols, err := app.store.Collections.FindByParent(context.Background(), workspaceID)
			if err != nil {
				return err
			}
			for _, c := range cols {
				dirty := ""
				if c.IsDirty {
					dirty = " (dirty)"
				}
				fmt.Printf("%s\t%s%s\n", c.ID, c.Name, dirty)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace id")
	return cmd
}
