package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func NewSettingsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage workspace and global settings",
	}
	cmd.AddCommand(
		newSettingsGetCommand(app),
		newSettingsSetCommand(app),
		newSettingsListCommand(app),
	)
	return cmd
}

func newSettingsGetCommand(app *App) *cobra.Command {
	var workspaceID string
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Read a setting, falling back from workspace to global scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := app.settings.Get(context.Background(), workspaceID, args[0])
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		},
	}
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace id (empty for global)")
	return cmd
}

func newSettingsSetCommand(app *App) *cobra.Command {
	var workspaceID string
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a setting, resetting any cached provider it invalidates",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.settings.Set(context.Background(), workspaceID, args[0], args[1])
		},
	}
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace id (empty for global)")
	return cmd
}

func newSettingsListCommand(app *App) *cobra.Command {
	var workspaceID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all settings visible to a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := app.settings.GetAll(context.Background(), workspaceID)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(all))
			for k := range all {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%s=%s\n", k, all[k])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace id (empty for global)")
	return cmd
}
