package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/restbench/core/internal/sessionlog"
)

func NewHistoryCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage request history",
	}
	cmd.AddCommand(newHistoryPruneCommand(app))
	return cmd
}

func newHistoryPruneCommand(app *App) *cobra.Command {
	var retentionDays int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete history entries older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := sessionlog.PruneHistory(context.Background(), app.store, app.session, retentionDays)
			if err != nil {
				return err
			}
			fmt.Printf("pruned %d entries\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&retentionDays, "retention-days", sessionlog.DefaultHistoryRetentionDays, "entries older than this many days are removed")
	return cmd
}
