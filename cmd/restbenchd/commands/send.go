package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func NewSendCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <request-id>",
		Short: "Resolve variables, run pre/post scripts, and send a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := app.exec.Execute(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("status: %d\n", resp.Status)
			for k, v := range resp.Headers {
				fmt.Printf("%s: %s\n", k, v)
			}
			fmt.Println()
			fmt.Println(string(resp.Body))
			return nil
		},
	}
	return cmd
}
