package cmd

import (
	"fmt"

	"gymkeeper/cmd/client/cmd/types"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run continuously, syncing in the background",
	Long: `Keeps the client running: watches connectivity, syncs on a timer
and immediately after the server becomes reachable again. Stop with
Ctrl+C.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.AppFrom(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Watching. Server %s, sync every %ds. Ctrl+C to stop.\n",
			cfg.ServerAddress, cfg.SyncInterval)

		return app.Run()
	},
}
