package auth

import (
	"fmt"

	"gymkeeper/cmd/client/cmd/types"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session token",
	Long: `Remove the session token from this device. Local records are kept
and keep working offline.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.AppFrom(cmd.Context())
		if err != nil {
			return err
		}

		if err := app.ClearToken(); err != nil {
			return fmt.Errorf("logout failed: %w", err)
		}

		color.Green("✓ Logged out")
		fmt.Println("Local data stays on this device. Log in again to resume syncing.")

		return nil
	},
}
