package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gymkeeper/cmd/client/cmd/types"
	"gymkeeper/internal/app/client"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the sync server",
	Long: `Authenticate against the server and store the session token locally.

After logging in the client syncs queued changes right away.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.AppFrom(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Print("Login: ")
		var login string
		_, _ = fmt.Scanln(&login)

		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		fmt.Println()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := app.Login(ctx, login, string(password)); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		color.Green("✓ Logged in as %s", login)

		// First sync uploads everything recorded while logged out.
		result, err := app.Sync(ctx)
		switch {
		case errors.Is(err, client.ErrOffline):
			color.Yellow("⚠ Server is unreachable, local changes stay queued")
		case err != nil:
			color.Yellow("⚠ Sync failed: %v", err)
		default:
			fmt.Printf("Synced: %d uploaded, %d pulled\n", result.Uploaded, result.Pulled)
		}

		return nil
	},
}
