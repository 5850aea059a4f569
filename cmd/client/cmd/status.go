package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gymkeeper/cmd/client/cmd/types"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local data and connection state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.AppFrom(cmd.Context())
		if err != nil {
			return err
		}

		if login := app.UserLogin(); login != "" && app.IsAuthenticated() {
			fmt.Printf("Account: %s\n", login)
		} else {
			fmt.Println("Account: not logged in")
		}

		counts, err := app.Counts()
		if err != nil {
			return fmt.Errorf("count records: %w", err)
		}

		fmt.Println("Local records:")
		if len(counts) == 0 {
			fmt.Println("  none")
		} else {
			recTypes := make([]string, 0, len(counts))
			for recType := range counts {
				recTypes = append(recTypes, recType)
			}
			sort.Strings(recTypes)

			for _, recType := range recTypes {
				fmt.Printf("  %s: %d\n", recType, counts[recType])
			}
		}

		pending, err := app.PendingCount()
		if err != nil {
			return fmt.Errorf("read queue: %w", err)
		}
		fmt.Printf("Pending uploads: %d\n", pending)

		lastSync, err := app.LastSync()
		if err != nil {
			return fmt.Errorf("read last sync: %w", err)
		}
		if lastSync.IsZero() {
			fmt.Println("Last sync: never")
		} else {
			fmt.Printf("Last sync: %s\n", lastSync.Local().Format("2006-01-02 15:04:05"))
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		fmt.Print("Server: ")
		if err := app.Ping(ctx); err != nil {
			color.Yellow("unreachable (working offline)")
		} else {
			color.Green("reachable")
		}

		return nil
	},
}
