package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"gymkeeper/cmd/client/cmd/types"
	"gymkeeper/internal/app/client"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var showStatus bool

// SyncCmd runs a sync cycle, or reports sync state with --status.
var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync local changes with the server",
	Long: `Upload queued local changes and pull remote ones.

Syncing also happens automatically in watch mode. This command forces a
cycle right away.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.AppFrom(cmd.Context())
		if err != nil {
			return err
		}

		if showStatus {
			return printStatus(cmd.Context(), app)
		}

		return runSync(cmd.Context(), app)
	},
}

func runSync(ctx context.Context, app *client.App) error {
	if !app.IsAuthenticated() {
		return fmt.Errorf("not logged in, run: gymkeeper auth login")
	}

	result, err := app.Sync(ctx)
	switch {
	case errors.Is(err, client.ErrOffline):
		pending, _ := app.PendingCount()
		color.Yellow("⚠ Server is unreachable, %d change(s) stay queued", pending)
		return nil
	case errors.Is(err, client.ErrSyncInProgress):
		color.Yellow("⚠ A sync is already running")
		return nil
	case err != nil:
		return fmt.Errorf("sync failed: %w", err)
	}

	color.Green("✓ Sync finished in %v", result.Duration.Round(time.Millisecond))
	fmt.Printf("Uploaded: %d\n", result.Uploaded)
	fmt.Printf("Pulled: %d\n", result.Pulled)
	if result.Conflicts > 0 {
		fmt.Printf("Conflicts resolved: %d\n", result.Conflicts)
	}

	if len(result.Failed) > 0 {
		color.Red("✗ %d operation(s) failed", len(result.Failed))
		for i, fail := range result.Failed {
			if i == 3 {
				fmt.Printf("  ... and %d more\n", len(result.Failed)-3)
				break
			}
			fmt.Printf("  • %s %s: %s\n", fail.Operation, fail.LocalID, fail.Err)
		}
		fmt.Println("Inspect them with 'gymkeeper sync failed'.")
	}

	return nil
}

func printStatus(ctx context.Context, app *client.App) error {
	lastSync, err := app.LastSync()
	if err != nil {
		return fmt.Errorf("read last sync: %w", err)
	}
	if lastSync.IsZero() {
		fmt.Println("Last sync: never")
	} else {
		fmt.Printf("Last sync: %s\n", lastSync.Local().Format("2006-01-02 15:04:05"))
	}

	pending, err := app.PendingCount()
	if err != nil {
		return fmt.Errorf("read queue: %w", err)
	}
	fmt.Printf("Pending uploads: %d\n", pending)

	frozen, err := app.SyncService().FailedEntries()
	if err != nil {
		return fmt.Errorf("read failed entries: %w", err)
	}
	if len(frozen) > 0 {
		color.Red("Frozen entries: %d (see 'gymkeeper sync failed')", len(frozen))
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	fmt.Print("Server: ")
	if err := app.Ping(pingCtx); err != nil {
		color.Yellow("unreachable")
		return nil
	}
	color.Green("reachable")

	// The server-side view is only available online and logged in.
	if !app.IsAuthenticated() {
		return nil
	}

	status, err := app.ServerSyncStatus(pingCtx)
	if err != nil {
		return nil
	}

	fmt.Printf("Server records: %d\n", status.TotalRecords)
	for recType, count := range status.ByType {
		fmt.Printf("  %s: %d\n", recType, count)
	}
	if !status.LastPullAt.IsZero() {
		fmt.Printf("Last pull served: %s (pull #%d)\n",
			status.LastPullAt.Local().Format("2006-01-02 15:04:05"), status.PullCount)
	}

	return nil
}

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List uploads frozen after repeated failures",
	Long: `Entries land here after exhausting their attempts, or right away
when the server rejects them permanently. They stay out of sync cycles
until retried or discarded.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.AppFrom(cmd.Context())
		if err != nil {
			return err
		}

		entries, err := app.SyncService().FailedEntries()
		if err != nil {
			return fmt.Errorf("list failed entries: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No failed entries")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ENTRY\tOPERATION\tTYPE\tRECORD\tATTEMPTS\tLAST ERROR")

		for _, entry := range entries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
				entry.ID,
				entry.Operation,
				entry.RecordType,
				entry.LocalID,
				entry.Attempts,
				entry.LastError,
			)
		}

		w.Flush()
		fmt.Println("\nRetry with 'gymkeeper sync retry <entry>' or drop with 'gymkeeper sync discard <entry>'.")
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <entry>",
	Short: "Re-queue a frozen entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.AppFrom(cmd.Context())
		if err != nil {
			return err
		}

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid entry id %q", args[0])
		}

		if err := app.SyncService().RetryEntry(id); err != nil {
			return fmt.Errorf("retry entry: %w", err)
		}

		color.Green("✓ Entry %d re-queued", id)
		fmt.Println("Run 'gymkeeper sync' to upload it.")
		return nil
	},
}

var discardCmd = &cobra.Command{
	Use:   "discard <entry>",
	Short: "Drop a frozen entry, reverting to the server copy",
	Long: `Gives up on the local change. For an unsent create the record is
removed; otherwise the server's copy of the record is restored.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.AppFrom(cmd.Context())
		if err != nil {
			return err
		}

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid entry id %q", args[0])
		}

		if err := app.SyncService().DiscardEntry(cmd.Context(), id); err != nil {
			return fmt.Errorf("discard entry: %w", err)
		}

		color.Green("✓ Entry %d discarded", id)
		return nil
	},
}

func init() {
	SyncCmd.Flags().BoolVar(&showStatus, "status", false, "show sync state instead of syncing")

	SyncCmd.AddCommand(failedCmd)
	SyncCmd.AddCommand(retryCmd)
	SyncCmd.AddCommand(discardCmd)
}
