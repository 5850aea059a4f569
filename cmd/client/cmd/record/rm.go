package record

import (
	"fmt"

	"gymkeeper/cmd/client/cmd/types"
	"gymkeeper/internal/domain/record"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newRemoveCmd(recType record.RecType) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a record by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := types.AppFrom(cmd.Context())
			if err != nil {
				return err
			}

			rec, err := app.GetRecord(args[0])
			if err != nil {
				return fmt.Errorf("remove: %w", err)
			}
			if rec.Type != recType {
				return fmt.Errorf("record %s is a %s, not a %s", args[0], rec.Type, recType)
			}

			if err := app.RemoveRecord(args[0]); err != nil {
				return fmt.Errorf("remove: %w", err)
			}

			color.Green("✓ Removed %s", summarize(rec))
			if rec.RemoteID != nil {
				fmt.Println("The deletion reaches the server on the next sync.")
			}
			return nil
		},
	}
}
