package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gymkeeper/cmd/client/cmd/types"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Erase all local data",
	Long: `Remove every record, queued change and stored setting from this
device. The server's data is not touched. Useful when local storage is
full or corrupted; the next sync pulls the server state back.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.AppFrom(cmd.Context())
		if err != nil {
			return err
		}

		if !clearYes {
			fmt.Print("This erases ALL local data on this device. Type 'yes' to continue: ")

			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if strings.TrimSpace(answer) != "yes" {
				fmt.Println("Aborted")
				return nil
			}
		}

		if err := app.Clear(); err != nil {
			return fmt.Errorf("clear local data: %w", err)
		}

		color.Green("✓ Local data erased")
		fmt.Println("Run 'gymkeeper sync' to pull your records from the server.")
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "skip the confirmation prompt")
}
