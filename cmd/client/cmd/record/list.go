package record

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"gymkeeper/cmd/client/cmd/types"
	"gymkeeper/internal/app/client"
	"gymkeeper/internal/domain/record"

	"github.com/spf13/cobra"
)

func newListCmd(plural string, recType record.RecType) *cobra.Command {
	var (
		format      string
		showDeleted bool
		limit       int
		offset      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List " + plural,
		Long:  `Reads from the local database, so the list is complete even offline.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := types.AppFrom(cmd.Context())
			if err != nil {
				return err
			}

			records, err := app.ListRecords(&client.RecordFilter{
				Type:        recType.String(),
				ShowDeleted: showDeleted,
				Limit:       limit,
				Offset:      offset,
			})
			if err != nil {
				return fmt.Errorf("list %s: %w", plural, err)
			}

			switch format {
			case "json":
				return printRecordsJSON(records)
			case "table":
				return printRecordsTable(records)
			default:
				return printRecordsSimple(plural, records)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "simple", "output format (simple, table, json)")
	cmd.Flags().BoolVar(&showDeleted, "deleted", false, "include records pending deletion")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of records")
	cmd.Flags().IntVar(&offset, "offset", 0, "pagination offset")

	return cmd
}

func printRecordsSimple(plural string, records []*client.Record) error {
	if len(records) == 0 {
		fmt.Printf("No %s found\n", plural)
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%s %s\n", syncMark(rec.State), summarize(rec))
		fmt.Printf("  id: %s | modified: %s\n", rec.LocalID, rec.ModifiedAt.Format("2006-01-02 15:04"))
	}

	fmt.Printf("\nTotal: %d\n", len(records))
	return nil
}

func printRecordsTable(records []*client.Record) error {
	if len(records) == 0 {
		fmt.Println("Nothing found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSUMMARY\tSTATE\tMODIFIED")

	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			rec.LocalID,
			truncate(summarize(rec), 40),
			rec.State,
			rec.ModifiedAt.Format("2006-01-02 15:04"),
		)
	}

	w.Flush()
	fmt.Printf("\nTotal: %d\n", len(records))
	return nil
}

func printRecordsJSON(records []*client.Record) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(records)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
