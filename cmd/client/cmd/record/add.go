package record

import (
	"encoding/json"
	"fmt"
	"time"

	"gymkeeper/cmd/client/cmd/types"
	"gymkeeper/internal/domain/record"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newAddWorkoutCmd() *cobra.Command {
	var (
		name  string
		notes string
		date  string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a workout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := types.AppFrom(cmd.Context())
			if err != nil {
				return err
			}

			payload, err := json.Marshal(workoutPayload{Name: name, Notes: notes, Date: date})
			if err != nil {
				return fmt.Errorf("encode payload: %w", err)
			}

			rec, err := app.AddRecord(record.RecTypeWorkout, payload)
			if err != nil {
				return fmt.Errorf("add workout: %w", err)
			}

			color.Green("✓ Workout recorded")
			fmt.Printf("ID: %s\n", rec.LocalID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "workout name")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	cmd.Flags().StringVar(&date, "date", time.Now().Format("2006-01-02"), "date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newAddSetCmd() *cobra.Command {
	var (
		exercise string
		kilos    float64
		reps     int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an exercise set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := types.AppFrom(cmd.Context())
			if err != nil {
				return err
			}

			payload, err := json.Marshal(setPayload{Exercise: exercise, Kilos: kilos, Reps: reps})
			if err != nil {
				return fmt.Errorf("encode payload: %w", err)
			}

			rec, err := app.AddRecord(record.RecTypeExerciseSet, payload)
			if err != nil {
				return fmt.Errorf("add set: %w", err)
			}

			color.Green("✓ Set recorded: %s %.1f kg x %d", exercise, kilos, reps)
			fmt.Printf("ID: %s\n", rec.LocalID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&exercise, "exercise", "e", "", "exercise name")
	cmd.Flags().Float64VarP(&kilos, "kilos", "k", 0, "weight in kilograms")
	cmd.Flags().IntVarP(&reps, "reps", "r", 0, "repetitions")
	_ = cmd.MarkFlagRequired("exercise")

	return cmd
}

func newAddWeightCmd() *cobra.Command {
	var (
		kilos float64
		date  string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record body weight",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := types.AppFrom(cmd.Context())
			if err != nil {
				return err
			}

			payload, err := json.Marshal(weightPayload{Kilos: kilos, Date: date})
			if err != nil {
				return fmt.Errorf("encode payload: %w", err)
			}

			rec, err := app.AddRecord(record.RecTypeWeightLog, payload)
			if err != nil {
				return fmt.Errorf("add weight entry: %w", err)
			}

			color.Green("✓ Weight recorded: %.1f kg", kilos)
			fmt.Printf("ID: %s\n", rec.LocalID)
			return nil
		},
	}

	cmd.Flags().Float64VarP(&kilos, "kilos", "k", 0, "body weight in kilograms")
	cmd.Flags().StringVar(&date, "date", time.Now().Format("2006-01-02"), "date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("kilos")

	return cmd
}
