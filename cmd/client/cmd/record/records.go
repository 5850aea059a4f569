package record

import (
	"encoding/json"
	"fmt"

	"gymkeeper/internal/app/client"
	"gymkeeper/internal/domain/record"

	"github.com/spf13/cobra"
)

// WorkoutCmd groups operations on workout records.
var WorkoutCmd = &cobra.Command{
	Use:   "workout",
	Short: "Manage workouts",
	Long:  `Record, list and remove workouts. Everything works offline.`,
}

// SetsCmd groups operations on exercise set records.
var SetsCmd = &cobra.Command{
	Use:   "sets",
	Short: "Manage exercise sets",
}

// WeightCmd groups operations on body weight entries.
var WeightCmd = &cobra.Command{
	Use:   "weight",
	Short: "Manage body weight entries",
}

func init() {
	WorkoutCmd.AddCommand(
		newAddWorkoutCmd(),
		newListCmd("workouts", record.RecTypeWorkout),
		newRemoveCmd(record.RecTypeWorkout),
	)

	SetsCmd.AddCommand(
		newAddSetCmd(),
		newListCmd("exercise sets", record.RecTypeExerciseSet),
		newRemoveCmd(record.RecTypeExerciseSet),
	)

	WeightCmd.AddCommand(
		newAddWeightCmd(),
		newListCmd("weight entries", record.RecTypeWeightLog),
		newRemoveCmd(record.RecTypeWeightLog),
	)
}

// Payload shapes are a client-side convention. The server treats the
// payload as opaque JSON.
type workoutPayload struct {
	Name  string `json:"name"`
	Notes string `json:"notes,omitempty"`
	Date  string `json:"date"`
}

type setPayload struct {
	Exercise string  `json:"exercise"`
	Kilos    float64 `json:"kilos"`
	Reps     int     `json:"reps"`
}

type weightPayload struct {
	Kilos float64 `json:"kilos"`
	Date  string  `json:"date"`
}

// summarize renders a one-line description of a record payload.
func summarize(rec *client.Record) string {
	switch rec.Type {
	case record.RecTypeWorkout:
		var p workoutPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil || p.Name == "" {
			return "(unnamed workout)"
		}
		if p.Date != "" {
			return fmt.Sprintf("%s (%s)", p.Name, p.Date)
		}
		return p.Name
	case record.RecTypeExerciseSet:
		var p setPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil || p.Exercise == "" {
			return "(unreadable set)"
		}
		return fmt.Sprintf("%s %.1f kg x %d", p.Exercise, p.Kilos, p.Reps)
	case record.RecTypeWeightLog:
		var p weightPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return "(unreadable entry)"
		}
		return fmt.Sprintf("%.1f kg (%s)", p.Kilos, p.Date)
	default:
		return rec.Type.String()
	}
}

// syncMark renders the sync state as a single glyph for list output.
func syncMark(state client.SyncState) string {
	switch state {
	case client.StateSynced:
		return "✓"
	case client.StatePendingDelete:
		return "✗"
	default:
		return "↑"
	}
}
