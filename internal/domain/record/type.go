package record

import (
	"fmt"

	"github.com/danielgtaylor/huma/v2"
)

type RecType string

const (
	RecTypeWorkout     RecType = "workout"
	RecTypeExerciseSet RecType = "exercise_set"
	RecTypeWeightLog   RecType = "weight_log"
)

// Schema implements huma.SchemaProvider so the OpenAPI document carries
// the closed enum wherever a record type appears.
func (RecType) Schema(r huma.Registry) *huma.Schema {
	return &huma.Schema{
		Type: "string",
		Enum: []any{
			string(RecTypeWorkout),
			string(RecTypeExerciseSet),
			string(RecTypeWeightLog),
		},
		Description: "Kind of training record",
		Examples:    []any{RecTypeWorkout},
	}
}

// Validate reports whether the type is one of the known kinds.
func (t RecType) Validate() error {
	switch t {
	case RecTypeWorkout, RecTypeExerciseSet, RecTypeWeightLog:
		return nil
	}
	return fmt.Errorf("unknown record type: %s", t)
}

// String returns the wire representation of the type.
func (t RecType) String() string {
	return string(t)
}

// DisplayName returns a human readable name for CLI output.
func (t RecType) DisplayName() string {
	switch t {
	case RecTypeWorkout:
		return "Workout"
	case RecTypeExerciseSet:
		return "Exercise set"
	case RecTypeWeightLog:
		return "Weight log"
	default:
		return "Unknown"
	}
}
