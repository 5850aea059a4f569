package timer

import (
	"fmt"

	"gymkeeper/cmd/client/cmd/types"
	apptimer "gymkeeper/internal/app/client/timer"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var workoutID string

// TimerCmd is the parent command for the workout stopwatch.
var TimerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Workout stopwatch",
	Long: `Start, pause, resume and stop the workout stopwatch.

The timer is persisted locally: it keeps counting across command
invocations and process restarts. Use --workout to keep a separate
timer per workout.`,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a fresh run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tm, err := loadTimer(cmd)
		if err != nil {
			return err
		}

		if tm.State().Running {
			color.Yellow("Timer already running (%s)", tm.FormattedTime())
			return nil
		}

		if err := tm.Start(); err != nil {
			return err
		}

		color.Green("▶ Timer started")
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the running timer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tm, err := loadTimer(cmd)
		if err != nil {
			return err
		}

		if !tm.State().Running {
			color.Yellow("Timer is not running")
			return nil
		}

		if err := tm.Pause(); err != nil {
			return err
		}

		fmt.Printf("⏸ Paused at %s\n", tm.FormattedTime())
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue a paused or stopped timer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tm, err := loadTimer(cmd)
		if err != nil {
			return err
		}

		st := tm.State()
		switch {
		case st.Running:
			color.Yellow("Timer already running (%s)", tm.FormattedTime())
			return nil
		case !st.Started:
			color.Yellow("Nothing to resume, start the timer first")
			return nil
		}

		if err := tm.Resume(); err != nil {
			return err
		}

		color.Green("▶ Resumed at %s", tm.FormattedTime())
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the timer, keeping the session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tm, err := loadTimer(cmd)
		if err != nil {
			return err
		}

		if !tm.State().Started {
			color.Yellow("Timer has not been started")
			return nil
		}

		if err := tm.Stop(); err != nil {
			return err
		}

		fmt.Printf("⏹ Stopped at %s\n", tm.FormattedTime())
		fmt.Println("Resume with 'gymkeeper timer resume' or clear with 'gymkeeper timer reset'.")
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the timer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tm, err := loadTimer(cmd)
		if err != nil {
			return err
		}

		if err := tm.Reset(); err != nil {
			return err
		}

		fmt.Println("Timer reset")
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current time on the clock",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tm, err := loadTimer(cmd)
		if err != nil {
			return err
		}

		st := tm.State()
		switch {
		case st.Running:
			color.Green("⏱ %s (running)", tm.FormattedTime())
		case st.Started:
			color.Yellow("⏱ %s (paused)", tm.FormattedTime())
		default:
			fmt.Println("Timer has not been started")
		}
		return nil
	},
}

// loadTimer builds the stopwatch for the selected workout on top of the
// application's local storage.
func loadTimer(cmd *cobra.Command) (*apptimer.Timer, error) {
	app, err := types.AppFrom(cmd.Context())
	if err != nil {
		return nil, err
	}
	return apptimer.New(app.Storage(), workoutID), nil
}

func init() {
	TimerCmd.PersistentFlags().StringVarP(&workoutID, "workout", "w", "", "workout id for a dedicated timer")

	TimerCmd.AddCommand(startCmd)
	TimerCmd.AddCommand(pauseCmd)
	TimerCmd.AddCommand(resumeCmd)
	TimerCmd.AddCommand(stopCmd)
	TimerCmd.AddCommand(resetCmd)
	TimerCmd.AddCommand(showCmd)
}
