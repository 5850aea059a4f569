package cmd

import (
	"gymkeeper/cmd/client/cmd/auth"
	"gymkeeper/cmd/client/cmd/record"
	synccmd "gymkeeper/cmd/client/cmd/sync"
	timercmd "gymkeeper/cmd/client/cmd/timer"
)

func init() {
	rootCmd.AddCommand(auth.AuthCmd)
	auth.AuthCmd.AddCommand(auth.RegisterCmd)
	auth.AuthCmd.AddCommand(auth.LoginCmd)
	auth.AuthCmd.AddCommand(auth.LogoutCmd)

	// One command family per record type.
	rootCmd.AddCommand(record.WorkoutCmd)
	rootCmd.AddCommand(record.SetsCmd)
	rootCmd.AddCommand(record.WeightCmd)

	rootCmd.AddCommand(timercmd.TimerCmd)
	rootCmd.AddCommand(synccmd.SyncCmd)

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(watchCmd)
}
