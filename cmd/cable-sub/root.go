package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cable-sub",
	Short: "ActionCable-style client CLI",
	Long: `cable-sub connects to an ActionCable-style server over a single
multiplexed WebSocket, subscribes to a channel, and prints inbound messages
as they arrive.`,
}

// Execute runs the root command; called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("url", "", "cable URL (overrides ACTION_CABLE_URL)")
}
