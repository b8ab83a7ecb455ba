package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hashbang",
	Short: "hashbang is a modular multi-network chat bot",
	Long: `hashbang runs any number of chat bot instances (IRC, Discord, Telegram)
from one process. Each instance loads command modules that answer prefixed
commands and CTCP requests, and an interactive console lets the operator
start, stop, restart and attach to instances at runtime.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
