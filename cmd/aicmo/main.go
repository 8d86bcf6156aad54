package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "aicmo",
	Short: "Conversational marketing assistant",
	Long: `aicmo is a profile-aware conversational marketing assistant.

It serves an HTTP API and an MCP server backed by chat personas,
a personal/company profile store, and dispatchable actions.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(actionsCmd)
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
