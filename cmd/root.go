// Package cmd holds the careerlink command line.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "careerlink",
	Short: "Account linking and task tracking for the career platform",
	Long: `careerlink completes account provisioning after sign-in and tracks
server-side ranking and resume parsing jobs until they finish.

Configuration is read from the environment; run "careerlink config" to list it.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
