// Package cmd contains the CLI commands for statuswatch.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	gitCommit = "unknown"

	// Global flags
	configDir string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "statuswatch",
	Short: "Watch deployment and resource status for a team",
	Long: `statuswatch subscribes to the team's realtime channel and prints status
changes as they arrive. When the channel is disabled or unavailable it polls
the REST API instead.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets version information from the main package.
func SetVersionInfo(v, gc string) {
	version = v
	gitCommit = gc
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "config", "directory holding config.yml and config.local.yml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "statuswatch %s (%s)\n", version, gitCommit)
	},
}
