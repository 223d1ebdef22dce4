package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	settingsPath string
	verbose      bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stackpilot",
		Short: "stackpilot - server stack provisioning",
		Long: `stackpilot provisions a multi-component server stack (MariaDB,
Apache2, PHP and the Phabricator web application) on a local machine,
a Docker container or a remote host reachable over SSH.

Provisioning runs a fixed sequence of idempotent shell commands:
completed steps are recorded in an action ledger and skipped on rerun,
so a failed run can be resumed from the failure point.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&settingsPath, "settings", "s",
		"stackpilot.yaml", "deployment settings file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose output")

	rootCmd.AddCommand(newDeployCommand())
	rootCmd.AddCommand(newStartCommand())
	rootCmd.AddCommand(newStopCommand())
	rootCmd.AddCommand(newRestartCommand())

	return rootCmd
}

func logLevel() string {
	if verbose {
		return "debug"
	}
	return "info"
}
