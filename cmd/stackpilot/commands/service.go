package commands

import (
	"github.com/spf13/cobra"
)

func newStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the stack services",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeployment(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()
			return d.phab.Start(cmd.Context())
		},
	}
}

func newStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the stack services",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeployment(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()
			return d.phab.Stop(cmd.Context())
		},
	}
}

func newRestartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the stack services",
		Long: `Restart the database, application daemon and web server in
dependency order. Restart is unconditional: it is the way to force-apply
configuration changes to already-running services.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeployment(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()
			return d.phab.Restart(cmd.Context())
		},
	}
}
