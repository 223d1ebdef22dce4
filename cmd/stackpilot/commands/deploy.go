package commands

import (
	"github.com/spf13/cobra"
)

func newDeployCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Install and start the full stack",
		Long: `Install the database, web server, scripting runtime and the
application on the configured target, then start all services.

The install sequence is resumable: steps recorded in the action ledger
are skipped on rerun and component checkouts are updated in place, so
a failed deploy can be re-issued after fixing the cause.`,
		Example: `  # Deploy with settings from stackpilot.yaml
  stackpilot deploy

  # Deploy against a different settings file
  stackpilot deploy --settings prod.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeployment(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.phab.Install(cmd.Context()); err != nil {
				return err
			}
			return d.phab.Start(cmd.Context())
		},
	}
}
