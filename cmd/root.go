package cmd

import (
	"os"

	"fleetd/cmd/commands/auth"
	cfgcmd "fleetd/cmd/commands/config"
	"fleetd/cmd/commands/fleet"
	"fleetd/cmd/commands/serve"
	"fleetd/internal/provision"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
func rootCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "fleetd",
		Short: "Resource accounting and placement for a small VM fleet",
		Long: `fleetd tracks the capacity of a fleet of physical servers, places
virtual machines on them, monitors reachability, and raises alerts
to Slack, JIRA and email when something goes down.

Quick start:
  fleetd auth login hetzner        # Store your API token
  fleetd baremetal add rack1-node1 --ip 10.0.1.1 --cpu 64 --memory 256 --storage 4000
  fleetd serve                     # Run the daemon
  fleetd pool                      # Show fleet capacity`,
	}

	cmd.AddCommand(auth.NewCommand())
	cmd.AddCommand(cfgcmd.NewCommand())
	cmd.AddCommand(serve.NewCommand())
	cmd.AddCommand(fleet.BaremetalCommand())
	cmd.AddCommand(fleet.VMCommand())
	cmd.AddCommand(fleet.PoolCommand())
	cmd.AddCommand(fleet.AlertCommand())
	cmd.AddCommand(fleet.StorageCommand())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	provision.RegisterHetzner()
	provision.RegisterMock()

	var root = rootCmd()
	err := root.Execute()
	if err != nil {
		os.Exit(1)
	}
}
