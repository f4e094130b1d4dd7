package config

import (
	"fleetd/internal/config"

	"github.com/spf13/cobra"
)

// NewCommand returns the "config" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage fleetd configuration",
		Long: "View and modify persistent fleetd settings.\n\n" +
			"Configuration is stored at ~/.config/fleetd/config.json. Every value\n" +
			"can also be overridden with a FLEETD_* environment variable.\n\n" +
			config.KeysHelp(),
	}

	cmd.AddCommand(SetCommand())
	cmd.AddCommand(GetCommand())

	return cmd
}
