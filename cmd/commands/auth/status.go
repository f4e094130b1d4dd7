package auth

import (
	"errors"
	"fmt"

	"fleetd/internal/auth"
	"fleetd/internal/provision"

	"github.com/spf13/cobra"
)

func StatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show authentication status for backends",
		Long: `Show which provisioning backends have stored API tokens.

Example:
  fleetd auth status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := auth.DefaultStore()

			backends := provision.List()
			if len(backends) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No backends registered.")
				return nil
			}

			for _, backend := range backends {
				_, err := store.GetToken(backend)
				switch {
				case err == nil:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: logged in\n", backend)
				case errors.Is(err, auth.ErrTokenNotFound):
					fmt.Fprintf(cmd.OutOrStdout(), "%s: not logged in\n", backend)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: error (%v)\n", backend, err)
				}
			}
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}

func LogoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout <backend>",
		Short: "Remove the stored API token for a backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := auth.DefaultStore()
			if err := store.DeleteToken(args[0]); err != nil {
				if errors.Is(err, auth.ErrTokenNotFound) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: no stored token\n", args[0])
					return nil
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed token for backend %s\n", args[0])
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}
