package config

import (
	"fmt"
	"strings"

	"fleetd/internal/config"
	"fleetd/internal/provision"
	"fleetd/internal/util"

	"github.com/spf13/cobra"
)

// SetCommand returns the "config set" command.
func SetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: "Set a persistent configuration value.\n\n" +
			config.KeysHelp() +
			"\nExamples:\n" +
			"  fleetd config set backend hetzner\n" +
			"  fleetd config set probe-port 22",
		Args: cobra.ExactArgs(2),
		Run:  runSet,
	}

	return cmd
}

// normalized lists the keys whose values are lowercased before saving.
// The rest (URLs, paths, addresses) are stored as given.
var normalized = map[string]bool{
	"backend":   true,
	"log-level": true,
}

// validators maps key names to optional pre-save validation functions.
// Keys not present in this map have no extra validation.
var validators = map[string]func(cmd *cobra.Command, value string) error{
	"backend": validateBackend,
}

func runSet(cmd *cobra.Command, args []string) {
	key := util.NormalizeKey(args[0])
	value := strings.TrimSpace(args[1])

	spec := config.Lookup(key)
	if spec == nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: unknown configuration key %q\n", args[0])
		fmt.Fprintf(cmd.ErrOrStderr(), "Valid keys: %s\n", strings.Join(config.KeyNames(), ", "))
		return
	}

	if normalized[spec.Name] {
		value = util.NormalizeKey(value)
	}

	if validate, ok := validators[spec.Name]; ok {
		if err := validate(cmd, value); err != nil {
			return // validate already printed the error
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}

	if err := spec.Set(cfg, value); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}
	if err := cfg.Save(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s set to %q\n", spec.Name, value)
}

// validateBackend checks that the given name is a registered backend.
func validateBackend(cmd *cobra.Command, name string) error {
	for _, known := range provision.List() {
		if known == name {
			return nil
		}
	}
	err := fmt.Errorf("unknown backend %q (registered: %s)", name, strings.Join(provision.List(), ", "))
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	return err
}
