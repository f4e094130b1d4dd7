// Package fleet holds the CLI command groups that operate on the local
// inventory: baremetals, VMs, the resource pool, and alerts. Commands
// open the daemon's SQLite database directly, so reads work whether or
// not the daemon is running.
package fleet

import (
	"encoding/json"
	"fmt"

	"fleetd/internal/config"
	"fleetd/internal/engine"
	"fleetd/internal/inventory"
	"fleetd/internal/ledger"
	"fleetd/internal/placement"

	"github.com/spf13/cobra"
)

// openStore loads the config and opens the inventory database it points
// at. Callers must Close the store.
func openStore() (*inventory.Store, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	var store *inventory.Store
	if cfg.DatabasePath != "" {
		store, err = inventory.OpenAt(cfg.DatabasePath)
	} else {
		store, err = inventory.Open()
	}
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

// openEngine wires a minimal engine for inventory mutations. No
// provisioning backend or storage allocator is attached; commands that
// need those go through the daemon's API instead.
func openEngine() (*engine.Engine, *inventory.Store, *ledger.Ledger, error) {
	store, _, err := openStore()
	if err != nil {
		return nil, nil, nil, err
	}
	led := ledger.New(store, nil)
	eng := engine.New(store, led, placement.New(store), nil, nil, nil, nil)
	return eng, store, led, nil
}

func printJSON(cmd *cobra.Command, v any) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// PoolCommand returns the "pool" command showing fleet-wide capacity.
func PoolCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Show fleet-wide resource capacity",
		Long: `Show the resource pool: total and available CPU, memory, storage and
IOPS across all active baremetals, net of placed VMs.`,
		Args:         cobra.ExactArgs(0),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, led, err := openEngine()
			if err != nil {
				return err
			}
			defer store.Close()

			pool, err := led.Recompute()
			if err != nil {
				return err
			}

			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				printJSON(cmd, pool)
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "CPU cores:  %d / %d available\n", pool.AvailableCPUCores, pool.TotalCPUCores)
			fmt.Fprintf(out, "Memory:     %d / %d GB available\n", pool.AvailableMemoryGB, pool.TotalMemoryGB)
			fmt.Fprintf(out, "Storage:    %d / %d GB available\n", pool.AvailableStorageGB, pool.TotalStorageGB)
			fmt.Fprintf(out, "IOPS:       %d / %d available\n", pool.AvailableIOPS, pool.TotalIOPS)
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "Output as JSON")

	return cmd
}
