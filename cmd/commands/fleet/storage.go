package fleet

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"fleetd/internal/config"

	"github.com/spf13/cobra"
)

// StorageCommand returns the "storage" parent command. Usage is
// rebuilt from the recorded mounts, so the numbers match what the
// daemon's allocator restores at boot.
func StorageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Inspect storage tier usage",
	}

	cmd.AddCommand(storageStatusCommand())
	cmd.AddCommand(storageTiersCommand())

	return cmd
}

func storageStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "status",
		Short:        "Show used and available capacity per storage tier",
		Args:         cobra.ExactArgs(0),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			used, err := store.SumMountedGB()
			if err != nil {
				return err
			}

			type tierStatus struct {
				Tier        string `json:"tier"`
				LimitGB     int    `json:"limit_gb"`
				UsedGB      int    `json:"used_gb"`
				AvailableGB int    `json:"available_gb"`
			}
			var rows []tierStatus
			for tier, limit := range cfg.StorageTiers {
				rows = append(rows, tierStatus{
					Tier:        tier,
					LimitGB:     limit,
					UsedGB:      used[tier],
					AvailableGB: limit - used[tier],
				})
			}
			sort.Slice(rows, func(i, j int) bool { return rows[i].Tier < rows[j].Tier })

			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				printJSON(cmd, rows)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "TIER\tLIMIT GB\tUSED GB\tAVAILABLE GB")
			fmt.Fprintln(w, "----\t--------\t-------\t------------")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", r.Tier, r.LimitGB, r.UsedGB, r.AvailableGB)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "Output as JSON")

	return cmd
}

func storageTiersCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "tiers",
		Short:        "List the configured storage tiers and their limits",
		Args:         cobra.ExactArgs(0),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			names := make([]string, 0, len(cfg.StorageTiers))
			for tier := range cfg.StorageTiers {
				names = append(names, tier)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "TIER\tLIMIT GB")
			fmt.Fprintln(w, "----\t--------")
			for _, tier := range names {
				fmt.Fprintf(w, "%s\t%d\n", tier, cfg.StorageTiers[tier])
			}
			w.Flush()
			return nil
		},
	}
}
