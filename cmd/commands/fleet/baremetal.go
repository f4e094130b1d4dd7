package fleet

import (
	"context"
	"fmt"
	"text/tabwriter"

	"fleetd/internal/domain"

	"github.com/spf13/cobra"
)

// BaremetalCommand returns the "baremetal" parent command.
func BaremetalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "baremetal",
		Aliases: []string{"bm"},
		Short:   "Manage physical servers in the fleet",
	}

	cmd.AddCommand(baremetalAddCommand())
	cmd.AddCommand(baremetalListCommand())
	cmd.AddCommand(baremetalShowCommand())
	cmd.AddCommand(baremetalRemoveCommand())
	cmd.AddCommand(baremetalStatusCommand())

	return cmd
}

func baremetalAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <hostname>",
		Short: "Register a physical server",
		Long: `Register a physical server and add its capacity to the resource pool.

Example:
  fleetd baremetal add rack1-node3 --ip 10.0.1.3 --cpu 64 --memory 256 --storage 4000`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ip, _ := cmd.Flags().GetString("ip")
			cpu, _ := cmd.Flags().GetInt("cpu")
			memory, _ := cmd.Flags().GetInt("memory")
			storage, _ := cmd.Flags().GetInt("storage")
			iops, _ := cmd.Flags().GetInt("iops")

			eng, store, _, err := openEngine()
			if err != nil {
				return err
			}
			defer store.Close()

			b := &domain.Baremetal{
				Hostname:  args[0],
				IPAddress: ip,
				CPUCores:  cpu,
				MemoryGB:  memory,
				StorageGB: storage,
				IOPS:      iops,
			}
			if err := eng.AddBaremetal(context.Background(), b); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s)\n", b.Hostname, b.ID)
			return nil
		},
	}

	cmd.Flags().String("ip", "", "Management IP address")
	cmd.Flags().Int("cpu", 0, "CPU cores")
	cmd.Flags().Int("memory", 0, "Memory in GB")
	cmd.Flags().Int("storage", 0, "Local storage in GB")
	cmd.Flags().Int("iops", 0, "IOPS budget")
	cmd.MarkFlagRequired("ip")
	cmd.MarkFlagRequired("cpu")
	cmd.MarkFlagRequired("memory")
	cmd.MarkFlagRequired("storage")

	return cmd
}

func baremetalListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List registered physical servers",
		Args:         cobra.ExactArgs(0),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			if status != "" && !domain.ValidBaremetalStatus(status) {
				return fmt.Errorf("unknown status %q", status)
			}

			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			baremetals, err := store.ListBaremetals(status)
			if err != nil {
				return err
			}
			if len(baremetals) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No baremetals registered.")
				return nil
			}

			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				printJSON(cmd, baremetals)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tHOSTNAME\tIP\tSTATUS\tCPU\tMEM GB\tSTORAGE GB")
			fmt.Fprintln(w, "--\t--------\t--\t------\t---\t------\t----------")
			for _, b := range baremetals {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
					b.ID, b.Hostname, b.IPAddress, b.Status, b.CPUCores, b.MemoryGB, b.StorageGB)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().String("status", "", "Filter by status (active, inactive, maintenance, failed)")
	cmd.Flags().Bool("json", false, "Output as JSON")

	return cmd
}

func baremetalShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "show <id>",
		Short:        "Show a physical server and the VMs it hosts",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			b, err := store.GetBaremetal(args[0])
			if err != nil {
				return err
			}
			vms, err := store.ListVMsOnBaremetal(b.ID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "  ID:\t%s\n", b.ID)
			fmt.Fprintf(w, "  Hostname:\t%s\n", b.Hostname)
			fmt.Fprintf(w, "  IP:\t%s\n", b.IPAddress)
			fmt.Fprintf(w, "  Status:\t%s\n", b.Status)
			fmt.Fprintf(w, "  CPU cores:\t%d\n", b.CPUCores)
			fmt.Fprintf(w, "  Memory:\t%d GB\n", b.MemoryGB)
			fmt.Fprintf(w, "  Storage:\t%d GB\n", b.StorageGB)
			if b.IOPS > 0 {
				fmt.Fprintf(w, "  IOPS:\t%d\n", b.IOPS)
			}
			if !b.LastHealthCheck.IsZero() {
				fmt.Fprintf(w, "  Last check:\t%s\n", b.LastHealthCheck.UTC().Format("2006-01-02 15:04:05 UTC"))
			}
			for _, vm := range vms {
				fmt.Fprintf(w, "  VM:\t%s (%s, %d cores, %d MB)\n", vm.Hostname, vm.Status, vm.CPUCores, vm.MemoryMB)
			}
			w.Flush()
			return nil
		},
	}
}

func baremetalRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "remove <id>",
		Short:        "Remove a physical server from the fleet",
		Long:         "Remove a physical server. Fails while the server still hosts VMs.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, store, _, err := openEngine()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := eng.RemoveBaremetal(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

func baremetalStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Change a physical server's lifecycle status",
		Long: `Change a physical server's lifecycle status.

Setting a failed server back to active resolves its open server_down
alerts and returns its capacity to the pool.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, store, _, err := openEngine()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := eng.SetBaremetalStatus(context.Background(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], args[1])
			return nil
		},
	}
}
