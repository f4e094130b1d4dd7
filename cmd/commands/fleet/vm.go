package fleet

import (
	"fmt"
	"text/tabwriter"

	"fleetd/internal/config"
	"fleetd/internal/domain"

	"github.com/spf13/cobra"
)

// VMCommand returns the "vm" parent command. Creation and deletion go
// through the daemon's API, which owns provisioning; reads come
// straight from the database.
func VMCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vm",
		Short: "Manage virtual machines",
	}

	cmd.AddCommand(vmCreateCommand())
	cmd.AddCommand(vmDeleteCommand())
	cmd.AddCommand(vmListCommand())
	cmd.AddCommand(vmShowCommand())

	return cmd
}

func vmCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <hostname>",
		Short: "Create a virtual machine",
		Long: `Create a virtual machine through the running daemon. The daemon picks
a baremetal, reserves capacity, and provisions the instance in the
background.

Example:
  fleetd vm create web-01 --image <image-id> --cpu 2 --memory 4096 --storage 10`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			image, _ := cmd.Flags().GetString("image")
			cpu, _ := cmd.Flags().GetInt("cpu")
			memory, _ := cmd.Flags().GetInt("memory")
			storage, _ := cmd.Flags().GetInt("storage")
			createdBy, _ := cmd.Flags().GetString("created-by")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			var vm domain.VM
			err = callAPI(cfg, "POST", "/api/v1/vms", map[string]any{
				"hostname":   args[0],
				"image_id":   image,
				"cpu_cores":  cpu,
				"memory_mb":  memory,
				"storage_gb": storage,
				"created_by": createdBy,
			}, &vm)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s) on %s, provisioning\n",
				vm.Hostname, vm.ID, vm.BaremetalID)
			return nil
		},
	}

	cmd.Flags().String("image", "", "Image id")
	cmd.Flags().Int("cpu", 0, "CPU cores")
	cmd.Flags().Int("memory", 0, "Memory in MB")
	cmd.Flags().Int("storage", 0, "Storage in GB (optional)")
	cmd.Flags().String("created-by", "", "Creator recorded on the VM")
	cmd.MarkFlagRequired("image")
	cmd.MarkFlagRequired("cpu")
	cmd.MarkFlagRequired("memory")

	return cmd
}

func vmDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "delete <id>",
		Short:        "Delete a virtual machine",
		Long:         "Delete a virtual machine through the running daemon, releasing its instance, volumes and capacity.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := callAPI(cfg, "DELETE", "/api/v1/vms/"+args[0], nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func vmListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List virtual machines",
		Args:         cobra.ExactArgs(0),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			if status != "" && !domain.ValidVMStatus(status) {
				return fmt.Errorf("unknown status %q", status)
			}

			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			vms, err := store.ListVMs(status)
			if err != nil {
				return err
			}
			if len(vms) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No VMs found.")
				return nil
			}

			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				printJSON(cmd, vms)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tHOSTNAME\tSTATUS\tBAREMETAL\tCPU\tMEM MB\tIP")
			fmt.Fprintln(w, "--\t--------\t------\t---------\t---\t------\t--")
			for _, vm := range vms {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
					vm.ID, vm.Hostname, vm.Status, vm.BaremetalID, vm.CPUCores, vm.MemoryMB, vm.IPAddress)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().String("status", "", "Filter by status (creating, running, stopped, failed, deleting)")
	cmd.Flags().Bool("json", false, "Output as JSON")

	return cmd
}

func vmShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "show <id>",
		Short:        "Show a virtual machine and its storage mounts",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			vm, err := store.GetVM(args[0])
			if err != nil {
				return err
			}
			mounts, err := store.ListMounts(vm.ID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "  ID:\t%s\n", vm.ID)
			fmt.Fprintf(w, "  Hostname:\t%s\n", vm.Hostname)
			fmt.Fprintf(w, "  Status:\t%s\n", vm.Status)
			fmt.Fprintf(w, "  Baremetal:\t%s\n", vm.BaremetalID)
			fmt.Fprintf(w, "  CPU cores:\t%d\n", vm.CPUCores)
			fmt.Fprintf(w, "  Memory:\t%d MB\n", vm.MemoryMB)
			if vm.IPAddress != "" {
				fmt.Fprintf(w, "  IP:\t%s\n", vm.IPAddress)
			}
			if vm.ExternalID != "" {
				fmt.Fprintf(w, "  External ID:\t%s\n", vm.ExternalID)
			}
			if !vm.CreatedAt.IsZero() {
				fmt.Fprintf(w, "  Created:\t%s\n", vm.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
			}
			for _, m := range mounts {
				fmt.Fprintf(w, "  Mount:\t%s (%d GB, tier %s)\n", m.MountPoint, m.StorageGB, m.Tier)
			}
			w.Flush()
			return nil
		},
	}
}
