package fleet

import (
	"fmt"
	"text/tabwriter"
	"time"

	"fleetd/internal/config"
	"fleetd/internal/domain"

	"github.com/spf13/cobra"
)

// AlertCommand returns the "alert" parent command.
func AlertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Inspect and resolve fleet alerts",
	}

	cmd.AddCommand(alertListCommand())
	cmd.AddCommand(alertResolveCommand())
	cmd.AddCommand(alertDispatchCommand())
	cmd.AddCommand(alertNotificationsCommand())

	return cmd
}

func alertListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List alerts",
		Args:         cobra.ExactArgs(0),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			severity, _ := cmd.Flags().GetString("severity")
			if severity != "" && !domain.ValidSeverity(severity) {
				return fmt.Errorf("unknown severity %q", severity)
			}
			all, _ := cmd.Flags().GetBool("all")

			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			alerts, err := store.ListAlerts(!all, severity)
			if err != nil {
				return err
			}
			if len(alerts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No alerts.")
				return nil
			}

			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				printJSON(cmd, alerts)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tSEVERITY\tTYPE\tRESOURCE\tRESOLVED\tCREATED")
			fmt.Fprintln(w, "--\t--------\t----\t--------\t--------\t-------")
			for _, a := range alerts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s/%s\t%t\t%s\n",
					a.ID, a.Severity, a.AlertType, a.ResourceType, a.ResourceID,
					a.Resolved, a.CreatedAt.UTC().Format(time.RFC3339))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().String("severity", "", "Filter by severity (low, medium, high, critical)")
	cmd.Flags().Bool("all", false, "Include resolved alerts")
	cmd.Flags().Bool("json", false, "Output as JSON")

	return cmd
}

func alertResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "resolve <id>",
		Short:        "Mark an alert as resolved",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.ResolveAlert(args[0], time.Now().UTC()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Resolved %s\n", args[0])
			return nil
		},
	}
}

func alertDispatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch <id>",
		Short: "Send an alert to the configured channels again",
		Long: `Send an alert to the configured channels through the running daemon.
Each dispatch appends fresh delivery attempts; use it to retry an
alert whose notifications failed.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := callAPI(cfg, "POST", "/api/v1/alerts/"+args[0]+"/dispatch", nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dispatched %s\n", args[0])
			return nil
		},
	}
}

func alertNotificationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "notifications <alert-id>",
		Short:        "Show delivery attempts for an alert",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if _, err := store.GetAlert(args[0]); err != nil {
				return err
			}
			notifications, err := store.ListNotifications(args[0])
			if err != nil {
				return err
			}
			if len(notifications) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No delivery attempts recorded.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "CHANNEL\tSTATUS\tSENT\tERROR")
			fmt.Fprintln(w, "-------\t------\t----\t-----")
			for _, n := range notifications {
				sent := ""
				if !n.SentAt.IsZero() {
					sent = n.SentAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.Channel, n.Status, sent, n.Error)
			}
			w.Flush()
			return nil
		},
	}
}
