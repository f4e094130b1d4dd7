// Package serve implements the daemon command: it wires the inventory,
// ledger, placement, provisioning backend, storage allocator,
// notification channels, health monitor, and HTTP API into one process.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fleetd/internal/auth"
	"fleetd/internal/config"
	"fleetd/internal/domain"
	"fleetd/internal/engine"
	"fleetd/internal/health"
	"fleetd/internal/inventory"
	"fleetd/internal/ledger"
	"fleetd/internal/notify"
	"fleetd/internal/placement"
	"fleetd/internal/provision"
	"fleetd/internal/scheduler"
	"fleetd/internal/server"
	"fleetd/internal/storage"
)

// recomputeInterval is the cadence of the safety-net ledger recompute.
// Every mutation already recomputes inline; the periodic pass only
// repairs drift after a crash mid-operation.
const recomputeInterval = 5 * time.Minute

// NewCommand returns the "serve" command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the fleet daemon",
		Long: `Run the fleet daemon: the HTTP API, the health monitor sweeps, and
the periodic ledger recompute. The daemon runs until interrupted.`,
		Args:         cobra.ExactArgs(0),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	return cmd
}

func setupLog(cfg *config.Config) *logrus.Entry {
	log := logrus.StandardLogger()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return logrus.NewEntry(log)
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("serve: config load failed: %w", err)
	}
	log := setupLog(cfg)

	var store *inventory.Store
	if cfg.DatabasePath != "" {
		store, err = inventory.OpenAt(cfg.DatabasePath)
	} else {
		store, err = inventory.Open()
	}
	if err != nil {
		return err
	}
	defer store.Close()

	led := ledger.New(store, log)
	if _, err := led.Recompute(); err != nil {
		return err
	}

	alloc := storage.New(cfg.StorageTiers, storage.NewLocalProvisioner(cfg.StorageRoot), log)
	mounts, err := allMounts(store)
	if err != nil {
		return err
	}
	if err := alloc.Restore(mounts); err != nil {
		return err
	}

	notify.RegisterDefaults()
	channels := notify.Build(cfg.Channels)
	var dispatcher *notify.Dispatcher
	if len(channels) > 0 {
		dispatcher = notify.NewDispatcher(store, channels, notify.Options{}, log)
		defer dispatcher.Close()
		log.WithField("channels", notify.List()).Info("notification channels ready")
	} else {
		log.Warn("no notification channels configured, alerts will not be delivered")
	}

	backend, err := provision.Get(cfg.Backend, auth.DefaultStore())
	if err != nil {
		return fmt.Errorf("serve: backend %q unavailable: %w", cfg.Backend, err)
	}

	// The interface value must stay nil when no dispatcher exists, so
	// the conversion only happens on the non-nil path.
	var engineDispatch engine.Dispatcher
	var healthDispatch health.Dispatcher
	var apiNotifier server.Notifier
	if dispatcher != nil {
		engineDispatch = dispatcher
		healthDispatch = dispatcher
		apiNotifier = dispatcher
	}

	eng := engine.New(store, led, placement.New(store), backend, alloc, engineDispatch, log)
	defer eng.Wait()

	monitor := health.New(store, healthDispatch, health.Options{
		Prober: &health.TCPProber{
			Port:    cfg.Health.ProbePort,
			Timeout: cfg.Health.ProbeTimeout.Std(),
		},
		ProbeTimeout:     cfg.Health.ProbeTimeout.Std(),
		SweepTimeout:     cfg.Health.SweepTimeout.Std(),
		FailureThreshold: cfg.Health.FailureThreshold,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tasks := scheduler.NewManager(ctx, log)
	tasks.Add(scheduler.Func{
		TaskName: "baremetal-sweep",
		Every:    cfg.Health.BaremetalInterval.Std(),
		Fn:       monitor.SweepBaremetals,
	})
	tasks.Add(scheduler.Func{
		TaskName: "vm-sweep",
		Every:    cfg.Health.VMInterval.Std(),
		Fn:       monitor.SweepVMs,
	})
	tasks.Add(scheduler.Func{
		TaskName: "ledger-recompute",
		Every:    recomputeInterval,
		Fn: func(context.Context) error {
			_, err := led.Recompute()
			return err
		},
	})
	tasks.StartAll()
	defer tasks.StopAll()

	api := server.New(eng, store, led, alloc, apiNotifier, log)
	log.WithFields(logrus.Fields{
		"backend": backend.Name(),
		"addr":    cfg.HTTPAddr,
	}).Info("fleet daemon starting")
	return api.Run(ctx, cfg.HTTPAddr)
}

// allMounts collects every storage mount in the inventory so the
// allocator can rebuild its usage accounting.
func allMounts(store *inventory.Store) ([]domain.StorageMount, error) {
	vms, err := store.ListVMs("")
	if err != nil {
		return nil, err
	}
	var out []domain.StorageMount
	for _, vm := range vms {
		mounts, err := store.ListMounts(vm.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, mounts...)
	}
	return out, nil
}
