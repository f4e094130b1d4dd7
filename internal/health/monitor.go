// Package health drives the per-resource state machine from periodic
// reachability probes: active baremetals and running VMs transition to
// failed after enough consecutive probe failures, each transition
// persisting the status change and its alert atomically before the
// alert is handed to the dispatcher.
//
// Recovery is deliberately asymmetric. A failed baremetal returns to
// active only through operator reactivation, and a failed VM has no
// automatic path back at all.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fleetd/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentProbes bounds how many targets a sweep dials at once.
const maxConcurrentProbes = 16

var (
	probeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetd_probe_failures_total",
		Help: "Probe failures by resource type.",
	}, []string{"resource_type"})

	failureTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetd_failure_transitions_total",
		Help: "Resources transitioned to failed, by resource type.",
	}, []string{"resource_type"})
)

// Store is the slice of the record store the monitor needs.
type Store interface {
	ListBaremetals(status string) ([]domain.Baremetal, error)
	ListVMs(status string) ([]domain.VM, error)
	TouchBaremetalHealthCheck(id string, at time.Time) error
	MarkFailedWithAlert(a *domain.Alert) (bool, error)
}

// Dispatcher receives alert ids for fan-out. Enqueueing must not
// block the sweep.
type Dispatcher interface {
	Enqueue(alertID string)
}

// Options configures a Monitor.
type Options struct {
	// Prober performs the reachability checks. Required.
	Prober Prober
	// ProbeTimeout bounds a single probe.
	ProbeTimeout time.Duration
	// SweepTimeout bounds a whole fleet sweep.
	SweepTimeout time.Duration
	// FailureThreshold is the number of consecutive failed probes
	// before a resource transitions to failed. Minimum 1.
	FailureThreshold int
}

// Monitor probes tracked resources and applies the failure state
// machine.
type Monitor struct {
	store    Store
	dispatch Dispatcher
	opts     Options
	log      *logrus.Entry

	mu       sync.Mutex
	failures map[string]int // consecutive probe failures per resource id
}

// New returns a monitor over the given store and dispatcher.
func New(store Store, dispatch Dispatcher, opts Options, log *logrus.Entry) *Monitor {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	if opts.SweepTimeout <= 0 {
		opts.SweepTimeout = 45 * time.Second
	}
	if opts.FailureThreshold < 1 {
		opts.FailureThreshold = 1
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Monitor{
		store:    store,
		dispatch: dispatch,
		opts:     opts,
		log:      log,
		failures: make(map[string]int),
	}
}

// SweepBaremetals probes every active baremetal concurrently. A single
// unreachable or slow host cannot stall the sweep: each probe carries
// its own timeout and the whole sweep is bounded by SweepTimeout.
func (m *Monitor) SweepBaremetals(ctx context.Context) error {
	baremetals, err := m.store.ListBaremetals(domain.BaremetalActive)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.SweepTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)
	for _, b := range baremetals {
		if !b.Probeable() {
			continue
		}
		b := b
		g.Go(func() error {
			m.checkBaremetal(ctx, b)
			return nil // a target's failure must not abort the sweep
		})
	}
	return g.Wait()
}

// SweepVMs probes every running VM concurrently.
func (m *Monitor) SweepVMs(ctx context.Context) error {
	vms, err := m.store.ListVMs(domain.VMRunning)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.SweepTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)
	for _, v := range vms {
		if v.IPAddress == "" {
			continue
		}
		v := v
		g.Go(func() error {
			m.checkVM(ctx, v)
			return nil
		})
	}
	return g.Wait()
}

func (m *Monitor) checkBaremetal(ctx context.Context, b domain.Baremetal) {
	if m.probe(ctx, b.IPAddress) {
		m.resetFailures(b.ID)
		if err := m.store.TouchBaremetalHealthCheck(b.ID, time.Now().UTC()); err != nil {
			m.log.WithError(err).WithField("baremetal", b.Hostname).Error("failed to record health check")
		}
		return
	}

	probeFailures.WithLabelValues(domain.ResourceBaremetal).Inc()
	if m.recordFailure(b.ID) < m.opts.FailureThreshold {
		m.log.WithField("baremetal", b.Hostname).Warn("probe failed, below threshold")
		return
	}

	alert := &domain.Alert{
		ResourceType: domain.ResourceBaremetal,
		ResourceID:   b.ID,
		AlertType:    domain.AlertServerDown,
		Severity:     domain.SeverityCritical,
		Message:      fmt.Sprintf("Baremetal server %s is not responding", b.Hostname),
		Labels:       map[string]string{"hostname": b.Hostname, "ip_address": b.IPAddress},
	}
	m.fail(alert, b.Hostname)
}

func (m *Monitor) checkVM(ctx context.Context, v domain.VM) {
	if m.probe(ctx, v.IPAddress) {
		m.resetFailures(v.ID)
		return
	}

	probeFailures.WithLabelValues(domain.ResourceVM).Inc()
	if m.recordFailure(v.ID) < m.opts.FailureThreshold {
		m.log.WithField("vm", v.Hostname).Warn("probe failed, below threshold")
		return
	}

	alert := &domain.Alert{
		ResourceType: domain.ResourceVM,
		ResourceID:   v.ID,
		AlertType:    domain.AlertVMDown,
		Severity:     domain.SeverityHigh,
		Message:      fmt.Sprintf("VM %s is not responding", v.Hostname),
		Labels:       map[string]string{"hostname": v.Hostname, "baremetal_id": v.BaremetalID},
	}
	m.fail(alert, v.Hostname)
}

// fail persists the failed status together with its alert, then hands
// the alert to the dispatcher if one was actually created.
func (m *Monitor) fail(alert *domain.Alert, hostname string) {
	created, err := m.store.MarkFailedWithAlert(alert)
	if err != nil {
		m.log.WithError(err).WithField("resource", hostname).Error("failed to persist failure")
		return
	}
	m.resetFailures(alert.ResourceID)
	if !created {
		return
	}

	failureTransitions.WithLabelValues(alert.ResourceType).Inc()
	m.log.WithFields(logrus.Fields{
		"resource": hostname,
		"type":     alert.ResourceType,
		"severity": alert.Severity,
	}).Warn("resource transitioned to failed")

	if m.dispatch != nil {
		m.dispatch.Enqueue(alert.ID)
	}
}

func (m *Monitor) probe(ctx context.Context, address string) bool {
	ctx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
	defer cancel()
	return m.opts.Prober.Probe(ctx, address)
}

func (m *Monitor) recordFailure(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[id]++
	return m.failures[id]
}

func (m *Monitor) resetFailures(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, id)
}
