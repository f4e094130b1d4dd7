// Package ledger maintains the fleet-wide resource pool: total capacity
// summed over active baremetals, minus everything held by live VMs.
//
// The pool is always recomputed wholesale from current records rather
// than patched incrementally, so a missed update can never cause
// permanent drift. Callers should treat the persisted snapshot as
// eventually consistent, bounded by the recompute trigger latency.
package ledger

import (
	"fmt"
	"time"

	"fleetd/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var (
	poolTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleetd_pool_total",
		Help: "Total fleet capacity per resource dimension.",
	}, []string{"dimension"})

	poolAvailable = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleetd_pool_available",
		Help: "Available fleet capacity per resource dimension.",
	}, []string{"dimension"})

	recomputeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetd_pool_recomputes_total",
		Help: "Number of ledger recomputes performed.",
	})
)

// Compute builds a pool snapshot from the given fleet state. Totals
// come from active baremetals only; inactive, failed, and maintenance
// hosts contribute zero capacity. Used CPU and memory are the sums
// requested by VMs that are not failed or deleting. Available values
// are clamped at zero; oversubscribed reports whether clamping fired,
// which indicates an accounting bug upstream rather than a normal
// condition.
func Compute(baremetals []domain.Baremetal, vms []domain.VM) (pool domain.Pool, oversubscribed bool) {
	for _, b := range baremetals {
		if b.Status != domain.BaremetalActive {
			continue
		}
		pool.TotalCPUCores += b.CPUCores
		pool.TotalMemoryGB += b.MemoryGB
		pool.TotalStorageGB += b.StorageGB
		pool.TotalIOPS += b.IOPS
	}

	var usedCPU, usedMemory int
	for _, v := range vms {
		if v.Terminal() {
			continue
		}
		usedCPU += v.CPUCores
		usedMemory += v.MemoryGB()
	}

	pool.AvailableCPUCores, oversubscribed = clamp(pool.TotalCPUCores-usedCPU, oversubscribed)
	pool.AvailableMemoryGB, oversubscribed = clamp(pool.TotalMemoryGB-usedMemory, oversubscribed)
	pool.AvailableStorageGB = pool.TotalStorageGB
	pool.AvailableIOPS = pool.TotalIOPS
	pool.UpdatedAt = time.Now().UTC()
	return pool, oversubscribed
}

func clamp(v int, already bool) (int, bool) {
	if v < 0 {
		return 0, true
	}
	return v, already
}

// Store is the slice of the record store the ledger needs.
type Store interface {
	ListBaremetals(status string) ([]domain.Baremetal, error)
	ListVMs(status string) ([]domain.VM, error)
	SavePool(p *domain.Pool) error
	GetPool() (*domain.Pool, error)
	HasOpenAlert(resourceType, resourceID, alertType string) (bool, error)
	SaveAlert(a *domain.Alert) error
}

// Ledger recomputes and persists the pool snapshot.
type Ledger struct {
	store Store
	log   *logrus.Entry
}

// New returns a ledger over the given store.
func New(store Store, log *logrus.Entry) *Ledger {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Ledger{store: store, log: log}
}

// Recompute rebuilds the pool from current records, persists it, and
// returns the fresh snapshot. An oversubscribed pool is clamped at zero
// and surfaced through a pool_oversubscribed alert so it reaches a
// human instead of being silently absorbed.
func (l *Ledger) Recompute() (*domain.Pool, error) {
	baremetals, err := l.store.ListBaremetals(domain.BaremetalActive)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	vms, err := l.store.ListVMs("")
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}

	pool, oversubscribed := Compute(baremetals, vms)
	if err := l.store.SavePool(&pool); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	recomputeTotal.Inc()
	l.export(&pool)

	if oversubscribed {
		l.log.WithFields(logrus.Fields{
			"total_cpu":    pool.TotalCPUCores,
			"total_memory": pool.TotalMemoryGB,
		}).Warn("pool oversubscribed, available clamped at zero")
		l.raiseOversubscribed(&pool)
	}

	return &pool, nil
}

// Current returns the last persisted snapshot without recomputing.
func (l *Ledger) Current() (*domain.Pool, error) {
	pool, err := l.store.GetPool()
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return pool, nil
}

func (l *Ledger) raiseOversubscribed(pool *domain.Pool) {
	open, err := l.store.HasOpenAlert(domain.ResourceBaremetal, "fleet", domain.AlertPoolOversubscribed)
	if err != nil || open {
		return
	}
	alert := &domain.Alert{
		ResourceType: domain.ResourceBaremetal,
		ResourceID:   "fleet",
		AlertType:    domain.AlertPoolOversubscribed,
		Severity:     domain.SeverityHigh,
		Message: fmt.Sprintf("fleet pool oversubscribed: %d cores / %d GB total",
			pool.TotalCPUCores, pool.TotalMemoryGB),
	}
	if err := l.store.SaveAlert(alert); err != nil {
		l.log.WithError(err).Error("failed to record oversubscription alert")
	}
}

func (l *Ledger) export(p *domain.Pool) {
	poolTotal.WithLabelValues("cpu_cores").Set(float64(p.TotalCPUCores))
	poolTotal.WithLabelValues("memory_gb").Set(float64(p.TotalMemoryGB))
	poolTotal.WithLabelValues("storage_gb").Set(float64(p.TotalStorageGB))
	poolTotal.WithLabelValues("iops").Set(float64(p.TotalIOPS))
	poolAvailable.WithLabelValues("cpu_cores").Set(float64(p.AvailableCPUCores))
	poolAvailable.WithLabelValues("memory_gb").Set(float64(p.AvailableMemoryGB))
	poolAvailable.WithLabelValues("storage_gb").Set(float64(p.AvailableStorageGB))
	poolAvailable.WithLabelValues("iops").Set(float64(p.AvailableIOPS))
}
