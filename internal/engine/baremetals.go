package engine

import (
	"context"
	"fmt"
	"time"

	"fleetd/internal/domain"
	"fleetd/internal/util"

	"github.com/sirupsen/logrus"
)

// AddBaremetal registers a new physical server and folds its capacity
// into the ledger.
func (e *Engine) AddBaremetal(_ context.Context, b *domain.Baremetal) error {
	if err := util.ValidateHostname(b.Hostname); err != nil {
		return &domain.ValidationError{Field: "hostname", Reason: err.Error()}
	}
	if err := util.ValidateIPAddress(b.IPAddress); err != nil {
		return &domain.ValidationError{Field: "ip_address", Reason: err.Error()}
	}
	if b.CPUCores <= 0 {
		return &domain.ValidationError{Field: "cpu_cores", Reason: "must be positive"}
	}
	if b.MemoryGB <= 0 {
		return &domain.ValidationError{Field: "memory_gb", Reason: "must be positive"}
	}
	if b.StorageGB <= 0 {
		return &domain.ValidationError{Field: "storage_gb", Reason: "must be positive"}
	}
	if b.Status != "" && !domain.ValidBaremetalStatus(b.Status) {
		return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", b.Status)}
	}

	if err := e.store.SaveBaremetal(b); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if _, err := e.ledger.Recompute(); err != nil {
		e.log.WithError(err).Error("ledger recompute failed after baremetal add")
	}
	e.log.WithField("baremetal", b.Hostname).Info("baremetal registered")
	return nil
}

// RemoveBaremetal deletes a server that owns no VMs and credits its
// capacity out of the ledger.
func (e *Engine) RemoveBaremetal(_ context.Context, id string) error {
	if err := e.store.DeleteBaremetal(id); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if _, err := e.ledger.Recompute(); err != nil {
		e.log.WithError(err).Error("ledger recompute failed after baremetal remove")
	}
	e.log.WithField("baremetal", id).Info("baremetal removed")
	return nil
}

// SetBaremetalStatus applies an operator status change. Reactivating a
// server resolves its open server_down alerts: the operator's word
// supersedes the recorded failure.
func (e *Engine) SetBaremetalStatus(_ context.Context, id, status string) error {
	if !domain.ValidBaremetalStatus(status) {
		return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}

	if err := e.store.UpdateBaremetalStatus(id, status); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	if status == domain.BaremetalActive {
		resolved, err := e.store.ResolveAlertsFor(domain.ResourceBaremetal, id, domain.AlertServerDown, time.Now().UTC())
		if err != nil {
			e.log.WithError(err).WithField("baremetal", id).Error("failed to resolve alerts on reactivation")
		} else if resolved > 0 {
			e.log.WithFields(logrus.Fields{
				"baremetal": id,
				"resolved":  resolved,
			}).Info("reactivation resolved open alerts")
		}
	}

	if _, err := e.ledger.Recompute(); err != nil {
		e.log.WithError(err).Error("ledger recompute failed after status change")
	}
	return nil
}
