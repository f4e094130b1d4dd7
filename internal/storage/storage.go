// Package storage tracks disk capacity across named tiers and
// reserves or releases space per volume. Tier accounting is
// independent of the fleet compute ledger: tiers budget disk for
// image, backup, and log stores, not placement capacity.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fleetd/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var tierUsedGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "fleetd_storage_tier_used_gb",
	Help: "Used capacity per storage tier in GB.",
}, []string{"tier"})

// VolumeProvisioner creates and destroys the backing stores volumes
// live on.
type VolumeProvisioner interface {
	CreateVolume(ctx context.Context, tier, id string, sizeGB int) (path string, err error)
	DeleteVolume(ctx context.Context, path string) error
	ResizeVolume(ctx context.Context, path string, newSizeGB int) error
	// SupportsShrink reports whether ResizeVolume may reduce a
	// volume's size. Most backing stores cannot shrink safely.
	SupportsShrink() bool
}

// TierUsage is a point-in-time view of one tier's accounting.
type TierUsage struct {
	LimitGB     int `json:"limit_gb"`
	UsedGB      int `json:"used_gb"`
	AvailableGB int `json:"available_gb"`
}

type volume struct {
	tier   string
	sizeGB int
	path   string
}

// Allocator reserves capacity out of named storage tiers. Every
// mutation holds the allocator lock, so a reservation that passed the
// capacity check cannot be invalidated by a concurrent one.
type Allocator struct {
	prov VolumeProvisioner
	log  *logrus.Entry

	mu      sync.Mutex
	limits  map[string]int
	used    map[string]int
	volumes map[string]volume // keyed by mount id
}

// New returns an allocator over the given tier limits (tier name to
// capacity in GB).
func New(limits map[string]int, prov VolumeProvisioner, log *logrus.Entry) *Allocator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	a := &Allocator{
		prov:    prov,
		log:     log,
		limits:  make(map[string]int, len(limits)),
		used:    make(map[string]int, len(limits)),
		volumes: make(map[string]volume),
	}
	for tier, limit := range limits {
		a.limits[tier] = limit
		tierUsedGauge.WithLabelValues(tier).Set(0)
	}
	return a
}

// Restore seeds tier usage and volume records from persisted mounts,
// typically at daemon startup.
func (a *Allocator) Restore(mounts []domain.StorageMount) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, m := range mounts {
		if _, ok := a.limits[m.Tier]; !ok {
			return fmt.Errorf("storage: mount %s references unknown tier %q", m.ID, m.Tier)
		}
		a.volumes[m.ID] = volume{tier: m.Tier, sizeGB: m.StorageGB, path: m.VolumePath}
		a.used[m.Tier] += m.StorageGB
		tierUsedGauge.WithLabelValues(m.Tier).Set(float64(a.used[m.Tier]))
	}
	return nil
}

// Allocate reserves requestedGB out of the tier and provisions the
// backing volume, returning its path. The reservation is recorded
// under id for later Deallocate or Resize.
func (a *Allocator) Allocate(ctx context.Context, tier, id string, requestedGB int) (string, error) {
	if requestedGB <= 0 {
		return "", &domain.ValidationError{Field: "storage_gb", Reason: "must be positive"}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	limit, ok := a.limits[tier]
	if !ok {
		return "", &domain.ValidationError{Field: "tier", Reason: fmt.Sprintf("unknown tier %q", tier)}
	}
	if _, exists := a.volumes[id]; exists {
		return "", &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("volume %q already allocated", id)}
	}

	available := limit - a.used[tier]
	if requestedGB > available {
		return "", &domain.InsufficientCapacityError{
			Dimension: tier,
			Requested: requestedGB,
			Available: available,
		}
	}

	path, err := a.prov.CreateVolume(ctx, tier, id, requestedGB)
	if err != nil {
		return "", fmt.Errorf("storage: volume create failed: %w", err)
	}

	a.used[tier] += requestedGB
	a.volumes[id] = volume{tier: tier, sizeGB: requestedGB, path: path}
	tierUsedGauge.WithLabelValues(tier).Set(float64(a.used[tier]))

	a.log.WithFields(logrus.Fields{
		"tier": tier,
		"id":   id,
		"gb":   requestedGB,
	}).Info("storage allocated")
	return path, nil
}

// Deallocate removes the backing volume and credits its size back to
// the tier, clamped at zero.
func (a *Allocator) Deallocate(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	vol, ok := a.volumes[id]
	if !ok {
		return fmt.Errorf("storage: volume %s: %w", id, domain.ErrNotFound)
	}

	if err := a.prov.DeleteVolume(ctx, vol.path); err != nil {
		return fmt.Errorf("storage: volume delete failed: %w", err)
	}

	a.used[vol.tier] -= vol.sizeGB
	if a.used[vol.tier] < 0 {
		a.used[vol.tier] = 0
	}
	delete(a.volumes, id)
	tierUsedGauge.WithLabelValues(vol.tier).Set(float64(a.used[vol.tier]))

	a.log.WithFields(logrus.Fields{
		"tier": vol.tier,
		"id":   id,
		"gb":   vol.sizeGB,
	}).Info("storage deallocated")
	return nil
}

// Resize grows or shrinks a volume. Growth is checked against the
// tier exactly like a fresh allocation of the delta. Shrink is applied
// only when the provisioner supports it.
func (a *Allocator) Resize(ctx context.Context, id string, newSizeGB int) error {
	if newSizeGB <= 0 {
		return &domain.ValidationError{Field: "storage_gb", Reason: "must be positive"}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	vol, ok := a.volumes[id]
	if !ok {
		return fmt.Errorf("storage: volume %s: %w", id, domain.ErrNotFound)
	}

	delta := newSizeGB - vol.sizeGB
	if delta == 0 {
		return nil
	}
	if delta < 0 && !a.prov.SupportsShrink() {
		return fmt.Errorf("storage: volume %s from %dGB to %dGB: %w",
			id, vol.sizeGB, newSizeGB, domain.ErrShrinkUnsupported)
	}
	if delta > 0 {
		available := a.limits[vol.tier] - a.used[vol.tier]
		if delta > available {
			return &domain.InsufficientCapacityError{
				Dimension: vol.tier,
				Requested: delta,
				Available: available,
			}
		}
	}

	if err := a.prov.ResizeVolume(ctx, vol.path, newSizeGB); err != nil {
		return fmt.Errorf("storage: volume resize failed: %w", err)
	}

	a.used[vol.tier] += delta
	if a.used[vol.tier] < 0 {
		a.used[vol.tier] = 0
	}
	vol.sizeGB = newSizeGB
	a.volumes[id] = vol
	tierUsedGauge.WithLabelValues(vol.tier).Set(float64(a.used[vol.tier]))

	a.log.WithFields(logrus.Fields{
		"tier": vol.tier,
		"id":   id,
		"gb":   newSizeGB,
	}).Info("storage resized")
	return nil
}

// Usage returns a snapshot of every tier's accounting.
func (a *Allocator) Usage() map[string]TierUsage {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]TierUsage, len(a.limits))
	for tier, limit := range a.limits {
		out[tier] = TierUsage{
			LimitGB:     limit,
			UsedGB:      a.used[tier],
			AvailableGB: limit - a.used[tier],
		}
	}
	return out
}

// Tiers returns the configured tier names in sorted order.
func (a *Allocator) Tiers() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	names := make([]string, 0, len(a.limits))
	for tier := range a.limits {
		names = append(names, tier)
	}
	sort.Strings(names)
	return names
}
