// Package domain defines the core types shared across the fleet engine:
// baremetal servers, the virtual machines placed on them, the fleet-wide
// resource pool, and the alert/notification records produced by health
// monitoring.
package domain

import "time"

// Baremetal lifecycle statuses. Status is mutated only by the health
// monitor (active -> failed) or by an operator action.
const (
	BaremetalActive      = "active"
	BaremetalInactive    = "inactive"
	BaremetalMaintenance = "maintenance"
	BaremetalFailed      = "failed"
)

// Baremetal represents a physical server in the fleet.
type Baremetal struct {
	ID              string    `json:"id"`
	Hostname        string    `json:"hostname"`
	IPAddress       string    `json:"ip_address"`
	CPUCores        int       `json:"cpu_cores"`
	MemoryGB        int       `json:"memory_gb"`
	StorageGB       int       `json:"storage_gb"`
	IOPS            int       `json:"iops"`
	Status          string    `json:"status"`
	LastHealthCheck time.Time `json:"last_health_check,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ValidBaremetalStatus reports whether s is one of the recognized
// baremetal lifecycle statuses.
func ValidBaremetalStatus(s string) bool {
	switch s {
	case BaremetalActive, BaremetalInactive, BaremetalMaintenance, BaremetalFailed:
		return true
	}
	return false
}

// Probeable reports whether the health monitor should probe this
// baremetal. Maintenance and inactive hosts are operator territory and
// are skipped; failed hosts stay failed until reactivated.
func (b *Baremetal) Probeable() bool {
	return b.Status == BaremetalActive
}
