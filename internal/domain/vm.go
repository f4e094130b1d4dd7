package domain

import "time"

// VM lifecycle statuses.
const (
	VMCreating = "creating"
	VMRunning  = "running"
	VMStopped  = "stopped"
	VMFailed   = "failed"
	VMDeleting = "deleting"
)

// VM represents a virtual machine placed on exactly one baremetal.
// BaremetalID is assigned at placement time and never changes afterwards.
type VM struct {
	ID          string    `json:"id"`
	Hostname    string    `json:"hostname"`
	IPAddress   string    `json:"ip_address,omitempty"`
	BaremetalID string    `json:"baremetal_id"`
	ImageID     string    `json:"image_id"`
	CPUCores    int       `json:"cpu_cores"`
	MemoryMB    int       `json:"memory_mb"`
	Status      string    `json:"status"`
	CreatedBy   string    `json:"created_by,omitempty"`
	ExternalID  string    `json:"external_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MemoryGB returns the VM's memory request in whole gigabytes, rounded
// up so that ledger accounting never under-counts a VM.
func (v *VM) MemoryGB() int {
	return (v.MemoryMB + 1023) / 1024
}

// Terminal reports whether the VM no longer holds fleet resources.
// Failed and deleting VMs are excluded from ledger accounting.
func (v *VM) Terminal() bool {
	return v.Status == VMFailed || v.Status == VMDeleting
}

// ValidVMStatus reports whether s is one of the recognized VM lifecycle
// statuses.
func ValidVMStatus(s string) bool {
	switch s {
	case VMCreating, VMRunning, VMStopped, VMFailed, VMDeleting:
		return true
	}
	return false
}

// VMImage describes an OS image a VM can be created from, along with the
// minimum resources it requires.
type VMImage struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	OSType     string    `json:"os_type"`
	Version    string    `json:"version"`
	ImageURL   string    `json:"image_url"`
	MinCPU     int       `json:"min_cpu"`
	MinMemory  int       `json:"min_memory"` // MB
	MinStorage int       `json:"min_storage"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// StorageMount is a disk reservation attached to a VM, backed by a
// volume carved out of one of the storage tiers.
type StorageMount struct {
	ID         string    `json:"id"`
	VMID       string    `json:"vm_id"`
	MountPoint string    `json:"mount_point"`
	StorageGB  int       `json:"storage_gb"`
	Tier       string    `json:"tier"`
	VolumePath string    `json:"volume_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
