package domain

import "time"

// Pool is the fleet-wide resource ledger snapshot: total capacity summed
// over active baremetals and the share of it still available once every
// non-terminal VM's request is subtracted. It is always recomputed
// wholesale, never patched incrementally, and holds for every dimension:
// available <= total.
type Pool struct {
	TotalCPUCores      int       `json:"total_cpu_cores"`
	TotalMemoryGB      int       `json:"total_memory_gb"`
	TotalStorageGB     int       `json:"total_storage_gb"`
	TotalIOPS          int       `json:"total_iops"`
	AvailableCPUCores  int       `json:"available_cpu_cores"`
	AvailableMemoryGB  int       `json:"available_memory_gb"`
	AvailableStorageGB int       `json:"available_storage_gb"`
	AvailableIOPS      int       `json:"available_iops"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ResourceRequest is the resource ask of a new VM: the inputs to both
// the ledger availability gate and the per-node placement filter.
type ResourceRequest struct {
	CPU       int `json:"cpu"`
	MemoryGB  int `json:"memory_gb"`
	StorageGB int `json:"storage_gb"`
}
