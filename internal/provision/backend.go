// Package provision abstracts the server-lifecycle API that actually
// creates, deletes, and resizes VM instances. The engine treats any
// backend failure as a provisioning failure feeding the alert
// pipeline; it never interprets backend-specific errors beyond the
// domain sentinels a backend chooses to wrap.
package provision

import (
	"context"
)

// InstanceSpec describes the instance a backend should realize.
type InstanceSpec struct {
	Hostname string
	CPUCores int
	MemoryMB int
	ImageID  string
	UserData string
}

// Backend is an opaque cloud or hypervisor boundary.
type Backend interface {
	Name() string
	// CreateInstance realizes the spec and returns the backend's
	// instance id and the address the instance is reachable on.
	CreateInstance(ctx context.Context, spec InstanceSpec) (externalID, ipAddress string, err error)
	DeleteInstance(ctx context.Context, externalID string) error
	Resize(ctx context.Context, externalID string, spec InstanceSpec) error
}
