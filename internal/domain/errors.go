package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for cross-package error classification. Components
// wrap these so callers can handle error categories uniformly with
// errors.Is without importing component internals.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInsufficientCapacity indicates the fleet-wide ledger check
	// failed: the pool cannot cover the request in at least one
	// dimension.
	ErrInsufficientCapacity = errors.New("insufficient capacity")

	// ErrNoEligibleNode indicates fragmentation: aggregate capacity
	// exists but no single active baremetal satisfies the request.
	ErrNoEligibleNode = errors.New("no eligible node")

	// ErrConcurrentModification indicates a creation-time re-validation
	// discovered the target baremetal over-subscribed by a racing
	// placement.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrShrinkUnsupported indicates a volume resize asked for a shrink
	// the backing store cannot perform.
	ErrShrinkUnsupported = errors.New("shrink unsupported")
)

// ValidationError describes malformed input, caught before any ledger
// or store interaction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientCapacityError carries which dimension of the pool fell
// short. It wraps ErrInsufficientCapacity.
type InsufficientCapacityError struct {
	Dimension string
	Requested int
	Available int
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("insufficient %s: requested %d, available %d",
		e.Dimension, e.Requested, e.Available)
}

func (e *InsufficientCapacityError) Unwrap() error { return ErrInsufficientCapacity }

// NoEligibleNodeError carries the request that no single node could
// satisfy. It wraps ErrNoEligibleNode.
type NoEligibleNodeError struct {
	CPU      int
	MemoryGB int
}

func (e *NoEligibleNodeError) Error() string {
	return fmt.Sprintf("no active baremetal fits %d cores / %d GB", e.CPU, e.MemoryGB)
}

func (e *NoEligibleNodeError) Unwrap() error { return ErrNoEligibleNode }

// ConcurrentModificationError identifies the baremetal that was found
// over-subscribed at VM creation time. It wraps
// ErrConcurrentModification.
type ConcurrentModificationError struct {
	BaremetalID string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("baremetal %s over-subscribed by a concurrent placement", e.BaremetalID)
}

func (e *ConcurrentModificationError) Unwrap() error { return ErrConcurrentModification }
