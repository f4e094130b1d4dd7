// Package placement picks the baremetal a new VM lands on.
//
// Selection is two-staged: a cheap fleet-wide gate against the ledger
// snapshot rejects requests the whole pool cannot cover, then the
// active baremetals are filtered on per-node capacity and the winner is
// chosen by a deterministic tie-break (lowest load, then lowest id) so
// identical requests against unchanged fleet state are reproducible.
package placement

import (
	"fmt"
	"sort"

	"fleetd/internal/domain"
)

// Store is the slice of the record store placement needs.
type Store interface {
	GetPool() (*domain.Pool, error)
	ListBaremetals(status string) ([]domain.Baremetal, error)
	ListVMsOnBaremetal(baremetalID string) ([]domain.VM, error)
}

// Selector chooses placements and guards commits with per-baremetal
// admission control.
type Selector struct {
	store     Store
	admission *admission
}

// New returns a selector over the given store.
func New(store Store) *Selector {
	return &Selector{store: store, admission: newAdmission()}
}

// candidate pairs a baremetal with its current allocation for scoring.
type candidate struct {
	baremetal    domain.Baremetal
	allocatedCPU int
	allocatedMem int
}

// load is the candidate's CPU utilization fraction, the primary
// tie-break dimension.
func (c candidate) load() float64 {
	if c.baremetal.CPUCores == 0 {
		return 1
	}
	return float64(c.allocatedCPU) / float64(c.baremetal.CPUCores)
}

// Place returns the baremetal the request should land on.
//
// The ledger gate runs first: if the pool snapshot cannot cover the
// request, Place fails with ErrInsufficientCapacity without scanning
// any baremetal. If the gate passes but no single active node fits, the
// failure is ErrNoEligibleNode: fragmentation, not exhaustion.
func (s *Selector) Place(req domain.ResourceRequest) (string, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}

	pool, err := s.store.GetPool()
	if err != nil {
		return "", fmt.Errorf("placement: %w", err)
	}
	if pool.AvailableCPUCores < req.CPU {
		return "", &domain.InsufficientCapacityError{
			Dimension: "cpu_cores", Requested: req.CPU, Available: pool.AvailableCPUCores,
		}
	}
	if pool.AvailableMemoryGB < req.MemoryGB {
		return "", &domain.InsufficientCapacityError{
			Dimension: "memory_gb", Requested: req.MemoryGB, Available: pool.AvailableMemoryGB,
		}
	}

	candidates, err := s.candidates(req)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", &domain.NoEligibleNodeError{CPU: req.CPU, MemoryGB: req.MemoryGB}
	}

	sort.Slice(candidates, func(i, j int) bool {
		li, lj := candidates[i].load(), candidates[j].load()
		if li != lj {
			return li < lj
		}
		return candidates[i].baremetal.ID < candidates[j].baremetal.ID
	})
	return candidates[0].baremetal.ID, nil
}

// candidates filters active baremetals on per-node capacity and
// annotates survivors with their current allocation.
func (s *Selector) candidates(req domain.ResourceRequest) ([]candidate, error) {
	baremetals, err := s.store.ListBaremetals(domain.BaremetalActive)
	if err != nil {
		return nil, fmt.Errorf("placement: %w", err)
	}

	var out []candidate
	for _, b := range baremetals {
		if b.CPUCores < req.CPU || b.MemoryGB < req.MemoryGB {
			continue
		}
		allocCPU, allocMem, err := s.allocated(b.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, candidate{baremetal: b, allocatedCPU: allocCPU, allocatedMem: allocMem})
	}
	return out, nil
}

func (s *Selector) allocated(baremetalID string) (cpu, memGB int, err error) {
	vms, err := s.store.ListVMsOnBaremetal(baremetalID)
	if err != nil {
		return 0, 0, fmt.Errorf("placement: %w", err)
	}
	for _, v := range vms {
		if v.Terminal() {
			continue
		}
		cpu += v.CPUCores
		memGB += v.MemoryGB()
	}
	return cpu, memGB, nil
}

// Commit runs fn while holding the target baremetal's admission lock,
// after re-validating that the node still has room for the request.
// Two placements racing for the same node's last slot serialize here;
// the loser fails with ErrConcurrentModification and must roll back.
func (s *Selector) Commit(baremetalID string, req domain.ResourceRequest, fn func() error) error {
	unlock := s.admission.lock(baremetalID)
	defer unlock()

	b, err := s.findActive(baremetalID)
	if err != nil {
		return err
	}
	allocCPU, allocMem, err := s.allocated(baremetalID)
	if err != nil {
		return err
	}
	if allocCPU+req.CPU > b.CPUCores || allocMem+req.MemoryGB > b.MemoryGB {
		return &domain.ConcurrentModificationError{BaremetalID: baremetalID}
	}
	return fn()
}

func (s *Selector) findActive(baremetalID string) (*domain.Baremetal, error) {
	baremetals, err := s.store.ListBaremetals(domain.BaremetalActive)
	if err != nil {
		return nil, fmt.Errorf("placement: %w", err)
	}
	for i := range baremetals {
		if baremetals[i].ID == baremetalID {
			return &baremetals[i], nil
		}
	}
	return nil, fmt.Errorf("placement: active baremetal %s: %w", baremetalID, domain.ErrNotFound)
}

func validateRequest(req domain.ResourceRequest) error {
	if req.CPU <= 0 {
		return &domain.ValidationError{Field: "cpu", Reason: "must be positive"}
	}
	if req.MemoryGB <= 0 {
		return &domain.ValidationError{Field: "memory_gb", Reason: "must be positive"}
	}
	if req.StorageGB < 0 {
		return &domain.ValidationError{Field: "storage_gb", Reason: "must not be negative"}
	}
	return nil
}
