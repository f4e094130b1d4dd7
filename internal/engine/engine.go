// Package engine ties the fleet components together: it validates
// requests, drives placement, commits VM records, provisions instances
// through the configured backend, reserves storage, and keeps the
// resource ledger current after every mutation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fleetd/internal/domain"
	"fleetd/internal/inventory"
	"fleetd/internal/ledger"
	"fleetd/internal/placement"
	"fleetd/internal/provision"
	"fleetd/internal/storage"
	"fleetd/internal/util"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	vmStorageTier     = "vm_storage"
	defaultMountPoint = "/data"
	provisionTimeout  = 5 * time.Minute
)

// Dispatcher receives alert ids for background fan-out.
type Dispatcher interface {
	Enqueue(alertID string)
}

// Engine coordinates placement, provisioning, storage, and the ledger.
type Engine struct {
	store    *inventory.Store
	ledger   *ledger.Ledger
	selector *placement.Selector
	backend  provision.Backend
	alloc    *storage.Allocator
	dispatch Dispatcher
	log      *logrus.Entry

	wg sync.WaitGroup
}

// New wires an engine over the given collaborators. dispatch may be
// nil when no notification channels are configured.
func New(store *inventory.Store, led *ledger.Ledger, sel *placement.Selector,
	backend provision.Backend, alloc *storage.Allocator, dispatch Dispatcher, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{
		store:    store,
		ledger:   led,
		selector: sel,
		backend:  backend,
		alloc:    alloc,
		dispatch: dispatch,
		log:      log,
	}
}

// Wait blocks until in-flight background provisioning finishes.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// CreateVMRequest is an operator's request for a new VM.
type CreateVMRequest struct {
	Hostname  string `json:"hostname"`
	ImageID   string `json:"image_id"`
	CPUCores  int    `json:"cpu_cores"`
	MemoryMB  int    `json:"memory_mb"`
	StorageGB int    `json:"storage_gb"`
	CreatedBy string `json:"created_by"`
}

// CreateVM validates the request, places it, persists the VM in
// creating state with its storage reserved, and provisions the
// instance in the background. The returned VM reflects the committed
// creating state; provisioning outcome lands asynchronously as either
// running or failed-with-alert.
func (e *Engine) CreateVM(ctx context.Context, req CreateVMRequest) (*domain.VM, error) {
	if err := e.validateCreate(req); err != nil {
		return nil, err
	}

	image, err := e.store.GetImage(req.ImageID)
	if err != nil {
		return nil, fmt.Errorf("engine: image %s: %w", req.ImageID, err)
	}
	if !image.IsActive {
		return nil, &domain.ValidationError{Field: "image_id", Reason: fmt.Sprintf("image %q is retired", req.ImageID)}
	}
	if req.CPUCores < image.MinCPU {
		return nil, &domain.ValidationError{Field: "cpu_cores", Reason: fmt.Sprintf("image requires at least %d cores", image.MinCPU)}
	}
	if req.MemoryMB < image.MinMemory {
		return nil, &domain.ValidationError{Field: "memory_mb", Reason: fmt.Sprintf("image requires at least %d MB", image.MinMemory)}
	}
	if req.StorageGB < image.MinStorage {
		return nil, &domain.ValidationError{Field: "storage_gb", Reason: fmt.Sprintf("image requires at least %d GB", image.MinStorage)}
	}

	rr := domain.ResourceRequest{
		CPU:       req.CPUCores,
		MemoryGB:  (req.MemoryMB + 1023) / 1024,
		StorageGB: req.StorageGB,
	}

	baremetalID, err := e.selector.Place(rr)
	if err != nil {
		return nil, err
	}

	vm := &domain.VM{
		Hostname:    req.Hostname,
		BaremetalID: baremetalID,
		ImageID:     req.ImageID,
		CPUCores:    req.CPUCores,
		MemoryMB:    req.MemoryMB,
		Status:      domain.VMCreating,
		CreatedBy:   req.CreatedBy,
	}

	err = e.selector.Commit(baremetalID, rr, func() error {
		if err := e.store.SaveVM(vm); err != nil {
			return err
		}
		if req.StorageGB == 0 {
			return nil
		}

		// The mount id doubles as the allocator's volume key, so it
		// is fixed before the reservation is made.
		mountID := uuid.NewString()
		path, err := e.alloc.Allocate(ctx, vmStorageTier, mountID, req.StorageGB)
		if err != nil {
			if derr := e.store.DeleteVM(vm.ID); derr != nil {
				e.log.WithError(derr).WithField("vm", vm.Hostname).Error("failed to roll back vm record")
			}
			e.raiseTierFull(err, req.StorageGB)
			return err
		}
		if err := e.store.SaveMount(&domain.StorageMount{
			ID:         mountID,
			VMID:       vm.ID,
			MountPoint: defaultMountPoint,
			StorageGB:  req.StorageGB,
			Tier:       vmStorageTier,
			VolumePath: path,
		}); err != nil {
			if derr := e.alloc.Deallocate(ctx, mountID); derr != nil {
				e.log.WithError(derr).WithField("vm", vm.Hostname).Error("failed to release volume after mount insert failure")
			}
			if derr := e.store.DeleteVM(vm.ID); derr != nil {
				e.log.WithError(derr).WithField("vm", vm.Hostname).Error("failed to roll back vm record")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := e.ledger.Recompute(); err != nil {
		e.log.WithError(err).Error("ledger recompute failed after vm create")
	}

	e.log.WithFields(logrus.Fields{
		"vm":        vm.Hostname,
		"baremetal": baremetalID,
	}).Info("vm placed")

	e.wg.Add(1)
	go e.provisionVM(vm.ID)

	return vm, nil
}

// provisionVM realizes the instance on the backend and finalizes the
// VM's status. Runs detached from the request that created the VM.
func (e *Engine) provisionVM(vmID string) {
	defer e.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), provisionTimeout)
	defer cancel()

	vm, err := e.store.GetVM(vmID)
	if err != nil {
		e.log.WithError(err).WithField("vm", vmID).Error("vm vanished before provisioning")
		return
	}

	externalID, ipAddress, err := e.backend.CreateInstance(ctx, provision.InstanceSpec{
		Hostname: vm.Hostname,
		CPUCores: vm.CPUCores,
		MemoryMB: vm.MemoryMB,
		ImageID:  vm.ImageID,
	})
	if err != nil {
		e.failProvisioning(vm, err)
		return
	}

	vm.ExternalID = externalID
	vm.IPAddress = ipAddress
	vm.Status = domain.VMRunning
	if err := e.store.SaveVM(vm); err != nil {
		e.log.WithError(err).WithField("vm", vm.Hostname).Error("failed to record running vm")
		return
	}
	e.log.WithFields(logrus.Fields{
		"vm": vm.Hostname,
		"ip": ipAddress,
	}).Info("vm running")
}

// failProvisioning marks the VM failed together with its alert and
// hands the alert to the dispatcher. The ledger is recomputed because
// failed is terminal and its resources return to the pool.
func (e *Engine) failProvisioning(vm *domain.VM, cause error) {
	alert := &domain.Alert{
		ResourceType: domain.ResourceVM,
		ResourceID:   vm.ID,
		AlertType:    domain.AlertVMProvisionFailed,
		Severity:     domain.SeverityHigh,
		Message:      fmt.Sprintf("Provisioning VM %s failed: %v", vm.Hostname, cause),
		Labels:       map[string]string{"hostname": vm.Hostname, "baremetal_id": vm.BaremetalID},
	}
	created, err := e.store.MarkFailedWithAlert(alert)
	if err != nil {
		e.log.WithError(err).WithField("vm", vm.Hostname).Error("failed to record provisioning failure")
		return
	}
	if created && e.dispatch != nil {
		e.dispatch.Enqueue(alert.ID)
	}
	if _, err := e.ledger.Recompute(); err != nil {
		e.log.WithError(err).Error("ledger recompute failed after provisioning failure")
	}
	e.log.WithError(cause).WithField("vm", vm.Hostname).Warn("vm provisioning failed")
}

// raiseTierFull records a deduplicated storage_tier_full alert when an
// allocation fails on capacity rather than on mechanics.
func (e *Engine) raiseTierFull(cause error, requestedGB int) {
	var capErr *domain.InsufficientCapacityError
	if !errors.As(cause, &capErr) {
		return
	}

	open, err := e.store.HasOpenAlert("storage_tier", capErr.Dimension, domain.AlertStorageTierFull)
	if err != nil || open {
		return
	}
	alert := &domain.Alert{
		ResourceType: "storage_tier",
		ResourceID:   capErr.Dimension,
		AlertType:    domain.AlertStorageTierFull,
		Severity:     domain.SeverityHigh,
		Message: fmt.Sprintf("Storage tier %s cannot fit %dGB (%dGB available)",
			capErr.Dimension, requestedGB, capErr.Available),
	}
	if err := e.store.SaveAlert(alert); err != nil {
		e.log.WithError(err).Error("failed to record tier alert")
		return
	}
	if e.dispatch != nil {
		e.dispatch.Enqueue(alert.ID)
	}
}

func (e *Engine) validateCreate(req CreateVMRequest) error {
	if err := util.ValidateHostname(req.Hostname); err != nil {
		return &domain.ValidationError{Field: "hostname", Reason: err.Error()}
	}
	if req.ImageID == "" {
		return &domain.ValidationError{Field: "image_id", Reason: "required"}
	}
	if _, err := e.store.GetVMByHostname(req.Hostname); err == nil {
		return &domain.ValidationError{Field: "hostname", Reason: fmt.Sprintf("vm %q already exists", req.Hostname)}
	}
	return nil
}

// DeleteVM tears a VM down: the backend instance is removed, storage
// is released, open alerts for the VM resolve, and its record is
// deleted, crediting the ledger.
func (e *Engine) DeleteVM(ctx context.Context, id string) error {
	vm, err := e.store.GetVM(id)
	if err != nil {
		return fmt.Errorf("engine: vm %s: %w", id, err)
	}

	if err := e.store.UpdateVMStatus(vm.ID, domain.VMDeleting); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	if vm.ExternalID != "" {
		if err := e.backend.DeleteInstance(ctx, vm.ExternalID); err != nil {
			return fmt.Errorf("engine: instance teardown failed: %w", err)
		}
	}

	mounts, err := e.store.ListMounts(vm.ID)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	for _, m := range mounts {
		if err := e.alloc.Deallocate(ctx, m.ID); err != nil {
			e.log.WithError(err).WithField("mount", m.ID).Error("failed to release storage")
		}
	}

	now := time.Now().UTC()
	for _, alertType := range []string{domain.AlertVMDown, domain.AlertVMProvisionFailed} {
		if _, err := e.store.ResolveAlertsFor(domain.ResourceVM, vm.ID, alertType, now); err != nil {
			e.log.WithError(err).WithField("vm", vm.Hostname).Error("failed to resolve vm alerts")
		}
	}

	if err := e.store.DeleteVM(vm.ID); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if _, err := e.ledger.Recompute(); err != nil {
		e.log.WithError(err).Error("ledger recompute failed after vm delete")
	}

	e.log.WithField("vm", vm.Hostname).Info("vm deleted")
	return nil
}

// StopVM transitions a running VM to stopped. A stopped VM keeps its
// reservation: the ledger still counts it.
func (e *Engine) StopVM(ctx context.Context, id string) error {
	return e.transitionVM(ctx, id, domain.VMRunning, domain.VMStopped)
}

// StartVM transitions a stopped VM back to running.
func (e *Engine) StartVM(ctx context.Context, id string) error {
	return e.transitionVM(ctx, id, domain.VMStopped, domain.VMRunning)
}

func (e *Engine) transitionVM(_ context.Context, id, from, to string) error {
	vm, err := e.store.GetVM(id)
	if err != nil {
		return fmt.Errorf("engine: vm %s: %w", id, err)
	}
	if vm.Status != from {
		return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("vm is %s, expected %s", vm.Status, from)}
	}
	return e.store.UpdateVMStatus(id, to)
}
