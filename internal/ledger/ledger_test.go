package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"fleetd/internal/domain"
	"fleetd/internal/inventory"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func bm(hostname, status string, cpu, mem, storage, iops int) domain.Baremetal {
	return domain.Baremetal{
		Hostname: hostname, Status: status,
		CPUCores: cpu, MemoryGB: mem, StorageGB: storage, IOPS: iops,
	}
}

func TestCompute_ActiveOnly(t *testing.T) {
	baremetals := []domain.Baremetal{
		bm("a", domain.BaremetalActive, 8, 32, 500, 10000),
		bm("b", domain.BaremetalFailed, 16, 64, 500, 10000),
		bm("c", domain.BaremetalMaintenance, 16, 64, 500, 10000),
		bm("d", domain.BaremetalInactive, 16, 64, 500, 10000),
	}

	pool, oversubscribed := Compute(baremetals, nil)
	if oversubscribed {
		t.Error("unexpected oversubscription")
	}
	if pool.TotalCPUCores != 8 || pool.TotalMemoryGB != 32 {
		t.Errorf("non-active baremetals contributed capacity: %+v", pool)
	}
	if pool.AvailableCPUCores != 8 || pool.AvailableMemoryGB != 32 {
		t.Errorf("expected full availability with no VMs: %+v", pool)
	}
}

func TestCompute_UsedExcludesTerminalVMs(t *testing.T) {
	baremetals := []domain.Baremetal{bm("a", domain.BaremetalActive, 16, 64, 500, 10000)}
	vms := []domain.VM{
		{Hostname: "vm-run", Status: domain.VMRunning, CPUCores: 4, MemoryMB: 16 * 1024},
		{Hostname: "vm-new", Status: domain.VMCreating, CPUCores: 2, MemoryMB: 8 * 1024},
		{Hostname: "vm-stop", Status: domain.VMStopped, CPUCores: 2, MemoryMB: 4 * 1024},
		{Hostname: "vm-dead", Status: domain.VMFailed, CPUCores: 8, MemoryMB: 32 * 1024},
		{Hostname: "vm-gone", Status: domain.VMDeleting, CPUCores: 8, MemoryMB: 32 * 1024},
	}

	pool, oversubscribed := Compute(baremetals, vms)
	if oversubscribed {
		t.Error("unexpected oversubscription")
	}
	// running + creating + stopped hold resources; failed and deleting do not.
	if pool.AvailableCPUCores != 16-8 {
		t.Errorf("AvailableCPUCores = %d, want 8", pool.AvailableCPUCores)
	}
	if pool.AvailableMemoryGB != 64-28 {
		t.Errorf("AvailableMemoryGB = %d, want 36", pool.AvailableMemoryGB)
	}
}

func TestCompute_InvariantAvailableLETotal(t *testing.T) {
	baremetals := []domain.Baremetal{bm("a", domain.BaremetalActive, 4, 8, 100, 1000)}
	vms := []domain.VM{
		{Hostname: "vm-1", Status: domain.VMRunning, CPUCores: 8, MemoryMB: 32 * 1024},
	}

	pool, oversubscribed := Compute(baremetals, vms)
	if !oversubscribed {
		t.Fatal("expected oversubscription to be reported, not silently clamped")
	}
	if pool.AvailableCPUCores != 0 || pool.AvailableMemoryGB != 0 {
		t.Errorf("expected clamp at zero, got %+v", pool)
	}
	if pool.AvailableCPUCores > pool.TotalCPUCores || pool.AvailableMemoryGB > pool.TotalMemoryGB {
		t.Errorf("available exceeds total: %+v", pool)
	}
}

func TestCompute_MemoryRoundsUp(t *testing.T) {
	baremetals := []domain.Baremetal{bm("a", domain.BaremetalActive, 4, 8, 100, 1000)}
	vms := []domain.VM{
		{Hostname: "vm-1", Status: domain.VMRunning, CPUCores: 1, MemoryMB: 1500},
	}

	pool, _ := Compute(baremetals, vms)
	// 1500 MB accounts as 2 GB so the ledger never under-counts.
	if pool.AvailableMemoryGB != 6 {
		t.Errorf("AvailableMemoryGB = %d, want 6", pool.AvailableMemoryGB)
	}
}

func TestRecompute_PersistsAndIsIdempotent(t *testing.T) {
	store, err := inventory.OpenAt(filepath.Join(t.TempDir(), "fleetd.db"))
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	b := &domain.Baremetal{Hostname: "bm-a", IPAddress: "10.0.0.1", CPUCores: 8, MemoryGB: 32, StorageGB: 500, IOPS: 10000}
	if err := store.SaveBaremetal(b); err != nil {
		t.Fatalf("SaveBaremetal failed: %v", err)
	}
	vm := &domain.VM{Hostname: "vm-1", BaremetalID: b.ID, Status: domain.VMRunning, CPUCores: 4, MemoryMB: 16 * 1024}
	if err := store.SaveVM(vm); err != nil {
		t.Fatalf("SaveVM failed: %v", err)
	}

	l := New(store, nil)
	first, err := l.Recompute()
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if first.AvailableCPUCores != 4 || first.AvailableMemoryGB != 16 {
		t.Errorf("unexpected availability: %+v", first)
	}

	persisted, err := l.Current()
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if diff := cmp.Diff(first, persisted, cmpopts.EquateApproxTime(time.Second)); diff != "" {
		t.Errorf("persisted snapshot differs (-want +got):\n%s", diff)
	}

	// Unchanged inputs produce an identical snapshot.
	second, err := l.Recompute()
	if err != nil {
		t.Fatalf("second Recompute failed: %v", err)
	}
	if diff := cmp.Diff(first, second, cmpopts.IgnoreFields(domain.Pool{}, "UpdatedAt")); diff != "" {
		t.Errorf("recompute not idempotent (-first +second):\n%s", diff)
	}
}

func TestRecompute_OversubscriptionRaisesAlert(t *testing.T) {
	store, err := inventory.OpenAt(filepath.Join(t.TempDir(), "fleetd.db"))
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	b := &domain.Baremetal{Hostname: "bm-a", IPAddress: "10.0.0.1", CPUCores: 2, MemoryGB: 4, StorageGB: 100, IOPS: 1000}
	if err := store.SaveBaremetal(b); err != nil {
		t.Fatalf("SaveBaremetal failed: %v", err)
	}
	vm := &domain.VM{Hostname: "vm-big", BaremetalID: b.ID, Status: domain.VMRunning, CPUCores: 8, MemoryMB: 32 * 1024}
	if err := store.SaveVM(vm); err != nil {
		t.Fatalf("SaveVM failed: %v", err)
	}

	l := New(store, nil)
	if _, err := l.Recompute(); err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	// A second recompute must not duplicate the alert.
	if _, err := l.Recompute(); err != nil {
		t.Fatalf("second Recompute failed: %v", err)
	}

	open, err := store.ListAlerts(true, "")
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected exactly one oversubscription alert, got %d", len(open))
	}
	if open[0].AlertType != domain.AlertPoolOversubscribed {
		t.Errorf("alert type = %q", open[0].AlertType)
	}
}
