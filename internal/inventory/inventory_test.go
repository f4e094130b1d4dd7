package inventory

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fleetd/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleetd.db")
	s, err := OpenAt(path)
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addBaremetal(t *testing.T, s *Store, hostname string, cpu, mem int) *domain.Baremetal {
	t.Helper()
	b := &domain.Baremetal{
		Hostname:  hostname,
		IPAddress: "10.0.0.1",
		CPUCores:  cpu,
		MemoryGB:  mem,
		StorageGB: 500,
		IOPS:      10000,
	}
	if err := s.SaveBaremetal(b); err != nil {
		t.Fatalf("SaveBaremetal failed: %v", err)
	}
	return b
}

func TestSaveBaremetal_Insert(t *testing.T) {
	s := tempStore(t)

	b := addBaremetal(t, s, "rack1-bm01", 32, 128)
	if b.ID == "" {
		t.Error("expected ID to be assigned after insert")
	}
	if b.Status != domain.BaremetalActive {
		t.Errorf("expected default status active, got %q", b.Status)
	}

	got, err := s.GetBaremetal(b.ID)
	if err != nil {
		t.Fatalf("GetBaremetal failed: %v", err)
	}
	if diff := cmp.Diff(b, got, cmpopts.EquateApproxTime(time.Second)); diff != "" {
		t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveBaremetal_UpdateNotFound(t *testing.T) {
	s := tempStore(t)

	b := &domain.Baremetal{ID: "missing", Hostname: "x1", IPAddress: "10.0.0.9", CPUCores: 1, MemoryGB: 1}
	err := s.SaveBaremetal(b)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListBaremetals_StatusFilter(t *testing.T) {
	s := tempStore(t)

	addBaremetal(t, s, "bm-a", 8, 32)
	b := addBaremetal(t, s, "bm-b", 8, 32)
	if err := s.UpdateBaremetalStatus(b.ID, domain.BaremetalMaintenance); err != nil {
		t.Fatalf("UpdateBaremetalStatus failed: %v", err)
	}

	active, err := s.ListBaremetals(domain.BaremetalActive)
	if err != nil {
		t.Fatalf("ListBaremetals failed: %v", err)
	}
	if len(active) != 1 || active[0].Hostname != "bm-a" {
		t.Errorf("expected only bm-a active, got %+v", active)
	}

	all, err := s.ListBaremetals("")
	if err != nil {
		t.Fatalf("ListBaremetals failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 baremetals, got %d", len(all))
	}
}

func TestDeleteBaremetal_RefusesWithVMs(t *testing.T) {
	s := tempStore(t)

	b := addBaremetal(t, s, "bm-a", 8, 32)
	vm := &domain.VM{Hostname: "vm-1", BaremetalID: b.ID, CPUCores: 2, MemoryMB: 4096}
	if err := s.SaveVM(vm); err != nil {
		t.Fatalf("SaveVM failed: %v", err)
	}

	if err := s.DeleteBaremetal(b.ID); err == nil {
		t.Fatal("expected delete to fail while VMs remain")
	}

	if err := s.DeleteVM(vm.ID); err != nil {
		t.Fatalf("DeleteVM failed: %v", err)
	}
	if err := s.DeleteBaremetal(b.ID); err != nil {
		t.Fatalf("DeleteBaremetal failed after VM removal: %v", err)
	}
}

func TestSaveVM_HostnameUnique(t *testing.T) {
	s := tempStore(t)

	b := addBaremetal(t, s, "bm-a", 8, 32)
	vm := &domain.VM{Hostname: "vm-1", BaremetalID: b.ID, CPUCores: 2, MemoryMB: 4096}
	if err := s.SaveVM(vm); err != nil {
		t.Fatalf("SaveVM failed: %v", err)
	}

	dup := &domain.VM{Hostname: "vm-1", BaremetalID: b.ID, CPUCores: 1, MemoryMB: 1024}
	if err := s.SaveVM(dup); err == nil {
		t.Error("expected unique constraint violation for duplicate hostname")
	}
}

func TestMarkFailedWithAlert_CreatesOnce(t *testing.T) {
	s := tempStore(t)

	b := addBaremetal(t, s, "bm-a", 8, 32)

	alert := &domain.Alert{
		ResourceType: domain.ResourceBaremetal,
		ResourceID:   b.ID,
		AlertType:    domain.AlertServerDown,
		Severity:     domain.SeverityCritical,
		Message:      "Baremetal server bm-a is not responding",
	}
	created, err := s.MarkFailedWithAlert(alert)
	if err != nil {
		t.Fatalf("MarkFailedWithAlert failed: %v", err)
	}
	if !created {
		t.Error("expected first failure to create an alert")
	}

	got, err := s.GetBaremetal(b.ID)
	if err != nil {
		t.Fatalf("GetBaremetal failed: %v", err)
	}
	if got.Status != domain.BaremetalFailed {
		t.Errorf("expected status failed, got %q", got.Status)
	}

	// A second consecutive failure must not create a duplicate alert.
	again := &domain.Alert{
		ResourceType: domain.ResourceBaremetal,
		ResourceID:   b.ID,
		AlertType:    domain.AlertServerDown,
		Severity:     domain.SeverityCritical,
		Message:      "still down",
	}
	created, err = s.MarkFailedWithAlert(again)
	if err != nil {
		t.Fatalf("second MarkFailedWithAlert failed: %v", err)
	}
	if created {
		t.Error("expected no duplicate alert for an already-failed resource")
	}

	open, err := s.ListAlerts(true, "")
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(open) != 1 {
		t.Errorf("expected exactly 1 open alert, got %d", len(open))
	}
}

func TestResolveAlertsFor(t *testing.T) {
	s := tempStore(t)

	b := addBaremetal(t, s, "bm-a", 8, 32)
	alert := &domain.Alert{
		ResourceType: domain.ResourceBaremetal,
		ResourceID:   b.ID,
		AlertType:    domain.AlertServerDown,
		Severity:     domain.SeverityCritical,
		Message:      "down",
	}
	if _, err := s.MarkFailedWithAlert(alert); err != nil {
		t.Fatalf("MarkFailedWithAlert failed: %v", err)
	}

	n, err := s.ResolveAlertsFor(domain.ResourceBaremetal, b.ID, domain.AlertServerDown, time.Now())
	if err != nil {
		t.Fatalf("ResolveAlertsFor failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 alert resolved, got %d", n)
	}

	open, err := s.ListAlerts(true, "")
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("expected no open alerts, got %d", len(open))
	}
}

func TestAlertLabels_RoundTrip(t *testing.T) {
	s := tempStore(t)

	a := &domain.Alert{
		ResourceType: domain.ResourceVM,
		ResourceID:   "vm-id",
		AlertType:    domain.AlertVMDown,
		Severity:     domain.SeverityHigh,
		Message:      "vm down",
		Labels:       map[string]string{"hostname": "vm-1", "baremetal": "bm-a"},
	}
	if err := s.SaveAlert(a); err != nil {
		t.Fatalf("SaveAlert failed: %v", err)
	}

	got, err := s.GetAlert(a.ID)
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if diff := cmp.Diff(a.Labels, got.Labels); diff != "" {
		t.Errorf("label mismatch (-want +got):\n%s", diff)
	}
}

func TestNotifications_AppendOnly(t *testing.T) {
	s := tempStore(t)

	a := &domain.Alert{
		ResourceType: domain.ResourceBaremetal,
		ResourceID:   "bm-id",
		AlertType:    domain.AlertServerDown,
		Severity:     domain.SeverityCritical,
		Message:      "down",
	}
	if err := s.SaveAlert(a); err != nil {
		t.Fatalf("SaveAlert failed: %v", err)
	}

	first := &domain.Notification{AlertID: a.ID, Channel: domain.ChannelSlack}
	if err := s.InsertNotification(first); err != nil {
		t.Fatalf("InsertNotification failed: %v", err)
	}
	if err := s.FinalizeNotification(first.ID, domain.NotificationFailed, time.Time{}, "HTTP 500"); err != nil {
		t.Fatalf("FinalizeNotification failed: %v", err)
	}

	// Re-dispatch creates a fresh record; the failed one stays.
	second := &domain.Notification{AlertID: a.ID, Channel: domain.ChannelSlack}
	if err := s.InsertNotification(second); err != nil {
		t.Fatalf("second InsertNotification failed: %v", err)
	}
	if err := s.FinalizeNotification(second.ID, domain.NotificationSent, time.Now(), ""); err != nil {
		t.Fatalf("second FinalizeNotification failed: %v", err)
	}

	all, err := s.ListNotifications(a.ID)
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 notification rows, got %d", len(all))
	}
	if all[0].Status != domain.NotificationFailed || all[0].Error != "HTTP 500" {
		t.Errorf("first attempt = %+v, want failed with HTTP 500", all[0])
	}
	if all[1].Status != domain.NotificationSent {
		t.Errorf("second attempt = %+v, want sent", all[1])
	}
}

func TestPool_UpsertIdempotent(t *testing.T) {
	s := tempStore(t)

	p := &domain.Pool{
		TotalCPUCores: 64, TotalMemoryGB: 256, TotalStorageGB: 2000, TotalIOPS: 40000,
		AvailableCPUCores: 32, AvailableMemoryGB: 128, AvailableStorageGB: 1000, AvailableIOPS: 20000,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.SavePool(p); err != nil {
		t.Fatalf("SavePool failed: %v", err)
	}
	if err := s.SavePool(p); err != nil {
		t.Fatalf("second SavePool failed: %v", err)
	}

	got, err := s.GetPool()
	if err != nil {
		t.Fatalf("GetPool failed: %v", err)
	}
	if diff := cmp.Diff(p, got, cmpopts.EquateApproxTime(time.Second)); diff != "" {
		t.Errorf("pool mismatch (-want +got):\n%s", diff)
	}
}

func TestSumMountedGB(t *testing.T) {
	s := tempStore(t)

	b := addBaremetal(t, s, "bm-a", 8, 32)
	vm := &domain.VM{Hostname: "vm-1", BaremetalID: b.ID, CPUCores: 2, MemoryMB: 4096}
	if err := s.SaveVM(vm); err != nil {
		t.Fatalf("SaveVM failed: %v", err)
	}

	mounts := []domain.StorageMount{
		{VMID: vm.ID, MountPoint: "/", StorageGB: 40, Tier: "vm_storage"},
		{VMID: vm.ID, MountPoint: "/data", StorageGB: 100, Tier: "vm_storage"},
		{VMID: vm.ID, MountPoint: "/backup", StorageGB: 10, Tier: "backups"},
	}
	for i := range mounts {
		if err := s.SaveMount(&mounts[i]); err != nil {
			t.Fatalf("SaveMount failed: %v", err)
		}
	}

	got, err := s.SumMountedGB()
	if err != nil {
		t.Fatalf("SumMountedGB failed: %v", err)
	}
	want := map[string]int{"vm_storage": 140, "backups": 10}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("usage mismatch (-want +got):\n%s", diff)
	}
}
