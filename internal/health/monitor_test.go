package health

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"fleetd/internal/domain"
	"fleetd/internal/inventory"
)

// fakeProber answers per address. Addresses not in the map are healthy.
type fakeProber struct {
	mu   sync.Mutex
	down map[string]bool
}

func (p *fakeProber) setDown(address string, down bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.down == nil {
		p.down = make(map[string]bool)
	}
	p.down[address] = down
}

func (p *fakeProber) Probe(_ context.Context, address string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.down[address]
}

type fakeDispatcher struct {
	mu       sync.Mutex
	alertIDs []string
}

func (d *fakeDispatcher) Enqueue(alertID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alertIDs = append(d.alertIDs, alertID)
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.alertIDs)
}

func tempStore(t *testing.T) *inventory.Store {
	t.Helper()
	store, err := inventory.OpenAt(filepath.Join(t.TempDir(), "fleetd.db"))
	if err != nil {
		t.Fatalf("OpenAt() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func addBaremetal(t *testing.T, store *inventory.Store, hostname, ip string) *domain.Baremetal {
	t.Helper()
	b := &domain.Baremetal{
		Hostname:  hostname,
		IPAddress: ip,
		CPUCores:  16,
		MemoryGB:  64,
		StorageGB: 2000,
		IOPS:      10000,
	}
	if err := store.SaveBaremetal(b); err != nil {
		t.Fatalf("SaveBaremetal(%s) error = %v", hostname, err)
	}
	return b
}

func addRunningVM(t *testing.T, store *inventory.Store, baremetalID, hostname, ip string) *domain.VM {
	t.Helper()
	v := &domain.VM{
		Hostname:    hostname,
		IPAddress:   ip,
		BaremetalID: baremetalID,
		CPUCores:    2,
		MemoryMB:    4096,
		Status:      domain.VMRunning,
	}
	if err := store.SaveVM(v); err != nil {
		t.Fatalf("SaveVM(%s) error = %v", hostname, err)
	}
	return v
}

func newTestMonitor(store *inventory.Store, prober Prober, threshold int) (*Monitor, *fakeDispatcher) {
	dispatch := &fakeDispatcher{}
	m := New(store, dispatch, Options{
		Prober:           prober,
		FailureThreshold: threshold,
	}, nil)
	return m, dispatch
}

func TestSweepBaremetals_FailureTransition(t *testing.T) {
	store := tempStore(t)
	b := addBaremetal(t, store, "bm-01", "10.0.0.1")

	prober := &fakeProber{}
	prober.setDown("10.0.0.1", true)
	m, dispatch := newTestMonitor(store, prober, 1)

	if err := m.SweepBaremetals(context.Background()); err != nil {
		t.Fatalf("SweepBaremetals() error = %v", err)
	}

	got, err := store.GetBaremetal(b.ID)
	if err != nil {
		t.Fatalf("GetBaremetal() error = %v", err)
	}
	if got.Status != domain.BaremetalFailed {
		t.Errorf("status = %q, want %q", got.Status, domain.BaremetalFailed)
	}

	alerts, err := store.ListAlerts(true, "")
	if err != nil {
		t.Fatalf("ListAlerts() error = %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("open alerts = %d, want 1", len(alerts))
	}
	a := alerts[0]
	if a.AlertType != domain.AlertServerDown {
		t.Errorf("alert type = %q, want %q", a.AlertType, domain.AlertServerDown)
	}
	if a.Severity != domain.SeverityCritical {
		t.Errorf("severity = %q, want %q", a.Severity, domain.SeverityCritical)
	}
	if dispatch.count() != 1 {
		t.Errorf("dispatched alerts = %d, want 1", dispatch.count())
	}
}

func TestSweepBaremetals_NoDuplicateAlert(t *testing.T) {
	store := tempStore(t)
	b := addBaremetal(t, store, "bm-01", "10.0.0.1")

	prober := &fakeProber{}
	prober.setDown("10.0.0.1", true)
	m, dispatch := newTestMonitor(store, prober, 1)

	if err := m.SweepBaremetals(context.Background()); err != nil {
		t.Fatalf("first sweep error = %v", err)
	}
	// A failed host is no longer probed, but even a direct re-failure
	// must not open a second alert.
	if err := store.UpdateBaremetalStatus(b.ID, domain.BaremetalActive); err != nil {
		t.Fatalf("UpdateBaremetalStatus() error = %v", err)
	}
	if err := m.SweepBaremetals(context.Background()); err != nil {
		t.Fatalf("second sweep error = %v", err)
	}

	alerts, err := store.ListAlerts(true, "")
	if err != nil {
		t.Fatalf("ListAlerts() error = %v", err)
	}
	if len(alerts) != 1 {
		t.Errorf("open alerts = %d, want 1", len(alerts))
	}
	if dispatch.count() != 1 {
		t.Errorf("dispatched alerts = %d, want 1", dispatch.count())
	}
}

func TestSweepBaremetals_FailureThreshold(t *testing.T) {
	store := tempStore(t)
	b := addBaremetal(t, store, "bm-01", "10.0.0.1")

	prober := &fakeProber{}
	prober.setDown("10.0.0.1", true)
	m, _ := newTestMonitor(store, prober, 3)

	for i := 1; i <= 2; i++ {
		if err := m.SweepBaremetals(context.Background()); err != nil {
			t.Fatalf("sweep %d error = %v", i, err)
		}
		got, err := store.GetBaremetal(b.ID)
		if err != nil {
			t.Fatalf("GetBaremetal() error = %v", err)
		}
		if got.Status != domain.BaremetalActive {
			t.Fatalf("after sweep %d status = %q, want active", i, got.Status)
		}
	}

	if err := m.SweepBaremetals(context.Background()); err != nil {
		t.Fatalf("third sweep error = %v", err)
	}
	got, err := store.GetBaremetal(b.ID)
	if err != nil {
		t.Fatalf("GetBaremetal() error = %v", err)
	}
	if got.Status != domain.BaremetalFailed {
		t.Errorf("after third sweep status = %q, want failed", got.Status)
	}
}

func TestSweepBaremetals_RecoveryResetsCounter(t *testing.T) {
	store := tempStore(t)
	b := addBaremetal(t, store, "bm-01", "10.0.0.1")

	prober := &fakeProber{}
	m, _ := newTestMonitor(store, prober, 2)

	// fail, recover, fail: never two consecutive failures
	prober.setDown("10.0.0.1", true)
	if err := m.SweepBaremetals(context.Background()); err != nil {
		t.Fatalf("sweep error = %v", err)
	}
	prober.setDown("10.0.0.1", false)
	if err := m.SweepBaremetals(context.Background()); err != nil {
		t.Fatalf("sweep error = %v", err)
	}
	prober.setDown("10.0.0.1", true)
	if err := m.SweepBaremetals(context.Background()); err != nil {
		t.Fatalf("sweep error = %v", err)
	}

	got, err := store.GetBaremetal(b.ID)
	if err != nil {
		t.Fatalf("GetBaremetal() error = %v", err)
	}
	if got.Status != domain.BaremetalActive {
		t.Errorf("status = %q, want active", got.Status)
	}
}

func TestSweepBaremetals_HealthyTouchesLastCheck(t *testing.T) {
	store := tempStore(t)
	b := addBaremetal(t, store, "bm-01", "10.0.0.1")
	if !b.LastHealthCheck.IsZero() {
		t.Fatalf("fresh baremetal already has last health check")
	}

	m, _ := newTestMonitor(store, &fakeProber{}, 1)
	if err := m.SweepBaremetals(context.Background()); err != nil {
		t.Fatalf("SweepBaremetals() error = %v", err)
	}

	got, err := store.GetBaremetal(b.ID)
	if err != nil {
		t.Fatalf("GetBaremetal() error = %v", err)
	}
	if got.LastHealthCheck.IsZero() {
		t.Errorf("last health check not recorded")
	}
}

func TestSweepBaremetals_SkipsMaintenance(t *testing.T) {
	store := tempStore(t)
	b := addBaremetal(t, store, "bm-01", "10.0.0.1")
	if err := store.UpdateBaremetalStatus(b.ID, domain.BaremetalMaintenance); err != nil {
		t.Fatalf("UpdateBaremetalStatus() error = %v", err)
	}

	prober := &fakeProber{}
	prober.setDown("10.0.0.1", true)
	m, dispatch := newTestMonitor(store, prober, 1)

	if err := m.SweepBaremetals(context.Background()); err != nil {
		t.Fatalf("SweepBaremetals() error = %v", err)
	}

	got, err := store.GetBaremetal(b.ID)
	if err != nil {
		t.Fatalf("GetBaremetal() error = %v", err)
	}
	if got.Status != domain.BaremetalMaintenance {
		t.Errorf("status = %q, want maintenance", got.Status)
	}
	if dispatch.count() != 0 {
		t.Errorf("dispatched alerts = %d, want 0", dispatch.count())
	}
}

func TestSweepBaremetals_OneDownHostDoesNotStopOthers(t *testing.T) {
	store := tempStore(t)
	down := addBaremetal(t, store, "bm-01", "10.0.0.1")
	up := addBaremetal(t, store, "bm-02", "10.0.0.2")

	prober := &fakeProber{}
	prober.setDown("10.0.0.1", true)
	m, _ := newTestMonitor(store, prober, 1)

	if err := m.SweepBaremetals(context.Background()); err != nil {
		t.Fatalf("SweepBaremetals() error = %v", err)
	}

	gotDown, err := store.GetBaremetal(down.ID)
	if err != nil {
		t.Fatalf("GetBaremetal() error = %v", err)
	}
	if gotDown.Status != domain.BaremetalFailed {
		t.Errorf("down host status = %q, want failed", gotDown.Status)
	}
	gotUp, err := store.GetBaremetal(up.ID)
	if err != nil {
		t.Fatalf("GetBaremetal() error = %v", err)
	}
	if gotUp.Status != domain.BaremetalActive {
		t.Errorf("up host status = %q, want active", gotUp.Status)
	}
	if gotUp.LastHealthCheck.IsZero() {
		t.Errorf("up host last health check not recorded")
	}
}

func TestSweepVMs_FailureTransition(t *testing.T) {
	store := tempStore(t)
	b := addBaremetal(t, store, "bm-01", "10.0.0.1")
	v := addRunningVM(t, store, b.ID, "web-01", "10.0.1.10")

	prober := &fakeProber{}
	prober.setDown("10.0.1.10", true)
	m, dispatch := newTestMonitor(store, prober, 1)

	if err := m.SweepVMs(context.Background()); err != nil {
		t.Fatalf("SweepVMs() error = %v", err)
	}

	got, err := store.GetVM(v.ID)
	if err != nil {
		t.Fatalf("GetVM() error = %v", err)
	}
	if got.Status != domain.VMFailed {
		t.Errorf("status = %q, want %q", got.Status, domain.VMFailed)
	}

	alerts, err := store.ListAlerts(true, "")
	if err != nil {
		t.Fatalf("ListAlerts() error = %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("open alerts = %d, want 1", len(alerts))
	}
	if alerts[0].AlertType != domain.AlertVMDown {
		t.Errorf("alert type = %q, want %q", alerts[0].AlertType, domain.AlertVMDown)
	}
	if alerts[0].Severity != domain.SeverityHigh {
		t.Errorf("severity = %q, want %q", alerts[0].Severity, domain.SeverityHigh)
	}
	if dispatch.count() != 1 {
		t.Errorf("dispatched alerts = %d, want 1", dispatch.count())
	}
}

func TestSweepVMs_SkipsAddresslessVMs(t *testing.T) {
	store := tempStore(t)
	b := addBaremetal(t, store, "bm-01", "10.0.0.1")
	v := addRunningVM(t, store, b.ID, "web-01", "")

	m, dispatch := newTestMonitor(store, &fakeProber{}, 1)
	if err := m.SweepVMs(context.Background()); err != nil {
		t.Fatalf("SweepVMs() error = %v", err)
	}

	got, err := store.GetVM(v.ID)
	if err != nil {
		t.Fatalf("GetVM() error = %v", err)
	}
	if got.Status != domain.VMRunning {
		t.Errorf("status = %q, want running", got.Status)
	}
	if dispatch.count() != 0 {
		t.Errorf("dispatched alerts = %d, want 0", dispatch.count())
	}
}
