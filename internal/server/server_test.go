package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"fleetd/internal/domain"
	"fleetd/internal/engine"
	"fleetd/internal/inventory"
	"fleetd/internal/ledger"
	"fleetd/internal/placement"
	"fleetd/internal/provision"
	"fleetd/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeNotifier struct {
	mu       sync.Mutex
	alertIDs []string
	err      error
}

func (n *fakeNotifier) Dispatch(_ context.Context, alertID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.alertIDs = append(n.alertIDs, alertID)
	return nil
}

type fixture struct {
	router   *gin.Engine
	engine   *engine.Engine
	store    *inventory.Store
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := inventory.OpenAt(filepath.Join(t.TempDir(), "fleetd.db"))
	if err != nil {
		t.Fatalf("OpenAt() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	led := ledger.New(store, nil)
	alloc := storage.New(map[string]int{"vm_storage": 1000},
		storage.NewLocalProvisioner(t.TempDir()), nil)
	notifier := &fakeNotifier{}
	eng := engine.New(store, led, placement.New(store),
		provision.NewMockBackend(), alloc, nil, nil)

	srv := New(eng, store, led, alloc, notifier, nil)
	return &fixture{
		router:   srv.Router(),
		engine:   eng,
		store:    store,
		notifier: notifier,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func (f *fixture) addBaremetal(t *testing.T, hostname string, cpu, memGB int) domain.Baremetal {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/baremetals", gin.H{
		"hostname":   hostname,
		"ip_address": "10.0.0.1",
		"cpu_cores":  cpu,
		"memory_gb":  memGB,
		"storage_gb": 2000,
		"iops":       10000,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create baremetal status = %d, body %s", w.Code, w.Body.String())
	}
	return decode[domain.Baremetal](t, w)
}

func (f *fixture) addImage(t *testing.T) domain.VMImage {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/images", gin.H{
		"name":        "ubuntu",
		"os_type":     "linux",
		"version":     "24.04",
		"min_cpu":     1,
		"min_memory":  1024,
		"min_storage": 1,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create image status = %d, body %s", w.Code, w.Body.String())
	}
	return decode[domain.VMImage](t, w)
}

func TestCreateVM_Accepted(t *testing.T) {
	f := newFixture(t)
	f.addBaremetal(t, "bm-01", 8, 32)
	img := f.addImage(t)

	w := f.do(t, http.MethodPost, "/api/v1/vms", gin.H{
		"hostname":   "web-01",
		"image_id":   img.ID,
		"cpu_cores":  2,
		"memory_mb":  4096,
		"storage_gb": 10,
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	vm := decode[domain.VM](t, w)
	if vm.Status != domain.VMCreating {
		t.Errorf("status = %q, want %q", vm.Status, domain.VMCreating)
	}
	f.engine.Wait()

	w = f.do(t, http.MethodGet, "/api/v1/vms/"+vm.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get vm status = %d", w.Code)
	}
	got := decode[domain.VM](t, w)
	if got.Status != domain.VMRunning {
		t.Errorf("status after provisioning = %q, want %q", got.Status, domain.VMRunning)
	}
	if got.IPAddress == "" {
		t.Error("expected an ip address after provisioning")
	}
}

func TestCreateVM_CapacityConflict(t *testing.T) {
	f := newFixture(t)
	f.addBaremetal(t, "bm-01", 4, 8)
	img := f.addImage(t)

	w := f.do(t, http.MethodPost, "/api/v1/vms", gin.H{
		"hostname":  "web-01",
		"image_id":  img.ID,
		"cpu_cores": 64,
		"memory_mb": 4096,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusConflict, w.Body.String())
	}
}

func TestCreateVM_MissingFields(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/v1/vms", gin.H{"hostname": "web-01"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetVM_NotFound(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/v1/vms/no-such-id", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestVMLifecycle_StopStartDelete(t *testing.T) {
	f := newFixture(t)
	f.addBaremetal(t, "bm-01", 8, 32)
	img := f.addImage(t)

	w := f.do(t, http.MethodPost, "/api/v1/vms", gin.H{
		"hostname":  "web-01",
		"image_id":  img.ID,
		"cpu_cores": 2,
		"memory_mb": 4096,
	})
	vm := decode[domain.VM](t, w)
	f.engine.Wait()

	if w := f.do(t, http.MethodPost, "/api/v1/vms/"+vm.ID+"/stop", nil); w.Code != http.StatusOK {
		t.Fatalf("stop status = %d, body %s", w.Code, w.Body.String())
	}
	// Stopping an already stopped VM is a state error, not a 500.
	if w := f.do(t, http.MethodPost, "/api/v1/vms/"+vm.ID+"/stop", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("double stop status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if w := f.do(t, http.MethodPost, "/api/v1/vms/"+vm.ID+"/start", nil); w.Code != http.StatusOK {
		t.Fatalf("start status = %d, body %s", w.Code, w.Body.String())
	}
	if w := f.do(t, http.MethodDelete, "/api/v1/vms/"+vm.ID, nil); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body %s", w.Code, w.Body.String())
	}
	if w := f.do(t, http.MethodGet, "/api/v1/vms/"+vm.ID, nil); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestListVMs_StatusFilter(t *testing.T) {
	f := newFixture(t)
	if w := f.do(t, http.MethodGet, "/api/v1/vms?status=bogus", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	w := f.do(t, http.MethodGet, "/api/v1/vms?status=running", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestPoolEndpoint(t *testing.T) {
	f := newFixture(t)
	f.addBaremetal(t, "bm-01", 8, 32)

	w := f.do(t, http.MethodGet, "/api/v1/pool", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	pool := decode[domain.Pool](t, w)
	if pool.TotalCPUCores != 8 || pool.AvailableCPUCores != 8 {
		t.Errorf("pool cpu = %d/%d, want 8/8", pool.AvailableCPUCores, pool.TotalCPUCores)
	}
}

func TestFleetHealthEndpoint(t *testing.T) {
	f := newFixture(t)
	f.addBaremetal(t, "bm-01", 8, 32)
	f.addBaremetal(t, "bm-02", 8, 32)

	w := f.do(t, http.MethodGet, "/api/v1/fleet/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	health := decode[fleetHealth](t, w)
	if health.Baremetals[domain.BaremetalActive] != 2 {
		t.Errorf("active baremetals = %d, want 2", health.Baremetals[domain.BaremetalActive])
	}
	if health.UnresolvedAlerts != 0 {
		t.Errorf("unresolved alerts = %d, want 0", health.UnresolvedAlerts)
	}
}

func TestBaremetalStatusTransition(t *testing.T) {
	f := newFixture(t)
	b := f.addBaremetal(t, "bm-01", 8, 32)

	w := f.do(t, http.MethodPut, "/api/v1/baremetals/"+b.ID+"/status", gin.H{"status": "maintenance"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	w = f.do(t, http.MethodPut, "/api/v1/baremetals/"+b.ID+"/status", gin.H{"status": "bogus"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAlertEndpoints(t *testing.T) {
	f := newFixture(t)
	alert := &domain.Alert{
		ResourceType: domain.ResourceBaremetal,
		ResourceID:   "bm-1",
		AlertType:    domain.AlertServerDown,
		Severity:     domain.SeverityCritical,
		Message:      "unreachable",
	}
	if err := f.store.SaveAlert(alert); err != nil {
		t.Fatalf("SaveAlert() error = %v", err)
	}

	w := f.do(t, http.MethodGet, "/api/v1/alerts?unresolved=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	list := decode[struct {
		Items []domain.Alert `json:"items"`
	}](t, w)
	if len(list.Items) != 1 {
		t.Fatalf("alerts = %d, want 1", len(list.Items))
	}

	if w := f.do(t, http.MethodPost, "/api/v1/alerts/"+alert.ID+"/dispatch", nil); w.Code != http.StatusAccepted {
		t.Fatalf("dispatch status = %d, body %s", w.Code, w.Body.String())
	}
	if len(f.notifier.alertIDs) != 1 || f.notifier.alertIDs[0] != alert.ID {
		t.Errorf("dispatched alerts = %v, want [%s]", f.notifier.alertIDs, alert.ID)
	}

	if w := f.do(t, http.MethodPost, "/api/v1/alerts/"+alert.ID+"/resolve", nil); w.Code != http.StatusOK {
		t.Fatalf("resolve status = %d, body %s", w.Code, w.Body.String())
	}
	w = f.do(t, http.MethodGet, "/api/v1/alerts?unresolved=true", nil)
	list = decode[struct {
		Items []domain.Alert `json:"items"`
	}](t, w)
	if len(list.Items) != 0 {
		t.Errorf("unresolved after resolve = %d, want 0", len(list.Items))
	}
}

func TestDispatchAlert_NoNotifier(t *testing.T) {
	f := newFixture(t)
	srv := New(f.engine, f.store, ledger.New(f.store, nil),
		storage.New(map[string]int{"vm_storage": 10}, storage.NewLocalProvisioner(t.TempDir()), nil),
		nil, nil)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/a-1/dispatch", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestStorageEndpoint(t *testing.T) {
	f := newFixture(t)
	f.addBaremetal(t, "bm-01", 8, 32)
	img := f.addImage(t)

	f.do(t, http.MethodPost, "/api/v1/vms", gin.H{
		"hostname":   "web-01",
		"image_id":   img.ID,
		"cpu_cores":  2,
		"memory_mb":  4096,
		"storage_gb": 25,
	})
	f.engine.Wait()

	w := f.do(t, http.MethodGet, "/api/v1/storage", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decode[struct {
		Tiers map[string]storage.TierUsage `json:"tiers"`
	}](t, w)
	usage, ok := resp.Tiers["vm_storage"]
	if !ok {
		t.Fatalf("vm_storage tier missing from %v", resp.Tiers)
	}
	if usage.UsedGB != 25 {
		t.Errorf("used = %d GB, want 25", usage.UsedGB)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestNotificationsForUnknownAlert(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/alerts/%s/notifications", "missing"), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
