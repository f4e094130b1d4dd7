package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadFrom_Missing(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected default HTTP addr, got %q", cfg.HTTPAddr)
	}
	if cfg.Health.FailureThreshold != 1 {
		t.Errorf("expected default failure threshold 1, got %d", cfg.Health.FailureThreshold)
	}
	if cfg.Health.ProbeTimeout.Std() != 5*time.Second {
		t.Errorf("expected 5s probe timeout, got %v", cfg.Health.ProbeTimeout.Std())
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := &Config{
		HTTPAddr: "127.0.0.1:9090",
		Backend:  "hetzner",
		Health: Health{
			BaremetalInterval: Duration(30 * time.Second),
			FailureThreshold:  3,
		},
		Channels: Channels{
			SlackWebhookURL: "https://hooks.slack.example/T000/B000",
		},
		StorageTiers: map[string]int{"vm_storage": 500},
	}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if got.HTTPAddr != "127.0.0.1:9090" {
		t.Errorf("HTTPAddr = %q", got.HTTPAddr)
	}
	if got.Health.BaremetalInterval.Std() != 30*time.Second {
		t.Errorf("BaremetalInterval = %v", got.Health.BaremetalInterval.Std())
	}
	if got.Health.FailureThreshold != 3 {
		t.Errorf("FailureThreshold = %d", got.Health.FailureThreshold)
	}
	if diff := cmp.Diff(map[string]int{"vm_storage": 500}, got.StorageTiers); diff != "" {
		t.Errorf("StorageTiers mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFrom_EnvOverride(t *testing.T) {
	t.Setenv("FLEETD_SLACK_WEBHOOK_URL", "https://hooks.slack.example/env")
	t.Setenv("FLEETD_FAILURE_THRESHOLD", "2")
	t.Setenv("FLEETD_PROBE_TIMEOUT", "10s")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Channels.SlackWebhookURL != "https://hooks.slack.example/env" {
		t.Errorf("SlackWebhookURL = %q", cfg.Channels.SlackWebhookURL)
	}
	if cfg.Health.FailureThreshold != 2 {
		t.Errorf("FailureThreshold = %d", cfg.Health.FailureThreshold)
	}
	if cfg.Health.ProbeTimeout.Std() != 10*time.Second {
		t.Errorf("ProbeTimeout = %v", cfg.Health.ProbeTimeout.Std())
	}
}

func TestDuration_UnmarshalForms(t *testing.T) {
	var d Duration
	if err := d.UnmarshalJSON([]byte("5000000000")); err != nil {
		t.Fatalf("numeric duration rejected: %v", err)
	}
	if d.Std() != 5*time.Second {
		t.Errorf("numeric duration = %v, want 5s", d.Std())
	}
	if err := d.UnmarshalJSON([]byte(`"not-a-duration"`)); err == nil {
		t.Error("expected error for malformed duration string")
	}
}
