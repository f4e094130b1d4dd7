// Package inventory is the durable record store for the fleet engine:
// baremetals, VMs, images, storage mounts, alerts, notifications, and
// the resource pool snapshot.
//
// Storage is backed by a SQLite database at ~/.config/fleetd/fleetd.db
// (or the platform-equivalent path returned by os.UserConfigDir).
// Multi-step state changes that must not be torn apart by a crash --
// most importantly "mark resource failed + create alert" -- run inside
// a single transaction.
package inventory

import (
	"database/sql"
	"fmt"
	"time"

	"fleetd/internal/database"

	"github.com/google/uuid"
)

// Store provides access to all fleet records in one SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the inventory store at the default path.
func Open() (*Store, error) {
	path, err := database.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	return OpenAt(path)
}

// OpenAt creates or opens a SQLite database at the given path.
// The parent directory is created if it does not exist.
func OpenAt(path string) (*Store, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS baremetals (
			id                TEXT    PRIMARY KEY,
			hostname          TEXT    NOT NULL UNIQUE,
			ip_address        TEXT    NOT NULL,
			cpu_cores         INTEGER NOT NULL,
			memory_gb         INTEGER NOT NULL,
			storage_gb        INTEGER NOT NULL,
			iops              INTEGER NOT NULL DEFAULT 0,
			status            TEXT    NOT NULL DEFAULT 'active',
			last_health_check TEXT    NOT NULL DEFAULT '',
			created_at        TEXT    NOT NULL,
			updated_at        TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_baremetals_status ON baremetals(status);

		CREATE TABLE IF NOT EXISTS vms (
			id           TEXT    PRIMARY KEY,
			hostname     TEXT    NOT NULL UNIQUE,
			ip_address   TEXT    NOT NULL DEFAULT '',
			baremetal_id TEXT    NOT NULL REFERENCES baremetals(id),
			image_id     TEXT    NOT NULL DEFAULT '',
			cpu_cores    INTEGER NOT NULL,
			memory_mb    INTEGER NOT NULL,
			status       TEXT    NOT NULL DEFAULT 'creating',
			created_by   TEXT    NOT NULL DEFAULT '',
			external_id  TEXT    NOT NULL DEFAULT '',
			created_at   TEXT    NOT NULL,
			updated_at   TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_vms_status ON vms(status);
		CREATE INDEX IF NOT EXISTS idx_vms_baremetal ON vms(baremetal_id);

		CREATE TABLE IF NOT EXISTS vm_images (
			id          TEXT    PRIMARY KEY,
			name        TEXT    NOT NULL,
			os_type     TEXT    NOT NULL,
			version     TEXT    NOT NULL,
			image_url   TEXT    NOT NULL DEFAULT '',
			min_cpu     INTEGER NOT NULL DEFAULT 1,
			min_memory  INTEGER NOT NULL DEFAULT 1024,
			min_storage INTEGER NOT NULL DEFAULT 20,
			is_active   INTEGER NOT NULL DEFAULT 1,
			created_at  TEXT    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS storage_mounts (
			id          TEXT    PRIMARY KEY,
			vm_id       TEXT    NOT NULL REFERENCES vms(id) ON DELETE CASCADE,
			mount_point TEXT    NOT NULL,
			storage_gb  INTEGER NOT NULL,
			tier        TEXT    NOT NULL DEFAULT 'vm_storage',
			volume_path TEXT    NOT NULL DEFAULT '',
			created_at  TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_storage_mounts_vm ON storage_mounts(vm_id);

		CREATE TABLE IF NOT EXISTS alerts (
			id            TEXT    PRIMARY KEY,
			resource_type TEXT    NOT NULL,
			resource_id   TEXT    NOT NULL,
			alert_type    TEXT    NOT NULL,
			severity      TEXT    NOT NULL,
			message       TEXT    NOT NULL,
			labels        TEXT    NOT NULL DEFAULT '',
			is_resolved   INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT    NOT NULL,
			resolved_at   TEXT    NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_resolved ON alerts(is_resolved);
		CREATE INDEX IF NOT EXISTS idx_alerts_resource ON alerts(resource_type, resource_id);

		CREATE TABLE IF NOT EXISTS notifications (
			id         TEXT PRIMARY KEY,
			alert_id   TEXT NOT NULL REFERENCES alerts(id) ON DELETE CASCADE,
			channel    TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'pending',
			sent_at    TEXT NOT NULL DEFAULT '',
			error      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_alert ON notifications(alert_id);

		CREATE TABLE IF NOT EXISTS resource_pool (
			id                   INTEGER PRIMARY KEY CHECK (id = 1),
			total_cpu_cores      INTEGER NOT NULL DEFAULT 0,
			total_memory_gb      INTEGER NOT NULL DEFAULT 0,
			total_storage_gb     INTEGER NOT NULL DEFAULT 0,
			total_iops           INTEGER NOT NULL DEFAULT 0,
			available_cpu_cores  INTEGER NOT NULL DEFAULT 0,
			available_memory_gb  INTEGER NOT NULL DEFAULT 0,
			available_storage_gb INTEGER NOT NULL DEFAULT 0,
			available_iops       INTEGER NOT NULL DEFAULT 0,
			updated_at           TEXT    NOT NULL
		);
	`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("inventory: migration failed: %w", err)
	}
	return nil
}

// newID returns a fresh record identifier.
func newID() string {
	return uuid.NewString()
}

// formatTime renders a timestamp for storage; the zero time becomes an
// empty string so optional timestamps stay readable in the schema.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime is the inverse of formatTime.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
