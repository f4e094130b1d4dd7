package inventory

import (
	"database/sql"
	"fmt"
	"time"

	"fleetd/internal/domain"
)

const baremetalColumns = `id, hostname, ip_address, cpu_cores, memory_gb, storage_gb,
	iops, status, last_health_check, created_at, updated_at`

// SaveBaremetal inserts a new baremetal (ID == "") or updates an
// existing one. On insert an ID is assigned to the record.
func (s *Store) SaveBaremetal(b *domain.Baremetal) error {
	now := time.Now().UTC()
	b.UpdatedAt = now

	if b.ID == "" {
		b.ID = newID()
		b.CreatedAt = now
		if b.Status == "" {
			b.Status = domain.BaremetalActive
		}
		_, err := s.db.Exec(`
			INSERT INTO baremetals (id, hostname, ip_address, cpu_cores, memory_gb, storage_gb, iops, status, last_health_check, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.Hostname, b.IPAddress, b.CPUCores, b.MemoryGB, b.StorageGB,
			b.IOPS, b.Status, formatTime(b.LastHealthCheck), formatTime(b.CreatedAt), formatTime(b.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("inventory: baremetal insert failed: %w", err)
		}
		return nil
	}

	result, err := s.db.Exec(`
		UPDATE baremetals SET hostname=?, ip_address=?, cpu_cores=?, memory_gb=?,
		       storage_gb=?, iops=?, status=?, last_health_check=?, updated_at=?
		WHERE id=?`,
		b.Hostname, b.IPAddress, b.CPUCores, b.MemoryGB, b.StorageGB, b.IOPS,
		b.Status, formatTime(b.LastHealthCheck), formatTime(b.UpdatedAt), b.ID,
	)
	if err != nil {
		return fmt.Errorf("inventory: baremetal update failed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("inventory: baremetal %s: %w", b.ID, domain.ErrNotFound)
	}
	return nil
}

// GetBaremetal retrieves a single baremetal by ID.
func (s *Store) GetBaremetal(id string) (*domain.Baremetal, error) {
	row := s.db.QueryRow(`SELECT `+baremetalColumns+` FROM baremetals WHERE id = ?`, id)
	b, err := scanBaremetal(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("inventory: baremetal %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("inventory: baremetal query failed: %w", err)
	}
	return b, nil
}

// GetBaremetalByHostname retrieves a single baremetal by hostname.
func (s *Store) GetBaremetalByHostname(hostname string) (*domain.Baremetal, error) {
	row := s.db.QueryRow(`SELECT `+baremetalColumns+` FROM baremetals WHERE hostname = ?`, hostname)
	b, err := scanBaremetal(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("inventory: baremetal %q: %w", hostname, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("inventory: baremetal query failed: %w", err)
	}
	return b, nil
}

// ListBaremetals returns all baremetals, or only those in the given
// status when status is non-empty, ordered by hostname.
func (s *Store) ListBaremetals(status string) ([]domain.Baremetal, error) {
	query := `SELECT ` + baremetalColumns + ` FROM baremetals`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY hostname`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("inventory: baremetal query failed: %w", err)
	}
	defer rows.Close()

	var out []domain.Baremetal
	for rows.Next() {
		b, err := scanBaremetal(rows)
		if err != nil {
			return nil, fmt.Errorf("inventory: baremetal scan failed: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// UpdateBaremetalStatus sets the lifecycle status of a baremetal.
func (s *Store) UpdateBaremetalStatus(id, status string) error {
	result, err := s.db.Exec(`
		UPDATE baremetals SET status = ?, updated_at = ? WHERE id = ?`,
		status, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("inventory: baremetal status update failed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("inventory: baremetal %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// TouchBaremetalHealthCheck records a successful probe without any
// other state change.
func (s *Store) TouchBaremetalHealthCheck(id string, at time.Time) error {
	_, err := s.db.Exec(`
		UPDATE baremetals SET last_health_check = ?, updated_at = ? WHERE id = ?`,
		formatTime(at), formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("inventory: health check update failed: %w", err)
	}
	return nil
}

// DeleteBaremetal removes a baremetal record. It refuses to delete a
// host that still owns VMs.
func (s *Store) DeleteBaremetal(id string) error {
	var vms int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM vms WHERE baremetal_id = ?`, id).Scan(&vms); err != nil {
		return fmt.Errorf("inventory: vm count failed: %w", err)
	}
	if vms > 0 {
		return fmt.Errorf("inventory: baremetal %s still owns %d VMs", id, vms)
	}

	result, err := s.db.Exec(`DELETE FROM baremetals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("inventory: baremetal delete failed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("inventory: baremetal %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBaremetal(row rowScanner) (*domain.Baremetal, error) {
	var b domain.Baremetal
	var lastCheck, created, updated string
	err := row.Scan(
		&b.ID, &b.Hostname, &b.IPAddress, &b.CPUCores, &b.MemoryGB, &b.StorageGB,
		&b.IOPS, &b.Status, &lastCheck, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	b.LastHealthCheck = parseTime(lastCheck)
	b.CreatedAt = parseTime(created)
	b.UpdatedAt = parseTime(updated)
	return &b, nil
}
