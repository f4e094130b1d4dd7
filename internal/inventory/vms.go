package inventory

import (
	"database/sql"
	"fmt"
	"time"

	"fleetd/internal/domain"
)

const vmColumns = `id, hostname, ip_address, baremetal_id, image_id, cpu_cores,
	memory_mb, status, created_by, external_id, created_at, updated_at`

// SaveVM inserts a new VM (ID == "") or updates an existing one. On
// insert an ID is assigned to the record.
func (s *Store) SaveVM(v *domain.VM) error {
	now := time.Now().UTC()
	v.UpdatedAt = now

	if v.ID == "" {
		v.ID = newID()
		v.CreatedAt = now
		if v.Status == "" {
			v.Status = domain.VMCreating
		}
		_, err := s.db.Exec(`
			INSERT INTO vms (id, hostname, ip_address, baremetal_id, image_id, cpu_cores, memory_mb, status, created_by, external_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.ID, v.Hostname, v.IPAddress, v.BaremetalID, v.ImageID, v.CPUCores,
			v.MemoryMB, v.Status, v.CreatedBy, v.ExternalID, formatTime(v.CreatedAt), formatTime(v.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("inventory: vm insert failed: %w", err)
		}
		return nil
	}

	result, err := s.db.Exec(`
		UPDATE vms SET hostname=?, ip_address=?, image_id=?, cpu_cores=?, memory_mb=?,
		       status=?, created_by=?, external_id=?, updated_at=?
		WHERE id=?`,
		v.Hostname, v.IPAddress, v.ImageID, v.CPUCores, v.MemoryMB,
		v.Status, v.CreatedBy, v.ExternalID, formatTime(v.UpdatedAt), v.ID,
	)
	if err != nil {
		return fmt.Errorf("inventory: vm update failed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("inventory: vm %s: %w", v.ID, domain.ErrNotFound)
	}
	return nil
}

// GetVM retrieves a single VM by ID.
func (s *Store) GetVM(id string) (*domain.VM, error) {
	row := s.db.QueryRow(`SELECT `+vmColumns+` FROM vms WHERE id = ?`, id)
	v, err := scanVM(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("inventory: vm %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("inventory: vm query failed: %w", err)
	}
	return v, nil
}

// GetVMByHostname retrieves a single VM by hostname.
func (s *Store) GetVMByHostname(hostname string) (*domain.VM, error) {
	row := s.db.QueryRow(`SELECT `+vmColumns+` FROM vms WHERE hostname = ?`, hostname)
	v, err := scanVM(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("inventory: vm %q: %w", hostname, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("inventory: vm query failed: %w", err)
	}
	return v, nil
}

// ListVMs returns all VMs, or only those in the given status when
// status is non-empty, ordered by hostname.
func (s *Store) ListVMs(status string) ([]domain.VM, error) {
	query := `SELECT ` + vmColumns + ` FROM vms`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY hostname`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("inventory: vm query failed: %w", err)
	}
	defer rows.Close()
	return collectVMs(rows)
}

// ListVMsOnBaremetal returns every VM placed on the given baremetal.
func (s *Store) ListVMsOnBaremetal(baremetalID string) ([]domain.VM, error) {
	rows, err := s.db.Query(`SELECT `+vmColumns+` FROM vms WHERE baremetal_id = ? ORDER BY hostname`, baremetalID)
	if err != nil {
		return nil, fmt.Errorf("inventory: vm query failed: %w", err)
	}
	defer rows.Close()
	return collectVMs(rows)
}

// UpdateVMStatus sets the lifecycle status of a VM.
func (s *Store) UpdateVMStatus(id, status string) error {
	result, err := s.db.Exec(`
		UPDATE vms SET status = ?, updated_at = ? WHERE id = ?`,
		status, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("inventory: vm status update failed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("inventory: vm %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteVM removes a VM record and its storage mounts.
func (s *Store) DeleteVM(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("inventory: begin failed: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM storage_mounts WHERE vm_id = ?`, id); err != nil {
		return fmt.Errorf("inventory: mount delete failed: %w", err)
	}
	result, err := tx.Exec(`DELETE FROM vms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("inventory: vm delete failed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("inventory: vm %s: %w", id, domain.ErrNotFound)
	}
	return tx.Commit()
}

func collectVMs(rows *sql.Rows) ([]domain.VM, error) {
	var out []domain.VM
	for rows.Next() {
		v, err := scanVM(rows)
		if err != nil {
			return nil, fmt.Errorf("inventory: vm scan failed: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func scanVM(row rowScanner) (*domain.VM, error) {
	var v domain.VM
	var created, updated string
	err := row.Scan(
		&v.ID, &v.Hostname, &v.IPAddress, &v.BaremetalID, &v.ImageID, &v.CPUCores,
		&v.MemoryMB, &v.Status, &v.CreatedBy, &v.ExternalID, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	v.CreatedAt = parseTime(created)
	v.UpdatedAt = parseTime(updated)
	return &v, nil
}
