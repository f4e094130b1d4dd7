package inventory

import (
	"fmt"
	"time"

	"fleetd/internal/domain"
)

// SaveMount records a storage reservation attached to a VM.
func (s *Store) SaveMount(m *domain.StorageMount) error {
	if m.ID == "" {
		m.ID = newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO storage_mounts (id, vm_id, mount_point, storage_gb, tier, volume_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.VMID, m.MountPoint, m.StorageGB, m.Tier, m.VolumePath, formatTime(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inventory: mount insert failed: %w", err)
	}
	return nil
}

// ListMounts returns all storage mounts of a VM.
func (s *Store) ListMounts(vmID string) ([]domain.StorageMount, error) {
	rows, err := s.db.Query(`
		SELECT id, vm_id, mount_point, storage_gb, tier, volume_path, created_at
		FROM storage_mounts WHERE vm_id = ? ORDER BY mount_point`, vmID)
	if err != nil {
		return nil, fmt.Errorf("inventory: mount query failed: %w", err)
	}
	defer rows.Close()

	var out []domain.StorageMount
	for rows.Next() {
		var m domain.StorageMount
		var created string
		if err := rows.Scan(&m.ID, &m.VMID, &m.MountPoint, &m.StorageGB, &m.Tier, &m.VolumePath, &created); err != nil {
			return nil, fmt.Errorf("inventory: mount scan failed: %w", err)
		}
		m.CreatedAt = parseTime(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// SumMountedGB returns the total reserved storage per tier across all
// mounts. The storage allocator rebuilds its usage accounting from this
// at startup.
func (s *Store) SumMountedGB() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT tier, COALESCE(SUM(storage_gb), 0) FROM storage_mounts GROUP BY tier`)
	if err != nil {
		return nil, fmt.Errorf("inventory: mount sum failed: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var tier string
		var gb int
		if err := rows.Scan(&tier, &gb); err != nil {
			return nil, fmt.Errorf("inventory: mount sum scan failed: %w", err)
		}
		out[tier] = gb
	}
	return out, rows.Err()
}
