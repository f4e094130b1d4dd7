package inventory

import (
	"database/sql"
	"fmt"

	"fleetd/internal/domain"
)

// SavePool persists the ledger snapshot. The pool is a single row;
// every save replaces it wholesale, mirroring how the ledger itself is
// always recomputed rather than patched.
func (s *Store) SavePool(p *domain.Pool) error {
	_, err := s.db.Exec(`
		INSERT INTO resource_pool (id, total_cpu_cores, total_memory_gb, total_storage_gb, total_iops,
			available_cpu_cores, available_memory_gb, available_storage_gb, available_iops, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_cpu_cores=excluded.total_cpu_cores,
			total_memory_gb=excluded.total_memory_gb,
			total_storage_gb=excluded.total_storage_gb,
			total_iops=excluded.total_iops,
			available_cpu_cores=excluded.available_cpu_cores,
			available_memory_gb=excluded.available_memory_gb,
			available_storage_gb=excluded.available_storage_gb,
			available_iops=excluded.available_iops,
			updated_at=excluded.updated_at`,
		p.TotalCPUCores, p.TotalMemoryGB, p.TotalStorageGB, p.TotalIOPS,
		p.AvailableCPUCores, p.AvailableMemoryGB, p.AvailableStorageGB, p.AvailableIOPS,
		formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inventory: pool save failed: %w", err)
	}
	return nil
}

// GetPool returns the last persisted ledger snapshot, or a zero pool if
// none has been recorded yet.
func (s *Store) GetPool() (*domain.Pool, error) {
	var p domain.Pool
	var updated string
	err := s.db.QueryRow(`
		SELECT total_cpu_cores, total_memory_gb, total_storage_gb, total_iops,
		       available_cpu_cores, available_memory_gb, available_storage_gb, available_iops, updated_at
		FROM resource_pool WHERE id = 1`).Scan(
		&p.TotalCPUCores, &p.TotalMemoryGB, &p.TotalStorageGB, &p.TotalIOPS,
		&p.AvailableCPUCores, &p.AvailableMemoryGB, &p.AvailableStorageGB, &p.AvailableIOPS,
		&updated,
	)
	if err == sql.ErrNoRows {
		return &domain.Pool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("inventory: pool query failed: %w", err)
	}
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}
