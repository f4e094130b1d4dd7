package inventory

import (
	"database/sql"
	"fmt"
	"time"

	"fleetd/internal/domain"
)

// SaveImage inserts a new VM image (ID == "") or updates an existing
// one.
func (s *Store) SaveImage(img *domain.VMImage) error {
	if img.ID == "" {
		img.ID = newID()
		img.CreatedAt = time.Now().UTC()
		_, err := s.db.Exec(`
			INSERT INTO vm_images (id, name, os_type, version, image_url, min_cpu, min_memory, min_storage, is_active, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			img.ID, img.Name, img.OSType, img.Version, img.ImageURL,
			img.MinCPU, img.MinMemory, img.MinStorage, boolToInt(img.IsActive), formatTime(img.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("inventory: image insert failed: %w", err)
		}
		return nil
	}

	result, err := s.db.Exec(`
		UPDATE vm_images SET name=?, os_type=?, version=?, image_url=?, min_cpu=?, min_memory=?, min_storage=?, is_active=?
		WHERE id=?`,
		img.Name, img.OSType, img.Version, img.ImageURL,
		img.MinCPU, img.MinMemory, img.MinStorage, boolToInt(img.IsActive), img.ID,
	)
	if err != nil {
		return fmt.Errorf("inventory: image update failed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("inventory: image %s: %w", img.ID, domain.ErrNotFound)
	}
	return nil
}

// GetImage retrieves a single VM image by ID.
func (s *Store) GetImage(id string) (*domain.VMImage, error) {
	var img domain.VMImage
	var active int
	var created string
	err := s.db.QueryRow(`
		SELECT id, name, os_type, version, image_url, min_cpu, min_memory, min_storage, is_active, created_at
		FROM vm_images WHERE id = ?`, id).Scan(
		&img.ID, &img.Name, &img.OSType, &img.Version, &img.ImageURL,
		&img.MinCPU, &img.MinMemory, &img.MinStorage, &active, &created,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("inventory: image %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("inventory: image query failed: %w", err)
	}
	img.IsActive = active != 0
	img.CreatedAt = parseTime(created)
	return &img, nil
}

// ListImages returns all active VM images ordered by name.
func (s *Store) ListImages() ([]domain.VMImage, error) {
	rows, err := s.db.Query(`
		SELECT id, name, os_type, version, image_url, min_cpu, min_memory, min_storage, is_active, created_at
		FROM vm_images WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("inventory: image query failed: %w", err)
	}
	defer rows.Close()

	var out []domain.VMImage
	for rows.Next() {
		var img domain.VMImage
		var active int
		var created string
		if err := rows.Scan(&img.ID, &img.Name, &img.OSType, &img.Version, &img.ImageURL,
			&img.MinCPU, &img.MinMemory, &img.MinStorage, &active, &created); err != nil {
			return nil, fmt.Errorf("inventory: image scan failed: %w", err)
		}
		img.IsActive = active != 0
		img.CreatedAt = parseTime(created)
		out = append(out, img)
	}
	return out, rows.Err()
}
