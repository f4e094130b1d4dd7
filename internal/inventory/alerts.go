package inventory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"fleetd/internal/domain"
)

const alertColumns = `id, resource_type, resource_id, alert_type, severity, message,
	labels, is_resolved, created_at, resolved_at`

// SaveAlert inserts a new alert. Alerts are append-only apart from
// resolution; there is no update path.
func (s *Store) SaveAlert(a *domain.Alert) error {
	if a.ID == "" {
		a.ID = newID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	labels, err := marshalLabels(a.Labels)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO alerts (id, resource_type, resource_id, alert_type, severity, message, labels, is_resolved, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ResourceType, a.ResourceID, a.AlertType, a.Severity, a.Message,
		labels, boolToInt(a.Resolved), formatTime(a.CreatedAt), formatTime(a.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("inventory: alert insert failed: %w", err)
	}
	return nil
}

// GetAlert retrieves a single alert by ID.
func (s *Store) GetAlert(id string) (*domain.Alert, error) {
	row := s.db.QueryRow(`SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("inventory: alert %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("inventory: alert query failed: %w", err)
	}
	return a, nil
}

// ListAlerts returns alerts newest first. With unresolvedOnly set, only
// open alerts are returned. A non-empty severity restricts further.
func (s *Store) ListAlerts(unresolvedOnly bool, severity string) ([]domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1=1`
	args := []interface{}{}
	if unresolvedOnly {
		query += ` AND is_resolved = 0`
	}
	if severity != "" {
		query += ` AND severity = ?`
		args = append(args, severity)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("inventory: alert query failed: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("inventory: alert scan failed: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// HasOpenAlert reports whether an unresolved alert of the given type
// already exists for the resource. Used by the health monitor to avoid
// alert churn on repeated probe failures.
func (s *Store) HasOpenAlert(resourceType, resourceID, alertType string) (bool, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM alerts
		WHERE resource_type = ? AND resource_id = ? AND alert_type = ? AND is_resolved = 0`,
		resourceType, resourceID, alertType).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inventory: alert count failed: %w", err)
	}
	return n > 0, nil
}

// ResolveAlert marks an alert resolved with the given timestamp.
func (s *Store) ResolveAlert(id string, at time.Time) error {
	result, err := s.db.Exec(`
		UPDATE alerts SET is_resolved = 1, resolved_at = ? WHERE id = ? AND is_resolved = 0`,
		formatTime(at), id)
	if err != nil {
		return fmt.Errorf("inventory: alert resolve failed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("inventory: open alert %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ResolveAlertsFor resolves every open alert of the given type for a
// resource. Used when an operator reactivation supersedes a failure.
// Returns the number of alerts resolved.
func (s *Store) ResolveAlertsFor(resourceType, resourceID, alertType string, at time.Time) (int64, error) {
	result, err := s.db.Exec(`
		UPDATE alerts SET is_resolved = 1, resolved_at = ?
		WHERE resource_type = ? AND resource_id = ? AND alert_type = ? AND is_resolved = 0`,
		formatTime(at), resourceType, resourceID, alertType)
	if err != nil {
		return 0, fmt.Errorf("inventory: alert resolve failed: %w", err)
	}
	return result.RowsAffected()
}

// MarkFailedWithAlert atomically transitions a resource to failed and
// records the accompanying alert. A crash can never leave the status
// changed without its alert or vice versa. If an open alert of the same
// type already exists, the status is still updated but no duplicate
// alert is created and created reports false.
func (s *Store) MarkFailedWithAlert(a *domain.Alert) (created bool, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("inventory: begin failed: %w", err)
	}
	defer tx.Rollback()

	var table string
	var failed string
	switch a.ResourceType {
	case domain.ResourceBaremetal:
		table, failed = "baremetals", domain.BaremetalFailed
	case domain.ResourceVM:
		table, failed = "vms", domain.VMFailed
	default:
		return false, fmt.Errorf("inventory: unknown resource type %q", a.ResourceType)
	}

	result, err := tx.Exec(
		`UPDATE `+table+` SET status = ?, updated_at = ? WHERE id = ?`,
		failed, formatTime(time.Now().UTC()), a.ResourceID)
	if err != nil {
		return false, fmt.Errorf("inventory: status update failed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return false, fmt.Errorf("inventory: %s %s: %w", a.ResourceType, a.ResourceID, domain.ErrNotFound)
	}

	var open int
	err = tx.QueryRow(`
		SELECT COUNT(*) FROM alerts
		WHERE resource_type = ? AND resource_id = ? AND alert_type = ? AND is_resolved = 0`,
		a.ResourceType, a.ResourceID, a.AlertType).Scan(&open)
	if err != nil {
		return false, fmt.Errorf("inventory: alert count failed: %w", err)
	}

	if open == 0 {
		if a.ID == "" {
			a.ID = newID()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}
		labels, err := marshalLabels(a.Labels)
		if err != nil {
			return false, err
		}
		_, err = tx.Exec(`
			INSERT INTO alerts (id, resource_type, resource_id, alert_type, severity, message, labels, is_resolved, created_at, resolved_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, '')`,
			a.ID, a.ResourceType, a.ResourceID, a.AlertType, a.Severity, a.Message,
			labels, formatTime(a.CreatedAt),
		)
		if err != nil {
			return false, fmt.Errorf("inventory: alert insert failed: %w", err)
		}
		created = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("inventory: commit failed: %w", err)
	}
	return created, nil
}

// marshalLabels serializes the typed label map for storage. Labels are
// opaque everywhere except this boundary.
func marshalLabels(labels map[string]string) (string, error) {
	if len(labels) == 0 {
		return "", nil
	}
	data, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("inventory: label marshal failed: %w", err)
	}
	return string(data), nil
}

func unmarshalLabels(s string) map[string]string {
	if s == "" {
		return nil
	}
	var labels map[string]string
	if err := json.Unmarshal([]byte(s), &labels); err != nil {
		return nil
	}
	return labels
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanAlert(row rowScanner) (*domain.Alert, error) {
	var a domain.Alert
	var labels string
	var resolved int
	var created, resolvedAt string
	err := row.Scan(
		&a.ID, &a.ResourceType, &a.ResourceID, &a.AlertType, &a.Severity, &a.Message,
		&labels, &resolved, &created, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Labels = unmarshalLabels(labels)
	a.Resolved = resolved != 0
	a.CreatedAt = parseTime(created)
	a.ResolvedAt = parseTime(resolvedAt)
	return &a, nil
}
