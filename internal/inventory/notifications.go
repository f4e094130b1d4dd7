package inventory

import (
	"fmt"
	"time"

	"fleetd/internal/domain"
)

// InsertNotification records a fresh delivery attempt in pending state.
// Notifications are append-only: a prior failed attempt is never
// mutated, so the full audit trail of every dispatch survives.
func (s *Store) InsertNotification(n *domain.Notification) error {
	if n.ID == "" {
		n.ID = newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Status == "" {
		n.Status = domain.NotificationPending
	}
	_, err := s.db.Exec(`
		INSERT INTO notifications (id, alert_id, channel, status, sent_at, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.AlertID, n.Channel, n.Status, formatTime(n.SentAt), n.Error, formatTime(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inventory: notification insert failed: %w", err)
	}
	return nil
}

// FinalizeNotification transitions a pending notification to sent or
// failed, capturing the delivery timestamp and any error verbatim.
func (s *Store) FinalizeNotification(id, status string, sentAt time.Time, errDetail string) error {
	result, err := s.db.Exec(`
		UPDATE notifications SET status = ?, sent_at = ?, error = ? WHERE id = ?`,
		status, formatTime(sentAt), errDetail, id)
	if err != nil {
		return fmt.Errorf("inventory: notification update failed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("inventory: notification %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListNotifications returns every delivery attempt for an alert, oldest
// first.
func (s *Store) ListNotifications(alertID string) ([]domain.Notification, error) {
	rows, err := s.db.Query(`
		SELECT id, alert_id, channel, status, sent_at, error, created_at
		FROM notifications WHERE alert_id = ? ORDER BY created_at`, alertID)
	if err != nil {
		return nil, fmt.Errorf("inventory: notification query failed: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var sentAt, created string
		if err := rows.Scan(&n.ID, &n.AlertID, &n.Channel, &n.Status, &sentAt, &n.Error, &created); err != nil {
			return nil, fmt.Errorf("inventory: notification scan failed: %w", err)
		}
		n.SentAt = parseTime(sentAt)
		n.CreatedAt = parseTime(created)
		out = append(out, n)
	}
	return out, rows.Err()
}
