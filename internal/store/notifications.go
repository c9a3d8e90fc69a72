package store

import (
	"context"
	"time"
)

// Notification statuses.
const (
	NotificationSent   = "sent"
	NotificationFailed = "failed"
)

// Notification is one delivery attempt of a completion notice.
type Notification struct {
	ID          int64     `json:"id"`
	CandidateID string    `json:"candidate_id"`
	Email       string    `json:"email"`
	Channel     string    `json:"channel"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordNotification appends a delivery attempt to the log.
func (s *Store) RecordNotification(ctx context.Context, n Notification) (int64, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (candidate_id, email, channel, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		n.CandidateID, n.Email, n.Channel, n.Status, n.Error, n.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListNotifications returns the delivery attempts for a candidate, oldest first.
// An empty candidateID lists every attempt.
func (s *Store) ListNotifications(ctx context.Context, candidateID string) ([]Notification, error) {
	query := `SELECT id, candidate_id, email, channel, status, error, created_at FROM notifications`
	var args []any
	if candidateID != "" {
		query += ` WHERE candidate_id = ?`
		args = append(args, candidateID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.CandidateID, &n.Email, &n.Channel, &n.Status, &n.Error, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
