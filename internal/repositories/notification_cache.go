package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/recap/internal/models"
)

// NotificationCacheRepository stores the last fetched notification page.
//
// Entries are never created locally; the cache is replaced wholesale from server responses.
type NotificationCacheRepository struct {
	db *sql.DB
}

// NewNotificationCacheRepository creates a new [NotificationCacheRepository] with the given database connection
func NewNotificationCacheRepository(db *sql.DB) *NotificationCacheRepository {
	return &NotificationCacheRepository{db: db}
}

// ReplaceAll swaps the cached feed for items in one transaction.
func (r *NotificationCacheRepository) ReplaceAll(ctx context.Context, items []models.Notification) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM notifications"); err != nil {
			return fmt.Errorf("failed to clear notification cache: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO notifications (id, title, message, category, link, read, created_at, cached_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare notification insert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, n := range items {
			if _, err := stmt.ExecContext(ctx, n.ID, n.Title, n.Message, n.Category, n.Link, boolToInt(n.Read), n.CreatedAt.UTC(), now); err != nil {
				return fmt.Errorf("failed to cache notification %s: %w", n.ID, err)
			}
		}
		return nil
	})
}

// List returns cached notifications, newest first.
func (r *NotificationCacheRepository) List(ctx context.Context, unreadOnly bool) ([]models.Notification, error) {
	query := `
		SELECT id, title, message, category, link, read, created_at
		FROM notifications
		WHERE (? = 0 OR read = 0)
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.QueryContext(ctx, query, boolToInt(unreadOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var (
			n    models.Notification
			read int
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Message, &n.Category, &n.Link, &read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Read = read != 0
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return out, nil
}
