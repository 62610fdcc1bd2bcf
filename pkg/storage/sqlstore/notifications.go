package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/taskcore/pkg/model"
)

const notificationColumns = "id, recipient_id, type, title, message, entity_type, entity_id, actor_id, read_at, created_at"

func scanNotification(row interface{ Scan(...any) error }) (*model.Notification, error) {
	var (
		n      model.Notification
		readAt sql.NullTime
	)
	err := row.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &n.EntityType, &n.EntityID,
		&n.ActorID, &readAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.ReadAt = timePtr(readAt)
	return &n, nil
}

func (q *queries) CreateNotification(ctx context.Context, n *model.Notification) error {
	n.CreatedAt = utc(n.CreatedAt)
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO notifications (recipient_id, type, title, message, entity_type, entity_id, actor_id, read_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, n.RecipientID, n.Type, n.Title, n.Message, n.EntityType, n.EntityID, n.ActorID,
		nullableTime(n.ReadAt), n.CreatedAt).Scan(&n.ID)
	return translate("create notification", err)
}

func (q *queries) GetNotification(ctx context.Context, id int64) (*model.Notification, error) {
	n, err := scanNotification(q.db.QueryRowContext(ctx,
		"SELECT "+notificationColumns+" FROM notifications WHERE id = $1", id))
	if err != nil {
		return nil, translate("get notification", err)
	}
	return n, nil
}

// ListNotifications pages the recipient's notifications, newest first.
func (q *queries) ListNotifications(ctx context.Context, recipientID int64, unreadOnly bool, page model.Page) ([]model.Notification, int, error) {
	page = page.Normalize()

	where := " WHERE recipient_id = $1"
	if unreadOnly {
		where += " AND read_at IS NULL"
	}

	var total int
	if err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notifications"+where, recipientID).Scan(&total); err != nil {
		return nil, 0, translate("count notifications", err)
	}

	rows, err := q.db.QueryContext(ctx,
		"SELECT "+notificationColumns+" FROM notifications"+where+
			" ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3",
		recipientID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, translate("list notifications", err)
	}
	defer rows.Close()

	out := []model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, total, nil
}

func (q *queries) CountUnreadNotifications(ctx context.Context, recipientID int64) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read_at IS NULL", recipientID,
	).Scan(&n)
	if err != nil {
		return 0, translate("count unread notifications", err)
	}
	return n, nil
}

// MarkNotificationRead stamps read_at once; an already read notification is
// left unchanged.
func (q *queries) MarkNotificationRead(ctx context.Context, id int64, at time.Time) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE notifications SET read_at = $1 WHERE id = $2 AND read_at IS NULL", at.UTC(), id)
	return translate("mark notification read", err)
}

func (q *queries) MarkAllNotificationsRead(ctx context.Context, recipientID int64, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		"UPDATE notifications SET read_at = $1 WHERE recipient_id = $2 AND read_at IS NULL", at.UTC(), recipientID)
	if err != nil {
		return 0, translate("mark notifications read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, translate("mark notifications read", err)
	}
	return n, nil
}
