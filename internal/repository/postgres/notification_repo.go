package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"campusevents/internal/domain"
)

const notificationColumns = `id, user_id, event_id, kind, title, message, action_url, status, created_at, read_at`

type notificationRepository struct {
	DB DBTX
}

func NewNotificationRepository(db DBTX) domain.NotificationRepository {
	return &notificationRepository{DB: db}
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	n := &domain.Notification{}
	var eventID, actionURL sql.NullString
	var readAt sql.NullTime
	err := row.Scan(&n.ID, &n.UserID, &eventID, &n.Kind, &n.Title, &n.Message, &actionURL, &n.Status, &n.CreatedAt, &readAt)
	if err != nil {
		return nil, err
	}
	if eventID.Valid {
		id := eventID.String
		n.EventID = &id
	}
	n.ActionURL = actionURL.String
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	return n, nil
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (user_id, event_id, kind, title, message, action_url, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var eventID sql.NullString
	if n.EventID != nil {
		eventID = sql.NullString{String: *n.EventID, Valid: true}
	}
	return r.DB.QueryRowContext(ctx, query,
		n.UserID, eventID, n.Kind, n.Title, n.Message, nullString(n.ActionURL), n.Status, n.CreatedAt,
	).Scan(&n.ID)
}

func (r *notificationRepository) ListByUserID(ctx context.Context, userID string, status *domain.NotificationStatus, params domain.PaginationParams) ([]*domain.Notification, int, error) {
	where := `WHERE user_id = $1 AND status <> 'archived'`
	args := []any{userID}
	if status != nil {
		where = `WHERE user_id = $1 AND status = $2`
		args = append(args, *status)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications ` + where + ` ORDER BY created_at DESC`
	if len(args) == 1 {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $3 OFFSET $4`
	}
	args = append(args, params.PageSize, params.Offset())

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list := make([]*domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND status = 'unread'`
	var n int
	if err := r.DB.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *notificationRepository) SetStatus(ctx context.Context, id, userID string, status domain.NotificationStatus, at time.Time) (*domain.Notification, error) {
	query := `
		UPDATE notifications
		SET status = $1, read_at = COALESCE(read_at, $2)
		WHERE id = $3 AND user_id = $4
		RETURNING ` + notificationColumns
	n, err := scanNotification(r.DB.QueryRowContext(ctx, query, status, at, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	query := `UPDATE notifications SET status = 'read', read_at = $1 WHERE user_id = $2 AND status = 'unread'`
	result, err := r.DB.ExecContext(ctx, query, at, userID)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}
