package repo

import (
	"context"
	"database/sql"
	"fmt"

	"shiptrack/internal/domain"
)

const notificationColumns = `id,type,title,message,po_number,COALESCE(author,''),ts,is_read,priority,action_required`

func scanNotification(row rowScanner) (domain.Notification, error) {
	var (
		n              domain.Notification
		read, required int
	)
	err := row.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &n.PONumber, &n.Author, &n.Timestamp, &read, &n.Priority, &required)
	if err == sql.ErrNoRows {
		return n, ErrNotFound
	}
	n.IsRead, n.ActionRequired = read == 1, required == 1
	return n, err
}

func (r Repo) UpsertNotification(ctx context.Context, tx *sql.Tx, n domain.Notification, position int) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO notifications(id,position,type,title,message,po_number,author,ts,is_read,priority,action_required)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET position=excluded.position,type=excluded.type,title=excluded.title,message=excluded.message,
po_number=excluded.po_number,author=excluded.author,ts=excluded.ts,is_read=excluded.is_read,priority=excluded.priority,
action_required=excluded.action_required`,
		n.ID, position, n.Type, n.Title, n.Message, n.PONumber, nullable(n.Author), n.Timestamp, boolInt(n.IsRead), n.Priority, boolInt(n.ActionRequired))
	if err != nil {
		return fmt.Errorf("upsert notification %s: %w", n.ID, err)
	}
	return nil
}

// ListNotifications returns the inbox in source order.
func (r Repo) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+notificationColumns+` FROM notifications ORDER BY position ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) MarkNotificationRead(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `UPDATE notifications SET is_read=1 WHERE id=?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// MarkAllNotificationsRead returns the number of notifications that changed.
func (r Repo) MarkAllNotificationsRead(ctx context.Context, tx *sql.Tx) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE notifications SET is_read=1 WHERE is_read=0`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) DeleteNotification(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE id=?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}
