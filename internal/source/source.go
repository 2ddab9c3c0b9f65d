// Package source provides the data source the dashboard reads shipments and
// notifications from.
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shiptrack/internal/domain"
	"shiptrack/internal/events"
	"shiptrack/internal/metrics"
	"shiptrack/internal/repo"
)

var ErrNotFound = errors.New("not found")

type Source interface {
	ListShipments(ctx context.Context) ([]domain.Shipment, error)
	ListNotifications(ctx context.Context) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
}

// Latency is the simulated delay per operation. Zero disables the delay.
type Latency struct {
	ListShipments     time.Duration
	ListNotifications time.Duration
	MarkRead          time.Duration
	MarkAllRead       time.Duration
	Delete            time.Duration
}

// DefaultLatency mimics a slow remote backend.
func DefaultLatency() Latency {
	return Latency{
		ListShipments:     time.Second,
		ListNotifications: time.Second,
		MarkRead:          500 * time.Millisecond,
		MarkAllRead:       800 * time.Millisecond,
		Delete:            300 * time.Millisecond,
	}
}

// Mock serves the workspace database with simulated latency. Mutations
// append an event in the same transaction.
type Mock struct {
	Repo    repo.Repo
	Events  events.Writer
	Latency Latency
	Log     *zap.Logger
}

var _ Source = Mock{}

func (m Mock) ListShipments(ctx context.Context) (res []domain.Shipment, err error) {
	defer m.observe("list_shipments", time.Now(), &err)
	if err := wait(ctx, m.Latency.ListShipments); err != nil {
		return nil, err
	}
	return m.Repo.ListShipments(ctx)
}

func (m Mock) ListNotifications(ctx context.Context) (res []domain.Notification, err error) {
	defer m.observe("list_notifications", time.Now(), &err)
	if err := wait(ctx, m.Latency.ListNotifications); err != nil {
		return nil, err
	}
	return m.Repo.ListNotifications(ctx)
}

func (m Mock) MarkNotificationRead(ctx context.Context, id string) (err error) {
	defer m.observe("mark_read", time.Now(), &err)
	if err := wait(ctx, m.Latency.MarkRead); err != nil {
		return err
	}
	return m.Repo.InTx(ctx, func(tx *sql.Tx) error {
		if err := m.Repo.MarkNotificationRead(ctx, tx, id); err != nil {
			return notFound(err, id)
		}
		return m.Events.Append(ctx, tx, events.NotificationRead, events.KindNotification, id, nil)
	})
}

func (m Mock) MarkAllNotificationsRead(ctx context.Context) (err error) {
	defer m.observe("mark_all_read", time.Now(), &err)
	if err := wait(ctx, m.Latency.MarkAllRead); err != nil {
		return err
	}
	return m.Repo.InTx(ctx, func(tx *sql.Tx) error {
		n, err := m.Repo.MarkAllNotificationsRead(ctx, tx)
		if err != nil {
			return err
		}
		return m.Events.Append(ctx, tx, events.NotificationsReadAll, events.KindNotification, "", events.Payload{"changed": n})
	})
}

func (m Mock) DeleteNotification(ctx context.Context, id string) (err error) {
	defer m.observe("delete_notification", time.Now(), &err)
	if err := wait(ctx, m.Latency.Delete); err != nil {
		return err
	}
	return m.Repo.InTx(ctx, func(tx *sql.Tx) error {
		if err := m.Repo.DeleteNotification(ctx, tx, id); err != nil {
			return notFound(err, id)
		}
		return m.Events.Append(ctx, tx, events.NotificationDeleted, events.KindNotification, id, nil)
	})
}

func (m Mock) observe(op string, start time.Time, err *error) {
	elapsed := time.Since(start)
	metrics.RecordSourceCall(op, elapsed, *err)
	if m.Log != nil {
		m.Log.Debug("source call", zap.String("op", op), zap.Duration("elapsed", elapsed), zap.Error(*err))
	}
}

func notFound(err error, id string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return err
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
