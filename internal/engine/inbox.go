package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"shiptrack/internal/domain"
	"shiptrack/internal/filter"
	"shiptrack/internal/metrics"
)

// NotificationSource is the part of the data source the inbox talks to.
type NotificationSource interface {
	ListNotifications(ctx context.Context) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
}

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePending    Phase = "pending"
	PhaseCommitted  Phase = "committed"
	PhaseRolledBack Phase = "rolled_back"
)

// Mutation kinds.
const (
	MutationMarkRead    = "mark_read"
	MutationMarkAllRead = "mark_all_read"
	MutationDelete      = "delete"
)

// Mutation describes the latest optimistic change to the inbox.
type Mutation struct {
	Kind     string `json:"kind,omitempty"`
	TargetID string `json:"target_id,omitempty"`
	Phase    Phase  `json:"phase"`
	Error    string `json:"error,omitempty"`
	At       string `json:"at,omitempty" format:"date-time"`
}

// InboxFilter narrows the notification list. An empty Type or "all" keeps every type.
type InboxFilter struct {
	Type       string
	UnreadOnly bool
}

// Inbox keeps the local notification list and applies read and delete
// mutations optimistically: the local list changes first and is restored
// when the data source rejects the change.
type Inbox struct {
	Source NotificationSource
	Log    *zap.Logger
	Now    func() time.Time

	// serializes mutations
	op sync.Mutex

	mu       sync.RWMutex
	items    []domain.Notification
	mutation Mutation
}

func NewInbox(src NotificationSource, log *zap.Logger) *Inbox {
	if log == nil {
		log = zap.NewNop()
	}
	return &Inbox{Source: src, Log: log, Now: time.Now, mutation: Mutation{Phase: PhaseIdle}}
}

func (in *Inbox) now() time.Time {
	if in.Now != nil {
		return in.Now()
	}
	return time.Now()
}

// Refresh replaces the local list with the data source's notifications.
func (in *Inbox) Refresh(ctx context.Context) error {
	list, err := in.Source.ListNotifications(ctx)
	if err != nil {
		return fmt.Errorf("refresh notifications: %w", err)
	}
	in.mu.Lock()
	in.items = list
	in.mu.Unlock()
	return nil
}

// Notifications returns a copy of the local list narrowed by f.
func (in *Inbox) Notifications(f InboxFilter) []domain.Notification {
	in.mu.RLock()
	defer in.mu.RUnlock()
	res := []domain.Notification{}
	for _, n := range in.items {
		if f.Type != "" && f.Type != filter.All && n.Type != f.Type {
			continue
		}
		if f.UnreadOnly && n.IsRead {
			continue
		}
		res = append(res, n)
	}
	return res
}

func (in *Inbox) UnreadCount() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	count := 0
	for _, n := range in.items {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// Counts returns the number of notifications per type plus "all".
func (in *Inbox) Counts() map[string]int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	counts := map[string]int{filter.All: len(in.items)}
	for _, t := range domain.NotificationTypes {
		counts[t] = 0
	}
	for _, n := range in.items {
		counts[n.Type]++
	}
	return counts
}

func (in *Inbox) LastMutation() Mutation {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.mutation
}

func (in *Inbox) MarkRead(ctx context.Context, id string) error {
	return in.apply(ctx, MutationMarkRead, id, func(items []domain.Notification) []domain.Notification {
		for i := range items {
			if items[i].ID == id {
				items[i].IsRead = true
			}
		}
		return items
	}, func(ctx context.Context) error {
		return in.Source.MarkNotificationRead(ctx, id)
	})
}

func (in *Inbox) MarkAllRead(ctx context.Context) error {
	return in.apply(ctx, MutationMarkAllRead, "", func(items []domain.Notification) []domain.Notification {
		for i := range items {
			items[i].IsRead = true
		}
		return items
	}, in.Source.MarkAllNotificationsRead)
}

func (in *Inbox) Delete(ctx context.Context, id string) error {
	return in.apply(ctx, MutationDelete, id, func(items []domain.Notification) []domain.Notification {
		res := items[:0]
		for _, n := range items {
			if n.ID != id {
				res = append(res, n)
			}
		}
		return res
	}, func(ctx context.Context) error {
		return in.Source.DeleteNotification(ctx, id)
	})
}

// apply runs one optimistic mutation: snapshot, change locally, call the
// source, then commit or restore the snapshot. The list is re-read from the
// source afterwards either way.
func (in *Inbox) apply(ctx context.Context, kind, id string, local func([]domain.Notification) []domain.Notification, remote func(context.Context) error) error {
	in.op.Lock()
	defer in.op.Unlock()

	in.mu.Lock()
	snapshot := in.items
	working := make([]domain.Notification, len(snapshot))
	copy(working, snapshot)
	in.items = local(working)
	in.mutation = Mutation{Kind: kind, TargetID: id, Phase: PhasePending, At: in.now().UTC().Format(time.RFC3339)}
	in.mu.Unlock()

	err := remote(ctx)

	in.mu.Lock()
	if err != nil {
		in.items = snapshot
		in.mutation.Phase = PhaseRolledBack
		in.mutation.Error = err.Error()
	} else {
		in.mutation.Phase = PhaseCommitted
	}
	in.mu.Unlock()

	metrics.RecordInboxMutation(kind, string(in.LastMutation().Phase))
	if err != nil {
		in.Log.Warn("inbox mutation rolled back", zap.String("kind", kind), zap.String("id", id), zap.Error(err))
	} else {
		in.Log.Debug("inbox mutation committed", zap.String("kind", kind), zap.String("id", id))
	}

	if ctx.Err() == nil {
		if serr := in.Refresh(ctx); serr != nil {
			in.Log.Warn("inbox settle failed", zap.Error(serr))
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}
	return nil
}
