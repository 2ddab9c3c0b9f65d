// Package app wires a workspace database, the mock data source, the dashboard
// and the inbox into one session.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shiptrack/internal/config"
	"shiptrack/internal/db"
	"shiptrack/internal/engine"
	"shiptrack/internal/events"
	"shiptrack/internal/migrate"
	"shiptrack/internal/repo"
	"shiptrack/internal/seed"
	"shiptrack/internal/source"
)

type Session struct {
	Workspace string
	Config    *config.Config
	Log       *zap.Logger
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Source    source.Mock
	Dashboard *engine.Dashboard
	Inbox     *engine.Inbox
}

// Open prepares the workspace database, seeds the demo dataset when the
// workspace is empty and builds the dashboard and inbox. Nothing is loaded
// until Refresh.
func Open(ctx context.Context, workspace string, cfg *config.Config, log *zap.Logger) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	r := repo.Repo{DB: conn}
	w := events.Writer{}
	seeded, err := seed.EnsureSeeded(ctx, r, w)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("seed workspace: %w", err)
	}
	if seeded {
		log.Info("seeded workspace with demo data", zap.String("db", db.Path(workspace)))
	}
	latency := source.Latency{}
	if cfg.Mock.Latency {
		latency = source.DefaultLatency()
	}
	src := source.Mock{Repo: r, Events: w, Latency: latency, Log: log.Named("source")}
	return &Session{
		Workspace: workspace,
		Config:    cfg,
		Log:       log,
		DB:        conn,
		Repo:      r,
		Events:    w,
		Source:    src,
		Dashboard: engine.NewDashboard(src, log.Named("dashboard")),
		Inbox:     engine.NewInbox(src, log.Named("inbox")),
	}, nil
}

func (s *Session) Close() error {
	return s.DB.Close()
}

// Refresh loads shipments and notifications concurrently.
func (s *Session) Refresh(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Dashboard.Refresh(ctx) })
	g.Go(func() error { return s.Inbox.Refresh(ctx) })
	return g.Wait()
}

// Run refreshes shipments and notifications on their configured intervals
// until ctx is done. Failed refreshes are logged and retried on the next tick.
func (s *Session) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.poll(ctx, "shipments", s.Config.Refresh.Shipments, s.Dashboard.Refresh)
		return nil
	})
	g.Go(func() error {
		s.poll(ctx, "notifications", s.Config.Refresh.Notifications, s.Inbox.Refresh)
		return nil
	})
	return g.Wait()
}

func (s *Session) poll(ctx context.Context, name string, every time.Duration, refresh func(context.Context) error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := refresh(ctx); err != nil && ctx.Err() == nil {
				s.Log.Warn("periodic refresh failed", zap.String("target", name), zap.Error(err))
			}
		}
	}
}

// Import replaces the workspace data and reloads the session.
func (s *Session) Import(ctx context.Context, d seed.Dataset) error {
	return s.replace(ctx, events.DataImported, d)
}

// Reset restores the demo dataset.
func (s *Session) Reset(ctx context.Context) error {
	d, err := seed.Mock()
	if err != nil {
		return err
	}
	return s.replace(ctx, events.DataReset, d)
}

func (s *Session) replace(ctx context.Context, evtType string, d seed.Dataset) error {
	if err := seed.Import(ctx, s.Repo, s.Events, evtType, d); err != nil {
		return err
	}
	return s.Refresh(ctx)
}
