package token

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultSweepInterval = time.Hour

type expiredSweeper interface {
	SweepExpiredSessions(ctx context.Context) (int64, error)
}

// Sweeper periodically removes expired sessions.
type Sweeper struct {
	engine   expiredSweeper
	interval time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewSweeper(engine expiredSweeper, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{
		engine:   engine,
		interval: interval,
		logger:   logger.With("component", "session_sweeper"),
		stopCh:   make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting session sweeper", "interval", s.interval)

	s.wg.Add(1)
	go s.run(ctx)
}

func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
	s.logger.Info("Session sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	removed, err := s.engine.SweepExpiredSessions(ctx)
	if err != nil {
		s.logger.Error("Failed to sweep expired sessions", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("Expired sessions removed", "count", removed)
	}
}
