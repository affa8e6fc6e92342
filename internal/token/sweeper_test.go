package token

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (c *countingSweeper) SweepExpiredSessions(context.Context) (int64, error) {
	c.calls.Add(1)
	return 1, c.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeperRunsImmediatelyAndOnTick(t *testing.T) {
	target := &countingSweeper{}
	s := NewSweeper(target, 10*time.Millisecond, discardLogger())

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return target.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := target.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, target.calls.Load())
}

func TestSweeperKeepsRunningAfterErrors(t *testing.T) {
	target := &countingSweeper{err: errors.New("db down")}
	s := NewSweeper(target, 10*time.Millisecond, discardLogger())

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return target.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestSweeperStopsWithContext(t *testing.T) {
	target := &countingSweeper{}
	s := NewSweeper(target, time.Hour, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return target.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestNewSweeperDefaultsInterval(t *testing.T) {
	s := NewSweeper(&countingSweeper{}, 0, discardLogger())
	assert.Equal(t, time.Hour, s.interval)
}
