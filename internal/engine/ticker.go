package engine

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/platform/logger"
)

// Ticker is the session clock. It adds one second of game time per tick
// while the session runs and exits as soon as it stops.
type Ticker struct {
	logger   *logger.Logger
	tickRate time.Duration
	running  func() bool

	elapsed  atomic.Int64
	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewTicker creates a session clock. running is polled on every tick.
func NewTicker(tickRate time.Duration, running func() bool, log *logger.Logger) *Ticker {
	return &Ticker{
		logger:   log,
		tickRate: tickRate,
		running:  running,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the clock loop. Call in a goroutine.
func (t *Ticker) Start(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(t.tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("Session clock stopped by context at " + strconv.FormatInt(t.Elapsed(), 10) + "s")
			return
		case <-t.stopChan:
			t.logger.Debug("Session clock stopped manually.")
			return
		case <-ticker.C:
			if !t.running() {
				return
			}
			t.elapsed.Add(1)
		}
	}
}

// Stop ends the loop. Safe to call more than once.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
}

// Wait blocks until the loop has exited or timeout passes. It reports
// whether the loop exited.
func (t *Ticker) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-t.done:
		return true
	case <-timer.C:
		return false
	}
}

// Elapsed returns the game time in seconds.
func (t *Ticker) Elapsed() int64 {
	return t.elapsed.Load()
}
