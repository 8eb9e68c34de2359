package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/domain/patient"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/platform/logger"
)

// Generator drives the two background loops of a session: patient arrivals
// and decorative random events. Both share one running flag.
type Generator struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	opts   Options
	logger *logger.Logger
}

// NewGenerator creates a stopped generator.
func NewGenerator(opts Options, log *logger.Logger) *Generator {
	return &Generator{opts: opts.withDefaults(), logger: log}
}

// Start launches both loops. A running generator is stopped first.
// onArrival receives every patient admitted into patients; onEvent receives
// the text of every random event.
func (g *Generator) Start(ctx context.Context, patients *PatientRegistry, onArrival func(patient.Patient), onEvent func(string)) {
	g.Stop()

	g.mu.Lock()
	defer g.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.running.Store(true)

	g.wg.Add(2)
	go g.loop(loopCtx, g.opts.ArrivalMin, g.opts.ArrivalMax, func() {
		onArrival(patients.Generate())
	})
	go g.loop(loopCtx, g.opts.EventMin, g.opts.EventMax, func() {
		onEvent(patient.RandomEvents[g.opts.Rand.IntN(len(patient.RandomEvents))])
	})
	g.logger.Debug("Arrival and event generators started.")
}

// Stop clears the running flag and cancels both loops. It never waits for
// them, so it is safe to call from inside a callback.
func (g *Generator) Stop() {
	g.running.Store(false)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}

// Running reports whether the loops are producing.
func (g *Generator) Running() bool {
	return g.running.Load()
}

// Wait blocks until both loops of every Start have returned.
func (g *Generator) Wait() {
	g.wg.Wait()
}

func (g *Generator) loop(ctx context.Context, min, max time.Duration, fire func()) {
	defer g.wg.Done()
	for {
		timer := time.NewTimer(randomDelay(g.opts.Rand, min, max))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if ctx.Err() != nil || !g.running.Load() {
			return
		}
		fire()
	}
}
