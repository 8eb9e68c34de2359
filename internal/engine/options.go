package engine

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/platform/metrics"
)

// Game rule constants.
const (
	PressureLimit        = 100
	CollapsePatientCount = 3 // Collapse when every doctor is busy and more patients than this wait
	OverwhelmedHighCount = 5
	BaseCurePoints       = 100
	PerfectCouplePoints  = 300
	HighUrgencyBonus     = 50
	NotificationCap      = 20
	EventCap             = 5
	PollNotifications    = 5
)

// Randomizer is the source of every random choice in a session.
type Randomizer interface {
	IntN(n int) int
	Int64N(n int64) int64
}

type globalRand struct{}

func (globalRand) IntN(n int) int       { return rand.IntN(n) }
func (globalRand) Int64N(n int64) int64 { return rand.Int64N(n) }

// lockedRand makes a seeded generator safe for the concurrent loops.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeededRand returns a deterministic Randomizer safe for concurrent use.
func NewSeededRand(seed uint64) Randomizer {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *lockedRand) Int64N(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Int64N(n)
}

// Options tunes the timing of a session. Production always uses DefaultOptions;
// tests shrink the durations.
type Options struct {
	RecoveryDelay    time.Duration
	ArrivalMin       time.Duration
	ArrivalMax       time.Duration
	EventMin         time.Duration
	EventMax         time.Duration
	TickRate         time.Duration
	TimerJoinTimeout time.Duration

	Rand    Randomizer
	Now     func() time.Time
	Metrics *metrics.Collector
}

// DefaultOptions returns the game's fixed timings.
func DefaultOptions() Options {
	return Options{
		RecoveryDelay:    5 * time.Second,
		ArrivalMin:       2 * time.Second,
		ArrivalMax:       5 * time.Second,
		EventMin:         5 * time.Second,
		EventMax:         10 * time.Second,
		TickRate:         time.Second,
		TimerJoinTimeout: time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RecoveryDelay <= 0 {
		o.RecoveryDelay = d.RecoveryDelay
	}
	if o.ArrivalMin <= 0 || o.ArrivalMax < o.ArrivalMin {
		o.ArrivalMin, o.ArrivalMax = d.ArrivalMin, d.ArrivalMax
	}
	if o.EventMin <= 0 || o.EventMax < o.EventMin {
		o.EventMin, o.EventMax = d.EventMin, d.EventMax
	}
	if o.TickRate <= 0 {
		o.TickRate = d.TickRate
	}
	if o.TimerJoinTimeout <= 0 {
		o.TimerJoinTimeout = d.TimerJoinTimeout
	}
	if o.Rand == nil {
		o.Rand = globalRand{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Get()
	}
	return o
}

// randomDelay picks a duration uniformly in [min, max].
func randomDelay(r Randomizer, min, max time.Duration) time.Duration {
	span := max - min
	if span <= 0 {
		return min
	}
	return min + time.Duration(r.Int64N(int64(span)+1))
}
