package poll

import (
	"context"
	"sync/atomic"
	"time"

	"detmon-go/internal/decode"
	"detmon-go/internal/stats"
	"detmon-go/internal/types"
)

// Source is everything the loop needs from a detector. Geometry is read once
// at construction time by the implementation; the other calls may block and
// take a context so a stuck detector cannot stall the loop past the
// configured timeout.
type Source interface {
	LatestIndex(ctx context.Context) (int64, error)
	Fetch(ctx context.Context, index int64) ([]byte, error)
	ExposureSeconds(ctx context.Context) (float64, error)
	Geometry() types.Geometry
}

// TickError is one swallowed per-tick failure, reported on the error channel
// so sinks can surface intermittent trouble without the loop ever stopping.
type TickError struct {
	Index int64
	Err   error
}

type Config struct {
	Interval    time.Duration
	CallTimeout time.Duration
	Alarm       types.AlarmConfig
	Decode      decode.Options
	BufferSize  int
}

const (
	DefaultInterval    = 100 * time.Millisecond
	defaultCallTimeout = 2 * time.Second
	defaultBufferSize  = 16
)

// Loop polls a source for new frame indices and runs decode -> stats ->
// alarm on each genuinely new one. A single goroutine owns lastSeen and
// executes ticks one at a time; a slow tick delays the next one rather than
// overlapping it.
type Loop struct {
	source  Source
	engine  *stats.Engine
	cfg     Config
	metrics *Metrics

	// written only by the Run goroutine; atomic because status handlers
	// read it concurrently
	lastSeen atomic.Int64

	results chan types.PollResult
	errs    chan TickError
}

func New(source Source, engine *stats.Engine, cfg Config, metrics *Metrics) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = defaultBufferSize
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	l := &Loop{
		source:  source,
		engine:  engine,
		cfg:     cfg,
		metrics: metrics,
		results: make(chan types.PollResult, cfg.BufferSize),
		errs:    make(chan TickError, cfg.BufferSize),
	}
	l.lastSeen.Store(-1)
	return l
}

func (l *Loop) Results() <-chan types.PollResult { return l.results }

func (l *Loop) Errors() <-chan TickError { return l.errs }

// LastSeen is the index of the last successfully emitted frame, -1 before
// the first one. Safe to call from other goroutines while the loop runs.
func (l *Loop) LastSeen() int64 { return l.lastSeen.Load() }

// Run drives the loop until ctx is cancelled. Cancellation is observed
// between ticks; an in-flight tick completes before Run closes the output
// channels and returns.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.results)
	defer close(l.errs)

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// tick runs one poll-decode-evaluate cycle. Every failure is reported and
// swallowed here; lastSeen only advances on a fully successful tick, so a
// failed index is retried (or superseded) on the next one.
func (l *Loop) tick(ctx context.Context) {
	l.metrics.ticks()

	cctx, cancel := context.WithTimeout(ctx, l.cfg.CallTimeout)
	defer cancel()

	index, err := l.source.LatestIndex(cctx)
	if err != nil {
		l.report(ctx, -1, err)
		return
	}
	if index <= -1 || index == l.lastSeen.Load() {
		// steady state between frames, and the documented "no frame yet"
		// behavior
		l.metrics.skips()
		return
	}

	raw, err := l.source.Fetch(cctx, index)
	if err != nil {
		l.report(ctx, index, err)
		return
	}
	frame, err := decode.Frame(index, raw, l.source.Geometry(), l.cfg.Decode)
	if err != nil {
		l.report(ctx, index, err)
		return
	}
	exposure, err := l.source.ExposureSeconds(cctx)
	if err != nil {
		l.report(ctx, index, err)
		return
	}
	frameStats, err := l.engine.Frame(frame, exposure)
	if err != nil {
		l.report(ctx, index, err)
		return
	}

	l.lastSeen.Store(index)
	result := types.PollResult{
		Frame:   frame,
		Stats:   frameStats,
		Alarmed: stats.EvaluateAlarm(frameStats, l.cfg.Alarm),
	}
	l.metrics.emits(result.Alarmed)

	select {
	case <-ctx.Done():
	case l.results <- result:
	}
}

func (l *Loop) report(ctx context.Context, index int64, err error) {
	l.metrics.tickError(err)
	select {
	case <-ctx.Done():
	case l.errs <- TickError{Index: index, Err: err}:
	}
}
