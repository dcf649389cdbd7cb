package poll

import (
	"errors"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"detmon-go/internal/types"
)

// Metrics counts loop activity. Prometheus counters feed /metrics; the
// atomic mirrors feed the cheap /status snapshot.
type Metrics struct {
	ticksTotal   prometheus.Counter
	skipsTotal   prometheus.Counter
	emitsTotal   prometheus.Counter
	alarmsTotal  prometheus.Counter
	errorsByKind *prometheus.CounterVec

	tickCount  atomic.Uint64
	skipCount  atomic.Uint64
	emitCount  atomic.Uint64
	alarmCount atomic.Uint64
	errorCount atomic.Uint64
}

// NewMetrics builds the counter set, registering with reg when it is
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ticksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "detmon_ticks_total",
			Help: "Poll ticks executed.",
		}),
		skipsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "detmon_ticks_skipped_total",
			Help: "Ticks with no new frame index.",
		}),
		emitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "detmon_results_emitted_total",
			Help: "Successful ticks that emitted a result.",
		}),
		alarmsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "detmon_alarms_total",
			Help: "Emitted results with the alarm raised.",
		}),
		errorsByKind: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "detmon_tick_errors_total",
			Help: "Swallowed per-tick failures by kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) ticks() {
	m.ticksTotal.Inc()
	m.tickCount.Add(1)
}

func (m *Metrics) skips() {
	m.skipsTotal.Inc()
	m.skipCount.Add(1)
}

func (m *Metrics) emits(alarmed bool) {
	m.emitsTotal.Inc()
	m.emitCount.Add(1)
	if alarmed {
		m.alarmsTotal.Inc()
		m.alarmCount.Add(1)
	}
}

func (m *Metrics) tickError(err error) {
	m.errorsByKind.WithLabelValues(errorKind(err)).Inc()
	m.errorCount.Add(1)
}

// Snapshot returns the counters for the /status payload.
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"ticks_total":           m.tickCount.Load(),
		"ticks_skipped_total":   m.skipCount.Load(),
		"results_emitted_total": m.emitCount.Load(),
		"alarms_total":          m.alarmCount.Load(),
		"tick_errors_total":     m.errorCount.Load(),
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, types.ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, types.ErrIndexExpired):
		return "index_expired"
	case errors.Is(err, types.ErrBufferLengthMismatch):
		return "buffer_length_mismatch"
	case errors.Is(err, types.ErrInvalidExposure):
		return "invalid_exposure"
	default:
		return "other"
	}
}
