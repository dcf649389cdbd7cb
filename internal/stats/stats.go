package stats

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"detmon-go/internal/types"
)

// Mode declares which statistics family applies. Area frames get whole-frame
// aggregates; line frames additionally get the grouped per-channel rates.
// The distinction is declared up front, never inferred from channel count.
type Mode int

const (
	ModeArea Mode = iota
	ModeLine
)

const (
	// Extra keys populated in line mode.
	KeyGroupMaxRate  = "group_max_rate"
	KeyReferenceRate = "reference_rate"
)

// Config names the channel split for line mode. The defaults encode the
// detector wiring at the beamline: channels 0-2 are aggregate detectors,
// channel 3 is the reference diode.
type Config struct {
	Mode             Mode
	ReferenceChannel int
	GroupChannels    []int
}

func DefaultLineConfig() Config {
	return Config{
		Mode:             ModeLine,
		ReferenceChannel: 3,
		GroupChannels:    []int{0, 1, 2},
	}
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Frame computes per-frame aggregates normalized by exposure time. A
// non-positive exposure is ErrInvalidExposure; rates are never produced by
// dividing through it.
func (e *Engine) Frame(frame types.DecodedFrame, exposureSeconds float64) (types.FrameStats, error) {
	if exposureSeconds <= 0 {
		return types.FrameStats{}, fmt.Errorf("%w: %g s", types.ErrInvalidExposure, exposureSeconds)
	}
	if len(frame.Channels) == 0 {
		return types.FrameStats{}, fmt.Errorf("frame %d has no channels", frame.Index)
	}

	var total float64
	hottest := 0.0
	first := true
	sums := make([]float64, len(frame.Channels))
	for c, channel := range frame.Channels {
		if len(channel) == 0 {
			return types.FrameStats{}, fmt.Errorf("frame %d channel %d is empty", frame.Index, c)
		}
		view := floatView(channel)
		sums[c] = floats.Sum(view)
		total += sums[c]
		peak := floats.Max(view)
		if first || peak > hottest {
			hottest = peak
			first = false
		}
	}

	out := types.FrameStats{
		Total:           total,
		Hottest:         hottest,
		ExposureSeconds: exposureSeconds,
		TotalRate:       total / exposureSeconds,
		HottestRate:     hottest / exposureSeconds,
	}

	if e.cfg.Mode == ModeLine {
		extra, err := e.lineExtra(frame.Index, sums, exposureSeconds)
		if err != nil {
			return types.FrameStats{}, err
		}
		out.Extra = extra
	}
	return out, nil
}

func (e *Engine) lineExtra(index int64, sums []float64, exposureSeconds float64) (map[string]float64, error) {
	if e.cfg.ReferenceChannel < 0 || e.cfg.ReferenceChannel >= len(sums) {
		return nil, fmt.Errorf("frame %d: reference channel %d out of range (%d channels)",
			index, e.cfg.ReferenceChannel, len(sums))
	}
	if len(e.cfg.GroupChannels) == 0 {
		return nil, fmt.Errorf("frame %d: no group channels configured", index)
	}

	groupMax := 0.0
	for i, c := range e.cfg.GroupChannels {
		if c < 0 || c >= len(sums) {
			return nil, fmt.Errorf("frame %d: group channel %d out of range (%d channels)",
				index, c, len(sums))
		}
		if i == 0 || sums[c] > groupMax {
			groupMax = sums[c]
		}
	}

	return map[string]float64{
		KeyGroupMaxRate:  groupMax / exposureSeconds,
		KeyReferenceRate: sums[e.cfg.ReferenceChannel] / exposureSeconds,
	}, nil
}

func floatView(values []int64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
