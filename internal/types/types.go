package types

import "fmt"

// Geometry declares the shape and element width of one raw detector frame.
// ByteWidth selects the element type: 1 -> int8, 2 -> int16, 4 -> int32,
// always little-endian. It is read once at startup and never changes
// mid-session.
type Geometry struct {
	Channels  int
	Width     int
	Height    int
	ByteWidth int
}

func (g Geometry) Validate() error {
	if g.Channels < 1 || g.Width < 1 || g.Height < 1 {
		return fmt.Errorf("invalid geometry %dx%dx%d", g.Channels, g.Height, g.Width)
	}
	switch g.ByteWidth {
	case 1, 2, 4:
		return nil
	default:
		return fmt.Errorf("unsupported byte width %d", g.ByteWidth)
	}
}

// ChannelLen is the number of elements in one channel.
func (g Geometry) ChannelLen() int {
	return g.Width * g.Height
}

// ByteLen is the exact raw buffer length implied by the geometry.
func (g Geometry) ByteLen() int {
	return g.Channels * g.ChannelLen() * g.ByteWidth
}

// RawFrame is an undecoded acquisition readout. Index is monotonically
// non-decreasing in practice, but consumers only rely on "changed since
// last seen".
type RawFrame struct {
	Index int64
	Bytes []byte
}

// DecodedFrame holds one frame as channel-major signed integers, each
// channel flattened row-major. It is owned by the tick that produced it
// and never mutated afterwards.
type DecodedFrame struct {
	Index    int64
	Geometry Geometry
	Channels [][]int64
}

// FrameStats are the per-frame aggregates, normalized by exposure time.
type FrameStats struct {
	Total           float64
	Hottest         float64
	ExposureSeconds float64
	TotalRate       float64
	HottestRate     float64
	Extra           map[string]float64
}

// AlarmConfig holds the alarm threshold. A nil threshold means the alarm
// never fires.
type AlarmConfig struct {
	ThresholdRatePerSecond *float64
}

// PollResult is the unit emitted to sinks once per successful tick.
type PollResult struct {
	Frame   DecodedFrame
	Stats   FrameStats
	Alarmed bool
}
