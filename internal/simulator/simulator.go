package simulator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"detmon-go/internal/decode"
	"detmon-go/internal/types"
)

// Source generates pseudo-random frames over a declared geometry at a fixed
// acquisition rate, for dry runs and tests. Every hotEvery-th frame carries
// one pixel near the element-type maximum so alarm thresholds have something
// to trip on.
type Source struct {
	geom     types.Geometry
	exposure float64
	interval time.Duration
	start    time.Time
	hotEvery int64
}

const defaultHotEvery = 10

func New(geom types.Geometry, exposureSeconds, acqRate float64) (*Source, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if exposureSeconds <= 0 {
		return nil, fmt.Errorf("%w: %g s", types.ErrInvalidExposure, exposureSeconds)
	}
	if acqRate <= 0 {
		return nil, fmt.Errorf("invalid acquisition rate %g", acqRate)
	}
	return &Source{
		geom:     geom,
		exposure: exposureSeconds,
		interval: time.Duration(float64(time.Second) / acqRate),
		start:    time.Now(),
		hotEvery: defaultHotEvery,
	}, nil
}

// LatestIndex advances with wall time, one frame per acquisition interval.
// It is -1 until the first frame completes.
func (s *Source) LatestIndex(context.Context) (int64, error) {
	return int64(time.Since(s.start)/s.interval) - 1, nil
}

// Fetch synthesizes the frame for index deterministically: the same index
// always yields the same bytes, the way re-reading an unchanged monitor
// buffer would.
func (s *Source) Fetch(_ context.Context, index int64) ([]byte, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: index %d", types.ErrIndexExpired, index)
	}

	rng := rand.New(rand.NewSource(index))
	chanLen := s.geom.ChannelLen()
	values := make([]int64, s.geom.Channels*chanLen)

	centerX := float64(s.geom.Width) / 2.0
	centerY := float64(s.geom.Height) / 2.0
	spread := float64(s.geom.Width*s.geom.Height) / 20.0
	if spread < 1 {
		spread = 1
	}
	for c := 0; c < s.geom.Channels; c++ {
		for i := 0; i < chanLen; i++ {
			x := float64(i % s.geom.Width)
			y := float64(i / s.geom.Width)
			dx := x - centerX
			dy := y - centerY
			base := 100 * math.Exp(-(dx*dx+dy*dy)/spread)
			val := base + rng.NormFloat64()*math.Sqrt(base+1)
			if val < 0 {
				val = 0
			}
			values[c*chanLen+i] = int64(val)
		}
	}

	if index%s.hotEvery == 0 {
		values[rng.Intn(len(values))] = hotValue(s.geom.ByteWidth)
	}

	return decode.Encode(values, s.geom)
}

func (s *Source) ExposureSeconds(context.Context) (float64, error) {
	return s.exposure, nil
}

func (s *Source) Geometry() types.Geometry { return s.geom }

func hotValue(byteWidth int) int64 {
	switch byteWidth {
	case 1:
		return math.MaxInt8
	case 2:
		return math.MaxInt16
	default:
		return math.MaxInt32
	}
}
