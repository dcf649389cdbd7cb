package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"detmon-go/internal/types"
)

func areaFrame(values ...int64) types.DecodedFrame {
	return types.DecodedFrame{
		Index:    1,
		Geometry: types.Geometry{Channels: 1, Width: len(values), Height: 1, ByteWidth: 4},
		Channels: [][]int64{values},
	}
}

func TestFrameAreaStats(t *testing.T) {
	engine := NewEngine(Config{Mode: ModeArea})

	got, err := engine.Frame(areaFrame(1, 2, 3, 10), 2.0)
	require.NoError(t, err)

	assert.Equal(t, 16.0, got.Total)
	assert.Equal(t, 10.0, got.Hottest)
	assert.Equal(t, 2.0, got.ExposureSeconds)
	assert.Equal(t, 8.0, got.TotalRate)
	assert.Equal(t, 5.0, got.HottestRate)
	assert.Nil(t, got.Extra)
}

func TestFrameNegativeValues(t *testing.T) {
	engine := NewEngine(Config{Mode: ModeArea})

	got, err := engine.Frame(areaFrame(-5, -1, -7), 1.0)
	require.NoError(t, err)
	assert.Equal(t, -13.0, got.Total)
	assert.Equal(t, -1.0, got.Hottest)
}

func TestFrameInvalidExposure(t *testing.T) {
	engine := NewEngine(Config{Mode: ModeArea})

	for _, exposure := range []float64{0, -0.5} {
		_, err := engine.Frame(areaFrame(1, 2), exposure)
		require.ErrorIs(t, err, types.ErrInvalidExposure)
	}
}

func TestFrameLineGroupAndReference(t *testing.T) {
	engine := NewEngine(DefaultLineConfig())

	// channel sums 10, 20, 30, 40 at exposure 2 s
	frame := types.DecodedFrame{
		Index:    5,
		Geometry: types.Geometry{Channels: 4, Width: 2, Height: 1, ByteWidth: 4},
		Channels: [][]int64{{4, 6}, {15, 5}, {30, 0}, {39, 1}},
	}

	got, err := engine.Frame(frame, 2.0)
	require.NoError(t, err)

	assert.Equal(t, 100.0, got.Total)
	assert.Equal(t, 39.0, got.Hottest)
	assert.Equal(t, 15.0, got.Extra[KeyGroupMaxRate])  // max(10,20,30)/2
	assert.Equal(t, 20.0, got.Extra[KeyReferenceRate]) // 40/2
}

func TestFrameLineChannelOutOfRange(t *testing.T) {
	frame := types.DecodedFrame{
		Index:    0,
		Geometry: types.Geometry{Channels: 2, Width: 2, Height: 1, ByteWidth: 4},
		Channels: [][]int64{{1, 2}, {3, 4}},
	}

	_, err := NewEngine(DefaultLineConfig()).Frame(frame, 1.0)
	require.Error(t, err)

	cfg := Config{Mode: ModeLine, ReferenceChannel: 1, GroupChannels: []int{0, 5}}
	_, err = NewEngine(cfg).Frame(frame, 1.0)
	require.Error(t, err)
}

func TestFrameRejectsEmptyFrame(t *testing.T) {
	engine := NewEngine(Config{Mode: ModeArea})

	_, err := engine.Frame(types.DecodedFrame{}, 1.0)
	require.Error(t, err)

	_, err = engine.Frame(types.DecodedFrame{Channels: [][]int64{{}}}, 1.0)
	require.Error(t, err)
}
