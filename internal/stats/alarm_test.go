package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"detmon-go/internal/types"
)

func threshold(v float64) types.AlarmConfig {
	return types.AlarmConfig{ThresholdRatePerSecond: &v}
}

func TestEvaluateAlarmUnsetNeverFires(t *testing.T) {
	cfg := types.AlarmConfig{}
	for _, rate := range []float64{0, -1, 1e12, math.Inf(1), math.NaN()} {
		assert.False(t, EvaluateAlarm(types.FrameStats{HottestRate: rate}, cfg))
	}
}

func TestEvaluateAlarmThreshold(t *testing.T) {
	cfg := threshold(100)

	assert.False(t, EvaluateAlarm(types.FrameStats{HottestRate: 99.9}, cfg))
	assert.False(t, EvaluateAlarm(types.FrameStats{HottestRate: 100}, cfg))
	assert.True(t, EvaluateAlarm(types.FrameStats{HottestRate: 100.1}, cfg))
	assert.True(t, EvaluateAlarm(types.FrameStats{HottestRate: math.Inf(1)}, cfg))
}

func TestEvaluateAlarmNaNNeverFires(t *testing.T) {
	assert.False(t, EvaluateAlarm(types.FrameStats{HottestRate: math.NaN()}, threshold(0)))
	assert.False(t, EvaluateAlarm(types.FrameStats{HottestRate: math.NaN()}, threshold(-1)))
}
