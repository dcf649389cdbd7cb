package stats

import "detmon-go/internal/types"

// EvaluateAlarm reports whether the hottest-pixel rate exceeds the configured
// threshold. With no threshold it never fires. NaN rates compare false under
// standard float ordering, so a broken rate never raises the alarm either.
func EvaluateAlarm(s types.FrameStats, cfg types.AlarmConfig) bool {
	if cfg.ThresholdRatePerSecond == nil {
		return false
	}
	return s.HottestRate > *cfg.ThresholdRatePerSecond
}
