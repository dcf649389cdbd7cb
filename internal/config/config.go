package config

import "time"

// AppConfig carries the already-resolved options the core consumes. All
// parsing and shortcut resolution happens in the cmd layer.
type AppConfig struct {
	Port       int
	Endpoint   string // http(s)://... , tcp://... , or "dry-run"
	APIVersion string

	PollInterval time.Duration
	CallTimeout  time.Duration

	AlarmRate      float64 // alarm threshold in counts/s, 0 disables
	TruncateLength int     // 0 keeps full channels

	// geometry for sources that cannot report their own (stream, dry-run)
	Channels  int
	Width     int
	Height    int
	ByteWidth int

	LineMode         bool
	ReferenceChannel int
	GroupChannels    []int

	Exposure float64 // default exposure for stream and dry-run sources
	AcqRate  float64 // simulated acquisition rate, frames/s

	OutputDir string
	ResultLog bool
	LogEvery  int
}
