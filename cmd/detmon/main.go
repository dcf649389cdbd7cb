package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"detmon-go/internal/config"
	"detmon-go/internal/decode"
	"detmon-go/internal/detector"
	"detmon-go/internal/ingest"
	"detmon-go/internal/output"
	"detmon-go/internal/poll"
	"detmon-go/internal/server"
	"detmon-go/internal/simulator"
	"detmon-go/internal/stats"
	"detmon-go/internal/types"
)

func main() {
	var (
		port         = flag.Int("port", 8888, "HTTP port for results and status")
		endpoint     = flag.String("endpoint", "dry-run", "Detector endpoint: http(s) monitor API, tcp:// ZMQ stream, or dry-run")
		apiVersion   = flag.String("api-version", "1.8.0", "Monitor API version")
		pollInterval = flag.Duration("poll-interval", poll.DefaultInterval, "Poll interval")
		callTimeout  = flag.Duration("call-timeout", 2*time.Second, "Timeout for each detector call")
		alarmRate    = flag.Float64("alarm-rate", 0, "Alarm threshold in counts/s on the hottest-pixel rate (0 disables)")
		truncate     = flag.Int("truncate", 0, "Keep only the first N elements of each channel (0 keeps all)")
		channels     = flag.Int("channels", 1, "Channel count (stream and dry-run sources)")
		width        = flag.Int("width", 52, "Frame width in pixels (stream and dry-run sources)")
		height       = flag.Int("height", 52, "Frame height in pixels, 1 for line detectors (stream and dry-run sources)")
		byteWidth    = flag.Int("byte-width", 4, "Bytes per pixel: 1, 2 or 4 (stream and dry-run sources)")
		lineMode     = flag.Bool("line", false, "Compute line-detector statistics (grouped channel rates)")
		refChannel   = flag.Int("reference-channel", 3, "Reference channel for line statistics")
		groupSpec    = flag.String("group-channels", "0,1,2", "Comma-separated channels for the group-max line statistic")
		exposure     = flag.Float64("exposure", 0.1, "Default exposure time in seconds (stream and dry-run sources)")
		acqRate      = flag.Float64("acq-rate", 100.0, "Simulated acquisition rate in frames/s (dry-run)")
		outputDir    = flag.String("output-dir", "output", "Directory for stats output files")
		resultLog    = flag.Bool("result-log", false, "Write a binary result log next to the stats CSV")
		logEvery     = flag.Int("log-every", 100, "Log every Nth stream ingest error")
	)
	flag.Parse()

	groupChannels, err := parseChannels(*groupSpec)
	if err != nil {
		log.Fatalf("invalid -group-channels: %v", err)
	}

	cfg := config.AppConfig{
		Port:             *port,
		Endpoint:         *endpoint,
		APIVersion:       *apiVersion,
		PollInterval:     *pollInterval,
		CallTimeout:      *callTimeout,
		AlarmRate:        *alarmRate,
		TruncateLength:   *truncate,
		Channels:         *channels,
		Width:            *width,
		Height:           *height,
		ByteWidth:        *byteWidth,
		LineMode:         *lineMode,
		ReferenceChannel: *refChannel,
		GroupChannels:    groupChannels,
		Exposure:         *exposure,
		AcqRate:          *acqRate,
		OutputDir:        *outputDir,
		ResultLog:        *resultLog,
		LogEvery:         *logEvery,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionID := uuid.New().String()
	log.Printf("session %s polling %s every %s", sessionID, cfg.Endpoint, cfg.PollInterval)

	source, err := buildSource(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to start source: %v", err)
	}
	log.Printf("detector geometry: %d channel(s) %dx%d, %d byte(s)/pixel",
		source.Geometry().Channels, source.Geometry().Height, source.Geometry().Width, source.Geometry().ByteWidth)

	statsCfg := stats.Config{Mode: stats.ModeArea}
	if cfg.LineMode {
		statsCfg = stats.Config{
			Mode:             stats.ModeLine,
			ReferenceChannel: cfg.ReferenceChannel,
			GroupChannels:    cfg.GroupChannels,
		}
	}

	var alarm types.AlarmConfig
	if cfg.AlarmRate > 0 {
		rate := cfg.AlarmRate
		alarm = types.AlarmConfig{ThresholdRatePerSecond: &rate}
		log.Printf("alarm threshold: %g counts/s", rate)
	}

	registry := prometheus.NewRegistry()
	metrics := poll.NewMetrics(registry)
	loop := poll.New(source, stats.NewEngine(statsCfg), poll.Config{
		Interval:    cfg.PollInterval,
		CallTimeout: cfg.CallTimeout,
		Alarm:       alarm,
		Decode:      decode.Options{TruncateLength: cfg.TruncateLength},
	}, metrics)

	csvWriter, err := output.NewCSVWriter(cfg.OutputDir, sessionID)
	if err != nil {
		log.Fatalf("failed to open stats output: %v", err)
	}
	var resultWriter *output.ResultLogWriter
	if cfg.ResultLog {
		resultWriter, err = output.NewResultLogWriter(cfg.OutputDir, sessionID)
		if err != nil {
			log.Fatalf("failed to open result log: %v", err)
		}
	}

	go loop.Run(ctx)

	broadcast := make(chan types.ResultMessage, 16)
	go func() {
		defer close(broadcast)
		defer func() {
			if err := csvWriter.Close(); err != nil {
				log.Printf("stats output close failed: %v", err)
			}
			if resultWriter != nil {
				if err := resultWriter.Close(); err != nil {
					log.Printf("result log close failed: %v", err)
				}
			}
		}()
		for res := range loop.Results() {
			if res.Alarmed {
				log.Printf("ALARM frame %d: hottest rate %.6g counts/s", res.Frame.Index, res.Stats.HottestRate)
			}
			if err := csvWriter.Write(res); err != nil {
				log.Printf("stats write failed: %v", err)
			}
			if resultWriter != nil {
				if err := resultWriter.Record(res); err != nil {
					log.Printf("result log write failed: %v", err)
				}
			}
			select {
			case broadcast <- types.NewResultMessage(res):
			default:
			}
		}
	}()

	go func() {
		for tickErr := range loop.Errors() {
			if tickErr.Index < 0 {
				log.Printf("tick failed: %v", tickErr.Err)
			} else {
				log.Printf("tick failed (frame %d): %v", tickErr.Index, tickErr.Err)
			}
		}
	}()

	statusFn := func() map[string]any {
		status := map[string]any{
			"session_id":    sessionID,
			"endpoint":      cfg.Endpoint,
			"poll_interval": cfg.PollInterval.String(),
			"last_seen":     loop.LastSeen(),
			"alarm_rate":    cfg.AlarmRate,
			"line_mode":     cfg.LineMode,
			"truncate":      cfg.TruncateLength,
		}
		for k, v := range metrics.Snapshot() {
			status[k] = v
		}
		return status
	}

	log.Printf("serving results at http://localhost:%d", cfg.Port)
	if err := server.Run(ctx, cfg.Port, broadcast, statusFn, registry); err != nil {
		log.Printf("server stopped: %v", err)
	}
}

func buildSource(ctx context.Context, cfg config.AppConfig) (poll.Source, error) {
	geom := types.Geometry{
		Channels:  cfg.Channels,
		Width:     cfg.Width,
		Height:    cfg.Height,
		ByteWidth: cfg.ByteWidth,
	}
	switch {
	case cfg.Endpoint == "dry-run":
		return simulator.New(geom, cfg.Exposure, cfg.AcqRate)
	case strings.HasPrefix(cfg.Endpoint, "tcp://"):
		return ingest.NewSource(ctx, cfg.Endpoint, geom, cfg.Exposure, cfg.LogEvery)
	default:
		// live monitor API; geometry comes from the device itself
		return detector.New(ctx, cfg.Endpoint, cfg.APIVersion, cfg.CallTimeout)
	}
}

func parseChannels(spec string) ([]int, error) {
	parts := strings.Split(spec, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
