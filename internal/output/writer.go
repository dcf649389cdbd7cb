package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"detmon-go/internal/stats"
	"detmon-go/internal/types"
)

// CSVWriter appends one row per emitted result to a per-session stats file.
type CSVWriter struct {
	mu sync.Mutex
	f  *os.File
}

func NewCSVWriter(outputDir, sessionID string) (*CSVWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s_stats.csv", timestamp, sessionID))
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintln(f, "frame_index, total, hottest, exposure_s, total_rate, hottest_rate, group_max_rate, reference_rate, alarmed"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &CSVWriter{f: f}, nil
}

func (w *CSVWriter) Write(res types.PollResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return fmt.Errorf("stats writer is closed")
	}
	_, err := fmt.Fprintf(w.f, "%d, %.6g, %.6g, %.6g, %.6g, %.6g, %s, %s, %t\n",
		res.Frame.Index,
		res.Stats.Total,
		res.Stats.Hottest,
		res.Stats.ExposureSeconds,
		res.Stats.TotalRate,
		res.Stats.HottestRate,
		extraColumn(res.Stats.Extra, stats.KeyGroupMaxRate),
		extraColumn(res.Stats.Extra, stats.KeyReferenceRate),
		res.Alarmed,
	)
	return err
}

func (w *CSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func extraColumn(extra map[string]float64, key string) string {
	value, ok := extra[key]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%.6g", value)
}
