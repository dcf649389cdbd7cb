package output

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"detmon-go/internal/types"
)

const resultLogMagic = "DETMONL1"

// Record is one result-log entry. It carries statistics only, not pixel
// data, so replaying a log never reconstructs frames.
type Record struct {
	UnixNano        int64              `cbor:"unix_nano" json:"unix_nano"`
	FrameIndex      int64              `cbor:"frame_index" json:"frame_index"`
	Total           float64            `cbor:"total" json:"total"`
	Hottest         float64            `cbor:"hottest" json:"hottest"`
	ExposureSeconds float64            `cbor:"exposure_seconds" json:"exposure_seconds"`
	TotalRate       float64            `cbor:"total_rate" json:"total_rate"`
	HottestRate     float64            `cbor:"hottest_rate" json:"hottest_rate"`
	Extra           map[string]float64 `cbor:"extra,omitempty" json:"extra,omitempty"`
	Alarmed         bool               `cbor:"alarmed" json:"alarmed"`
}

// ResultLogWriter writes length-prefixed CBOR records behind a magic header,
// one per emitted result.
type ResultLogWriter struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

func NewResultLogWriter(outputDir, sessionID string) (*ResultLogWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s_results.bin", timestamp, sessionID))
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(f, 64*1024)
	if _, err := w.WriteString(resultLogMagic); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &ResultLogWriter{f: f, w: w}, nil
}

func (r *ResultLogWriter) Record(res types.PollResult) error {
	payload, err := cbor.Marshal(Record{
		UnixNano:        time.Now().UnixNano(),
		FrameIndex:      res.Frame.Index,
		Total:           res.Stats.Total,
		Hottest:         res.Stats.Hottest,
		ExposureSeconds: res.Stats.ExposureSeconds,
		TotalRate:       res.Stats.TotalRate,
		HottestRate:     res.Stats.HottestRate,
		Extra:           res.Stats.Extra,
		Alarmed:         res.Alarmed,
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return fmt.Errorf("result log writer is closed")
	}
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := r.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := r.w.Write(payload); err != nil {
		return err
	}
	return r.w.Flush()
}

func (r *ResultLogWriter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	if err := r.w.Flush(); err != nil {
		_ = r.f.Close()
		r.w = nil
		return err
	}
	err := r.f.Close()
	r.w = nil
	return err
}

// ReadLog decodes up to limit records from a result log; limit <= 0 reads
// everything.
func ReadLog(path string, limit int) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	magic := make([]byte, len(resultLogMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != resultLogMagic {
		return nil, fmt.Errorf("unexpected result log magic %q", string(magic))
	}

	var records []Record
	for limit <= 0 || len(records) < limit {
		var header [4]byte
		if _, err := io.ReadFull(f, header[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("read record header: %w", err)
		}
		size := binary.LittleEndian.Uint32(header[:])
		payload := make([]byte, size)
		if _, err := io.ReadFull(f, payload); err != nil {
			return nil, fmt.Errorf("read record payload: %w", err)
		}
		var rec Record
		if err := cbor.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
	return records, nil
}
