package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"detmon-go/internal/stats"
	"detmon-go/internal/types"
)

func sampleResult(index int64, alarmed bool) types.PollResult {
	return types.PollResult{
		Frame: types.DecodedFrame{Index: index},
		Stats: types.FrameStats{
			Total:           100,
			Hottest:         40,
			ExposureSeconds: 2,
			TotalRate:       50,
			HottestRate:     20,
			Extra: map[string]float64{
				stats.KeyGroupMaxRate:  15,
				stats.KeyReferenceRate: 20,
			},
		},
		Alarmed: alarmed,
	}
}

func singleFile(t *testing.T, dir string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	return filepath.Join(dir, entries[0].Name())
}

func TestCSVWriter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewCSVWriter(dir, "session-a")
	require.NoError(t, err)

	require.NoError(t, w.Write(sampleResult(5, false)))
	require.NoError(t, w.Write(sampleResult(7, true)))
	require.NoError(t, w.Close())

	path := singleFile(t, dir)
	assert.Contains(t, path, "session-a")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "hottest_rate")
	assert.Contains(t, lines[1], "5, 100, 40, 2, 50, 20, 15, 20, false")
	assert.Contains(t, lines[2], "7, 100, 40, 2, 50, 20, 15, 20, true")

	assert.Error(t, w.Write(sampleResult(9, false)), "write after close")
}

func TestCSVWriterAreaFrameHasEmptyExtraColumns(t *testing.T) {
	dir := t.TempDir()
	w, err := NewCSVWriter(dir, "session-b")
	require.NoError(t, err)

	res := sampleResult(1, false)
	res.Stats.Extra = nil
	require.NoError(t, w.Write(res))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(singleFile(t, dir))
	require.NoError(t, err)
	assert.Contains(t, string(data), "50, 20, , , false")
}

func TestResultLogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewResultLogWriter(dir, "session-c")
	require.NoError(t, err)

	require.NoError(t, w.Record(sampleResult(5, false)))
	require.NoError(t, w.Record(sampleResult(7, true)))
	require.NoError(t, w.Close())

	records, err := ReadLog(singleFile(t, dir), 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, int64(5), records[0].FrameIndex)
	assert.Equal(t, int64(7), records[1].FrameIndex)
	assert.True(t, records[1].Alarmed)
	assert.Equal(t, 20.0, records[0].HottestRate)
	assert.Equal(t, 15.0, records[0].Extra[stats.KeyGroupMaxRate])
	assert.NotZero(t, records[0].UnixNano)

	limited, err := ReadLog(singleFile(t, dir), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestReadLogRejectsWrongMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.bin")
	require.NoError(t, os.WriteFile(path, []byte("NOTALOG1rest"), 0o644))

	_, err := ReadLog(path, 0)
	require.Error(t, err)
}
