package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"detmon-go/internal/types"
)

func newTestSource() *Source {
	return &Source{
		geom:     types.Geometry{Channels: 1, Width: 2, Height: 1, ByteWidth: 2},
		logEvery: 1,
		latest:   types.RawFrame{Index: -1},
		exposure: 0.1,
	}
}

func marshal(t *testing.T, env map[string]any) []byte {
	t.Helper()
	payload, err := cbor.Marshal(env)
	require.NoError(t, err)
	return payload
}

func TestConsumeCachesLatestImage(t *testing.T) {
	s := newTestSource()
	ctx := context.Background()

	idx, err := s.LatestIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), idx, "no frame yet")

	s.consume(marshal(t, map[string]any{
		"type":       "image",
		"frame_id":   5,
		"count_time": 0.5,
		"data":       []byte{1, 0, 2, 0},
	}))

	idx, err = s.LatestIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), idx)

	raw, err := s.Fetch(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 2, 0}, raw)

	exposure, err := s.ExposureSeconds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.5, exposure)
}

func TestFetchOfSupersededFrameExpires(t *testing.T) {
	s := newTestSource()
	ctx := context.Background()

	s.consume(marshal(t, map[string]any{
		"type": "image", "frame_id": 5, "data": []byte{1, 0, 2, 0},
	}))
	s.consume(marshal(t, map[string]any{
		"type": "image", "frame_id": 6, "data": []byte{3, 0, 4, 0},
	}))

	_, err := s.Fetch(ctx, 5)
	require.ErrorIs(t, err, types.ErrIndexExpired)

	raw, err := s.Fetch(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 0, 4, 0}, raw)
}

func TestConsumeIgnoresMalformedMessages(t *testing.T) {
	s := newTestSource()

	s.consume([]byte{0xff, 0xff})
	s.consume(marshal(t, map[string]any{"type": "image"})) // no frame_id or data
	s.consume(marshal(t, map[string]any{"type": "telemetry"}))

	assert.Equal(t, uint64(2), s.DecodeFailures())
	idx, err := s.LatestIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(-1), idx)
}

func TestStartMessageUpdatesExposure(t *testing.T) {
	s := newTestSource()

	s.consume(marshal(t, map[string]any{"type": "start", "count_time": 2.5}))

	exposure, err := s.ExposureSeconds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.5, exposure)
}

func TestSourceStopsPromptlyAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// nothing listens on this endpoint, so the receive goroutine only ever
	// sees timeouts and must still notice the cancellation
	geom := types.Geometry{Channels: 1, Width: 2, Height: 1, ByteWidth: 2}
	s, err := NewSource(ctx, "tcp://127.0.0.1:1", geom, 0.1, 1)
	require.NoError(t, err)

	cancel()
	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("receive goroutine did not stop after cancellation")
	}
}

func TestFetchCopiesCachedBytes(t *testing.T) {
	s := newTestSource()
	ctx := context.Background()

	s.consume(marshal(t, map[string]any{
		"type": "image", "frame_id": 1, "data": []byte{9, 0, 9, 0},
	}))

	raw, err := s.Fetch(ctx, 1)
	require.NoError(t, err)
	raw[0] = 0xaa

	again, err := s.Fetch(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 0, 9, 0}, again)
}
