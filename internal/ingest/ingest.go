package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"

	"detmon-go/internal/types"
)

// envelope is the CBOR message shape pushed by the detector stream:
// {"type": "image", "frame_id": <int>, "count_time": <float>, "data": <bytes>}
// plus "start"/"end" markers that may carry an updated count_time.
type envelope struct {
	Type      string  `cbor:"type"`
	FrameID   int64   `cbor:"frame_id"`
	CountTime float64 `cbor:"count_time"`
	Data      []byte  `cbor:"data"`
}

// Source adapts a push-style ZMQ frame stream to the pull contract the poll
// loop expects: a receive goroutine keeps only the newest frame, and Fetch of
// anything older reports ErrIndexExpired. Dropping frames under a fast
// detector is the intended behavior, not a fault.
type Source struct {
	geom     types.Geometry
	logEvery uint64

	mu       sync.Mutex
	latest   types.RawFrame
	exposure float64

	decodeFailures atomic.Uint64
	logCounter     atomic.Uint64

	done chan struct{}
}

func NewSource(ctx context.Context, endpoint string, geom types.Geometry, defaultExposure float64, logEvery int) (*Source, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if defaultExposure <= 0 {
		return nil, fmt.Errorf("%w: %g s", types.ErrInvalidExposure, defaultExposure)
	}
	if logEvery < 1 {
		logEvery = 1
	}

	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, err
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, err
	}
	// bounded receive so cancellation is observed without waiting for
	// the next message
	if err := socket.SetRcvtimeo(time.Second); err != nil {
		_ = socket.Close()
		return nil, err
	}

	s := &Source{
		geom:     geom,
		logEvery: uint64(logEvery),
		latest:   types.RawFrame{Index: -1},
		exposure: defaultExposure,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer socket.Close()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msg, err := socket.RecvBytes(0)
			if err != nil {
				if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
					continue // receive timeout, re-check cancellation
				}
				s.logEveryN("stream recv error: %v", err)
				continue
			}
			s.consume(msg)
		}
	}()

	return s, nil
}

// LatestIndex is the id of the newest frame seen on the stream, -1 before
// the first one.
func (s *Source) LatestIndex(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest.Index, nil
}

func (s *Source) Fetch(_ context.Context, index int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index != s.latest.Index || s.latest.Bytes == nil {
		return nil, fmt.Errorf("%w: frame %d no longer cached", types.ErrIndexExpired, index)
	}
	out := make([]byte, len(s.latest.Bytes))
	copy(out, s.latest.Bytes)
	return out, nil
}

func (s *Source) ExposureSeconds(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exposure, nil
}

func (s *Source) Geometry() types.Geometry { return s.geom }

// Done is closed once the receive goroutine has exited and the socket is
// released.
func (s *Source) Done() <-chan struct{} { return s.done }

// DecodeFailures counts stream messages that could not be decoded.
func (s *Source) DecodeFailures() uint64 {
	return s.decodeFailures.Load()
}

func (s *Source) consume(msg []byte) {
	var env envelope
	if err := cbor.Unmarshal(msg, &env); err != nil {
		s.decodeFailures.Add(1)
		s.logEveryN("stream CBOR decode error: %v", err)
		return
	}

	switch env.Type {
	case "image":
		if env.FrameID < 0 || len(env.Data) == 0 {
			s.decodeFailures.Add(1)
			s.logEveryN("stream image message missing frame_id or data")
			return
		}
		s.mu.Lock()
		s.latest = types.RawFrame{Index: env.FrameID, Bytes: env.Data}
		if env.CountTime > 0 {
			s.exposure = env.CountTime
		}
		s.mu.Unlock()
	case "start", "end":
		if env.CountTime > 0 {
			s.mu.Lock()
			s.exposure = env.CountTime
			s.mu.Unlock()
		}
	default:
		s.logEveryN("stream ignoring message type %q", env.Type)
	}
}

func (s *Source) logEveryN(format string, args ...any) {
	if s.logCounter.Add(1)%s.logEvery == 0 {
		log.Printf(format, args...)
	}
}
