package decode

import (
	"encoding/binary"
	"fmt"

	"detmon-go/internal/types"
)

// Options tunes decoding. TruncateLength of 0 keeps every element; a
// positive value keeps only the first TruncateLength elements of each
// channel. Callers that maintain a companion coordinate axis must derive it
// with Axis so the two can never disagree in length.
type Options struct {
	TruncateLength int
}

// Frame interprets raw as little-endian signed integers of the declared
// byte width and reshapes them channel-major. The buffer length must match
// the geometry exactly; anything else is ErrBufferLengthMismatch, never a
// silent truncation.
func Frame(index int64, raw []byte, geom types.Geometry, opts Options) (types.DecodedFrame, error) {
	if err := geom.Validate(); err != nil {
		return types.DecodedFrame{}, err
	}
	if len(raw) != geom.ByteLen() {
		return types.DecodedFrame{}, fmt.Errorf("%w: got %d bytes, geometry implies %d",
			types.ErrBufferLengthMismatch, len(raw), geom.ByteLen())
	}

	chanLen := geom.ChannelLen()
	keep := chanLen
	if opts.TruncateLength > 0 && opts.TruncateLength < chanLen {
		keep = opts.TruncateLength
	}

	channels := make([][]int64, geom.Channels)
	for c := 0; c < geom.Channels; c++ {
		chunk := raw[c*chanLen*geom.ByteWidth : (c+1)*chanLen*geom.ByteWidth]
		channels[c] = decodeChannel(chunk, keep, geom.ByteWidth)
	}

	return types.DecodedFrame{
		Index:    index,
		Geometry: geom,
		Channels: channels,
	}, nil
}

// Axis is the coordinate axis matching a decoded channel, truncated with
// the same rule Frame applies to the data.
func Axis(chanLen, truncateLength int) []float64 {
	keep := chanLen
	if truncateLength > 0 && truncateLength < chanLen {
		keep = truncateLength
	}
	axis := make([]float64, keep)
	for i := range axis {
		axis[i] = float64(i)
	}
	return axis
}

// Encode packs flat channel-major values into the raw wire layout for the
// given geometry. Values are wrapped to the element width the way the
// detector firmware would emit them.
func Encode(values []int64, geom types.Geometry) ([]byte, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	total := geom.Channels * geom.ChannelLen()
	if len(values) != total {
		return nil, fmt.Errorf("expected %d values, got %d", total, len(values))
	}
	out := make([]byte, 0, geom.ByteLen())
	switch geom.ByteWidth {
	case 1:
		for _, v := range values {
			out = append(out, byte(int8(v)))
		}
	case 2:
		for _, v := range values {
			out = binary.LittleEndian.AppendUint16(out, uint16(int16(v)))
		}
	case 4:
		for _, v := range values {
			out = binary.LittleEndian.AppendUint32(out, uint32(int32(v)))
		}
	}
	return out, nil
}

func decodeChannel(chunk []byte, keep, byteWidth int) []int64 {
	out := make([]int64, keep)
	switch byteWidth {
	case 1:
		for i := 0; i < keep; i++ {
			out[i] = int64(int8(chunk[i]))
		}
	case 2:
		for i := 0; i < keep; i++ {
			out[i] = int64(int16(binary.LittleEndian.Uint16(chunk[i*2 : i*2+2])))
		}
	case 4:
		for i := 0; i < keep; i++ {
			out[i] = int64(int32(binary.LittleEndian.Uint32(chunk[i*4 : i*4+4])))
		}
	}
	return out
}
