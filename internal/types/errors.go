package types

import "errors"

// The four recoverable tick-level failures. All of them are caught at the
// tick boundary and reported through the error channel; none stop the loop.
var (
	ErrSourceUnavailable    = errors.New("detector source unavailable")
	ErrIndexExpired         = errors.New("frame index expired")
	ErrBufferLengthMismatch = errors.New("raw buffer length mismatch")
	ErrInvalidExposure      = errors.New("invalid exposure time")
)
