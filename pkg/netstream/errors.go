package netstream

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrRangeUnsupported = errors.New("netstream: range requests not supported")
	ErrInvalidRange     = errors.New("netstream: invalid range")
	ErrSessionClosed    = errors.New("netstream: session closed")
	ErrInvalidSource    = errors.New("netstream: invalid source")
	ErrCancelled        = errors.New("netstream: reader cancelled")
)

// ProbeError is returned when the initial request of a session could not be
// established. It is fatal to the session.
type ProbeError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *ProbeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("probe %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("probe %s: %v", e.URL, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// TransportError reports a failure of an individual reader. Start and End
// are the byte span of the reader; End is -1 for the full reader.
type TransportError struct {
	Start int64
	End   int64
	Err   error
}

func (e *TransportError) Error() string {
	if e.End < 0 {
		return fmt.Sprintf("full read: %v", e.Err)
	}
	return fmt.Sprintf("range %d-%d: %v", e.Start, e.End, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
