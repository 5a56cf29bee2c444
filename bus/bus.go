package bus

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrClosed indicates the adapter has been closed.
	ErrClosed = errors.New("bus: closed")
	// ErrTimeout is returned by adapters whose read deadline expired with no frame.
	// Callers treat it as an empty batch.
	ErrTimeout = errors.New("bus: timeout")
	// ErrUnsupported is returned by adapters that cannot perform an administrative operation.
	ErrUnsupported = errors.New("bus: operation not supported by adapter")
	// ErrInvalidID indicates an identifier outside the 11-bit or 29-bit range.
	ErrInvalidID = errors.New("bus: invalid identifier")
	// ErrInvalidLength indicates a payload longer than FrameSize.
	ErrInvalidLength = errors.New("bus: invalid data length")
)

// DefaultBitrate is the bus speed in kbit/s used when none is configured.
const DefaultBitrate = 500

// Mode is the adapter transmit mode.
type Mode uint8

const (
	// ModeSilent only listens; the adapter never acknowledges or transmits.
	ModeSilent Mode = iota
	// ModeAllOutput allows transmitting on every identifier.
	ModeAllOutput
)

func (m Mode) String() string {
	switch m {
	case ModeSilent:
		return "silent"
	case ModeAllOutput:
		return "all-output"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Bus is the raw frame transport the simulator runs on.
//
// Implementations must allow SetBitrate and SetMode to be called from another goroutine
// while Receive is blocked.
type Bus interface {
	// Receive returns the frames available now. It blocks for at most a short adapter
	// specific poll period and may return an empty batch. It returns ctx.Err() once ctx is done.
	Receive(ctx context.Context) ([]Frame, error)
	// Send transmits one frame.
	Send(ctx context.Context, f Frame) error
	// SetBitrate sets the bus speed in kbit/s.
	SetBitrate(kbps int) error
	// SetMode sets the adapter transmit mode.
	SetMode(m Mode) error
	// Close releases the adapter.
	Close() error
}
