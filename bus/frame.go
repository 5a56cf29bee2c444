package bus

import (
	"encoding/hex"
	"fmt"
	"time"
)

// FrameSize is the classical CAN payload size. Outbound frames are always padded to it.
const FrameSize = 8

// EchoChannelFlag marks a frame that the local adapter transmitted itself.
const EchoChannelFlag uint8 = 0x80

// Identifier limits.
const (
	MaxStandardID = 0x7FF
	MaxExtendedID = 0x1FFFFFFF
)

// Frame is a single CAN frame. Frames are treated as immutable once constructed.
type Frame struct {
	// Address is the 11-bit or 29-bit arbitration identifier.
	Address uint32
	// Extended reports a 29-bit identifier.
	Extended bool
	// Data holds 0..8 payload bytes.
	Data []byte
	// Timestamp is the receive time; zero for outbound frames.
	Timestamp time.Time
	// Channel is the adapter channel index.
	Channel uint8
}

// NewFrame creates an outbound frame on channel, padding data to FrameSize with pad.
// Data longer than FrameSize is truncated. Addresses above MaxStandardID are extended.
func NewFrame(addr uint32, data []byte, pad byte, channel uint8) Frame {
	buf := make([]byte, FrameSize)
	n := copy(buf, data)
	for i := n; i < FrameSize; i++ {
		buf[i] = pad
	}

	return Frame{
		Address:  addr,
		Extended: addr > MaxStandardID,
		Data:     buf,
		Channel:  channel,
	}
}

// IsEcho reports whether the frame is the adapter's echo of its own transmission.
func (f Frame) IsEcho() bool {
	return f.Channel&EchoChannelFlag != 0
}

// Validate returns an error if the identifier or payload length is out of range.
func (f Frame) Validate() error {
	if len(f.Data) > FrameSize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(f.Data))
	}

	limit := uint32(MaxStandardID)
	if f.Extended {
		limit = MaxExtendedID
	}
	if f.Address > limit {
		return fmt.Errorf("%w: 0x%X", ErrInvalidID, f.Address)
	}

	return nil
}

// String formats the frame in candump style, e.g. "7E8#04410c1af8000000".
func (f Frame) String() string {
	if f.Extended {
		return fmt.Sprintf("%08X#%s", f.Address, hex.EncodeToString(f.Data))
	}

	return fmt.Sprintf("%03X#%s", f.Address, hex.EncodeToString(f.Data))
}
