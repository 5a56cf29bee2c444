package isotp

import (
	"fmt"
	"time"
)

// itemCountByte follows mode and pid in a First Frame response. It is the
// number-of-data-items byte of vehicle information responses.
const itemCountByte byte = 0x01

// Encode builds the frames for a positive response to q carrying payload.
//
// When the payload fits a Single Frame (at most MaxSingleFramePayload bytes), first is the
// complete frame and rest is nil. Otherwise first is a First Frame and rest holds the bytes
// that still have to go out as Consecutive Frames once the tester sends Flow Control.
//
// The First Frame carries min(3, len(payload)%7) payload bytes so that every Consecutive
// Frame but the last is full. Returned frames are not padded.
func Encode(q Query, payload []byte) (first []byte, rest *Transmission, err error) {
	mode := PositiveResponseFlag | q.Mode

	if len(payload) <= MaxSingleFramePayload {
		first = make([]byte, 0, 3+len(payload))
		first = append(first, pciSingleFrame|byte(len(payload)+2), mode, q.PID)
		first = append(first, payload...)

		return first, nil, nil
	}

	if len(payload) > MaxPayloadSize {
		return nil, nil, fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}

	total := len(payload) + 3
	n := min(firstFrameDataSize, len(payload)%consecutiveDataSize)

	first = make([]byte, 0, FrameSize)
	first = append(first,
		pciFirstFrame|byte(total>>8&0x0F),
		byte(total),
		mode,
		q.PID,
		itemCountByte,
	)
	first = append(first, payload[:n]...)

	return first, newTransmission(ReplyAddress(q.Address), payload[n:]), nil
}

// Transmission is the unsent remainder of a multi-frame response.
//
// It is not safe for concurrent use; a Transmission is owned by one goroutine at a time.
type Transmission struct {
	replyAddr uint32
	remaining []byte
	seq       byte
	created   time.Time
}

func newTransmission(replyAddr uint32, data []byte) *Transmission {
	buf := make([]byte, len(data))
	copy(buf, data)

	return &Transmission{
		replyAddr: replyAddr,
		remaining: buf,
		seq:       1,
		created:   time.Now(),
	}
}

// ReplyAddress returns the identifier the Consecutive Frames are sent on.
func (t *Transmission) ReplyAddress() uint32 { return t.replyAddr }

// Remaining returns the number of bytes not yet handed out by Next.
func (t *Transmission) Remaining() int { return len(t.remaining) }

// Done reports whether every byte has been handed out.
func (t *Transmission) Done() bool { return len(t.remaining) == 0 }

// Created returns when the First Frame was encoded.
func (t *Transmission) Created() time.Time { return t.created }

// NextSequence returns the sequence number of the next Consecutive Frame.
func (t *Transmission) NextSequence() byte { return t.seq }

// Next returns the next Consecutive Frame, 0x20|seq followed by up to 7 bytes.
// ok is false once the transmission is done.
func (t *Transmission) Next() (frame []byte, ok bool) {
	if t.Done() {
		return nil, false
	}

	n := min(consecutiveDataSize, len(t.remaining))
	frame = make([]byte, 0, 1+n)
	frame = append(frame, pciConsecutiveFrame|t.seq)
	frame = append(frame, t.remaining[:n]...)

	t.remaining = t.remaining[n:]
	t.seq = nextSequence(t.seq)

	return frame, true
}

// FrameCount returns how many Consecutive Frames are left.
func (t *Transmission) FrameCount() int {
	return (len(t.remaining) + consecutiveDataSize - 1) / consecutiveDataSize
}
