package isotp

// Protocol control information, upper nibble of the first payload byte.
const (
	pciSingleFrame      byte = 0x00
	pciFirstFrame       byte = 0x10
	pciConsecutiveFrame byte = 0x20
	pciFlowControl      byte = 0x30

	pciTypeMask byte = 0xF0
)

// FlowStatus is the low nibble of a Flow Control frame.
type FlowStatus byte

const (
	FlowContinue FlowStatus = 0x0
	FlowWait     FlowStatus = 0x1
	FlowOverflow FlowStatus = 0x2
)

func (s FlowStatus) String() string {
	switch s {
	case FlowContinue:
		return "continue"
	case FlowWait:
		return "wait"
	case FlowOverflow:
		return "overflow"
	default:
		return "reserved"
	}
}

// Frame geometry for classical CAN with normal addressing.
const (
	// FrameSize is the number of payload bytes in one CAN frame.
	FrameSize = 8
	// MaxFirstFrameLength is the largest value of the 12-bit First Frame length field.
	MaxFirstFrameLength = 0xFFF
	// MaxPayloadSize is the largest response payload: the length field minus the
	// 3 header bytes (mode, pid, item count) of a First Frame response.
	MaxPayloadSize = MaxFirstFrameLength - 3
	// MaxSingleFramePayload is the largest payload answered with a Single Frame.
	MaxSingleFramePayload = 5

	consecutiveDataSize = FrameSize - 1
	firstFrameDataSize  = 3
)

// PositiveResponseFlag is OR'ed into the request mode to form the response mode byte.
const PositiveResponseFlag byte = 0x40

// Query is an OBD-II request: the request identifier plus mode and parameter id.
type Query struct {
	Address uint32
	Mode    byte
	PID     byte
}

// ParseQuery extracts a Query from a request frame [length, mode, pid, ...].
// ok is false if data is shorter than three bytes.
func ParseQuery(addr uint32, data []byte) (q Query, ok bool) {
	if len(data) < 3 {
		return Query{}, false
	}

	return Query{Address: addr, Mode: data[1], PID: data[2]}, true
}

// ParseFlowControl reports whether data is a Flow Control frame and returns its status.
func ParseFlowControl(data []byte) (status FlowStatus, ok bool) {
	if len(data) == 0 || data[0]&pciTypeMask != pciFlowControl {
		return 0, false
	}

	return FlowStatus(data[0] &^ pciTypeMask), true
}

// IsContinueToSend reports whether data is a Flow Control "continue to send" frame.
func IsContinueToSend(data []byte) bool {
	status, ok := ParseFlowControl(data)
	return ok && status == FlowContinue
}

// SequenceNumber returns the sequence number of a Consecutive Frame.
// ok is false if data is not a Consecutive Frame.
func SequenceNumber(data []byte) (seq byte, ok bool) {
	if len(data) == 0 || data[0]&pciTypeMask != pciConsecutiveFrame {
		return 0, false
	}

	return data[0] &^ pciTypeMask, true
}

// FirstFrameLength returns the 12-bit length of a First Frame.
// ok is false if data is not a First Frame.
func FirstFrameLength(data []byte) (length int, ok bool) {
	if len(data) < 2 || data[0]&pciTypeMask != pciFirstFrame {
		return 0, false
	}

	return int(data[0]&0x0F)<<8 | int(data[1]), true
}

// nextSequence advances a Consecutive Frame sequence number, wrapping 15 to 1.
func nextSequence(seq byte) byte {
	seq++
	if seq > 0x0F {
		seq = 1
	}

	return seq
}
