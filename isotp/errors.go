package isotp

import "errors"

var (
	// ErrPayloadTooLarge is returned when a payload does not fit the 12-bit First Frame length.
	ErrPayloadTooLarge = errors.New("isotp: payload exceeds first frame length field")
	// ErrNoPending indicates a flow control frame arrived with no transmission in progress.
	ErrNoPending = errors.New("isotp: no pending transmission")
	// ErrInvalidAddressingWidth is returned for addressing widths other than 0, 11 and 29.
	ErrInvalidAddressingWidth = errors.New("isotp: invalid addressing width")
)
