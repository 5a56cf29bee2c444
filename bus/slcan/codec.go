package slcan

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-obdsim/bus"
)

// ErrMalformed is returned for lines that are not valid SLCAN frames.
var ErrMalformed = errors.New("slcan: malformed frame")

// bitrateCodes maps kbit/s to the Sn setup command digit.
var bitrateCodes = map[int]byte{
	10:   '0',
	20:   '1',
	50:   '2',
	100:  '3',
	125:  '4',
	250:  '5',
	500:  '6',
	800:  '7',
	1000: '8',
}

// bitrateCommand returns the setup command for kbps, e.g. "S6" for 500 kbit/s.
func bitrateCommand(kbps int) (string, error) {
	code, ok := bitrateCodes[kbps]
	if !ok {
		return "", fmt.Errorf("slcan: unsupported bitrate %d kbit/s", kbps)
	}

	return "S" + string(code), nil
}

// EncodeFrame renders f as an SLCAN transmit command terminated by '\r'.
// Standard frames use "tIIIL..." and extended frames "TIIIIIIIIL...".
func EncodeFrame(f bus.Frame) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}

	var sb strings.Builder
	if f.Extended {
		sb.WriteByte('T')
		fmt.Fprintf(&sb, "%08X", f.Address&bus.MaxExtendedID)
	} else {
		sb.WriteByte('t')
		fmt.Fprintf(&sb, "%03X", f.Address&bus.MaxStandardID)
	}

	sb.WriteByte('0' + byte(len(f.Data)))
	for _, b := range f.Data {
		fmt.Fprintf(&sb, "%02X", b)
	}
	sb.WriteByte('\r')

	return sb.String(), nil
}

// DecodeFrame parses a received frame line without its '\r' terminator. A trailing
// 4-digit timestamp, as sent with the Z1 option, is accepted and ignored.
// Remote frames are reported with empty data.
func DecodeFrame(line string) (bus.Frame, error) {
	if len(line) == 0 {
		return bus.Frame{}, ErrMalformed
	}

	var idLen int
	var extended, remote bool
	switch line[0] {
	case 't':
		idLen = 3
	case 'T':
		idLen, extended = 8, true
	case 'r':
		idLen, remote = 3, true
	case 'R':
		idLen, extended, remote = 8, true, true
	default:
		return bus.Frame{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, line[0])
	}

	if len(line) < 1+idLen+1 {
		return bus.Frame{}, fmt.Errorf("%w: %q too short", ErrMalformed, line)
	}

	id, err := strconv.ParseUint(line[1:1+idLen], 16, 32)
	if err != nil {
		return bus.Frame{}, fmt.Errorf("%w: identifier in %q", ErrMalformed, line)
	}

	dlc := int(line[1+idLen] - '0')
	if dlc > bus.FrameSize {
		return bus.Frame{}, fmt.Errorf("%w: length in %q", ErrMalformed, line)
	}

	f := bus.Frame{Address: uint32(id), Extended: extended, Data: []byte{}}

	rest := line[2+idLen:]
	if !remote {
		if len(rest) < 2*dlc {
			return bus.Frame{}, fmt.Errorf("%w: %q shorter than length %d", ErrMalformed, line, dlc)
		}
		f.Data = make([]byte, dlc)
		for i := 0; i < dlc; i++ {
			b, err := strconv.ParseUint(rest[2*i:2*i+2], 16, 8)
			if err != nil {
				return bus.Frame{}, fmt.Errorf("%w: data in %q", ErrMalformed, line)
			}
			f.Data[i] = byte(b)
		}
		rest = rest[2*dlc:]
	}

	if n := len(rest); n != 0 && n != 4 {
		return bus.Frame{}, fmt.Errorf("%w: trailing %q", ErrMalformed, rest)
	}

	if err := f.Validate(); err != nil {
		return bus.Frame{}, err
	}

	return f, nil
}
