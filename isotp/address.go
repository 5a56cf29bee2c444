package isotp

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// OBD-II request and response identifiers.
const (
	// FunctionalAddr11 is the 11-bit broadcast request identifier.
	FunctionalAddr11 uint32 = 0x7DF
	// PhysicalBase11 is the first of the eight 11-bit physical request identifiers.
	PhysicalBase11 uint32 = 0x7E0
	// PhysicalMask11 selects the bits shared by 0x7E0..0x7E7.
	PhysicalMask11 uint32 = 0x7F8
	// ReplyAddr11 is the 11-bit response identifier of the simulated ECU.
	ReplyAddr11 uint32 = 0x7E8

	// FunctionalAddr29 is the 29-bit broadcast request identifier (18DB33F1).
	FunctionalAddr29 uint32 = 0x18DB33F1
	// PhysicalPattern29 is the 29-bit physical request pattern, tester source address 0xF1.
	PhysicalPattern29 uint32 = 0x18DA00F1
	// PhysicalMask29 leaves the target address byte unconstrained and pins the low byte,
	// the tester source address, to 0xF1. Requests from other tester addresses are ignored
	// even though the ISO 15765-4 physical format does not restrict that byte.
	PhysicalMask29 uint32 = 0x1FFF00FF
	// ReplyAddr29 is the 29-bit response identifier: target 0xF1, source 0x10.
	ReplyAddr29 uint32 = 0x18DAF110

	maxStandardID uint32 = 0x7FF
)

// AddressingMode is the set of identifier families the ECU answers.
type AddressingMode uint32

const (
	// Addressing11Bit accepts 11-bit functional and physical requests.
	Addressing11Bit AddressingMode = 1 << iota
	// Addressing29Bit accepts 29-bit functional and physical requests.
	Addressing29Bit

	// AddressingBoth accepts both families.
	AddressingBoth = Addressing11Bit | Addressing29Bit
)

// Has reports whether every family of other is enabled in m.
func (m AddressingMode) Has(other AddressingMode) bool {
	return m&other == other
}

func (m AddressingMode) String() string {
	var parts []string
	if m.Has(Addressing11Bit) {
		parts = append(parts, "11bit")
	}
	if m.Has(Addressing29Bit) {
		parts = append(parts, "29bit")
	}
	if len(parts) == 0 {
		return "none"
	}

	return strings.Join(parts, "+")
}

// ParseAddressingWidth maps the bit-width selector to a mode: 0 means both families,
// 11 short-form only, 29 extended-form only.
func ParseAddressingWidth(width int) (AddressingMode, error) {
	switch width {
	case 0:
		return AddressingBoth, nil
	case 11:
		return Addressing11Bit, nil
	case 29:
		return Addressing29Bit, nil
	default:
		return 0, fmt.Errorf("%w: %d (want 0, 11 or 29)", ErrInvalidAddressingWidth, width)
	}
}

// Filter decides whether a request identifier is addressed to the simulated ECU.
// The enabled families may be changed concurrently with Matches.
type Filter struct {
	mode atomic.Uint32
}

// NewFilter creates a Filter accepting the families in mode.
func NewFilter(mode AddressingMode) *Filter {
	f := &Filter{}
	f.SetMode(mode)

	return f
}

// SetMode replaces the accepted families.
func (f *Filter) SetMode(mode AddressingMode) {
	f.mode.Store(uint32(mode))
}

// Mode returns the accepted families.
func (f *Filter) Mode() AddressingMode {
	return AddressingMode(f.mode.Load())
}

// Matches reports whether addr is a functional or physical request for this ECU
// in one of the enabled families.
func (f *Filter) Matches(addr uint32) bool {
	mode := f.Mode()
	if mode.Has(Addressing11Bit) && (addr == FunctionalAddr11 || addr&PhysicalMask11 == PhysicalBase11) {
		return true
	}
	if mode.Has(Addressing29Bit) && (addr == FunctionalAddr29 || addr&PhysicalMask29 == PhysicalPattern29) {
		return true
	}

	return false
}

// IsFunctional reports whether addr is one of the broadcast request identifiers.
func IsFunctional(addr uint32) bool {
	return addr == FunctionalAddr11 || addr == FunctionalAddr29
}

// ReplyAddress returns the identifier the ECU answers a request from addr on.
// Functional and physical requests of one family share the reply identifier.
func ReplyAddress(addr uint32) uint32 {
	if addr <= maxStandardID {
		return ReplyAddr11
	}

	return ReplyAddr29
}
