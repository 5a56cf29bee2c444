package isotp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_ShortForm(t *testing.T) {
	f := NewFilter(Addressing11Bit)

	assert.True(t, f.Matches(FunctionalAddr11))
	for addr := uint32(0x7E0); addr <= 0x7E7; addr++ {
		assert.True(t, f.Matches(addr), "physical 0x%X", addr)
	}

	assert.False(t, f.Matches(0x7E8), "own reply address")
	assert.False(t, f.Matches(0x7D8))
	assert.False(t, f.Matches(0x123))
	assert.False(t, f.Matches(FunctionalAddr29), "29-bit disabled")
}

func TestFilter_ExtendedOnly(t *testing.T) {
	f := NewFilter(Addressing29Bit)

	assert.False(t, f.Matches(FunctionalAddr11))
	for addr := uint32(0x7E0); addr <= 0x7E7; addr++ {
		assert.False(t, f.Matches(addr), "physical 0x%X", addr)
	}

	assert.True(t, f.Matches(FunctionalAddr29))
	assert.True(t, f.Matches(0x18DA10F1))
	assert.True(t, f.Matches(0x18DA00F1))
	assert.True(t, f.Matches(0x18DAFFF1), "target byte is unconstrained")
	assert.False(t, f.Matches(0x18DA10F2), "tester source address must be 0xF1")
	assert.False(t, f.Matches(ReplyAddr29))
}

func TestFilter_Both(t *testing.T) {
	f := NewFilter(AddressingBoth)

	assert.True(t, f.Matches(0x7DF))
	assert.True(t, f.Matches(0x7E3))
	assert.True(t, f.Matches(0x18DB33F1))
	assert.True(t, f.Matches(0x18DA10F1))
}

func TestFilter_Reconfigure(t *testing.T) {
	f := NewFilter(AddressingBoth)
	assert.True(t, f.Matches(0x7DF))

	f.SetMode(Addressing29Bit)
	assert.Equal(t, Addressing29Bit, f.Mode())
	assert.False(t, f.Matches(0x7DF))

	f.SetMode(0)
	assert.False(t, f.Matches(0x18DB33F1))
	assert.Equal(t, "none", f.Mode().String())
}

func TestParseAddressingWidth(t *testing.T) {
	tests := []struct {
		width int
		want  AddressingMode
	}{
		{0, AddressingBoth},
		{11, Addressing11Bit},
		{29, Addressing29Bit},
	}
	for _, tt := range tests {
		got, err := ParseAddressingWidth(tt.width)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseAddressingWidth(16)
	require.ErrorIs(t, err, ErrInvalidAddressingWidth)
}

func TestAddressingMode_String(t *testing.T) {
	assert.Equal(t, "11bit", Addressing11Bit.String())
	assert.Equal(t, "29bit", Addressing29Bit.String())
	assert.Equal(t, "11bit+29bit", AddressingBoth.String())
}

func TestReplyAddress(t *testing.T) {
	assert.Equal(t, ReplyAddr11, ReplyAddress(0x7DF))
	assert.Equal(t, ReplyAddr11, ReplyAddress(0x7E0))
	assert.Equal(t, ReplyAddr11, ReplyAddress(0x7E5))
	assert.Equal(t, ReplyAddr29, ReplyAddress(0x18DB33F1))
	assert.Equal(t, ReplyAddr29, ReplyAddress(0x18DA10F1))

	assert.True(t, IsFunctional(0x7DF))
	assert.True(t, IsFunctional(0x18DB33F1))
	assert.False(t, IsFunctional(0x7E0))
}
