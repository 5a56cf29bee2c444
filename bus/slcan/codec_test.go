package slcan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-obdsim/bus"
)

func TestEncodeFrame(t *testing.T) {
	line, err := EncodeFrame(bus.NewFrame(0x7E8, []byte{0x04, 0x41, 0x0C, 0x1A, 0xF8}, 0x00, 0))
	require.NoError(t, err)
	assert.Equal(t, "t7E8804410C1AF8000000\r", line)

	line, err = EncodeFrame(bus.Frame{Address: 0x18DAF110, Extended: true, Data: []byte{0x21, 0xAA}})
	require.NoError(t, err)
	assert.Equal(t, "T18DAF110221AA\r", line)

	line, err = EncodeFrame(bus.Frame{Address: 0x123})
	require.NoError(t, err)
	assert.Equal(t, "t1230\r", line)

	_, err = EncodeFrame(bus.Frame{Address: 0x800, Data: []byte{0x01}})
	require.ErrorIs(t, err, bus.ErrInvalidID)
	_, err = EncodeFrame(bus.Frame{Address: 0x7E8, Data: make([]byte, 9)})
	require.ErrorIs(t, err, bus.ErrInvalidLength)
}

func TestDecodeFrame(t *testing.T) {
	f, err := DecodeFrame("t7DF802010C0000000000")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x7DF), f.Address)
	assert.False(t, f.Extended)
	assert.Equal(t, []byte{0x02, 0x01, 0x0C, 0, 0, 0, 0, 0}, f.Data)

	f, err = DecodeFrame("T18DB33F18020902AAAAAAAAAA")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x18DB33F1), f.Address)
	assert.True(t, f.Extended)
	assert.Equal(t, []byte{0x02, 0x09, 0x02, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}, f.Data)

	// trailing timestamp
	f, err = DecodeFrame("t7E03300000EA60")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x30, 0x00, 0x00}, f.Data)

	f, err = DecodeFrame("r7E08")
	require.NoError(t, err)
	assert.Empty(t, f.Data)
}

func TestDecodeFrame_Malformed(t *testing.T) {
	lines := []string{
		"",
		"x7DF0",
		"t7D",
		"tXYZ0",
		"t7DF9",
		"t7DF202",
		"t7DF10G",
		"t7DF101FF",
		"T3FFFFFFF0",
	}

	for _, line := range lines {
		_, err := DecodeFrame(line)
		assert.Error(t, err, "%q", line)
	}
}

func TestEncodeDecode(t *testing.T) {
	frames := []bus.Frame{
		bus.NewFrame(0x7E8, []byte{0x10, 0x14, 0x49, 0x02, 0x01, '1', 'D', '4'}, 0x00, 0),
		bus.NewFrame(0x18DAF110, []byte{0x2F}, 0xCC, 0),
	}

	for _, f := range frames {
		line, err := EncodeFrame(f)
		require.NoError(t, err)

		got, err := DecodeFrame(line[:len(line)-1])
		require.NoError(t, err)
		assert.Equal(t, f.Address, got.Address)
		assert.Equal(t, f.Extended, got.Extended)
		assert.Equal(t, f.Data, got.Data)
	}
}

func TestBitrateCommand(t *testing.T) {
	cmd, err := bitrateCommand(500)
	require.NoError(t, err)
	assert.Equal(t, "S6", cmd)

	cmd, err = bitrateCommand(10)
	require.NoError(t, err)
	assert.Equal(t, "S0", cmd)

	cmd, err = bitrateCommand(1000)
	require.NoError(t, err)
	assert.Equal(t, "S8", cmd)

	_, err = bitrateCommand(333)
	require.Error(t, err)
}
