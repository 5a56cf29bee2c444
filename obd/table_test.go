package obd

import (
	"bytes"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-obdsim/isotp"
)

func TestTable_CurrentData(t *testing.T) {
	tbl := NewTable()

	tests := []struct {
		pid  byte
		want []byte
	}{
		{PIDSupported01To20, []byte{0xFF, 0xFF, 0xFF, 0xFE}},
		{PIDMonitorStatus, []byte{0x00, 0x00, 0x00, 0x00}},
		{PIDEngineLoad, []byte{0x2F}},
		{PIDCoolantTemp, []byte{0x3C}},
		{PIDIntakeManifoldPress, []byte{0x90}},
		{PIDEngineRPM, []byte{0x1A, 0xF8}},
		{PIDVehicleSpeed, []byte{0x53}},
		{PIDMAFAirFlowRate, []byte{0x01, 0xA0}},
		{PIDThrottlePosition, []byte{0x90}},
		{PIDAbsBarometricPress, []byte{0x90}},
	}

	for _, tt := range tests {
		got, ok := tbl.Lookup(ModeCurrentData, tt.pid)
		require.True(t, ok, "pid 0x%02X", tt.pid)
		assert.Equal(t, tt.want, got, "pid 0x%02X", tt.pid)
	}
}

func TestTable_VIN(t *testing.T) {
	got, ok := NewTable().Lookup(ModeVehicleInfo, PIDVIN)
	require.True(t, ok)
	assert.Equal(t, "1D4GP00R55B123456", string(got))
	assert.Len(t, got, 17)
}

func TestTable_CounterRecords(t *testing.T) {
	tbl := NewTable()

	long, ok := tbl.Lookup(ModeVehicleInfo, PIDCounterLong)
	require.True(t, ok)
	require.Len(t, long, 563)
	assert.Equal(t, []byte{0xAA, 0xAA, 0xAA}, long[:3])
	for i := 0; i < 80; i++ {
		block := long[3+i*7 : 3+(i+1)*7]
		assert.Equal(t, []byte{0xAA, 0xAA, 0xAA}, block[:3], "block %d", i)
		assert.Equal(t, uint32(i), binary.BigEndian.Uint32(block[3:]), "block %d", i)
	}

	maxRec, ok := tbl.Lookup(ModeVehicleInfo, PIDCounterMax)
	require.True(t, ok)
	require.Len(t, maxRec, isotp.MaxPayloadSize)
	assert.Equal(t, uint32(583), binary.BigEndian.Uint32(maxRec[3+583*7+3:]))
	assert.Equal(t, byte(0xAA), maxRec[len(maxRec)-1])

	fill, ok := tbl.Lookup(ModeVehicleInfo, PIDFillMax)
	require.True(t, ok)
	assert.Equal(t, bytes.Repeat([]byte{0xAA}, 4092), fill)
}

func TestTable_Unknown(t *testing.T) {
	tbl := NewTable()

	_, ok := tbl.Lookup(ModeCurrentData, 0x42)
	assert.False(t, ok)
	_, ok = tbl.Lookup(0x03, 0x00)
	assert.False(t, ok)
	_, ok = tbl.Lookup(ModeVehicleInfo, 0x0A)
	assert.False(t, ok)
}

func TestTable_NeverExceedsMaxPayload(t *testing.T) {
	tbl := NewTable()
	for _, k := range tbl.Keys() {
		payload, ok := tbl.Lookup(k.Mode, k.PID)
		require.True(t, ok)
		assert.LessOrEqual(t, len(payload), isotp.MaxPayloadSize, "%+v", k)
	}
}

func TestTable_LookupReturnsCopy(t *testing.T) {
	tbl := NewTable()

	got, _ := tbl.Lookup(ModeCurrentData, PIDEngineRPM)
	got[0] = 0x00

	again, _ := tbl.Lookup(ModeCurrentData, PIDEngineRPM)
	assert.Equal(t, []byte{0x1A, 0xF8}, again)
}

func TestTable_Override(t *testing.T) {
	tbl := NewTable()

	src := []byte{0x0F, 0xA0}
	tbl.Set(ModeCurrentData, PIDEngineRPM, src)
	src[0] = 0x00

	got, ok := tbl.Lookup(ModeCurrentData, PIDEngineRPM)
	require.True(t, ok)
	assert.Equal(t, []byte{0x0F, 0xA0}, got)

	assert.True(t, tbl.Reset(ModeCurrentData, PIDEngineRPM))
	assert.False(t, tbl.Reset(ModeCurrentData, PIDEngineRPM))

	got, ok = tbl.Lookup(ModeCurrentData, PIDEngineRPM)
	require.True(t, ok)
	assert.Equal(t, []byte{0x1A, 0xF8}, got)
}

func TestTable_OverrideNewAndHidden(t *testing.T) {
	tbl := NewTable()

	tbl.Set(ModeCurrentData, 0x2F, []byte{0x80})
	got, ok := tbl.Lookup(ModeCurrentData, 0x2F)
	require.True(t, ok)
	assert.Equal(t, []byte{0x80}, got)
	assert.Contains(t, tbl.Keys(), Key{Mode: ModeCurrentData, PID: 0x2F})

	tbl.Set(ModeCurrentData, PIDVehicleSpeed, nil)
	_, ok = tbl.Lookup(ModeCurrentData, PIDVehicleSpeed)
	assert.False(t, ok, "empty payload is absent")
	assert.NotContains(t, tbl.Keys(), Key{Mode: ModeCurrentData, PID: PIDVehicleSpeed})
}

func TestTable_OverrideTruncated(t *testing.T) {
	tbl := NewTable()
	tbl.Set(ModeVehicleInfo, 0x0A, make([]byte, isotp.MaxPayloadSize+100))

	got, ok := tbl.Lookup(ModeVehicleInfo, 0x0A)
	require.True(t, ok)
	assert.Len(t, got, isotp.MaxPayloadSize)
}

func TestTable_Keys(t *testing.T) {
	keys := NewTable().Keys()

	require.Len(t, keys, 14)
	assert.Equal(t, Key{Mode: ModeCurrentData, PID: PIDSupported01To20}, keys[0])
	assert.Equal(t, Key{Mode: ModeVehicleInfo, PID: PIDFillMax}, keys[len(keys)-1])
}

func TestTable_ConcurrentOverrides(t *testing.T) {
	tbl := NewTable()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(v byte) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				tbl.Set(ModeCurrentData, PIDCoolantTemp, []byte{v})
				_, _ = tbl.Lookup(ModeCurrentData, PIDCoolantTemp)
				tbl.Reset(ModeCurrentData, PIDCoolantTemp)
			}
		}(byte(i))
	}
	wg.Wait()

	got, ok := tbl.Lookup(ModeCurrentData, PIDCoolantTemp)
	require.True(t, ok)
	assert.Equal(t, []byte{0x3C}, got)
}
