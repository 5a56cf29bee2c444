package obd

import (
	"bytes"
	"encoding/binary"
	"slices"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-obdsim/isotp"
)

// Key identifies a response by service mode and parameter id.
type Key struct {
	Mode byte
	PID  byte
}

// ResponseFunc builds the payload of a built-in response.
type ResponseFunc func() []byte

// fixed returns a ResponseFunc that always yields a copy of b.
func fixed(b ...byte) ResponseFunc {
	return func() []byte { return slices.Clone(b) }
}

var fillMarker = []byte{0xAA, 0xAA, 0xAA}

// counterRecord is the marker followed by n blocks of marker plus a big-endian counter.
func counterRecord(n int, trailer ...byte) ResponseFunc {
	return func() []byte {
		buf := make([]byte, 0, len(fillMarker)*(n+1)+4*n+len(trailer))
		buf = append(buf, fillMarker...)
		for i := 0; i < n; i++ {
			buf = append(buf, fillMarker...)
			buf = binary.BigEndian.AppendUint32(buf, uint32(i))
		}

		return append(buf, trailer...)
	}
}

var builtin = map[Key]ResponseFunc{
	{ModeCurrentData, PIDSupported01To20}:     fixed(0xFF, 0xFF, 0xFF, 0xFE),
	{ModeCurrentData, PIDMonitorStatus}:       fixed(0x00, 0x00, 0x00, 0x00),
	{ModeCurrentData, PIDEngineLoad}:          fixed(0x2F),
	{ModeCurrentData, PIDCoolantTemp}:         fixed(0x3C),
	{ModeCurrentData, PIDIntakeManifoldPress}: fixed(0x90),
	{ModeCurrentData, PIDEngineRPM}:           fixed(0x1A, 0xF8),
	{ModeCurrentData, PIDVehicleSpeed}:        fixed(0x53),
	{ModeCurrentData, PIDMAFAirFlowRate}:      fixed(0x01, 0xA0),
	{ModeCurrentData, PIDThrottlePosition}:    fixed(0x90),
	{ModeCurrentData, PIDAbsBarometricPress}:  fixed(0x90),

	{ModeVehicleInfo, PIDVIN}:         fixed([]byte(VIN)...),
	{ModeVehicleInfo, PIDCounterLong}: counterRecord(80),
	{ModeVehicleInfo, PIDCounterMax}:  counterRecord(584, 0xAA),
	{ModeVehicleInfo, PIDFillMax}:     func() []byte { return bytes.Repeat([]byte{0xAA}, isotp.MaxPayloadSize) },
}

// Table resolves queries to response payloads. The built-in entries are fixed; overrides
// installed with Set take precedence until Reset. It is safe for concurrent use.
type Table struct {
	overrides *xsync.MapOf[Key, []byte]
}

// NewTable returns a Table serving the built-in responses.
func NewTable() *Table {
	return &Table{overrides: xsync.NewMapOf[Key, []byte]()}
}

// Lookup returns the payload for mode and pid. ok is false for unknown pairs and for
// entries whose payload is empty. The returned slice is owned by the caller.
func (t *Table) Lookup(mode, pid byte) (payload []byte, ok bool) {
	key := Key{Mode: mode, PID: pid}

	if b, found := t.overrides.Load(key); found {
		payload = slices.Clone(b)
	} else if fn, found := builtin[key]; found {
		payload = fn()
	}

	if len(payload) == 0 {
		return nil, false
	}

	return payload, true
}

// Set overrides the payload for mode and pid. Payloads longer than isotp.MaxPayloadSize are
// truncated. An empty payload hides the pair from Lookup.
func (t *Table) Set(mode, pid byte, payload []byte) {
	if len(payload) > isotp.MaxPayloadSize {
		payload = payload[:isotp.MaxPayloadSize]
	}
	t.overrides.Store(Key{Mode: mode, PID: pid}, slices.Clone(payload))
}

// Reset removes the override for mode and pid, restoring the built-in entry if any.
// It reports whether an override was present.
func (t *Table) Reset(mode, pid byte) bool {
	_, ok := t.overrides.LoadAndDelete(Key{Mode: mode, PID: pid})
	return ok
}

// Keys returns every pair Lookup currently answers, ordered by mode then pid.
func (t *Table) Keys() []Key {
	seen := make(map[Key]struct{}, len(builtin))
	for k := range builtin {
		seen[k] = struct{}{}
	}
	t.overrides.Range(func(k Key, v []byte) bool {
		if len(v) == 0 {
			delete(seen, k)
		} else {
			seen[k] = struct{}{}
		}
		return true
	})

	keys := make([]Key, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b Key) int {
		if a.Mode != b.Mode {
			return int(a.Mode) - int(b.Mode)
		}
		return int(a.PID) - int(b.PID)
	})

	return keys
}
