// Package obd holds the diagnostic responses served by the simulated ECU.
//
// A Table maps a (mode, pid) pair to the payload bytes that follow the response
// header. The built-in entries cover a small subset of SAE J1979 mode 0x01 (current
// data) and mode 0x09 (vehicle information), plus three oversized vehicle information
// records that exercise multi-frame transfer up to the 12-bit First Frame limit.
//
// Entries can be overridden at runtime:
//
//	tbl := obd.NewTable()
//	tbl.Set(obd.ModeCurrentData, obd.PIDEngineRPM, []byte{0x0F, 0xA0})
//	payload, ok := tbl.Lookup(obd.ModeCurrentData, obd.PIDEngineRPM)
//	tbl.Reset(obd.ModeCurrentData, obd.PIDEngineRPM)
package obd
