package obd

// Service modes.
const (
	ModeCurrentData byte = 0x01
	ModeVehicleInfo byte = 0x09
)

// Mode 0x01 parameter ids.
const (
	PIDSupported01To20     byte = 0x00
	PIDMonitorStatus       byte = 0x01
	PIDEngineLoad          byte = 0x04
	PIDCoolantTemp         byte = 0x05
	PIDIntakeManifoldPress byte = 0x0B
	PIDEngineRPM           byte = 0x0C
	PIDVehicleSpeed        byte = 0x0D
	PIDMAFAirFlowRate      byte = 0x10
	PIDThrottlePosition    byte = 0x11
	PIDAbsBarometricPress  byte = 0x33
)

// Mode 0x09 parameter ids. 0xFD to 0xFF are test records, not J1979 items.
const (
	PIDVIN         byte = 0x02
	PIDCounterLong byte = 0xFD
	PIDCounterMax  byte = 0xFE
	PIDFillMax     byte = 0xFF
)

// VIN is the vehicle identification number reported for mode 0x09 pid 0x02.
const VIN = "1D4GP00R55B123456"
