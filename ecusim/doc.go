// Package ecusim simulates an OBD-II engine control unit on a CAN bus.
//
// A Simulator reads frames from a bus.Bus, keeps the ones addressed to the ECU, and
// answers mode/pid queries from an obd.Table. Responses longer than one frame are sent
// as an ISO 15765-2 First Frame; the remaining Consecutive Frames follow once the tester
// sends Flow Control. Pending transmissions are tracked per tester by default.
//
// The control methods (SetEnable, SetAddressing, ChangeBitrate, AddNoise, SetResponse and
// friends) are safe to call from any goroutine while the simulator runs.
//
// Usage Example:
//
//	b, err := socketcan.Open(ctx, "can0")
//	// ... handle error ...
//	sim, err := ecusim.New(b,
//	    ecusim.WithBitrate(500),
//	    ecusim.WithAddressing(isotp.Addressing11Bit),
//	)
//	// ... handle error ...
//	if err := sim.Start(); err != nil {
//	    // ... handle error ...
//	}
//	sim.AddNoise([]byte{0x02, 0x41, 0x00})
//
//	// later
//	sim.Stop()
//	err = sim.Wait() // nil, or an error wrapping ErrAdapter
package ecusim
