// Package isotp implements the transmit side of an ISO 15765-2 (ISO-TP) style transport
// for a simulated OBD-II ECU.
//
// # Frame Types
//
// The upper nibble of the first payload byte (the PCI) selects the frame type:
//
//   - 0x0 Single Frame: low nibble carries the length of the data that follows.
//   - 0x1 First Frame: 12-bit total length across PCI bytes 0 and 1.
//   - 0x2 Consecutive Frame: low nibble is a sequence number, 1..15 then 1 again.
//   - 0x3 Flow Control: low nibble is the flow status (continue, wait, overflow).
//
// # Responses
//
// A response carries a 2-byte application header (0x40|mode, pid) in front of the payload.
// [Encode] emits a Single Frame when header and payload fit in one frame and otherwise a
// First Frame plus a [Transmission] holding the bytes for the Consecutive Frames. The
// Consecutive Frames are only released when the tester sends Flow Control "continue to send".
//
// # Addressing
//
// [Filter] accepts the OBD-II functional and physical request identifiers of the 11-bit
// and 29-bit (normal fixed) addressing families. Either family can be switched off at run time.
//
// # Sessions
//
// A [Tracker] holds the pending transmissions between the First Frame and the Flow Control.
// [NewSingleSlotTracker] keeps one transmission for the whole bus; [NewSessionTracker]
// keeps one per reply address and expires sessions the tester abandoned.
package isotp
