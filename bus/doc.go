// Package bus defines the CAN bus collaborator consumed by the simulator.
//
// The simulator core never opens devices or sets bus timing itself. It talks to a [Bus]
// which delivers batches of received [Frame] values and transmits fixed-size frames.
// Concrete adapters live in sub-packages:
//
//   - [github.com/arloliu/go-obdsim/bus/socketcan] for Linux SocketCAN interfaces (vcan0, can0).
//   - [github.com/arloliu/go-obdsim/bus/slcan] for serial-line (Lawicel) CAN adapters.
//
// [Loopback] is an in-memory Bus used by tests and by the "loopback" CLI adapter.
//
// # Channels
//
// Every frame carries the index of the bus channel it was seen on. Adapters that echo
// transmitted frames back to the receiver report them on channel|[EchoChannelFlag], so the
// simulator never answers its own replies.
package bus
