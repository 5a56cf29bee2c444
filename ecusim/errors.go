package ecusim

import "errors"

var (
	// ErrAdapter wraps a bus failure that stopped the simulator.
	ErrAdapter = errors.New("ecusim: adapter failure")
	// ErrAlreadyStarted is returned by Start when the simulator is running.
	ErrAlreadyStarted = errors.New("ecusim: already started")
	// ErrPanic wraps a panic recovered in the receive loop.
	ErrPanic = errors.New("ecusim: receive loop panic")
	// ErrNilBus is returned by New without a bus.
	ErrNilBus = errors.New("ecusim: bus is nil")
)
