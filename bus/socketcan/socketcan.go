// Package socketcan adapts a Linux SocketCAN interface to bus.Bus.
//
// The kernel owns the bus speed and controller mode ("ip link set can0 type can bitrate
// 500000"), so SetBitrate reports bus.ErrUnsupported and SetMode only records the mode.
// Raw sockets do not receive their own transmissions, so no echo frames are produced.
package socketcan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.einride.tech/can"
	esocketcan "go.einride.tech/can/pkg/socketcan"

	"github.com/arloliu/go-obdsim/bus"
)

const (
	// DefaultPoll is how long Receive waits for a first frame.
	DefaultPoll = 10 * time.Millisecond

	rxQueueSize = 1024
)

// frameSource is the receiving half of a CAN socket.
type frameSource interface {
	Receive() bool
	Frame() can.Frame
	HasErrorFrame() bool
	Err() error
}

// frameSink is the transmitting half of a CAN socket.
type frameSink interface {
	TransmitFrame(ctx context.Context, f can.Frame) error
}

// Bus is a bus.Bus on a SocketCAN interface.
type Bus struct {
	iface  string
	poll   time.Duration
	sink   frameSink
	closer io.Closer

	rx   chan bus.Frame
	done chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	rxErr     error
	mode      bus.Mode
}

var _ bus.Bus = (*Bus)(nil)

// Option configures a Bus.
type Option func(*Bus)

// WithPoll sets how long Receive waits when no frame is queued.
func WithPoll(d time.Duration) Option {
	return func(b *Bus) { b.poll = d }
}

// Open dials the SocketCAN interface iface, e.g. "can0" or "vcan0".
func Open(ctx context.Context, iface string, opts ...Option) (*Bus, error) {
	conn, err := esocketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan: dial %s: %w", iface, err)
	}

	b := newBus(iface, esocketcan.NewReceiver(conn), esocketcan.NewTransmitter(conn), conn, opts...)

	return b, nil
}

func newBus(iface string, src frameSource, sink frameSink, closer io.Closer, opts ...Option) *Bus {
	b := &Bus{
		iface:  iface,
		poll:   DefaultPoll,
		sink:   sink,
		closer: closer,
		rx:     make(chan bus.Frame, rxQueueSize),
		done:   make(chan struct{}),
		mode:   bus.ModeSilent,
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.readLoop(src)

	return b
}

// readLoop moves frames from the socket to the receive queue until the socket fails.
func (b *Bus) readLoop(src frameSource) {
	for src.Receive() {
		if src.HasErrorFrame() {
			continue
		}

		f := fromCAN(src.Frame())
		f.Timestamp = time.Now()

		select {
		case b.rx <- f:
		case <-b.done:
			return
		}
	}

	err := src.Err()
	if err == nil {
		err = io.EOF
	}

	b.mu.Lock()
	b.rxErr = err
	b.mu.Unlock()
	close(b.rx)
}

// Interface returns the interface name.
func (b *Bus) Interface() string { return b.iface }

// Receive implements bus.Bus.
func (b *Bus) Receive(ctx context.Context) ([]bus.Frame, error) {
	frames, err := bus.ReceiveBatch(ctx, b.rx, b.done, b.poll)
	if errors.Is(err, bus.ErrClosed) {
		return nil, b.readErr()
	}

	return frames, err
}

func (b *Bus) readErr() error {
	select {
	case <-b.done:
		return bus.ErrClosed
	default:
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return fmt.Errorf("socketcan: %s: %w", b.iface, b.rxErr)
}

// Send implements bus.Bus.
func (b *Bus) Send(ctx context.Context, f bus.Frame) error {
	select {
	case <-b.done:
		return bus.ErrClosed
	default:
	}

	cf, err := toCAN(f)
	if err != nil {
		return err
	}

	if err := b.sink.TransmitFrame(ctx, cf); err != nil {
		return fmt.Errorf("socketcan: %s: transmit: %w", b.iface, err)
	}

	return nil
}

// SetBitrate implements bus.Bus. The interface bitrate is configured by the kernel.
func (b *Bus) SetBitrate(int) error {
	return fmt.Errorf("%w: socketcan bitrate is set with ip link", bus.ErrUnsupported)
}

// SetMode implements bus.Bus. Raw sockets always transmit; the mode is only recorded.
func (b *Bus) SetMode(m bus.Mode) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mode = m

	return nil
}

// Mode returns the last configured mode.
func (b *Bus) Mode() bus.Mode {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.mode
}

// Close implements bus.Bus.
func (b *Bus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		if b.closer != nil {
			err = b.closer.Close()
		}
	})

	return err
}

func fromCAN(cf can.Frame) bus.Frame {
	n := int(cf.Length)
	if n > bus.FrameSize {
		n = bus.FrameSize
	}
	data := make([]byte, n)
	copy(data, cf.Data[:n])

	return bus.Frame{
		Address:  cf.ID,
		Extended: cf.IsExtended,
		Data:     data,
	}
}

func toCAN(f bus.Frame) (can.Frame, error) {
	if err := f.Validate(); err != nil {
		return can.Frame{}, err
	}

	cf := can.Frame{
		ID:         f.Address,
		Length:     uint8(len(f.Data)),
		IsExtended: f.Extended,
	}
	copy(cf.Data[:], f.Data)

	if err := cf.Validate(); err != nil {
		return can.Frame{}, errors.Join(bus.ErrInvalidID, err)
	}

	return cf, nil
}
