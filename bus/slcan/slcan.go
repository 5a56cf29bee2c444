// Package slcan adapts a Lawicel compatible serial CAN interface (SLCAN) to bus.Bus.
//
// Commands are ASCII lines terminated by '\r': "Sn" selects the bitrate, "O" opens the
// channel for normal operation, "L" opens it listen-only and "C" closes it. Received frames
// arrive as "t"/"T" lines. Adapters acknowledge commands with '\r' and report errors
// with BEL; both are consumed silently.
package slcan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/arloliu/go-obdsim/bus"
)

const (
	// DefaultBaudRate is the serial speed used by most USB SLCAN adapters.
	DefaultBaudRate = 115200
	// DefaultPoll is how long Receive waits for a first frame.
	DefaultPoll = 10 * time.Millisecond

	readTimeout = 5 * time.Millisecond
	rxQueueSize = 1024
	maxLineSize = 64
)

// ErrNoPort is returned by FirstPort when no serial port is present.
var ErrNoPort = errors.New("slcan: no serial port found")

// Port is the serial line the adapter talks over. serial.Port satisfies it.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Bus is a bus.Bus on an SLCAN adapter.
type Bus struct {
	name string
	port Port
	poll time.Duration

	rx   chan bus.Frame
	done chan struct{}

	closeOnce sync.Once

	mu       sync.Mutex // serializes writes and protects the fields below
	bitrate  int
	mode     bus.Mode
	open     bool
	rxErr    error
	badLines uint64
}

var _ bus.Bus = (*Bus)(nil)

// Option configures a Bus.
type Option func(*options)

type options struct {
	baudRate int
	poll     time.Duration
}

// WithBaudRate sets the serial speed used by Open.
func WithBaudRate(baud int) Option {
	return func(o *options) { o.baudRate = baud }
}

// WithPoll sets how long Receive waits when no frame is queued.
func WithPoll(d time.Duration) Option {
	return func(o *options) { o.poll = d }
}

func buildOptions(opts []Option) options {
	o := options{baudRate: DefaultBaudRate, poll: DefaultPoll}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// Open opens the serial port name and resets the adapter to a closed channel.
func Open(name string, opts ...Option) (*Bus, error) {
	o := buildOptions(opts)

	p, err := serial.Open(name, &serial.Mode{
		BaudRate: o.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("slcan: open %s: %w", name, err)
	}

	b, err := New(name, p, opts...)
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	return b, nil
}

// New runs the SLCAN protocol over an already opened port.
func New(name string, p Port, opts ...Option) (*Bus, error) {
	o := buildOptions(opts)

	if err := p.SetReadTimeout(readTimeout); err != nil {
		return nil, fmt.Errorf("slcan: %s: set read timeout: %w", name, err)
	}

	b := &Bus{
		name:    name,
		port:    p,
		poll:    o.poll,
		rx:      make(chan bus.Frame, rxQueueSize),
		done:    make(chan struct{}),
		bitrate: bus.DefaultBitrate,
		mode:    bus.ModeSilent,
	}

	// flush a half typed command, then make sure the channel is closed
	if err := b.command(""); err != nil {
		return nil, err
	}
	if err := b.command("C"); err != nil {
		return nil, err
	}

	go b.readLoop()

	return b, nil
}

// FirstPort returns the alphabetically first serial port of the host.
func FirstPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("slcan: list ports: %w", err)
	}
	if len(ports) == 0 {
		return "", ErrNoPort
	}

	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.Name)
	}
	sort.Strings(names)

	return names[0], nil
}

// Name returns the serial port name.
func (b *Bus) Name() string { return b.name }

func (b *Bus) command(cmd string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.writeLocked(cmd + "\r")
}

func (b *Bus) writeLocked(s string) error {
	if _, err := io.WriteString(b.port, s); err != nil {
		return fmt.Errorf("slcan: %s: write: %w", b.name, err)
	}

	return nil
}

// readLoop splits the serial stream into lines and queues decoded frames.
func (b *Bus) readLoop() {
	buf := make([]byte, 256)
	line := make([]byte, 0, maxLineSize)

	for {
		n, err := b.port.Read(buf)
		select {
		case <-b.done:
			return
		default:
		}
		if err != nil {
			b.mu.Lock()
			b.rxErr = err
			b.mu.Unlock()
			close(b.rx)

			return
		}

		for _, c := range buf[:n] {
			switch c {
			case '\r', '\n':
				b.handleLine(line)
				line = line[:0]
			case '\a':
				// command rejected by the adapter
				line = line[:0]
			default:
				if len(line) < maxLineSize {
					line = append(line, c)
				}
			}
		}
	}
}

func (b *Bus) handleLine(line []byte) {
	if len(line) == 0 {
		return
	}
	switch line[0] {
	case 't', 'T', 'r', 'R':
	default:
		// z/Z transmit acks, version and status replies
		return
	}

	f, err := DecodeFrame(string(line))
	if err != nil {
		b.mu.Lock()
		b.badLines++
		b.mu.Unlock()

		return
	}
	f.Timestamp = time.Now()

	select {
	case b.rx <- f:
	case <-b.done:
	}
}

// MalformedLines returns how many received frame lines could not be decoded.
func (b *Bus) MalformedLines() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.badLines
}

// Receive implements bus.Bus.
func (b *Bus) Receive(ctx context.Context) ([]bus.Frame, error) {
	frames, err := bus.ReceiveBatch(ctx, b.rx, b.done, b.poll)
	if errors.Is(err, bus.ErrClosed) {
		select {
		case <-b.done:
			return nil, bus.ErrClosed
		default:
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		return nil, fmt.Errorf("slcan: %s: read: %w", b.name, b.rxErr)
	}

	return frames, err
}

// Send implements bus.Bus.
func (b *Bus) Send(_ context.Context, f bus.Frame) error {
	select {
	case <-b.done:
		return bus.ErrClosed
	default:
	}

	line, err := EncodeFrame(f)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.writeLocked(line)
}

// SetBitrate implements bus.Bus. The channel is closed while the bitrate changes and
// reopened in the current mode if it was open.
func (b *Bus) SetBitrate(kbps int) error {
	cmd, err := bitrateCommand(kbps)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open {
		if err := b.writeLocked("C\r"); err != nil {
			return err
		}
	}
	if err := b.writeLocked(cmd + "\r"); err != nil {
		return err
	}
	b.bitrate = kbps

	if b.open {
		return b.writeLocked(openCommand(b.mode) + "\r")
	}

	return nil
}

// SetMode implements bus.Bus. The channel is (re)opened listen-only for ModeSilent and
// normally for ModeAllOutput.
func (b *Bus) SetMode(m bus.Mode) error {
	if m != bus.ModeSilent && m != bus.ModeAllOutput {
		return fmt.Errorf("%w: mode %s", bus.ErrUnsupported, m)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open {
		if err := b.writeLocked("C\r"); err != nil {
			return err
		}
		b.open = false
	}
	if err := b.writeLocked(openCommand(m) + "\r"); err != nil {
		return err
	}
	b.mode = m
	b.open = true

	return nil
}

func openCommand(m bus.Mode) string {
	if m == bus.ModeAllOutput {
		return "O"
	}

	return "L"
}

// Bitrate returns the last configured bitrate in kbit/s.
func (b *Bus) Bitrate() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.bitrate
}

// Close implements bus.Bus. The CAN channel is closed before the serial port.
func (b *Bus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)

		b.mu.Lock()
		if b.open {
			_ = b.writeLocked("C\r")
			b.open = false
		}
		b.mu.Unlock()

		err = b.port.Close()
	})

	return err
}
