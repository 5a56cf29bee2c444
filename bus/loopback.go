package bus

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultLoopbackPoll is how long Loopback.Receive waits for a first frame.
	DefaultLoopbackPoll = 10 * time.Millisecond

	loopbackQueueSize = 1024
)

// Loopback is an in-memory Bus. Injected frames are delivered by Receive and sent frames
// are recorded for inspection. It is safe for concurrent use.
type Loopback struct {
	rx     chan Frame
	done   chan struct{}
	poll   time.Duration
	echo   bool
	onSend func(Frame)

	closeOnce sync.Once

	mu      sync.Mutex
	sent    []Frame
	bitrate int
	mode    Mode
	sendErr error
	recvErr error
}

var _ Bus = (*Loopback)(nil)

// LoopbackOption configures a Loopback.
type LoopbackOption func(*Loopback)

// WithLoopbackPoll sets how long Receive waits when no frame is queued.
func WithLoopbackPoll(d time.Duration) LoopbackOption {
	return func(l *Loopback) { l.poll = d }
}

// WithLoopbackEcho makes every sent frame reappear on Receive flagged with EchoChannelFlag,
// the way hardware adapters report their own transmissions.
func WithLoopbackEcho() LoopbackOption {
	return func(l *Loopback) { l.echo = true }
}

// WithLoopbackOnSend registers a hook invoked for each sent frame.
// The hook runs on the sender goroutine and may call Inject.
func WithLoopbackOnSend(fn func(Frame)) LoopbackOption {
	return func(l *Loopback) { l.onSend = fn }
}

// NewLoopback creates an open Loopback bus.
func NewLoopback(opts ...LoopbackOption) *Loopback {
	l := &Loopback{
		rx:      make(chan Frame, loopbackQueueSize),
		done:    make(chan struct{}),
		poll:    DefaultLoopbackPoll,
		bitrate: DefaultBitrate,
		mode:    ModeSilent,
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Inject queues a frame for Receive. Timestamp is set when zero.
func (l *Loopback) Inject(f Frame) error {
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}

	select {
	case <-l.done:
		return ErrClosed
	default:
	}

	select {
	case l.rx <- f:
		return nil
	default:
		return fmt.Errorf("bus: loopback receive queue full (%d frames)", loopbackQueueSize)
	}
}

// InjectData queues data as a frame from addr on channel 0. The data is not padded.
func (l *Loopback) InjectData(addr uint32, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	return l.Inject(Frame{Address: addr, Extended: addr > MaxStandardID, Data: buf})
}

// Receive implements Bus.
func (l *Loopback) Receive(ctx context.Context) ([]Frame, error) {
	l.mu.Lock()
	err := l.recvErr
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return ReceiveBatch(ctx, l.rx, l.done, l.poll)
}

// Send implements Bus.
func (l *Loopback) Send(_ context.Context, f Frame) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}

	if err := f.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	if l.sendErr != nil {
		err := l.sendErr
		l.mu.Unlock()

		return err
	}
	l.sent = append(l.sent, f)
	l.mu.Unlock()

	if l.echo {
		echo := f
		echo.Channel |= EchoChannelFlag
		_ = l.Inject(echo)
	}
	if l.onSend != nil {
		l.onSend(f)
	}

	return nil
}

// SetBitrate implements Bus.
func (l *Loopback) SetBitrate(kbps int) error {
	if kbps <= 0 {
		return fmt.Errorf("bus: invalid bitrate %d kbit/s", kbps)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.bitrate = kbps

	return nil
}

// SetMode implements Bus.
func (l *Loopback) SetMode(m Mode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mode = m

	return nil
}

// Close implements Bus. Queued frames are discarded.
func (l *Loopback) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}

// Bitrate returns the last configured bitrate.
func (l *Loopback) Bitrate() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.bitrate
}

// Mode returns the last configured mode.
func (l *Loopback) Mode() Mode {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.mode
}

// Sent returns a copy of every frame sent so far, in order.
func (l *Loopback) Sent() []Frame {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Frame, len(l.sent))
	copy(out, l.sent)

	return out
}

// SentCount returns the number of frames sent so far.
func (l *Loopback) SentCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.sent)
}

// ClearSent forgets the recorded frames.
func (l *Loopback) ClearSent() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = nil
}

// FailSend makes every following Send return err. A nil err restores normal operation.
func (l *Loopback) FailSend(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sendErr = err
}

// FailReceive makes every following Receive return err. A nil err restores normal operation.
func (l *Loopback) FailReceive(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recvErr = err
}
