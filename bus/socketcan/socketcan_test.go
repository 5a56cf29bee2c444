package socketcan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.einride.tech/can"

	"github.com/arloliu/go-obdsim/bus"
)

// fakeSocket feeds queued frames to the read loop and records transmissions.
type fakeSocket struct {
	in      chan can.Frame
	cur     can.Frame
	errorAt int
	count   int
	err     error

	mu     sync.Mutex
	sent   []can.Frame
	closed bool
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{in: make(chan can.Frame, 16), errorAt: -1}
}

func (s *fakeSocket) Receive() bool {
	f, ok := <-s.in
	if !ok {
		return false
	}
	s.cur = f
	s.count++

	return true
}

func (s *fakeSocket) Frame() can.Frame { return s.cur }

func (s *fakeSocket) HasErrorFrame() bool { return s.count-1 == s.errorAt }

func (s *fakeSocket) Err() error { return s.err }

func (s *fakeSocket) TransmitFrame(_ context.Context, f can.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, f)

	return nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true

	return nil
}

func receiveN(t *testing.T, b *Bus, n int) []bus.Frame {
	t.Helper()

	var frames []bus.Frame
	require.Eventually(t, func() bool {
		batch, err := b.Receive(context.Background())
		if err != nil {
			return false
		}
		frames = append(frames, batch...)

		return len(frames) >= n
	}, time.Second, time.Millisecond)

	return frames
}

func TestBus_Receive(t *testing.T) {
	sock := newFakeSocket()
	b := newBus("vcan0", sock, sock, sock, WithPoll(time.Millisecond))
	defer b.Close()

	sock.in <- can.Frame{ID: 0x7DF, Length: 8, Data: can.Data{0x02, 0x01, 0x0C}}
	sock.in <- can.Frame{ID: 0x18DB33F1, Length: 3, IsExtended: true, Data: can.Data{0x02, 0x09, 0x02}}

	frames := receiveN(t, b, 2)
	require.Len(t, frames, 2)

	assert.Equal(t, uint32(0x7DF), frames[0].Address)
	assert.False(t, frames[0].Extended)
	assert.Equal(t, []byte{0x02, 0x01, 0x0C, 0, 0, 0, 0, 0}, frames[0].Data)
	assert.False(t, frames[0].Timestamp.IsZero())

	assert.Equal(t, uint32(0x18DB33F1), frames[1].Address)
	assert.True(t, frames[1].Extended)
	assert.Equal(t, []byte{0x02, 0x09, 0x02}, frames[1].Data)
	assert.Equal(t, "vcan0", b.Interface())
}

func TestBus_ReceiveEmptyAndErrorFrames(t *testing.T) {
	sock := newFakeSocket()
	sock.errorAt = 0
	b := newBus("vcan0", sock, sock, sock, WithPoll(time.Millisecond))
	defer b.Close()

	frames, err := b.Receive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, frames)

	sock.in <- can.Frame{ID: 0x20000080, Length: 8}
	sock.in <- can.Frame{ID: 0x7E0, Length: 8}

	frames = receiveN(t, b, 1)
	require.Len(t, frames, 1)
	assert.Equal(t, uint32(0x7E0), frames[0].Address)
}

func TestBus_SocketFailure(t *testing.T) {
	sock := newFakeSocket()
	sock.err = errors.New("network is down")
	b := newBus("vcan0", sock, sock, sock, WithPoll(time.Millisecond))
	defer b.Close()

	close(sock.in)

	var err error
	require.Eventually(t, func() bool {
		_, err = b.Receive(context.Background())
		return err != nil
	}, time.Second, time.Millisecond)
	assert.ErrorContains(t, err, "network is down")
}

func TestBus_ReceiveContextDone(t *testing.T) {
	sock := newFakeSocket()
	b := newBus("vcan0", sock, sock, sock, WithPoll(time.Second))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Receive(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBus_Send(t *testing.T) {
	sock := newFakeSocket()
	b := newBus("vcan0", sock, sock, sock)
	defer b.Close()

	require.NoError(t, b.Send(context.Background(), bus.NewFrame(0x7E8, []byte{0x04, 0x41, 0x0C, 0x1A, 0xF8}, 0x00, 0)))
	require.NoError(t, b.Send(context.Background(), bus.NewFrame(0x18DAF110, []byte{0x21}, 0xAA, 0)))

	sock.mu.Lock()
	sent := sock.sent
	sock.mu.Unlock()

	require.Len(t, sent, 2)
	assert.Equal(t, can.Frame{ID: 0x7E8, Length: 8, Data: can.Data{0x04, 0x41, 0x0C, 0x1A, 0xF8}}, sent[0])
	assert.Equal(t, uint32(0x18DAF110), sent[1].ID)
	assert.True(t, sent[1].IsExtended)
	assert.Equal(t, can.Data{0x21, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}, sent[1].Data)

	err := b.Send(context.Background(), bus.Frame{Address: 0x800, Data: []byte{0x01}})
	require.ErrorIs(t, err, bus.ErrInvalidID)

	err = b.Send(context.Background(), bus.Frame{Address: 0x7E8, Data: make([]byte, 9)})
	require.ErrorIs(t, err, bus.ErrInvalidLength)
}

func TestBus_AdminAndClose(t *testing.T) {
	sock := newFakeSocket()
	b := newBus("vcan0", sock, sock, sock)

	require.ErrorIs(t, b.SetBitrate(500), bus.ErrUnsupported)
	require.NoError(t, b.SetMode(bus.ModeAllOutput))
	assert.Equal(t, bus.ModeAllOutput, b.Mode())

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.True(t, sock.closed)

	_, err := b.Receive(context.Background())
	require.ErrorIs(t, err, bus.ErrClosed)
	require.ErrorIs(t, b.Send(context.Background(), bus.NewFrame(0x7E8, nil, 0, 0)), bus.ErrClosed)
}
