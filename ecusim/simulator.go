package ecusim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-obdsim/bus"
	"github.com/arloliu/go-obdsim/internal/pool"
	"github.com/arloliu/go-obdsim/internal/task"
	"github.com/arloliu/go-obdsim/isotp"
	"github.com/arloliu/go-obdsim/logger"
	"github.com/arloliu/go-obdsim/obd"
)

const (
	// drainTimeout bounds how long Start spends discarding frames queued before it.
	drainTimeout = 100 * time.Millisecond
	// maxDrainBatches caps the batches discarded on Start when the bus is busy.
	maxDrainBatches = 16
	// minSweepInterval bounds the session sweeper rate for very short TTLs.
	minSweepInterval = time.Millisecond
)

// Simulator is a simulated OBD-II ECU bound to one bus.
type Simulator struct {
	cfg    *Config
	bus    bus.Bus
	logger logger.Logger

	filter  *isotp.Filter
	table   *obd.Table
	tracker isotp.Tracker
	noise   *noiseInjector

	enabled atomic.Bool
	bitrate atomic.Int64

	opState atomicOpState
	taskMgr *task.Manager

	errMu sync.Mutex
	err   error

	metrics Metrics
}

// New creates a stopped Simulator on b.
func New(b bus.Bus, opts ...Option) (*Simulator, error) {
	if b == nil {
		return nil, ErrNilBus
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.table == nil {
		cfg.table = obd.NewTable()
	}

	var tracker isotp.Tracker
	if cfg.singleSession {
		tracker = isotp.NewSingleSlotTracker()
	} else {
		tracker = isotp.NewSessionTracker(cfg.sessionTTL)
	}

	s := &Simulator{
		cfg:     cfg,
		bus:     b,
		logger:  cfg.logger,
		filter:  isotp.NewFilter(cfg.addressing),
		table:   cfg.table,
		tracker: tracker,
		noise:   newNoiseInjector(),
		taskMgr: task.NewManager(context.Background(), cfg.logger),
	}
	s.enabled.Store(true)
	s.bitrate.Store(int64(cfg.bitrate))

	return s, nil
}

// Config returns the configuration the Simulator was built with.
func (s *Simulator) Config() *Config { return s.cfg }

// Table returns the response table.
func (s *Simulator) Table() *obd.Table { return s.table }

// Metrics returns the simulator counters.
func (s *Simulator) Metrics() *Metrics { return &s.metrics }

// State returns the lifecycle state.
func (s *Simulator) State() OpState { return s.opState.Get() }

// Start configures the bus, discards frames already queued on it and starts the
// receive loop. It returns ErrAlreadyStarted if the simulator is running, and an error
// wrapping ErrAdapter if the bus cannot be configured.
func (s *Simulator) Start() error {
	if !s.opState.ToOpening() {
		return ErrAlreadyStarted
	}

	if err := s.start(); err != nil {
		if failed := s.Err(); failed != nil {
			err = failed
		}
		s.taskMgr.Stop()
		s.taskMgr.Wait()
		s.opState.ToClosing()
		s.opState.ToClosed()

		return err
	}

	s.opState.ToOpened()
	s.logger.Info("ecu simulator started",
		"channel", s.cfg.channel,
		"bitrate", s.bitrate.Load(),
		"addressing", s.filter.Mode().String(),
		"single_session", s.cfg.singleSession,
	)

	return nil
}

func (s *Simulator) start() error {
	s.setErr(nil)
	s.tracker.Reset()

	if err := s.bus.SetBitrate(int(s.bitrate.Load())); err != nil {
		if !errors.Is(err, bus.ErrUnsupported) {
			return fmt.Errorf("%w: set bitrate: %w", ErrAdapter, err)
		}
		s.logger.Warn("adapter keeps its own bitrate", "error", err)
	}
	if err := s.bus.SetMode(bus.ModeAllOutput); err != nil {
		return fmt.Errorf("%w: set mode: %w", ErrAdapter, err)
	}
	if err := s.drain(); err != nil {
		return err
	}

	// the sweeper goes first so a loop that fails at once cannot stop the manager under it
	if !s.cfg.singleSession && s.cfg.sessionTTL > 0 {
		if err := s.taskMgr.StartInterval("ecusim.sweep", s.sweep, sweepInterval(s.cfg.sessionTTL)); err != nil {
			return err
		}
	}

	if err := s.taskMgr.Start("ecusim.loop", s.loop); err != nil {
		if failed := s.Err(); failed != nil {
			return failed
		}

		return err
	}

	return nil
}

// sweepInterval checks for idle sessions twice per ttl, but no more often than minSweepInterval.
func sweepInterval(ttl time.Duration) time.Duration {
	return max(ttl/2, minSweepInterval)
}

// drain discards whatever the adapter buffered before the simulator started.
func (s *Simulator) drain() error {
	ctx, cancel := context.WithTimeout(s.taskMgr.Context(), drainTimeout)
	defer cancel()

	discarded := 0
	for i := 0; i < maxDrainBatches; i++ {
		frames, err := s.bus.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, bus.ErrTimeout) {
				break
			}

			return fmt.Errorf("%w: receive: %w", ErrAdapter, err)
		}
		if len(frames) == 0 {
			break
		}
		discarded += len(frames)
	}

	if discarded > 0 {
		s.logger.Debug("discarded stale frames", "count", discarded)
	}

	return nil
}

// Stop asks the receive loop to exit. A burst in progress is completed first.
// Stop does not wait; use Wait.
func (s *Simulator) Stop() {
	if s.opState.ToClosing() {
		s.taskMgr.Stop()
	}
}

// Wait blocks until the receive loop has exited and returns the adapter failure that
// ended it, if any. Wait returns immediately on a simulator that was never started.
func (s *Simulator) Wait() error {
	s.taskMgr.Wait()
	s.opState.ToClosing()
	s.opState.ToClosed()

	return s.Err()
}

// Err returns the adapter failure that stopped the simulator, or nil.
func (s *Simulator) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()

	return s.err
}

func (s *Simulator) setErr(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

// fail records a fatal error and stops every task.
func (s *Simulator) fail(err error) {
	s.logger.Error("ecu simulator stopped on failure", "error", err)
	s.setErr(err)
	s.taskMgr.Stop()
}

// SetEnable turns the ECU on or off. A disabled ECU ignores every frame.
func (s *Simulator) SetEnable(on bool) {
	s.enabled.Store(on)
	s.logger.Info("ecu enable changed", "enabled", on)
}

// Enabled reports whether the ECU answers queries.
func (s *Simulator) Enabled() bool {
	return s.enabled.Load()
}

// SetAddressing changes the identifier families answered, effective with the next frame.
func (s *Simulator) SetAddressing(mode isotp.AddressingMode) {
	s.filter.SetMode(mode)
	s.logger.Info("addressing changed", "addressing", mode.String())
}

// Addressing returns the identifier families answered.
func (s *Simulator) Addressing() isotp.AddressingMode {
	return s.filter.Mode()
}

// ChangeBitrate reconfigures the bus speed in kbit/s. The value is kept for the next Start.
// Adapters that cannot change speed return an error wrapping bus.ErrUnsupported.
func (s *Simulator) ChangeBitrate(kbps int) error {
	if kbps <= 0 {
		return fmt.Errorf("ecusim: invalid bitrate %d kbit/s", kbps)
	}
	if err := s.bus.SetBitrate(kbps); err != nil {
		if errors.Is(err, bus.ErrUnsupported) {
			return err
		}
		return fmt.Errorf("%w: set bitrate: %w", ErrAdapter, err)
	}
	s.bitrate.Store(int64(kbps))
	s.logger.Info("bitrate changed", "bitrate", kbps)

	return nil
}

// Bitrate returns the current bus speed in kbit/s.
func (s *Simulator) Bitrate() int {
	return int(s.bitrate.Load())
}

// AddNoise queues a frame sent on the reply address right after the next genuine reply
// frame. Noise frames are consumed one per reply frame in the order they were added.
func (s *Simulator) AddNoise(data []byte) error {
	return s.addNoise(noiseEntry{data: data})
}

// AddNoiseAt is like AddNoise but sends the frame on addr.
func (s *Simulator) AddNoiseAt(addr uint32, data []byte) error {
	if addr > bus.MaxExtendedID {
		return fmt.Errorf("%w: 0x%X", bus.ErrInvalidID, addr)
	}

	return s.addNoise(noiseEntry{addr: addr, hasAddr: true, data: data})
}

func (s *Simulator) addNoise(e noiseEntry) error {
	if len(e.data) > bus.FrameSize {
		return fmt.Errorf("%w: noise frame of %d bytes", bus.ErrInvalidLength, len(e.data))
	}
	buf := make([]byte, len(e.data))
	copy(buf, e.data)
	e.data = buf

	s.noise.add(e)

	return nil
}

// PendingNoise returns the number of queued noise frames.
func (s *Simulator) PendingNoise() int {
	return s.noise.pending()
}

// ClearNoise drops every queued noise frame. It is safe to call while the simulator runs.
func (s *Simulator) ClearNoise() {
	s.noise.reset()
}

// SetResponse overrides the payload served for mode and pid.
func (s *Simulator) SetResponse(mode, pid byte, payload []byte) {
	s.table.Set(mode, pid, payload)
}

// ResetResponse restores the built-in payload for mode and pid.
func (s *Simulator) ResetResponse(mode, pid byte) {
	s.table.Reset(mode, pid)
}

// PendingSessions returns the number of multi-frame responses waiting for Flow Control.
func (s *Simulator) PendingSessions() int {
	return s.tracker.Len()
}

// loop is one receive iteration of the simulator task.
func (s *Simulator) loop() (cont bool) {
	defer func() {
		if r := recover(); r != nil {
			s.fail(fmt.Errorf("%w: %v", ErrPanic, r))
			cont = false
		}
	}()

	ctx := s.taskMgr.Context()

	frames, err := s.bus.Receive(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		if errors.Is(err, bus.ErrTimeout) {
			return true
		}
		s.fail(fmt.Errorf("%w: receive: %w", ErrAdapter, err))

		return false
	}
	s.metrics.incFramesReceived(len(frames))

	// replies in flight finish even when Stop arrives mid-burst
	sendCtx := context.WithoutCancel(ctx)
	for _, f := range frames {
		if err := s.handle(sendCtx, f); err != nil {
			s.fail(err)
			return false
		}
	}

	return true
}

func (s *Simulator) sweep() bool {
	if n := s.tracker.Sweep(time.Now()); n > 0 {
		s.metrics.addSessionsEvicted(n)
		s.logger.Debug("evicted idle sessions", "count", n)
	}

	return true
}

// handle dispatches one received frame. Only adapter failures are returned.
func (s *Simulator) handle(ctx context.Context, f bus.Frame) error {
	if f.Channel != s.cfg.channel || !s.enabled.Load() || len(f.Data) < 3 || !s.filter.Matches(f.Address) {
		s.metrics.incFramesIgnored()
		return nil
	}

	if status, ok := isotp.ParseFlowControl(f.Data); ok {
		return s.continueTransmission(ctx, f.Address, status)
	}

	return s.answer(ctx, f)
}

func (s *Simulator) answer(ctx context.Context, f bus.Frame) error {
	q, _ := isotp.ParseQuery(f.Address, f.Data)

	s.logger.Debug("query", "frame", f.String(), "mode", q.Mode, "pid", q.PID)

	payload, ok := s.table.Lookup(q.Mode, q.PID)
	if !ok {
		s.metrics.incQueriesUnknown()
		s.logger.Debug("unknown query", "address", fmt.Sprintf("0x%X", q.Address), "mode", q.Mode, "pid", q.PID)

		return nil
	}

	first, rest, err := isotp.Encode(q, payload)
	if err != nil {
		s.logger.Warn("cannot encode response", "mode", q.Mode, "pid", q.PID, "error", err)
		return nil
	}

	replyAddr := isotp.ReplyAddress(q.Address)
	if rest != nil && s.tracker.Begin(replyAddr, rest) {
		s.metrics.incSessionsReplaced()
		s.logger.Debug("replaced pending transmission", "reply_address", fmt.Sprintf("0x%X", replyAddr))
	}

	s.metrics.incQueriesAnswered()

	return s.sendReply(ctx, replyAddr, first)
}

func (s *Simulator) continueTransmission(ctx context.Context, addr uint32, status isotp.FlowStatus) error {
	key := isotp.ReplyAddress(addr)

	switch status {
	case isotp.FlowContinue:
		t, err := s.takePending(key)
		if err != nil {
			s.metrics.incContinuationsWithoutData()
			s.logger.Warn("flow control ignored", "address", fmt.Sprintf("0x%X", addr), "error", err)

			return nil
		}

		return s.sendConsecutive(ctx, t)

	case isotp.FlowWait:
		s.logger.Debug("flow control wait", "address", fmt.Sprintf("0x%X", addr))

	case isotp.FlowOverflow:
		if s.tracker.Abort(key) {
			s.metrics.incSessionsAborted()
		}
		s.logger.Debug("flow control overflow, transmission aborted", "address", fmt.Sprintf("0x%X", addr))

	default:
		s.metrics.incFramesIgnored()
	}

	return nil
}

func (s *Simulator) takePending(key uint32) (*isotp.Transmission, error) {
	t, ok := s.tracker.Take(key)
	if !ok || t.Done() {
		return nil, isotp.ErrNoPending
	}

	return t, nil
}

// sendConsecutive sends every remaining Consecutive Frame of t, paced by the frame interval.
func (s *Simulator) sendConsecutive(ctx context.Context, t *isotp.Transmission) error {
	for i := 0; ; i++ {
		cf, ok := t.Next()
		if !ok {
			return nil
		}
		if i > 0 {
			pool.Sleep(s.cfg.frameInterval)
		}

		if err := s.sendReply(ctx, t.ReplyAddress(), cf); err != nil {
			return err
		}
		s.metrics.incConsecutiveFramesSent()
	}
}

// sendReply sends one genuine reply frame followed by at most one queued noise frame.
func (s *Simulator) sendReply(ctx context.Context, addr uint32, data []byte) error {
	f := bus.NewFrame(addr, data, s.cfg.padding, s.cfg.channel)
	if err := s.bus.Send(ctx, f); err != nil {
		return fmt.Errorf("%w: send %s: %w", ErrAdapter, f, err)
	}
	s.metrics.incReplyFramesSent()
	s.logger.Debug("reply", "frame", f.String())

	noiseAddr, noise, ok := s.noise.next(addr)
	if !ok {
		return nil
	}

	nf := bus.NewFrame(noiseAddr, noise, s.cfg.padding, s.cfg.channel)
	if err := s.bus.Send(ctx, nf); err != nil {
		return fmt.Errorf("%w: send noise %s: %w", ErrAdapter, nf, err)
	}
	s.metrics.incNoiseFramesSent()
	s.logger.Debug("noise", "frame", nf.String())

	return nil
}
