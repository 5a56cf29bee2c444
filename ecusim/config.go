package ecusim

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-obdsim/bus"
	"github.com/arloliu/go-obdsim/isotp"
	"github.com/arloliu/go-obdsim/logger"
	"github.com/arloliu/go-obdsim/obd"
)

// DefaultFrameInterval is the pause between Consecutive Frames of one burst.
const DefaultFrameInterval = 10 * time.Millisecond

// Config holds the simulator settings. It is built by New from the given options and
// read-only afterwards; runtime changes go through the Simulator control methods.
type Config struct {
	// channel is the adapter channel the ECU listens and replies on.
	// Defaults to 0.
	channel uint8

	// bitrate is the bus speed in kbit/s applied on Start.
	// Defaults to bus.DefaultBitrate.
	bitrate int

	// addressing is the initial set of identifier families answered.
	// Defaults to isotp.AddressingBoth.
	addressing isotp.AddressingMode

	// singleSession selects one global pending transmission instead of one per tester.
	// Defaults to false.
	singleSession bool

	// sessionTTL is how long a multi-frame session waits for Flow Control before the
	// sweeper drops it. Zero disables the sweeper. Ignored in single-session mode.
	// Defaults to isotp.DefaultSessionTTL.
	sessionTTL time.Duration

	// frameInterval is the pause between Consecutive Frames.
	// Defaults to DefaultFrameInterval.
	frameInterval time.Duration

	// padding fills outbound frames up to 8 bytes.
	// Defaults to 0x00.
	padding byte

	// table resolves queries. Defaults to obd.NewTable().
	table *obd.Table

	logger logger.Logger
}

func defaultConfig() *Config {
	return &Config{
		channel:       0,
		bitrate:       bus.DefaultBitrate,
		addressing:    isotp.AddressingBoth,
		sessionTTL:    isotp.DefaultSessionTTL,
		frameInterval: DefaultFrameInterval,
		padding:       0x00,
		logger:        logger.GetLogger(),
	}
}

// Channel returns the adapter channel.
func (cfg *Config) Channel() uint8 { return cfg.channel }

// Bitrate returns the bitrate applied on Start, in kbit/s.
func (cfg *Config) Bitrate() int { return cfg.bitrate }

// Addressing returns the initial addressing mode.
func (cfg *Config) Addressing() isotp.AddressingMode { return cfg.addressing }

// SingleSession reports whether one pending transmission is shared by every tester.
func (cfg *Config) SingleSession() bool { return cfg.singleSession }

// SessionTTL returns how long a session waits for Flow Control.
func (cfg *Config) SessionTTL() time.Duration { return cfg.sessionTTL }

// FrameInterval returns the pause between Consecutive Frames.
func (cfg *Config) FrameInterval() time.Duration { return cfg.frameInterval }

// Padding returns the byte outbound frames are padded with.
func (cfg *Config) Padding() byte { return cfg.padding }

// Logger returns the configured logger.
func (cfg *Config) Logger() logger.Logger { return cfg.logger }

// Option represents a functional option for configuring a Simulator.
type Option interface {
	apply(cfg *Config) error
}

type optFunc struct {
	name      string
	applyFunc func(*Config) error
}

func (o *optFunc) apply(cfg *Config) error {
	if err := o.applyFunc(cfg); err != nil {
		return fmt.Errorf("ecusim: %s: %w", o.name, err)
	}

	return nil
}

func newOptFunc(name string, f func(*Config) error) *optFunc {
	return &optFunc{name: name, applyFunc: f}
}

// WithLogger sets the logger. A nil logger is rejected.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *Config) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithChannel sets the adapter channel to listen and reply on.
// Channels with the echo flag (0x80) set are reserved for adapter echoes.
func WithChannel(ch uint8) Option {
	return newOptFunc("WithChannel", func(cfg *Config) error {
		if ch&bus.EchoChannelFlag != 0 {
			return fmt.Errorf("channel %d collides with the echo flag", ch)
		}
		cfg.channel = ch

		return nil
	})
}

// WithBitrate sets the bus speed in kbit/s applied on Start.
func WithBitrate(kbps int) Option {
	return newOptFunc("WithBitrate", func(cfg *Config) error {
		if kbps <= 0 {
			return fmt.Errorf("invalid bitrate %d kbit/s", kbps)
		}
		cfg.bitrate = kbps

		return nil
	})
}

// WithAddressing sets the identifier families answered at start.
func WithAddressing(mode isotp.AddressingMode) Option {
	return newOptFunc("WithAddressing", func(cfg *Config) error {
		if mode&^isotp.AddressingBoth != 0 {
			return fmt.Errorf("unknown addressing mode 0x%X", uint32(mode))
		}
		cfg.addressing = mode

		return nil
	})
}

// WithSingleSession keeps one pending transmission for the whole bus. A new multi-frame
// response discards the pending one, whichever tester asked for it.
func WithSingleSession() Option {
	return newOptFunc("WithSingleSession", func(cfg *Config) error {
		cfg.singleSession = true
		return nil
	})
}

// WithSessionTTL sets how long a multi-frame session waits for Flow Control.
// Zero keeps sessions until they are continued or replaced.
func WithSessionTTL(ttl time.Duration) Option {
	return newOptFunc("WithSessionTTL", func(cfg *Config) error {
		if ttl < 0 {
			return fmt.Errorf("invalid session ttl %v", ttl)
		}
		cfg.sessionTTL = ttl

		return nil
	})
}

// WithFrameInterval sets the pause between Consecutive Frames. Zero sends back to back.
func WithFrameInterval(d time.Duration) Option {
	return newOptFunc("WithFrameInterval", func(cfg *Config) error {
		if d < 0 {
			return fmt.Errorf("invalid frame interval %v", d)
		}
		cfg.frameInterval = d

		return nil
	})
}

// WithPadding sets the byte outbound frames are padded with.
func WithPadding(b byte) Option {
	return newOptFunc("WithPadding", func(cfg *Config) error {
		cfg.padding = b
		return nil
	})
}

// WithTable sets the response table, e.g. to share overrides between simulators.
func WithTable(tbl *obd.Table) Option {
	return newOptFunc("WithTable", func(cfg *Config) error {
		if tbl == nil {
			return errors.New("table is nil")
		}
		cfg.table = tbl

		return nil
	})
}
