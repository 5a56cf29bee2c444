package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/arloliu/go-obdsim/isotp"
	"github.com/arloliu/go-obdsim/logger"
)

// config is the resolved command line, environment and config file settings.
type config struct {
	bitrate       int
	addressing    isotp.AddressingMode
	adapter       string
	channel       uint8
	singleSession bool
	sessionTTL    time.Duration
	frameInterval time.Duration
	logLevel      logger.Level
	openRetries   uint
	statsInterval time.Duration
}

// envBindings keeps the variable names understood by existing test rigs.
var envBindings = map[string]string{
	"bitrate": "CANKBAUD",
	"width":   "CANBITWIDTH",
	"adapter": "SERIAL",
}

func bindEnv(v *viper.Viper) error {
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	v.SetEnvPrefix("OBDSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return nil
}

func loadConfig(v *viper.Viper) (*config, error) {
	cfg := &config{
		bitrate:       v.GetInt("bitrate"),
		adapter:       v.GetString("adapter"),
		singleSession: v.GetBool("single-session"),
		sessionTTL:    v.GetDuration("session-ttl"),
		frameInterval: v.GetDuration("frame-interval"),
		openRetries:   v.GetUint("open-retries"),
		statsInterval: v.GetDuration("stats-interval"),
	}

	if cfg.bitrate <= 0 {
		return nil, fmt.Errorf("invalid bitrate %d kbit/s", cfg.bitrate)
	}

	mode, err := isotp.ParseAddressingWidth(v.GetInt("width"))
	if err != nil {
		return nil, err
	}
	cfg.addressing = mode

	ch := v.GetInt("channel")
	if ch < 0 || ch > 0x7F {
		return nil, fmt.Errorf("invalid channel %d", ch)
	}
	cfg.channel = uint8(ch)

	if cfg.openRetries == 0 {
		return nil, errors.New("open-retries must be at least 1")
	}

	if v.GetBool("verbose") {
		cfg.logLevel = logger.DebugLevel
	} else {
		level, ok := logger.ParseLevel(v.GetString("log-level"))
		if !ok {
			return nil, fmt.Errorf("invalid log level %q", v.GetString("log-level"))
		}
		cfg.logLevel = level
	}

	return cfg, nil
}
