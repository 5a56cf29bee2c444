package main

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-obdsim/isotp"
	"github.com/arloliu/go-obdsim/logger"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()

	v := viper.New()
	v.SetDefault("bitrate", 500)
	v.SetDefault("open-retries", 1)
	v.SetDefault("log-level", "info")
	require.NoError(t, bindEnv(v))

	return v
}

func TestLoadConfig_Defaults(t *testing.T) {
	require := require.New(t)

	cfg, err := loadConfig(newTestViper(t))
	require.NoError(err)
	require.Equal(500, cfg.bitrate)
	require.Equal(isotp.AddressingBoth, cfg.addressing)
	require.Equal(logger.InfoLevel, cfg.logLevel)
	require.Empty(cfg.adapter)
	require.Equal(uint8(0), cfg.channel)
}

func TestLoadConfig_Environment(t *testing.T) {
	require := require.New(t)

	t.Setenv("CANKBAUD", "250")
	t.Setenv("CANBITWIDTH", "29")
	t.Setenv("SERIAL", "slcan:/dev/ttyACM0")
	t.Setenv("OBDSIM_FRAME_INTERVAL", "3ms")

	v := newTestViper(t)
	v.SetDefault("frame-interval", time.Duration(0))
	cfg, err := loadConfig(v)
	require.NoError(err)
	require.Equal(250, cfg.bitrate)
	require.Equal(isotp.Addressing29Bit, cfg.addressing)
	require.Equal("slcan:/dev/ttyACM0", cfg.adapter)
	require.Equal(3*time.Millisecond, cfg.frameInterval)
}

func TestLoadConfig_Verbose(t *testing.T) {
	v := newTestViper(t)
	v.Set("log-level", "error")
	v.Set("verbose", true)

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	require.Equal(t, logger.DebugLevel, cfg.logLevel)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
		msg  string
	}{
		{"zero bitrate", "bitrate", 0, "invalid bitrate"},
		{"bad width", "width", 12, "addressing width"},
		{"channel range", "channel", 0x80, "invalid channel"},
		{"negative channel", "channel", -1, "invalid channel"},
		{"no attempts", "open-retries", 0, "open-retries"},
		{"log level", "log-level", "chatty", "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestViper(t)
			v.Set(tt.key, tt.val)

			_, err := loadConfig(v)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRootCmd_RejectsFlags(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--bitrate", "0"})

	err := cmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid bitrate")
}

func TestRootCmd_MissingConfigFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", t.TempDir() + "/missing.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "read config")
}
