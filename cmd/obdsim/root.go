package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arloliu/go-obdsim/bus"
	"github.com/arloliu/go-obdsim/ecusim"
	"github.com/arloliu/go-obdsim/isotp"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "obdsim",
		Short: "Simulated OBD-II ECU for exercising diagnostic tools",
		Long: `obdsim answers OBD-II mode 01 and mode 09 queries on a CAN bus the way an engine
control unit would, including ISO 15765-2 multi-frame responses up to 4095 bytes.

Adapters:
  socketcan:<iface>   Linux SocketCAN interface, e.g. socketcan:vcan0
  slcan:<port>        Lawicel SLCAN serial adapter, e.g. slcan:/dev/ttyUSB0
  <port>              same as slcan:<port>
  loopback            in-memory bus, useful for smoke tests
  (empty)             first serial port found, over SLCAN

Environment:
  CANKBAUD      bitrate in kbit/s (default 500)
  CANBITWIDTH   0 for 11-bit and 29-bit, 11 or 29 for one family only
  SERIAL        adapter selector

Examples:
  # Answer 11-bit and 29-bit testers on vcan0
  obdsim --adapter socketcan:vcan0

  # 29-bit only at 250 kbit/s on the first serial adapter
  CANBITWIDTH=29 CANKBAUD=250 obdsim`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return readConfigFile(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.Int("bitrate", bus.DefaultBitrate, "bus bitrate in kbit/s")
	flags.Int("width", 0, "identifier width: 0 (both), 11 or 29")
	flags.String("adapter", "", "adapter selector, see above")
	flags.Int("channel", 0, "adapter channel")
	flags.Bool("single-session", false, "keep one pending multi-frame response for the whole bus")
	flags.Duration("session-ttl", isotp.DefaultSessionTTL, "drop multi-frame sessions idle for longer, 0 keeps them")
	flags.Duration("frame-interval", ecusim.DefaultFrameInterval, "pause between consecutive frames")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.BoolP("verbose", "v", false, "log every frame (same as --log-level debug)")
	flags.Uint("open-retries", 5, "attempts to open the adapter")
	flags.Duration("stats-interval", 30*time.Second, "log counters this often, 0 disables")

	if err := v.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("bind flags: %v", err))
	}
	if err := bindEnv(v); err != nil {
		panic(err)
	}

	return cmd
}

func readConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	return nil
}
