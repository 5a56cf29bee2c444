package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/arloliu/go-obdsim/bus"
	"github.com/arloliu/go-obdsim/bus/slcan"
	"github.com/arloliu/go-obdsim/bus/socketcan"
	"github.com/arloliu/go-obdsim/logger"
)

type adapterKind int

const (
	adapterAuto adapterKind = iota
	adapterSLCAN
	adapterSocketCAN
	adapterLoopback
)

func (k adapterKind) String() string {
	switch k {
	case adapterAuto:
		return "auto"
	case adapterSLCAN:
		return "slcan"
	case adapterSocketCAN:
		return "socketcan"
	case adapterLoopback:
		return "loopback"
	default:
		return "unknown"
	}
}

// adapterSpec is a parsed --adapter selector.
type adapterSpec struct {
	kind   adapterKind
	target string
}

func (s adapterSpec) String() string {
	if s.target == "" {
		return s.kind.String()
	}

	return s.kind.String() + ":" + s.target
}

func parseAdapter(sel string) (adapterSpec, error) {
	sel = strings.TrimSpace(sel)
	switch {
	case sel == "":
		return adapterSpec{kind: adapterAuto}, nil
	case sel == "loopback":
		return adapterSpec{kind: adapterLoopback}, nil
	case strings.HasPrefix(sel, "socketcan:"):
		iface := strings.TrimPrefix(sel, "socketcan:")
		if iface == "" {
			return adapterSpec{}, fmt.Errorf("adapter %q: missing interface name", sel)
		}

		return adapterSpec{kind: adapterSocketCAN, target: iface}, nil
	case strings.HasPrefix(sel, "slcan:"):
		port := strings.TrimPrefix(sel, "slcan:")
		if port == "" {
			return adapterSpec{}, fmt.Errorf("adapter %q: missing serial port", sel)
		}

		return adapterSpec{kind: adapterSLCAN, target: port}, nil
	default:
		return adapterSpec{kind: adapterSLCAN, target: sel}, nil
	}
}

// openFunc opens the adapter described by spec.
type openFunc func(ctx context.Context, spec adapterSpec) (bus.Bus, error)

func openAdapter(ctx context.Context, spec adapterSpec) (bus.Bus, error) {
	switch spec.kind {
	case adapterLoopback:
		return bus.NewLoopback(), nil
	case adapterSocketCAN:
		b, err := socketcan.Open(ctx, spec.target)
		if err != nil {
			return nil, err
		}

		return b, nil
	case adapterSLCAN:
		return openSLCAN(spec.target)
	case adapterAuto:
		port, err := slcan.FirstPort()
		if err != nil {
			return nil, err
		}
		logger.Info("using first serial port", "port", port)

		return openSLCAN(port)
	default:
		return nil, retry.Unrecoverable(fmt.Errorf("unknown adapter kind %d", spec.kind))
	}
}

func openSLCAN(port string) (bus.Bus, error) {
	b, err := slcan.Open(port)
	if err != nil {
		return nil, err
	}

	return b, nil
}

const openRetryDelay = 500 * time.Millisecond

// openWithRetry calls open until it succeeds, attempts are exhausted or ctx is done.
// Adapters plugged in late, e.g. a USB dongle, are picked up this way.
func openWithRetry(ctx context.Context, open openFunc, spec adapterSpec, attempts uint, delay time.Duration, l logger.Logger) (bus.Bus, error) {
	b, err := retry.DoWithData(
		func() (bus.Bus, error) {
			return open(ctx, spec)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			l.Warn("open adapter failed, retrying", "adapter", spec.String(), "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("open adapter %s: %w", spec, err)
	}

	return b, nil
}
