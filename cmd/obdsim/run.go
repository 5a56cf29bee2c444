package main

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/go-obdsim/ecusim"
	"github.com/arloliu/go-obdsim/logger"
)

func run(ctx context.Context, cfg *config) error {
	l := logger.NewSlog(cfg.logLevel, false)
	logger.SetDefault(l)

	return runWith(ctx, cfg, openAdapter, l)
}

func runWith(ctx context.Context, cfg *config, open openFunc, l logger.Logger) error {
	spec, err := parseAdapter(cfg.adapter)
	if err != nil {
		return err
	}

	b, err := openWithRetry(ctx, open, spec, cfg.openRetries, openRetryDelay, l)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			l.Warn("close adapter", "adapter", spec.String(), "error", err)
		}
	}()

	opts := []ecusim.Option{
		ecusim.WithLogger(l.With("adapter", spec.String())),
		ecusim.WithBitrate(cfg.bitrate),
		ecusim.WithAddressing(cfg.addressing),
		ecusim.WithChannel(cfg.channel),
		ecusim.WithSessionTTL(cfg.sessionTTL),
		ecusim.WithFrameInterval(cfg.frameInterval),
	}
	if cfg.singleSession {
		opts = append(opts, ecusim.WithSingleSession())
	}

	sim, err := ecusim.New(b, opts...)
	if err != nil {
		return err
	}
	if err := sim.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	// runCtx also ends when the simulator stops by itself without an error
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		defer cancel()
		return sim.Wait()
	})
	g.Go(func() error {
		<-runCtx.Done()
		sim.Stop()

		return nil
	})
	if cfg.statsInterval > 0 {
		g.Go(func() error {
			logStats(runCtx, sim, cfg.statsInterval, l)
			return nil
		})
	}

	err = g.Wait()
	logStatsOnce(sim, l)
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func logStats(ctx context.Context, sim *ecusim.Simulator, every time.Duration, l logger.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logStatsOnce(sim, l)
		}
	}
}

func logStatsOnce(sim *ecusim.Simulator, l logger.Logger) {
	m := sim.Metrics()
	l.Info("stats",
		"received", m.FramesReceived.Load(),
		"ignored", m.FramesIgnored.Load(),
		"answered", m.QueriesAnswered.Load(),
		"unknown", m.QueriesUnknown.Load(),
		"replies", m.ReplyFramesSent.Load(),
		"consecutive", m.ConsecutiveFramesSent.Load(),
		"noise", m.NoiseFramesSent.Load(),
		"sessions", sim.PendingSessions(),
	)
}
