package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"net-monitor/internal/stream"
)

// staleAfter is how many intervals may pass without a commit before the
// daemon reports itself stale.
const staleAfter = 3

func (a *Agent) run(ctx context.Context) error {
	lis, err := stream.ListenUnix(a.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("snapshot service: %w", err)
	}
	a.health.SetServiceListening(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.health.SetSamplerRunning(true)
		defer a.health.SetSamplerRunning(false)
		return a.scheduler.Run(gctx)
	})
	g.Go(func() error {
		return a.server.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		a.server.Stop(stopCtx)
		a.health.SetServiceListening(false)
		return nil
	})
	g.Go(func() error {
		return a.runHealthLoop(gctx)
	})
	if a.cfg.ProbeSocketPath != "" {
		g.Go(func() error {
			return a.runProbeListener(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *Agent) maxSampleAge() time.Duration {
	return staleAfter*a.cfg.Interval + a.cfg.TickTimeout
}

func (a *Agent) runHealthLoop(ctx context.Context) error {
	t := time.NewTicker(healthInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if !a.health.Fresh(time.Now(), a.maxSampleAge()) {
				a.logger.Warn("no snapshot committed recently", "max_age", a.maxSampleAge(), "snapshot", a.health.Snapshot())
				continue
			}
			a.logHealth("ok")
		}
	}
}

func (a *Agent) logHealth(status string) {
	a.logger.Log(context.Background(), slog.LevelDebug, "agent health", "status", status, "snapshot", a.health.Snapshot())
}

func (a *Agent) closeProbes() {
	if a.wireless != nil {
		if err := a.wireless.Close(); err != nil {
			a.logger.Warn("wireless probe close failed", "error", err)
		}
		a.wireless = nil
	}
	if a.wireguard != nil {
		if err := a.wireguard.Close(); err != nil {
			a.logger.Warn("wireguard probe close failed", "error", err)
		}
		a.wireguard = nil
	}
}

func (a *Agent) shutdown() {
	a.closeProbes()
	a.health.SetSamplerRunning(false)
	a.health.SetServiceListening(false)
}
