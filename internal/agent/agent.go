package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"net-monitor/internal/agent/version"
	"net-monitor/internal/collector"
	"net-monitor/internal/config"
	"net-monitor/internal/model"
	"net-monitor/internal/sampler"
	"net-monitor/internal/stream"
	"net-monitor/internal/system"
	"net-monitor/internal/uptime"
	"net-monitor/internal/wireguard"
	"net-monitor/internal/wireless"
)

type Agent struct {
	cfg       config.Config
	logger    *slog.Logger
	sampler   *sampler.Sampler
	scheduler *collector.Scheduler
	server    *stream.Server
	wireless  *wireless.Probe
	wireguard *wireguard.Probe
	health    *HealthStatus
}

const healthInterval = 10 * time.Second

func New(cfg config.Config, logger *slog.Logger) (*Agent, error) {
	paths := system.Paths{
		Proc:       cfg.ProcRoot,
		Sys:        cfg.SysRoot,
		ResolvConf: cfg.ResolvConf,
		VnstatDir:  cfg.VnstatDir,
	}

	var counters system.CounterSource
	switch cfg.CounterSource {
	case config.CounterSourcePsutil:
		counters = system.NewPsutilSource()
	default:
		counters = system.NewProcNetDev(paths)
	}

	a := &Agent{cfg: cfg, logger: logger, health: NewHealthStatus()}
	src := sampler.Sources{
		Counters:      counters,
		Links:         system.NewNetlinkResolver(paths),
		Uptime:        uptime.NewReader(cfg.UptimeLog),
		HasWireless:   func(name string) bool { return system.HasWireless(paths, name) },
		WirelessLinks: func() (map[string]int, error) { return system.ReadWirelessLinks(paths) },
		Accounting:    func(name string) bool { return system.HasNetworkAccounting(paths, name) },
	}

	if probe, err := wireless.NewProbe(); err != nil {
		logger.Warn("wireless probe unavailable, wireless details disabled", "error", err)
	} else {
		a.wireless = probe
		src.Wireless = probe
	}
	if cfg.WireGuard {
		if probe, err := wireguard.NewProbe(); err != nil {
			logger.Warn("wireguard probe unavailable", "error", err)
		} else {
			a.wireguard = probe
			src.WireGuard = probe
		}
	}

	s, err := sampler.New(sampler.Config{
		Interval:    cfg.Interval,
		HistorySize: cfg.HistorySize,
		PruneStale:  cfg.PruneStale,
	}, src, logger)
	if err != nil {
		a.closeProbes()
		return nil, fmt.Errorf("sampler: %w", err)
	}
	a.sampler = s
	a.server = stream.NewServer(logger, s, system.NewTables(paths), func(req *version.GetVersionRequest) *version.GetVersionResponse {
		return version.Get(cfg, req)
	})
	a.scheduler = collector.NewScheduler(logger, s, cfg.TickTimeout, cfg.ErrorBackoff, &healthSink{health: a.health})
	return a, nil
}

func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting netmond", "version", a.cfg.Version, "interval", a.cfg.Interval, "counter_source", a.cfg.CounterSource, "socket", a.cfg.SocketPath)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- a.run(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String(), "timeout", a.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(a.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
		case sig2 := <-sigCh:
			a.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			a.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", a.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}

	a.shutdown()

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	a.logger.Info("netmond stopped")
	return nil
}

func BuildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, hOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, hOpts))
}

type healthSink struct {
	health *HealthStatus
}

func (s *healthSink) Publish(_ context.Context, snap model.Snapshot) error {
	s.health.MarkSample(snap.Timestamp, snap.Seq, len(snap.Interfaces))
	return nil
}
