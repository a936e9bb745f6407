package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"net-monitor/internal/faults"
	"net-monitor/internal/model"
)

// Ticker is one sampling pass. The sampler implements it.
type Ticker interface {
	Tick(ctx context.Context) (model.Snapshot, error)
	Interval() time.Duration
}

// Sink receives every committed snapshot.
type Sink interface {
	Publish(ctx context.Context, snap model.Snapshot) error
}

type SinkFunc func(ctx context.Context, snap model.Snapshot) error

func (f SinkFunc) Publish(ctx context.Context, snap model.Snapshot) error {
	return f(ctx, snap)
}

type Scheduler struct {
	logger       *slog.Logger
	ticker       Ticker
	sinks        []Sink
	tickTimeout  time.Duration
	errorBackoff time.Duration
}

func NewScheduler(logger *slog.Logger, ticker Ticker, tickTimeout, errorBackoff time.Duration, sinks ...Sink) *Scheduler {
	if errorBackoff <= 0 {
		errorBackoff = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger:       logger,
		ticker:       ticker,
		sinks:        sinks,
		tickTimeout:  tickTimeout,
		errorBackoff: errorBackoff,
	}
}

// Run ticks until ctx is done or a tick reports a defect. A tick that
// overruns the interval delays the next one; ticks never overlap.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.ticker.Interval())
	defer ticker.Stop()

	if err := s.tickAndPublish(ctx); err != nil {
		if faults.IsDefect(err) {
			return err
		}
		s.logger.Warn("initial tick incomplete", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := s.tickAndPublish(ctx)
			if err == nil {
				continue
			}
			if faults.IsDefect(err) {
				s.logger.Error("sampling stopped on invariant violation", "error", err)
				return err
			}
			s.logger.Debug("tick incomplete", "error", err)
			if errors.Is(err, context.DeadlineExceeded) {
				s.logger.Warn("tick overran its deadline, backing off", "timeout", s.tickTimeout, "backoff", s.errorBackoff)
				s.sleepWithContext(ctx, s.errorBackoff)
			}
		}
	}
}

func (s *Scheduler) tickAndPublish(ctx context.Context) error {
	tickCtx := ctx
	if s.tickTimeout > 0 {
		var cancel context.CancelFunc
		tickCtx, cancel = context.WithTimeout(ctx, s.tickTimeout)
		defer cancel()
	}

	snap, tickErr := s.ticker.Tick(tickCtx)
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, snap); err != nil {
			s.logger.Warn("snapshot publish failed", "seq", snap.Seq, "error", err)
		}
	}
	if tickErr != nil {
		return fmt.Errorf("tick %d: %w", snap.Seq, tickErr)
	}
	return nil
}

func (s *Scheduler) sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
