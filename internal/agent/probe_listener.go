package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"net-monitor/internal/stream"
)

// runProbeListener answers every connection on the probe socket with one line:
// "netmond:ok <seq>" while snapshots are fresh, "netmond:stale <seq>" otherwise.
func (a *Agent) runProbeListener(ctx context.Context) error {
	path := strings.TrimSpace(a.cfg.ProbeSocketPath)
	if path == "" {
		return fmt.Errorf("empty probe socket path")
	}

	ln, err := stream.ListenUnix(path)
	if err != nil {
		return fmt.Errorf("listen probe endpoint: %w", err)
	}
	defer func() { _ = ln.Close() }()

	a.logger.Info("probe endpoint listening", "path", path)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, acceptErr := ln.Accept()
		if acceptErr != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(acceptErr, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept probe endpoint %s: %w", path, acceptErr)
		}

		_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
		_, _ = conn.Write([]byte(a.probeLine(time.Now())))
		_ = conn.Close()
	}
}

func (a *Agent) probeLine(now time.Time) string {
	state := "ok"
	if !a.health.Fresh(now, a.maxSampleAge()) {
		state = "stale"
	}
	return fmt.Sprintf("netmond:%s %d\n", state, a.health.lastSeq.Load())
}
