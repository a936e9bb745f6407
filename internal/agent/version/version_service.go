package version

import (
	"time"

	"net-monitor/internal/config"
)

func Get(cfg config.Config, _ *GetVersionRequest) *GetVersionResponse {
	return &GetVersionResponse{
		Version:         cfg.Version,
		CounterSource:   string(cfg.CounterSource),
		SocketPath:      cfg.SocketPath,
		ProbeSocketPath: cfg.ProbeSocketPath,
		Interval:        cfg.Interval.String(),
		CheckedAtUnix:   time.Now().UTC().Unix(),
	}
}
