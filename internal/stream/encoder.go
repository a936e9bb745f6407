package stream

import (
	"time"

	"net-monitor/internal/model"
	"net-monitor/internal/system"
)

type SnapshotRequest struct {
	// Interface limits the reply to one interface when set.
	Interface string `json:"interface,omitempty"`
}

type WatchRequest struct {
	Interface string `json:"interface,omitempty"`
}

type RoutesRequest struct {
	Interface string `json:"interface,omitempty"`
}

type NameserversRequest struct{}

type ConnectionsRequest struct {
	Protocol string `json:"protocol"`
}

type SnapshotFrame struct {
	Seq            uint64                  `json:"seq"`
	TimestampUnix  int64                   `json:"timestamp_unix"`
	IntervalMillis int64                   `json:"interval_ms"`
	Interfaces     []model.InterfaceSample `json:"interfaces"`
}

type RoutesFrame struct {
	Routes         []model.Route `json:"routes"`
	DefaultGateway string        `json:"default_gateway,omitempty"`
}

type NameserversFrame struct {
	Nameservers []string `json:"nameservers"`
}

type ConnectionsFrame struct {
	Protocol    string             `json:"protocol"`
	Connections []model.Connection `json:"connections"`
}

// NewSnapshotFrame converts a committed snapshot. It reports false when iface
// is set and not part of the snapshot.
func NewSnapshotFrame(snap model.Snapshot, iface string) (SnapshotFrame, bool) {
	frame := SnapshotFrame{
		Seq:            snap.Seq,
		TimestampUnix:  snap.Timestamp.Unix(),
		IntervalMillis: snap.Interval.Milliseconds(),
		Interfaces:     snap.Interfaces,
	}
	if iface == "" {
		return frame, true
	}
	sample, ok := snap.Interface(iface)
	if !ok {
		frame.Interfaces = nil
		return frame, false
	}
	frame.Interfaces = []model.InterfaceSample{sample}
	return frame, true
}

func (f SnapshotFrame) Interval() time.Duration {
	return time.Duration(f.IntervalMillis) * time.Millisecond
}

func (f SnapshotFrame) Timestamp() time.Time {
	return time.Unix(f.TimestampUnix, 0).UTC()
}

func NewRoutesFrame(routes []model.Route, iface string) RoutesFrame {
	frame := RoutesFrame{Routes: make([]model.Route, 0, len(routes))}
	for _, r := range routes {
		if iface == "" || r.Interface == iface {
			frame.Routes = append(frame.Routes, r)
		}
	}
	frame.DefaultGateway, _ = system.DefaultGateway(frame.Routes, iface)
	return frame
}
