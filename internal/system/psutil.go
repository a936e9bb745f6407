package system

import (
	psnet "github.com/shirou/gopsutil/v3/net"

	"net-monitor/internal/faults"
)

// PsutilSource reads the same counters through gopsutil. Fields gopsutil does
// not expose are reported as zero so the receive/transmit offsets match
// /proc/net/dev.
type PsutilSource struct{}

func NewPsutilSource() *PsutilSource {
	return &PsutilSource{}
}

func (PsutilSource) ReadCounters() (map[string]RawCounters, error) {
	stats, err := psnet.IOCounters(true)
	if err != nil {
		return map[string]RawCounters{}, faults.NewTransient("gopsutil io counters", err)
	}
	out := make(map[string]RawCounters, len(stats))
	for _, st := range stats {
		out[st.Name] = RawCounters{
			st.BytesRecv, st.PacketsRecv, st.Errin, st.Dropin, st.Fifoin, 0, 0, 0,
			st.BytesSent, st.PacketsSent, st.Errout, st.Dropout, st.Fifoout, 0, 0, 0,
		}
	}
	return out, nil
}
