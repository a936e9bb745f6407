package agent

import (
	"sync/atomic"
	"time"
)

type HealthStatus struct {
	samplerRunning   atomic.Bool
	serviceListening atomic.Bool
	lastSampleAt     atomic.Int64
	lastSeq          atomic.Uint64
	interfaces       atomic.Int64
}

func NewHealthStatus() *HealthStatus {
	return &HealthStatus{}
}

func (h *HealthStatus) SetSamplerRunning(ok bool) {
	h.samplerRunning.Store(ok)
}

func (h *HealthStatus) SetServiceListening(ok bool) {
	h.serviceListening.Store(ok)
}

func (h *HealthStatus) MarkSample(ts time.Time, seq uint64, interfaces int) {
	h.lastSampleAt.Store(ts.UnixNano())
	h.lastSeq.Store(seq)
	h.interfaces.Store(int64(interfaces))
}

// Fresh reports whether a sample was committed within maxAge of now.
func (h *HealthStatus) Fresh(now time.Time, maxAge time.Duration) bool {
	v := h.lastSampleAt.Load()
	if v == 0 {
		return false
	}
	return now.Sub(time.Unix(0, v)) <= maxAge
}

func (h *HealthStatus) Snapshot() map[string]any {
	out := map[string]any{
		"sampler_running":   h.samplerRunning.Load(),
		"service_listening": h.serviceListening.Load(),
		"last_seq":          h.lastSeq.Load(),
		"interfaces":        h.interfaces.Load(),
	}
	if v := h.lastSampleAt.Load(); v > 0 {
		out["last_sample_at"] = time.Unix(0, v).UTC()
	}
	return out
}
