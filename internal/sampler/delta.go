package sampler

import (
	"time"

	"net-monitor/internal/model"
)

// WrapModulus is the assumed counter width used to absorb a decreasing
// counter. It stays at 32 bits even on kernels exporting 64-bit counters;
// this is a heuristic, not an overflow detector.
const WrapModulus uint64 = 1 << 32

// Delta returns cur-prev, adding WrapModulus when the counter went backwards.
// A drop larger than the modulus cannot be a 32-bit wrap and yields 0, which
// keeps totals from ever shrinking.
func Delta(prev, cur uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	back := prev - cur
	if back > WrapModulus {
		return 0
	}
	return WrapModulus - back
}

// Advance applies one tick of counter readings to s. exists is false when the
// interface was missing from the counter table; that tick contributes no
// traffic.
func Advance(s *model.InterfaceSample, in, out uint64, exists bool, interval time.Duration) {
	prevIn, prevOut := s.BytesIn, s.BytesOut
	// First observation: suppress the spike from zero. This also hides a
	// genuine 0 -> n transition on the first real tick.
	if prevIn == 0 && prevOut == 0 {
		prevIn, prevOut = in, out
	}
	if !exists {
		prevIn, prevOut = in, out
	}

	deltaIn := Delta(prevIn, in)
	deltaOut := Delta(prevOut, out)
	s.TotalIn.Add(deltaIn)
	s.TotalOut.Add(deltaOut)

	secs := interval.Seconds()
	if secs <= 0 {
		secs = 1
	}
	s.SpeedIn = float64(deltaIn) / secs
	s.SpeedOut = float64(deltaOut) / secs
	s.History.Push(s.SpeedIn, s.SpeedOut)
	s.AverageIn, s.AverageOut = s.History.Average()

	s.BytesIn, s.BytesOut = in, out
	s.Present = exists
}
