package wireless

import (
	"math"
	"net"

	"net-monitor/internal/faults"
	"net-monitor/internal/model"
)

// Offsets of max_qual.qual inside struct iw_range for the two layouts the
// kernel has used, and of we_version_compiled in the current one.
const (
	maxQualOffset      = 44
	maxQualOffsetWE15  = 148
	weVersionOffset    = 280
	legacyRangeMinSize = 300
)

// DecodeMode maps the kernel mode index onto the fixed mode table.
func DecodeMode(raw uint32) (model.WirelessMode, error) {
	if raw >= uint32(model.WirelessModeCount()) {
		return model.ModeUnknown, faults.NewDefect("wireless mode", "index %d outside the %d-entry mode table", raw, model.WirelessModeCount())
	}
	return model.WirelessMode(raw), nil
}

// DecodeBitrate turns a (mantissa, exponent) pair into bits per second. Kilo is
// 10^3 in wireless-extension units.
func DecodeBitrate(mantissa int32, exponent int16) float64 {
	if exponent == 0 {
		return float64(mantissa)
	}
	return float64(mantissa) * math.Pow10(int(exponent))
}

// Quality normalizes a raw link value to a percentage of the hardware maximum.
func Quality(link, maxQuality int) float64 {
	if maxQuality <= 0 || link <= 0 {
		return 0
	}
	return float64(link) * 100 / float64(maxQuality)
}

func decodeMaxQuality(buf []byte, length int) int {
	version := 9
	if length >= legacyRangeMinSize && len(buf) > weVersionOffset {
		version = int(buf[weVersionOffset])
	}
	off := maxQualOffsetWE15
	if version > 15 {
		off = maxQualOffset
	}
	if off >= len(buf) {
		return 0
	}
	return int(buf[off])
}

func decodeAccessPoint(sockaddr []byte) string {
	if len(sockaddr) < 8 {
		return model.UnknownValue
	}
	return net.HardwareAddr(sockaddr[2:8]).String()
}

func trimNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
