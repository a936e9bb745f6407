package model

import "time"

const (
	UptimeUnknown int64 = -1
	UptimeDown    int64 = 0
)

type WireGuardInfo struct {
	ListenPort    int       `json:"listen_port"`
	Peers         int       `json:"peers"`
	LastHandshake time.Time `json:"last_handshake,omitempty"`
}

// InterfaceSample is the per-interface state owned by the sampler.
type InterfaceSample struct {
	Name              string         `json:"name"`
	BytesIn           uint64         `json:"bytes_in"`
	BytesOut          uint64         `json:"bytes_out"`
	TotalIn           Total          `json:"total_in"`
	TotalOut          Total          `json:"total_out"`
	SpeedIn           float64        `json:"speed_in"`
	SpeedOut          float64        `json:"speed_out"`
	AverageIn         float64        `json:"average_in"`
	AverageOut        float64        `json:"average_out"`
	History           History        `json:"history"`
	Address           string         `json:"address,omitempty"`
	HardwareAddress   string         `json:"hardware_address,omitempty"`
	Status            string         `json:"status"`
	Present           bool           `json:"present"`
	IsWireless        bool           `json:"is_wireless"`
	Wireless          *WirelessInfo  `json:"wireless,omitempty"`
	WireGuard         *WireGuardInfo `json:"wireguard,omitempty"`
	NetworkAccounting bool           `json:"network_accounting"`
	UptimeSeconds     int64          `json:"uptime_seconds"`
}

func NewInterfaceSample(name string, historySize int, wireless bool) *InterfaceSample {
	s := &InterfaceSample{
		Name:          name,
		History:       NewHistory(historySize),
		Status:        UnknownValue,
		IsWireless:    wireless,
		UptimeSeconds: UptimeUnknown,
	}
	if wireless {
		s.Wireless = &WirelessInfo{Mode: ModeUnknown, AccessPoint: UnknownValue}
	}
	return s
}

// Clone returns a deep copy safe to hand to readers outside the sampler.
func (s *InterfaceSample) Clone() InterfaceSample {
	c := *s
	c.TotalIn = s.TotalIn.Clone()
	c.TotalOut = s.TotalOut.Clone()
	c.History = s.History.Clone()
	if s.Wireless != nil {
		w := *s.Wireless
		c.Wireless = &w
	}
	if s.WireGuard != nil {
		wg := *s.WireGuard
		c.WireGuard = &wg
	}
	return c
}

// Snapshot is the committed result of one tick.
type Snapshot struct {
	Seq        uint64            `json:"seq"`
	Timestamp  time.Time         `json:"timestamp"`
	Interval   time.Duration     `json:"interval"`
	Interfaces []InterfaceSample `json:"interfaces"`
}

func (s Snapshot) Interface(name string) (InterfaceSample, bool) {
	for _, iface := range s.Interfaces {
		if iface.Name == name {
			return iface, true
		}
	}
	return InterfaceSample{}, false
}
