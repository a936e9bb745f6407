package model

type Route struct {
	Interface   string `json:"interface"`
	Destination uint32 `json:"destination"`
	Gateway     uint32 `json:"gateway"`
	Netmask     uint32 `json:"netmask"`
	Metric      uint32 `json:"metric"`
	GatewayIP   string `json:"gateway_ip"`
}

func (r Route) IsDefault() bool {
	return r.Destination == 0 && r.Netmask == 0
}

type Connection struct {
	Protocol      string `json:"protocol"`
	LocalAddress  string `json:"local_address"`
	LocalPort     uint16 `json:"local_port"`
	RemoteAddress string `json:"remote_address"`
	RemotePort    uint16 `json:"remote_port"`
	Status        string `json:"status"`
}

type UptimeStatus string

const (
	StatusUp   UptimeStatus = "UP"
	StatusDown UptimeStatus = "DOWN"
)

type UptimeLogEntry struct {
	Interface string       `json:"interface"`
	Status    UptimeStatus `json:"status"`
	Timestamp int64        `json:"timestamp"`
}
