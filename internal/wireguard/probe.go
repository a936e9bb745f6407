package wireguard

import (
	"fmt"

	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"net-monitor/internal/faults"
	"net-monitor/internal/model"
)

// LinkType is the rtnetlink kind reported for WireGuard devices.
const LinkType = "wireguard"

type Probe struct {
	client *wgctrl.Client
}

func NewProbe() (*Probe, error) {
	c, err := wgctrl.New()
	if err != nil {
		return nil, fmt.Errorf("open wgctrl client: %w", err)
	}
	return &Probe{client: c}, nil
}

func (p *Probe) Query(name string) (model.WireGuardInfo, error) {
	dev, err := p.client.Device(name)
	if err != nil {
		return model.WireGuardInfo{}, faults.NewTransient("wireguard device "+name, err)
	}
	return Summarize(dev), nil
}

func (p *Probe) Close() error {
	return p.client.Close()
}

func Summarize(dev *wgtypes.Device) model.WireGuardInfo {
	info := model.WireGuardInfo{ListenPort: dev.ListenPort, Peers: len(dev.Peers)}
	for _, peer := range dev.Peers {
		if peer.LastHandshakeTime.After(info.LastHandshake) {
			info.LastHandshake = peer.LastHandshakeTime
		}
	}
	return info
}
