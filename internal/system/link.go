package system

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/vishvananda/netlink"

	"net-monitor/internal/faults"
	"net-monitor/internal/model"
)

// LinkInfo is what the resolver knows about one interface. Empty strings mean
// the value could not be resolved.
type LinkInfo struct {
	Address         string
	HardwareAddress string
	Status          string
	Type            string
}

type LinkResolver interface {
	Resolve(name string) (LinkInfo, error)
}

// NetlinkResolver resolves addresses over rtnetlink and the operational state
// from sysfs, falling back to the netlink view when sysfs is unreadable.
type NetlinkResolver struct {
	paths Paths
}

func NewNetlinkResolver(paths Paths) *NetlinkResolver {
	return &NetlinkResolver{paths: paths}
}

func (r *NetlinkResolver) Resolve(name string) (LinkInfo, error) {
	info := LinkInfo{Status: r.operState(name)}

	link, err := netlink.LinkByName(name)
	if err != nil {
		return info, faults.NewTransient("netlink link "+name, err)
	}
	attrs := link.Attrs()
	info.Type = link.Type()
	if len(attrs.HardwareAddr) > 0 {
		info.HardwareAddress = attrs.HardwareAddr.String()
	}
	if info.Status == model.UnknownValue {
		info.Status = operStateName(attrs.OperState)
	}

	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return info, faults.NewTransient("netlink addr "+name, err)
	}
	for _, addr := range addrs {
		if addr.IPNet != nil && addr.IP.To4() != nil {
			info.Address = addr.IP.String()
			break
		}
	}
	return info, nil
}

func (r *NetlinkResolver) operState(name string) string {
	raw, err := os.ReadFile(r.paths.netClass(name, "operstate"))
	if err != nil {
		return model.UnknownValue
	}
	state := strings.TrimSpace(string(raw))
	if state == "" {
		return model.UnknownValue
	}
	return state
}

func operStateName(s netlink.LinkOperState) string {
	switch s {
	case netlink.OperUp:
		return "up"
	case netlink.OperDown:
		return "down"
	case netlink.OperDormant:
		return "dormant"
	case netlink.OperLowerLayerDown:
		return "lowerlayerdown"
	case netlink.OperNotPresent:
		return "notpresent"
	case netlink.OperTesting:
		return "testing"
	default:
		return model.UnknownValue
	}
}

// HasNetworkAccounting reports whether vnstat keeps a database for name.
func HasNetworkAccounting(paths Paths, name string) bool {
	if paths.VnstatDir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(paths.VnstatDir, name))
	return err == nil
}
