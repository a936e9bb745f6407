package system

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"net-monitor/internal/faults"
	"net-monitor/internal/model"
)

const (
	routeIfaceCol   = 0
	routeDestCol    = 1
	routeGatewayCol = 2
	routeMetricCol  = 6
	routeMaskCol    = 7
)

func ReadRoutes(paths Paths) ([]model.Route, error) {
	path := paths.NetRoute()
	f, err := os.Open(path)
	if err != nil {
		return []model.Route{}, faults.NewTransient("open "+path, err)
	}
	defer f.Close()

	routes, _, err := ParseRoutes(f)
	if err != nil {
		return []model.Route{}, faults.NewTransient("scan "+path, err)
	}
	return routes, nil
}

// ParseRoutes parses the kernel routing table. Destination, gateway, metric and
// mask columns are read as hexadecimal.
func ParseRoutes(r io.Reader) ([]model.Route, int, error) {
	routes := []model.Route{}
	skipped := 0
	s := bufio.NewScanner(r)
	header := true
	for s.Scan() {
		if header {
			header = false
			continue
		}
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		route, err := parseRouteLine(line)
		if err != nil {
			skipped++
			continue
		}
		routes = append(routes, route)
	}
	if err := s.Err(); err != nil {
		return []model.Route{}, skipped, fmt.Errorf("scan routes: %w", err)
	}
	return routes, skipped, nil
}

func parseRouteLine(line string) (model.Route, error) {
	fields := strings.Fields(line)
	if len(fields) <= routeMaskCol {
		return model.Route{}, faults.NewMalformed("route", "want at least %d fields, got %d", routeMaskCol+1, len(fields))
	}
	var vals [4]uint32
	for i, col := range []int{routeDestCol, routeGatewayCol, routeMaskCol, routeMetricCol} {
		v, err := strconv.ParseUint(fields[col], 16, 32)
		if err != nil {
			return model.Route{}, faults.NewMalformed("route", "column %d %q: %v", col, fields[col], err)
		}
		vals[i] = uint32(v)
	}
	return model.Route{
		Interface:   fields[routeIfaceCol],
		Destination: vals[0],
		Gateway:     vals[1],
		Netmask:     vals[2],
		Metric:      vals[3],
		GatewayIP:   HexToIPv4(vals[1]),
	}, nil
}

// HexToIPv4 renders a kernel address word, stored in host (little-endian)
// byte order, as a dotted quad.
func HexToIPv4(v uint32) string {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b).String()
}

func DefaultRoutes(routes []model.Route) []model.Route {
	out := []model.Route{}
	for _, r := range routes {
		if r.IsDefault() {
			out = append(out, r)
		}
	}
	return out
}

// DefaultGateway returns the gateway of the first default route via iface, or
// of any interface when iface is empty.
func DefaultGateway(routes []model.Route, iface string) (string, bool) {
	for _, r := range DefaultRoutes(routes) {
		if iface == "" || r.Interface == iface {
			return r.GatewayIP, true
		}
	}
	return "", false
}
