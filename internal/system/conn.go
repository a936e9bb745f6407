package system

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"net-monitor/internal/faults"
	"net-monitor/internal/model"
)

var socketStates = map[uint8]string{
	0x01: "ESTABLISHED",
	0x02: "SYN_SENT",
	0x03: "SYN_RECV",
	0x04: "FIN_WAIT1",
	0x05: "FIN_WAIT2",
	0x06: "TIME_WAIT",
	0x07: "CLOSE",
	0x08: "CLOSE_WAIT",
	0x09: "LAST_ACK",
	0x0A: "LISTEN",
	0x0B: "CLOSING",
	0x0C: "NEW_SYN_RECV",
}

func ValidProtocol(proto string) bool {
	switch proto {
	case "tcp", "udp", "tcp6", "udp6":
		return true
	}
	return false
}

func ReadConnections(paths Paths, proto string) ([]model.Connection, error) {
	if !ValidProtocol(proto) {
		return []model.Connection{}, fmt.Errorf("unsupported protocol %q", proto)
	}
	path := paths.NetProto(proto)
	f, err := os.Open(path)
	if err != nil {
		return []model.Connection{}, faults.NewTransient("open "+path, err)
	}
	defer f.Close()
	conns, _, err := ParseConnections(proto, f)
	if err != nil {
		return []model.Connection{}, faults.NewTransient("scan "+path, err)
	}
	return conns, nil
}

// ParseConnections parses a kernel socket table; the header line is skipped.
func ParseConnections(proto string, r io.Reader) ([]model.Connection, int, error) {
	conns := []model.Connection{}
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
		c, err := parseConnectionLine(proto, line)
		if err != nil {
			skipped++
			continue
		}
		conns = append(conns, c)
	}
	if err := s.Err(); err != nil {
		return []model.Connection{}, skipped, fmt.Errorf("scan %s: %w", proto, err)
	}
	return conns, skipped, nil
}

func parseConnectionLine(proto, line string) (model.Connection, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return model.Connection{}, faults.NewMalformed(proto, "want at least 4 fields, got %d", len(fields))
	}
	localAddr, localPort, err := DecodeSocketAddress(fields[1])
	if err != nil {
		return model.Connection{}, err
	}
	remoteAddr, remotePort, err := DecodeSocketAddress(fields[2])
	if err != nil {
		return model.Connection{}, err
	}
	st, err := strconv.ParseUint(fields[3], 16, 8)
	if err != nil {
		return model.Connection{}, faults.NewMalformed(proto, "state %q: %v", fields[3], err)
	}
	status, ok := socketStates[uint8(st)]
	if !ok {
		status = strings.ToUpper(fields[3])
	}
	return model.Connection{
		Protocol:      proto,
		LocalAddress:  localAddr,
		LocalPort:     localPort,
		RemoteAddress: remoteAddr,
		RemotePort:    remotePort,
		Status:        status,
	}, nil
}

// DecodeSocketAddress decodes "HEXADDR:HEXPORT" into an address string and a
// port. IPv4 words and each IPv6 word are in host (little-endian) order.
func DecodeSocketAddress(raw string) (string, uint16, error) {
	addrHex, portHex, ok := strings.Cut(raw, ":")
	if !ok {
		return "", 0, faults.NewMalformed("socket address", "missing port in %q", raw)
	}
	port, err := strconv.ParseUint(portHex, 16, 16)
	if err != nil {
		return "", 0, faults.NewMalformed("socket address", "port %q: %v", portHex, err)
	}
	b, err := hex.DecodeString(addrHex)
	if err != nil {
		return "", 0, faults.NewMalformed("socket address", "address %q: %v", addrHex, err)
	}
	switch len(b) {
	case 4:
		return HexToIPv4(binary.BigEndian.Uint32(b)), uint16(port), nil
	case 16:
		var a [16]byte
		for i := 0; i < 16; i += 4 {
			binary.LittleEndian.PutUint32(a[i:], binary.BigEndian.Uint32(b[i:]))
		}
		return netip.AddrFrom16(a).String(), uint16(port), nil
	default:
		return "", 0, faults.NewMalformed("socket address", "address %q has %d bytes", addrHex, len(b))
	}
}
