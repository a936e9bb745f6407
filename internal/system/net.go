package system

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"net-monitor/internal/faults"
)

const (
	rxBytesField = 0
	txBytesField = 8
)

// RawCounters holds every numeric field after the colon of one /proc/net/dev line.
type RawCounters []uint64

func (c RawCounters) RxBytes() uint64 { return c.field(rxBytesField) }
func (c RawCounters) TxBytes() uint64 { return c.field(txBytesField) }

func (c RawCounters) field(i int) uint64 {
	if i >= len(c) {
		return 0
	}
	return c[i]
}

type CounterSource interface {
	// ReadCounters never returns a nil map. On failure the map is empty and
	// the error is transient.
	ReadCounters() (map[string]RawCounters, error)
}

type ProcNetDev struct {
	Path string
}

func NewProcNetDev(paths Paths) *ProcNetDev {
	return &ProcNetDev{Path: paths.NetDev()}
}

func (p *ProcNetDev) ReadCounters() (map[string]RawCounters, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return map[string]RawCounters{}, faults.NewTransient("open "+p.Path, err)
	}
	defer f.Close()

	out, _, err := ParseNetDev(f)
	if err != nil {
		return map[string]RawCounters{}, faults.NewTransient("scan "+p.Path, err)
	}
	return out, nil
}

// ParseNetDev parses the per-device statistics table. The two header lines are
// skipped; lines that do not parse are skipped and counted.
func ParseNetDev(r io.Reader) (map[string]RawCounters, int, error) {
	out := map[string]RawCounters{}
	skipped := 0
	s := bufio.NewScanner(r)
	lineNo := 0
	for s.Scan() {
		lineNo++
		if lineNo <= 2 {
			continue
		}
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		name, counters, err := parseNetDevLine(line)
		if err != nil {
			skipped++
			continue
		}
		out[name] = counters
	}
	if err := s.Err(); err != nil {
		return map[string]RawCounters{}, skipped, fmt.Errorf("scan net dev: %w", err)
	}
	return out, skipped, nil
}

func parseNetDevLine(line string) (string, RawCounters, error) {
	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return "", nil, faults.NewMalformed("net dev", "missing colon in %q", line)
	}
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return "", nil, faults.NewMalformed("net dev", "empty device name in %q", line)
	}
	fields := strings.Fields(parts[1])
	if len(fields) <= txBytesField {
		return "", nil, faults.NewMalformed("net dev", "%s: want at least %d fields, got %d", name, txBytesField+1, len(fields))
	}
	counters := make(RawCounters, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return "", nil, faults.NewMalformed("net dev", "%s: field %q: %v", name, field, err)
		}
		counters = append(counters, v)
	}
	return name, counters, nil
}

// GetTraffic returns the receive and transmit byte counters of name. Absent
// interfaces report (0, 0, false).
func GetTraffic(name string, snapshot map[string]RawCounters) (in, out uint64, exists bool) {
	c, ok := snapshot[name]
	if !ok {
		return 0, 0, false
	}
	return c.RxBytes(), c.TxBytes(), true
}
