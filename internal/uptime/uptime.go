package uptime

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"net-monitor/internal/faults"
	"net-monitor/internal/model"
)

const DefaultLogPath = "/var/log/net_monitor.log"

// Reader derives per-interface uptime from an append-only transition log with
// lines of the form "iface:STATUS:epoch". The log is re-parsed on every call.
type Reader struct {
	Path string
}

func NewReader(path string) *Reader {
	if path == "" {
		path = DefaultLogPath
	}
	return &Reader{Path: path}
}

// Uptimes returns, per interface, -1 when no UP entry exists, 0 when the
// latest DOWN is newer than the latest UP, and otherwise the latest UP epoch.
// A missing or unreadable log yields an empty map.
func (r *Reader) Uptimes() (map[string]int64, error) {
	f, err := os.Open(r.Path)
	if err != nil {
		return map[string]int64{}, faults.NewTransient("open "+r.Path, err)
	}
	defer f.Close()

	entries, _, err := ParseLog(f)
	if err != nil {
		return map[string]int64{}, faults.NewTransient("scan "+r.Path, err)
	}
	return Derive(entries), nil
}

func ParseLog(rd io.Reader) ([]model.UptimeLogEntry, int, error) {
	entries := []model.UptimeLogEntry{}
	skipped := 0
	s := bufio.NewScanner(rd)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			skipped++
			continue
		}
		entries = append(entries, entry)
	}
	if err := s.Err(); err != nil {
		return []model.UptimeLogEntry{}, skipped, fmt.Errorf("scan uptime log: %w", err)
	}
	return entries, skipped, nil
}

func parseLine(line string) (model.UptimeLogEntry, error) {
	parts := strings.Split(line, ":")
	if len(parts) != 3 {
		return model.UptimeLogEntry{}, faults.NewMalformed("uptime log", "want 3 fields, got %d in %q", len(parts), line)
	}
	status := model.UptimeStatus(strings.TrimSpace(parts[1]))
	if status != model.StatusUp && status != model.StatusDown {
		return model.UptimeLogEntry{}, faults.NewMalformed("uptime log", "unknown status %q", parts[1])
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
	if err != nil {
		return model.UptimeLogEntry{}, faults.NewMalformed("uptime log", "timestamp %q: %v", parts[2], err)
	}
	return model.UptimeLogEntry{
		Interface: strings.TrimSpace(parts[0]),
		Status:    status,
		Timestamp: ts,
	}, nil
}

func Derive(entries []model.UptimeLogEntry) map[string]int64 {
	type marks struct {
		up, down int64
		seenUp   bool
	}
	byIface := map[string]*marks{}
	for _, e := range entries {
		m, ok := byIface[e.Interface]
		if !ok {
			m = &marks{}
			byIface[e.Interface] = m
		}
		switch e.Status {
		case model.StatusUp:
			if !m.seenUp || e.Timestamp > m.up {
				m.up = e.Timestamp
			}
			m.seenUp = true
		case model.StatusDown:
			if e.Timestamp > m.down {
				m.down = e.Timestamp
			}
		}
	}

	out := make(map[string]int64, len(byIface))
	for iface, m := range byIface {
		switch {
		case !m.seenUp:
			out[iface] = model.UptimeUnknown
		case m.down > m.up:
			out[iface] = model.UptimeDown
		default:
			out[iface] = m.up
		}
	}
	return out
}

// Lookup returns the uptime of iface, -1 if the log never mentions it.
func Lookup(uptimes map[string]int64, iface string) int64 {
	if v, ok := uptimes[iface]; ok {
		return v
	}
	return model.UptimeUnknown
}
