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

// HasWireless reports whether the kernel exposes wireless attributes for name.
func HasWireless(paths Paths, name string) bool {
	_, err := os.Stat(paths.netClass(name, "wireless"))
	return err == nil
}

// ReadWirelessLinks returns the raw link value per interface from
// /proc/net/wireless.
func ReadWirelessLinks(paths Paths) (map[string]int, error) {
	path := paths.NetWireless()
	f, err := os.Open(path)
	if err != nil {
		return map[string]int{}, faults.NewTransient("open "+path, err)
	}
	defer f.Close()

	out, _, err := ParseWirelessLinks(f)
	if err != nil {
		return map[string]int{}, faults.NewTransient("scan "+path, err)
	}
	return out, nil
}

func ParseWirelessLinks(r io.Reader) (map[string]int, int, error) {
	out := map[string]int{}
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
		name, params, ok := strings.Cut(line, ":")
		if !ok {
			skipped++
			continue
		}
		// Kernel marks updated values with a trailing dot.
		fields := strings.Fields(strings.ReplaceAll(params, ".", ""))
		if len(fields) < 2 {
			skipped++
			continue
		}
		link, err := strconv.Atoi(fields[1])
		if err != nil {
			skipped++
			continue
		}
		out[strings.TrimSpace(name)] = link
	}
	if err := s.Err(); err != nil {
		return map[string]int{}, skipped, fmt.Errorf("scan wireless: %w", err)
	}
	return out, skipped, nil
}
