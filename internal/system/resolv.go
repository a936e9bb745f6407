package system

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"net-monitor/internal/faults"
)

func ReadNameservers(paths Paths) ([]string, error) {
	f, err := os.Open(paths.ResolvConf)
	if err != nil {
		return []string{}, faults.NewTransient("open "+paths.ResolvConf, err)
	}
	defer f.Close()
	servers, err := ParseNameservers(f)
	if err != nil {
		return []string{}, faults.NewTransient("scan "+paths.ResolvConf, err)
	}
	return servers, nil
}

func ParseNameservers(r io.Reader) ([]string, error) {
	servers := []string{}
	s := bufio.NewScanner(r)
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) < 2 || fields[0] != "nameserver" {
			continue
		}
		servers = append(servers, fields[1])
	}
	if err := s.Err(); err != nil {
		return []string{}, fmt.Errorf("scan resolv.conf: %w", err)
	}
	return servers, nil
}
