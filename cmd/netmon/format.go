package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"net-monitor/internal/agent/version"
	"net-monitor/internal/model"
	"net-monitor/internal/stream"
	"net-monitor/internal/system"
)

func rate(bytesPerSec float64) string {
	if bytesPerSec < 0 {
		bytesPerSec = 0
	}
	return humanize.Bytes(uint64(bytesPerSec)) + "/s"
}

func uptime(seconds int64, now time.Time) string {
	switch {
	case seconds == model.UptimeUnknown:
		return "unknown"
	case seconds == model.UptimeDown:
		return "down"
	}
	return "up since " + humanize.RelTime(time.Unix(seconds, 0), now, "ago", "from now")
}

func writeFrame(w io.Writer, frame stream.SnapshotFrame) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IFACE\tSTATUS\tADDRESS\tRX\tTX\tRX AVG\tTX AVG\tRX TOTAL\tTX TOTAL\tUPTIME")
	now := time.Now()
	for _, s := range frame.Interfaces {
		status := s.Status
		if !s.Present {
			status += " (absent)"
		}
		addr := s.Address
		if addr == "" {
			addr = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Name, status, addr,
			rate(s.SpeedIn), rate(s.SpeedOut),
			rate(s.AverageIn), rate(s.AverageOut),
			humanize.BigBytes(s.TotalIn.Big()), humanize.BigBytes(s.TotalOut.Big()),
			uptime(s.UptimeSeconds, now))
	}
	_ = tw.Flush()

	for _, s := range frame.Interfaces {
		if s.Wireless != nil {
			wl := s.Wireless
			fmt.Fprintf(w, "  %s: essid=%q mode=%s ap=%s bitrate=%s quality=%.0f%%\n",
				s.Name, wl.ESSID, wl.Mode, wl.AccessPoint,
				humanize.SI(wl.Bitrate, "b/s"), wl.LinkQuality)
		}
		if s.WireGuard != nil {
			wg := s.WireGuard
			handshake := "never"
			if !wg.LastHandshake.IsZero() {
				handshake = humanize.Time(wg.LastHandshake)
			}
			fmt.Fprintf(w, "  %s: wireguard port=%d peers=%d handshake=%s\n",
				s.Name, wg.ListenPort, wg.Peers, handshake)
		}
	}
}

func writeRoutes(w io.Writer, frame stream.RoutesFrame) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IFACE\tDEST\tMASK\tGATEWAY\tMETRIC\tDEFAULT")
	for _, r := range frame.Routes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%t\n",
			r.Interface, system.HexToIPv4(r.Destination), system.HexToIPv4(r.Netmask),
			r.GatewayIP, r.Metric, r.IsDefault())
	}
	_ = tw.Flush()
	if frame.DefaultGateway != "" {
		fmt.Fprintf(w, "default gateway: %s\n", frame.DefaultGateway)
	}
}

func writeConnections(w io.Writer, frame stream.ConnectionsFrame) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROTO\tLOCAL\tREMOTE\tSTATE")
	for _, c := range frame.Connections {
		fmt.Fprintf(tw, "%s\t%s:%d\t%s:%d\t%s\n",
			c.Protocol, c.LocalAddress, c.LocalPort, c.RemoteAddress, c.RemotePort, c.Status)
	}
	_ = tw.Flush()
}

func writeVersion(w io.Writer, resp version.GetVersionResponse) {
	fmt.Fprintf(w, "version:        %s\n", resp.Version)
	fmt.Fprintf(w, "counter source: %s\n", resp.CounterSource)
	fmt.Fprintf(w, "interval:       %s\n", resp.Interval)
	fmt.Fprintf(w, "socket:         %s\n", resp.SocketPath)
	fmt.Fprintf(w, "probe socket:   %s\n", resp.ProbeSocketPath)
	fmt.Fprintf(w, "checked at:     %s\n", time.Unix(resp.CheckedAtUnix, 0).UTC().Format(time.RFC3339))
}
