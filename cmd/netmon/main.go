package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"net-monitor/internal/stream"
)

const defaultSocket = "/run/net-monitor/netmond.sock"

func main() {
	socketDefault := os.Getenv("NETMON_SOCKET")
	if socketDefault == "" {
		socketDefault = defaultSocket
	}

	socket := flag.String("socket", socketDefault, "netmond snapshot socket (env NETMON_SOCKET)")
	iface := flag.String("iface", "", "show only this interface")
	watch := flag.Bool("watch", false, "print a frame on every tick until interrupted")
	routes := flag.Bool("routes", false, "print the routing table")
	dns := flag.Bool("dns", false, "print configured nameservers")
	conns := flag.String("conns", "", "print the connection table for tcp, tcp6, udp or udp6")
	showVersion := flag.Bool("version", false, "print the daemon version and socket paths")
	timeout := flag.Duration("timeout", 3*time.Second, "timeout for one-shot requests")
	flag.Parse()

	client, err := stream.DialSocket(*socket, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		log.Fatalf("connect %s: %v", *socket, err)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, client, os.Stdout, options{
		iface:   *iface,
		watch:   *watch,
		routes:  *routes,
		dns:     *dns,
		conns:   *conns,
		version: *showVersion,
		timeout: *timeout,
	}); err != nil {
		log.Fatal(err)
	}
}

type options struct {
	iface   string
	watch   bool
	routes  bool
	dns     bool
	conns   string
	version bool
	timeout time.Duration
}

func run(ctx context.Context, client *stream.Client, w io.Writer, opts options) error {
	if opts.watch {
		return client.Watch(ctx, opts.iface, func(frame stream.SnapshotFrame) error {
			fmt.Fprintf(w, "-- tick %d at %s\n", frame.Seq, frame.Timestamp().Local().Format(time.TimeOnly))
			writeFrame(w, frame)
			return nil
		})
	}

	callCtx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	switch {
	case opts.version:
		resp, err := client.Version(callCtx)
		if err != nil {
			return err
		}
		writeVersion(w, resp)
	case opts.routes:
		frame, err := client.Routes(callCtx, opts.iface)
		if err != nil {
			return err
		}
		writeRoutes(w, frame)
	case opts.dns:
		servers, err := client.Nameservers(callCtx)
		if err != nil {
			return err
		}
		for _, s := range servers {
			fmt.Fprintln(w, s)
		}
	case opts.conns != "":
		frame, err := client.Connections(callCtx, opts.conns)
		if err != nil {
			return err
		}
		writeConnections(w, frame)
	default:
		frame, err := client.Snapshot(callCtx, opts.iface)
		if err != nil {
			return err
		}
		writeFrame(w, frame)
	}
	return nil
}
