package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"net-monitor/internal/agent/version"
	"net-monitor/internal/faults"
	"net-monitor/internal/model"
)

type fakeSource struct {
	mu   sync.Mutex
	snap model.Snapshot
	subs []chan model.Snapshot
}

func (f *fakeSource) Snapshot() model.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource) Subscribe() (<-chan model.Snapshot, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan model.Snapshot, 4)
	f.subs = append(f.subs, ch)
	return ch, func() {}
}

func (f *fakeSource) publish(snap model.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = snap
	for _, ch := range f.subs {
		ch <- snap
	}
}

type fakeTables struct {
	err error
}

func (f fakeTables) Routes() ([]model.Route, error) {
	return []model.Route{
		{Interface: "eth0", GatewayIP: "192.168.1.1"},
		{Interface: "eth0", Destination: 0x0001A8C0, Netmask: 0x00FFFFFF, GatewayIP: "0.0.0.0"},
		{Interface: "wlan0", GatewayIP: "10.0.0.1"},
	}, f.err
}

func (f fakeTables) Nameservers() ([]string, error) {
	return []string{"1.1.1.1", "9.9.9.9"}, f.err
}

func (f fakeTables) Connections(proto string) ([]model.Connection, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []model.Connection{{Protocol: proto, LocalAddress: "127.0.0.1", LocalPort: 22, Status: "LISTEN"}}, nil
}

func snapshotWith(seq uint64, names ...string) model.Snapshot {
	snap := model.Snapshot{Seq: seq, Timestamp: time.Unix(1700000000, 0), Interval: time.Second}
	for _, name := range names {
		snap.Interfaces = append(snap.Interfaces, *model.NewInterfaceSample(name, 5, false))
	}
	return snap
}

func startServer(t *testing.T, source Source, tables TableSource) *Client {
	t.Helper()
	return startServerWithVersion(t, source, tables, nil)
}

func startServerWithVersion(t *testing.T, source Source, tables TableSource, versionFn VersionFunc) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(logger, source, tables, versionFn)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	})

	client, err := NewClient("passthrough:///bufnet", logger,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSnapshot(t *testing.T) {
	source := &fakeSource{snap: snapshotWith(7, "eth0", "lo")}
	client := startServer(t, source, fakeTables{})
	ctx := testContext(t)

	frame, err := client.Snapshot(ctx, "")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if frame.Seq != 7 || len(frame.Interfaces) != 2 || frame.Interval() != time.Second {
		t.Fatalf("frame = %+v", frame)
	}

	frame, err = client.Snapshot(ctx, "lo")
	if err != nil {
		t.Fatalf("Snapshot(lo): %v", err)
	}
	if len(frame.Interfaces) != 1 || frame.Interfaces[0].Name != "lo" {
		t.Fatalf("filtered frame = %+v", frame)
	}
	if frame.Interfaces[0].History.Capacity != 5 {
		t.Fatalf("history capacity lost in transit: %+v", frame.Interfaces[0].History)
	}
}

func TestSnapshotUnknownInterface(t *testing.T) {
	client := startServer(t, &fakeSource{snap: snapshotWith(1, "eth0")}, fakeTables{})

	_, err := client.Snapshot(testContext(t), "wlan9")
	if status.Code(errors.Unwrap(err)) != codes.NotFound {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestRoutesAndNameservers(t *testing.T) {
	client := startServer(t, &fakeSource{}, fakeTables{})
	ctx := testContext(t)

	routes, err := client.Routes(ctx, "eth0")
	if err != nil {
		t.Fatalf("Routes: %v", err)
	}
	if len(routes.Routes) != 2 || routes.DefaultGateway != "192.168.1.1" {
		t.Fatalf("routes = %+v", routes)
	}

	servers, err := client.Nameservers(ctx)
	if err != nil {
		t.Fatalf("Nameservers: %v", err)
	}
	if len(servers) != 2 || servers[0] != "1.1.1.1" {
		t.Fatalf("nameservers = %v", servers)
	}
}

func TestConnections(t *testing.T) {
	client := startServer(t, &fakeSource{}, fakeTables{})
	ctx := testContext(t)

	conns, err := client.Connections(ctx, "tcp")
	if err != nil {
		t.Fatalf("Connections: %v", err)
	}
	if conns.Protocol != "tcp" || len(conns.Connections) != 1 || conns.Connections[0].LocalPort != 22 {
		t.Fatalf("connections = %+v", conns)
	}

	_, err = client.Connections(ctx, "sctp")
	if status.Code(errors.Unwrap(err)) != codes.InvalidArgument {
		t.Fatalf("err = %v, want InvalidArgument", err)
	}
}

func TestTableReadFailureIsUnavailable(t *testing.T) {
	tables := fakeTables{err: faults.NewTransient("open /proc/net/route", errors.New("no such file"))}
	client := startServer(t, &fakeSource{}, tables)

	_, err := client.Routes(testContext(t), "")
	if status.Code(errors.Unwrap(err)) != codes.Unavailable {
		t.Fatalf("err = %v, want Unavailable", err)
	}
}

func TestWatchStreamsEveryTick(t *testing.T) {
	source := &fakeSource{snap: snapshotWith(1, "eth0")}
	client := startServer(t, source, fakeTables{})
	ctx, cancel := context.WithCancel(testContext(t))
	defer cancel()

	var seqs []uint64
	err := client.Watch(ctx, "eth0", func(f SnapshotFrame) error {
		seqs = append(seqs, f.Seq)
		switch f.Seq {
		case 1:
			// Republishing the current tick must not produce a duplicate.
			source.publish(snapshotWith(1, "eth0"))
			source.publish(snapshotWith(2, "eth0"))
			source.publish(snapshotWith(3, "eth0"))
		case 3:
			cancel()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	want := []uint64{1, 2, 3}
	if len(seqs) != len(want) {
		t.Fatalf("seqs = %v, want %v", seqs, want)
	}
	for i := range want {
		if seqs[i] != want[i] {
			t.Fatalf("seqs = %v, want %v", seqs, want)
		}
	}
}

func TestListenUnixReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "netmond.sock")
	first, err := ListenUnix(path)
	if err != nil {
		t.Fatalf("ListenUnix: %v", err)
	}
	// Leave the socket file behind as a crashed daemon would.
	if ul, ok := first.(*net.UnixListener); ok {
		ul.SetUnlinkOnClose(false)
	}
	_ = first.Close()

	second, err := ListenUnix(path)
	if err != nil {
		t.Fatalf("ListenUnix over stale socket: %v", err)
	}
	_ = second.Close()
}

func TestVersion(t *testing.T) {
	versionFn := func(*version.GetVersionRequest) *version.GetVersionResponse {
		return &version.GetVersionResponse{
			Version:         "V0.1",
			SocketPath:      "/run/net-monitor/netmond.sock",
			ProbeSocketPath: "/run/net-monitor/probe.sock",
			CheckedAtUnix:   1700000000,
		}
	}
	client := startServerWithVersion(t, &fakeSource{}, fakeTables{}, versionFn)

	resp, err := client.Version(testContext(t))
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if resp.Version != "V0.1" || resp.SocketPath != "/run/net-monitor/netmond.sock" || resp.CheckedAtUnix != 1700000000 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestVersionUnconfigured(t *testing.T) {
	client := startServer(t, &fakeSource{}, fakeTables{})

	_, err := client.Version(testContext(t))
	if status.Code(errors.Unwrap(err)) != codes.Unimplemented {
		t.Fatalf("err = %v, want Unimplemented", err)
	}
}
