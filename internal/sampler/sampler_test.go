package sampler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"net-monitor/internal/faults"
	"net-monitor/internal/model"
	"net-monitor/internal/system"
)

type frameSource struct {
	mu     sync.Mutex
	frames []map[string]system.RawCounters
	next   int
}

func (f *frameSource) ReadCounters() (map[string]system.RawCounters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return map[string]system.RawCounters{}, nil
	}
	i := f.next
	if i >= len(f.frames) {
		i = len(f.frames) - 1
	}
	f.next++
	return f.frames[i], nil
}

func counters(rx, tx uint64) system.RawCounters {
	c := make(system.RawCounters, 16)
	c[0] = rx
	c[8] = tx
	return c
}

func frames(name string, pairs ...[2]uint64) []map[string]system.RawCounters {
	out := make([]map[string]system.RawCounters, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, map[string]system.RawCounters{name: counters(p[0], p[1])})
	}
	return out
}

// flakySource replays frames and fails the reads listed in failAt.
type flakySource struct {
	frames []map[string]system.RawCounters
	failAt map[int]bool
	next   int
}

func (f *flakySource) ReadCounters() (map[string]system.RawCounters, error) {
	i := f.next
	f.next++
	if f.failAt[i] {
		return map[string]system.RawCounters{}, faults.NewTransient("open /proc/net/dev", errors.New("input/output error"))
	}
	return f.frames[i], nil
}

type fakeLinks struct {
	mu       sync.Mutex
	calls    int
	failFrom int
}

func (f *fakeLinks) Resolve(name string) (system.LinkInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failFrom > 0 && f.calls >= f.failFrom {
		return system.LinkInfo{Status: "up"}, faults.NewTransient("netlink link "+name, errors.New("device or resource busy"))
	}
	return system.LinkInfo{Address: "192.168.1.20", HardwareAddress: "aa:bb:cc:dd:ee:ff", Status: "up"}, nil
}

type fakeWireless struct {
	err error
}

func (f fakeWireless) Query(name string, link int) (model.WirelessInfo, error) {
	return model.WirelessInfo{ESSID: "home", Mode: model.ModeManaged, LinkQuality: float64(link)}, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSampler(t *testing.T, cfg Config, src Sources) *Sampler {
	t.Helper()
	s, err := New(cfg, src, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func tickN(t *testing.T, s *Sampler, n int) model.Snapshot {
	t.Helper()
	var snap model.Snapshot
	for i := 0; i < n; i++ {
		var err error
		snap, err = s.Tick(context.Background())
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	return snap
}

func mustInterface(t *testing.T, snap model.Snapshot, name string) model.InterfaceSample {
	t.Helper()
	iface, ok := snap.Interface(name)
	if !ok {
		t.Fatalf("interface %s missing from snapshot %d", name, snap.Seq)
	}
	return iface
}

func TestDelta(t *testing.T) {
	cases := []struct {
		prev, cur, want uint64
	}{
		{10, 10, 0},
		{10, 25, 15},
		{4294967290, 5, 11},
		{1 << 40, 0, 0},
	}
	for _, tc := range cases {
		if got := Delta(tc.prev, tc.cur); got != tc.want {
			t.Errorf("Delta(%d, %d) = %d, want %d", tc.prev, tc.cur, got, tc.want)
		}
	}
}

func TestNewRequiresCounterSource(t *testing.T) {
	if _, err := New(Config{}, Sources{}, nil); err == nil {
		t.Fatal("expected error without counter source")
	}
}

func TestFirstTickHasNoSpike(t *testing.T) {
	src := &frameSource{frames: frames("eth0", [2]uint64{1000, 500})}
	s := newTestSampler(t, Config{}, Sources{Counters: src})

	eth := mustInterface(t, tickN(t, s, 1), "eth0")
	if eth.SpeedIn != 0 || eth.SpeedOut != 0 {
		t.Fatalf("first tick speed = (%v, %v), want 0", eth.SpeedIn, eth.SpeedOut)
	}
	if eth.TotalIn.Uint64() != 0 || eth.TotalOut.Uint64() != 0 {
		t.Fatalf("first tick totals = (%s, %s), want 0", eth.TotalIn, eth.TotalOut)
	}
	if eth.History.Len() != 1 {
		t.Fatalf("history len = %d, want 1", eth.History.Len())
	}
	if eth.BytesIn != 1000 || eth.BytesOut != 500 {
		t.Fatalf("stored counters = (%d, %d)", eth.BytesIn, eth.BytesOut)
	}
}

func TestSpeedUsesInterval(t *testing.T) {
	src := &frameSource{frames: frames("eth0", [2]uint64{1000, 100}, [2]uint64{3000, 500})}
	s := newTestSampler(t, Config{Interval: 2 * time.Second}, Sources{Counters: src})

	eth := mustInterface(t, tickN(t, s, 2), "eth0")
	if eth.SpeedIn != 1000 || eth.SpeedOut != 200 {
		t.Fatalf("speed = (%v, %v), want (1000, 200)", eth.SpeedIn, eth.SpeedOut)
	}
	if eth.TotalIn.Uint64() != 2000 || eth.TotalOut.Uint64() != 400 {
		t.Fatalf("totals = (%s, %s), want (2000, 400)", eth.TotalIn, eth.TotalOut)
	}
}

func TestCounterWrapIsAbsorbed(t *testing.T) {
	src := &frameSource{frames: frames("eth0", [2]uint64{4294967000, 1}, [2]uint64{4294967290, 1}, [2]uint64{5, 1})}
	s := newTestSampler(t, Config{}, Sources{Counters: src})

	var last model.Total
	for i := 0; i < 3; i++ {
		snap, err := s.Tick(context.Background())
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		eth := mustInterface(t, snap, "eth0")
		if eth.TotalIn.Cmp(last) < 0 {
			t.Fatalf("tick %d: total decreased from %s to %s", i, last, eth.TotalIn)
		}
		last = eth.TotalIn
	}
	if last.Uint64() != 290+11 {
		t.Fatalf("total in = %s, want 301", last)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	src := &frameSource{frames: frames("eth0",
		[2]uint64{100, 100}, [2]uint64{200, 100}, [2]uint64{400, 100},
		[2]uint64{700, 100}, [2]uint64{1100, 100})}
	s := newTestSampler(t, Config{HistorySize: 3}, Sources{Counters: src})

	eth := mustInterface(t, tickN(t, s, 5), "eth0")
	if eth.History.Len() != 3 {
		t.Fatalf("history len = %d, want 3", eth.History.Len())
	}
	want := []float64{200, 300, 400}
	for i, v := range want {
		if eth.History.In[i] != v {
			t.Fatalf("history in = %v, want %v", eth.History.In, want)
		}
	}
}

func TestAverageDividesByCapacity(t *testing.T) {
	src := &frameSource{frames: frames("eth0", [2]uint64{1000, 10}, [2]uint64{1300, 10})}
	s := newTestSampler(t, Config{}, Sources{Counters: src})

	eth := mustInterface(t, tickN(t, s, 2), "eth0")
	if eth.AverageIn != 6 {
		t.Fatalf("average in = %v, want 6", eth.AverageIn)
	}
	if eth.AverageOut != 0 {
		t.Fatalf("average out = %v, want 0", eth.AverageOut)
	}
}

func TestAbsentInterfaceIsRetainedWithoutSpike(t *testing.T) {
	src := &frameSource{frames: []map[string]system.RawCounters{
		{"eth0": counters(100, 100)},
		{"eth0": counters(300, 100)},
		{},
		{"eth0": counters(5000, 100)},
	}}
	s := newTestSampler(t, Config{}, Sources{Counters: src})

	tickN(t, s, 2)
	snap := tickN(t, s, 1)
	eth := mustInterface(t, snap, "eth0")
	if eth.Present {
		t.Fatal("eth0 reported present while absent from counter table")
	}
	if eth.SpeedIn != 0 || eth.BytesIn != 0 {
		t.Fatalf("absent tick: speed %v bytes %d, want 0", eth.SpeedIn, eth.BytesIn)
	}
	if eth.TotalIn.Uint64() != 200 {
		t.Fatalf("absent tick total = %s, want 200", eth.TotalIn)
	}

	eth = mustInterface(t, tickN(t, s, 1), "eth0")
	if !eth.Present {
		t.Fatal("eth0 should be present again")
	}
	if eth.SpeedIn != 0 || eth.TotalIn.Uint64() != 200 {
		t.Fatalf("reappearance: speed %v total %s, want 0 and 200", eth.SpeedIn, eth.TotalIn)
	}
}

func TestPruneStaleDropsInterface(t *testing.T) {
	src := &frameSource{frames: []map[string]system.RawCounters{
		{"eth0": counters(1, 1), "lo": counters(1, 1)},
		{"lo": counters(2, 2)},
	}}
	s := newTestSampler(t, Config{PruneStale: true}, Sources{Counters: src})

	snap := tickN(t, s, 2)
	if _, ok := snap.Interface("eth0"); ok {
		t.Fatal("eth0 should have been pruned")
	}
	if len(snap.Interfaces) != 1 {
		t.Fatalf("interfaces = %d, want 1", len(snap.Interfaces))
	}
}

func TestInterfacesAreSorted(t *testing.T) {
	src := &frameSource{frames: []map[string]system.RawCounters{
		{"wlan0": counters(1, 1), "eth0": counters(1, 1), "lo": counters(1, 1)},
	}}
	s := newTestSampler(t, Config{}, Sources{Counters: src})

	snap := tickN(t, s, 1)
	want := []string{"eth0", "lo", "wlan0"}
	for i, name := range want {
		if snap.Interfaces[i].Name != name {
			t.Fatalf("order = %v, want %v", snap.Interfaces, want)
		}
	}
}

func TestWirelessEnrichment(t *testing.T) {
	src := &frameSource{frames: frames("wlan0", [2]uint64{1, 1})}
	s := newTestSampler(t, Config{}, Sources{
		Counters:      src,
		Wireless:      fakeWireless{},
		HasWireless:   func(name string) bool { return name == "wlan0" },
		WirelessLinks: func() (map[string]int, error) { return map[string]int{"wlan0": 54}, nil },
	})

	wlan := mustInterface(t, tickN(t, s, 1), "wlan0")
	if !wlan.IsWireless || wlan.Wireless == nil {
		t.Fatal("wlan0 should carry wireless info")
	}
	if wlan.Wireless.ESSID != "home" || wlan.Wireless.LinkQuality != 54 {
		t.Fatalf("wireless = %+v", wlan.Wireless)
	}
}

func TestDefectIsReturnedAndTickCommits(t *testing.T) {
	src := &frameSource{frames: frames("wlan0", [2]uint64{1, 1})}
	s := newTestSampler(t, Config{}, Sources{
		Counters:    src,
		Wireless:    fakeWireless{err: faults.NewDefect("wireless mode", "mode index %d out of range", 9)},
		HasWireless: func(string) bool { return true },
	})

	snap, err := s.Tick(context.Background())
	if !faults.IsDefect(err) {
		t.Fatalf("Tick error = %v, want defect", err)
	}
	if snap.Seq != 1 || s.Snapshot().Seq != 1 {
		t.Fatalf("tick should still commit, seq = %d", snap.Seq)
	}
}

func TestCommittedSnapshotIsIsolated(t *testing.T) {
	src := &frameSource{frames: frames("eth0", [2]uint64{100, 100}, [2]uint64{200, 200}, [2]uint64{300, 300})}
	s := newTestSampler(t, Config{}, Sources{Counters: src})

	first := tickN(t, s, 1)
	tickN(t, s, 2)
	eth := mustInterface(t, first, "eth0")
	if eth.History.Len() != 1 || eth.BytesIn != 100 {
		t.Fatalf("earlier snapshot mutated: %+v", eth)
	}
	if s.Snapshot().Seq != 3 {
		t.Fatalf("latest seq = %d, want 3", s.Snapshot().Seq)
	}
}

func TestConcurrentTicksAreSerialized(t *testing.T) {
	src := &frameSource{frames: frames("eth0", [2]uint64{1, 1})}
	s := newTestSampler(t, Config{}, Sources{Counters: src})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Tick(context.Background())
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if snap.Seq != 10 {
		t.Fatalf("seq = %d, want 10", snap.Seq)
	}
	if got := mustInterface(t, snap, "eth0").History.Len(); got != 10 {
		t.Fatalf("history len = %d, want 10", got)
	}
}

func TestSubscribeReceivesLatest(t *testing.T) {
	src := &frameSource{frames: frames("eth0", [2]uint64{1, 1})}
	s := newTestSampler(t, Config{}, Sources{Counters: src})

	ch, cancel := s.Subscribe()
	defer cancel()
	tickN(t, s, 3)

	select {
	case snap := <-ch:
		if snap.Seq != 3 {
			t.Fatalf("received seq %d, want 3", snap.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestCancelledContextSkipsEnrichment(t *testing.T) {
	src := &frameSource{frames: frames("wlan0", [2]uint64{1, 1})}
	s := newTestSampler(t, Config{}, Sources{
		Counters:    src,
		Wireless:    fakeWireless{},
		HasWireless: func(string) bool { return true },
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap, err := s.Tick(ctx)
	if !errors.Is(err, context.Canceled) || faults.KindOf(err) != faults.Transient {
		t.Fatalf("Tick error = %v, want transient cancellation", err)
	}
	wlan := mustInterface(t, snap, "wlan0")
	if wlan.History.Len() != 1 {
		t.Fatal("counters must still advance on a cancelled tick")
	}
	if wlan.Wireless.ESSID != "" {
		t.Fatalf("wireless enrichment ran: %+v", wlan.Wireless)
	}
}

func TestPruneStaleSurvivesFailedRead(t *testing.T) {
	src := &flakySource{
		frames: []map[string]system.RawCounters{
			{"eth0": counters(1000, 10)},
			{"eth0": counters(3000, 10)},
			nil,
			{"eth0": counters(5000, 10)},
		},
		failAt: map[int]bool{2: true},
	}
	s := newTestSampler(t, Config{PruneStale: true}, Sources{Counters: src})

	tickN(t, s, 2)
	snap, err := s.Tick(context.Background())
	if faults.KindOf(err) != faults.Transient || err == nil {
		t.Fatalf("failed read error = %v, want transient", err)
	}
	eth := mustInterface(t, snap, "eth0")
	if eth.TotalIn.Uint64() != 2000 || eth.History.Len() != 3 {
		t.Fatalf("after failed read: total %s history %d, want 2000 and 3", eth.TotalIn, eth.History.Len())
	}

	eth = mustInterface(t, tickN(t, s, 1), "eth0")
	if eth.TotalIn.Uint64() != 2000 {
		t.Fatalf("after recovery total = %s, want 2000", eth.TotalIn)
	}
	if eth.History.Len() != 4 || !eth.Present {
		t.Fatalf("after recovery: history %d present %v", eth.History.Len(), eth.Present)
	}
}

func TestResolveFailureKeepsAddresses(t *testing.T) {
	src := &frameSource{frames: frames("eth0", [2]uint64{1, 1})}
	links := &fakeLinks{failFrom: 2}
	s := newTestSampler(t, Config{}, Sources{Counters: src, Links: links})

	tickN(t, s, 1)
	eth := mustInterface(t, tickN(t, s, 1), "eth0")
	if eth.Address != "192.168.1.20" || eth.HardwareAddress != "aa:bb:cc:dd:ee:ff" {
		t.Fatalf("addresses lost after resolve failure: address=%q hw=%q", eth.Address, eth.HardwareAddress)
	}
	if eth.Status != "up" {
		t.Fatalf("status = %q", eth.Status)
	}
}
