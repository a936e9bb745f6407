package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"net-monitor/internal/faults"
	"net-monitor/internal/model"
	"net-monitor/internal/system"
	"net-monitor/internal/uptime"
	"net-monitor/internal/wireguard"
)

const DefaultInterval = time.Second

type WirelessProber interface {
	Query(name string, link int) (model.WirelessInfo, error)
}

type TunnelProber interface {
	Query(name string) (model.WireGuardInfo, error)
}

type UptimeSource interface {
	Uptimes() (map[string]int64, error)
}

// Sources are the collaborators a tick reads from. Only Counters is required.
type Sources struct {
	Counters      system.CounterSource
	Links         system.LinkResolver
	Wireless      WirelessProber
	WireGuard     TunnelProber
	Uptime        UptimeSource
	HasWireless   func(name string) bool
	WirelessLinks func() (map[string]int, error)
	Accounting    func(name string) bool
}

type Config struct {
	Interval    time.Duration
	HistorySize int
	// PruneStale drops interfaces that vanish from a successfully read counter
	// table. When false they are kept and report zero traffic while absent.
	PruneStale bool
}

type Sampler struct {
	mu      sync.Mutex
	cfg     Config
	src     Sources
	logger  *slog.Logger
	samples map[string]*model.InterfaceSample
	seq     uint64

	snapMu   sync.RWMutex
	snapshot model.Snapshot
	subs     map[chan model.Snapshot]struct{}
}

func New(cfg Config, src Sources, logger *slog.Logger) (*Sampler, error) {
	if src.Counters == nil {
		return nil, errors.New("sampler: counter source is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = model.DefaultHistorySize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		cfg:      cfg,
		src:      src,
		logger:   logger,
		samples:  map[string]*model.InterfaceSample{},
		snapshot: model.Snapshot{Interval: cfg.Interval, Interfaces: []model.InterfaceSample{}},
		subs:     map[chan model.Snapshot]struct{}{},
	}, nil
}

func (s *Sampler) Interval() time.Duration {
	return s.cfg.Interval
}

// Tick runs one pass over all interfaces and commits a snapshot. Concurrent
// calls are serialized; a tick requested while another runs waits for it.
// The returned error joins every defect and transient failure of the pass;
// the snapshot is committed regardless.
func (s *Sampler) Tick(ctx context.Context) (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	counters, err := s.src.Counters.ReadCounters()
	// A failed read says nothing about which interfaces exist.
	readOK := err == nil
	if err != nil {
		s.logger.Debug("counter read failed, no interfaces observed this tick", "error", err)
		errs = append(errs, err)
	}
	s.discover(counters)

	links := map[string]int{}
	if s.src.WirelessLinks != nil && s.anyWireless() {
		if links, err = s.src.WirelessLinks(); err != nil {
			s.logger.Debug("wireless link table unavailable", "error", err)
		}
	}
	uptimes := map[string]int64{}
	if s.src.Uptime != nil {
		if uptimes, err = s.src.Uptime.Uptimes(); err != nil {
			s.logger.Debug("uptime log unavailable", "error", err)
		}
	}

	for _, name := range s.names() {
		sample := s.samples[name]
		in, out, exists := system.GetTraffic(name, counters)
		if !exists && readOK && s.cfg.PruneStale {
			s.logger.Info("interface disappeared, pruning", "interface", name)
			delete(s.samples, name)
			continue
		}
		Advance(sample, in, out, exists, s.cfg.Interval)
		sample.UptimeSeconds = uptime.Lookup(uptimes, name)

		if ctxErr := ctx.Err(); ctxErr != nil {
			errs = append(errs, faults.NewTransient("enrich "+name, ctxErr))
			continue
		}
		if err := s.enrich(sample, links); err != nil {
			errs = append(errs, err)
		}
	}

	snap := s.commit()
	return snap, errors.Join(errs...)
}

func (s *Sampler) discover(counters map[string]system.RawCounters) {
	for name := range counters {
		if _, ok := s.samples[name]; ok {
			continue
		}
		wireless := s.src.HasWireless != nil && s.src.HasWireless(name)
		s.samples[name] = model.NewInterfaceSample(name, s.cfg.HistorySize, wireless)
		s.logger.Info("tracking interface", "interface", name, "wireless", wireless)
	}
}

func (s *Sampler) anyWireless() bool {
	for _, sample := range s.samples {
		if sample.IsWireless {
			return true
		}
	}
	return false
}

func (s *Sampler) names() []string {
	names := make([]string, 0, len(s.samples))
	for name := range s.samples {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// enrich refreshes the lazily resolved attributes. Transient failures keep the
// previous values; only defects are returned.
func (s *Sampler) enrich(sample *model.InterfaceSample, links map[string]int) error {
	name := sample.Name
	var linkType string
	if s.src.Links != nil {
		info, err := s.src.Links.Resolve(name)
		if err != nil {
			s.logger.Debug("link resolve failed", "interface", name, "error", err)
		} else {
			sample.Address = info.Address
			sample.HardwareAddress = info.HardwareAddress
		}
		if info.Status != "" {
			sample.Status = info.Status
		}
		linkType = info.Type
	}
	if s.src.Accounting != nil {
		sample.NetworkAccounting = s.src.Accounting(name)
	}

	if sample.IsWireless && s.src.Wireless != nil {
		info, err := s.src.Wireless.Query(name, links[name])
		sample.Wireless = &info
		if err != nil {
			if faults.IsDefect(err) {
				s.logger.Error("wireless probe invariant violated", "interface", name, "error", err)
				return fmt.Errorf("interface %s: %w", name, err)
			}
			s.logger.Debug("wireless probe failed", "interface", name, "error", err)
		}
	}

	if linkType == wireguard.LinkType && s.src.WireGuard != nil {
		info, err := s.src.WireGuard.Query(name)
		if err != nil {
			s.logger.Debug("wireguard probe failed", "interface", name, "error", err)
		} else {
			sample.WireGuard = &info
		}
	}
	return nil
}

func (s *Sampler) commit() model.Snapshot {
	s.seq++
	snap := model.Snapshot{
		Seq:        s.seq,
		Timestamp:  time.Now().UTC(),
		Interval:   s.cfg.Interval,
		Interfaces: make([]model.InterfaceSample, 0, len(s.samples)),
	}
	for _, name := range s.names() {
		snap.Interfaces = append(snap.Interfaces, s.samples[name].Clone())
	}

	s.snapMu.Lock()
	s.snapshot = snap
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
	s.snapMu.Unlock()
	return snap
}

// Snapshot returns the last committed snapshot. It never observes a tick in
// progress. Callers must treat it as read-only.
func (s *Sampler) Snapshot() model.Snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snapshot
}

// Subscribe delivers every committed snapshot. Slow receivers only see the
// latest one. The returned func unsubscribes.
func (s *Sampler) Subscribe() (<-chan model.Snapshot, func()) {
	ch := make(chan model.Snapshot, 1)
	s.snapMu.Lock()
	s.subs[ch] = struct{}{}
	s.snapMu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.snapMu.Lock()
			delete(s.subs, ch)
			s.snapMu.Unlock()
		})
	}
}
