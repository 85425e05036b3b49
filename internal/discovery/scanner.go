package discovery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/networknest/networknest/pkg/models"
)

// RangeScanner sweeps CIDR ranges with a bounded pool of host probes.
type RangeScanner struct {
	cfg       Config
	prober    Prober
	neighbors NeighborSource // optional
	latency   LatencyMeter   // optional
	hostnames HostnameSource // optional
	oui       *OUITable
	limiter   *rate.Limiter // optional
	metrics   *Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// ScannerOption customizes a RangeScanner.
type ScannerOption func(*RangeScanner)

// WithNeighbors sets the ARP cache used to attach real MACs to found hosts.
func WithNeighbors(n NeighborSource) ScannerOption {
	return func(s *RangeScanner) { s.neighbors = n }
}

// HostnameSource maps IPv4 addresses to advertised host names.
type HostnameSource interface {
	Hostnames(ctx context.Context) (map[string]string, error)
}

// WithHostnames names found hosts from an announcement source such as mDNS.
func WithHostnames(h HostnameSource) ScannerOption {
	return func(s *RangeScanner) { s.hostnames = h }
}

// WithLatencyMeter measures response time for found hosts.
func WithLatencyMeter(m LatencyMeter) ScannerOption {
	return func(s *RangeScanner) { s.latency = m }
}

// WithMetrics records probe outcomes.
func WithMetrics(m *Metrics) ScannerOption {
	return func(s *RangeScanner) { s.metrics = m }
}

// WithClock overrides the time source used for first_seen.
func WithClock(now func() time.Time) ScannerOption {
	return func(s *RangeScanner) { s.now = now }
}

// NewRangeScanner creates a scanner that probes hosts with prober.
func NewRangeScanner(cfg Config, prober Prober, oui *OUITable, logger *zap.Logger, opts ...ScannerOption) *RangeScanner {
	s := &RangeScanner{
		cfg:    cfg,
		prober: prober,
		oui:    oui,
		logger: logger,
		now:    time.Now,
	}
	if cfg.ProbesPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.ProbesPerSecond), max(1, cfg.MaxConcurrency))
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// hostHit pairs a probed address with its probe result.
type hostHit struct {
	ip  string
	res *ProbeResult
}

// ScanRanges probes every candidate host of every CIDR and returns one
// device per responding host. Hosts that do not answer are dropped. The
// result is unordered and not de-duplicated across ranges. Every CIDR is
// validated before any probe is sent.
func (s *RangeScanner) ScanRanges(ctx context.Context, cidrs []string) ([]models.DiscoveredDevice, error) {
	ranges := make([][]string, 0, len(cidrs))
	for _, cidr := range cidrs {
		hosts, err := ExpandRange(cidr)
		if err != nil {
			return nil, err
		}
		if IsTruncated(cidr) {
			s.logger.Warn("prefix shorter than /24, scanning final octet only",
				zap.String("cidr", cidr),
				zap.Int("hosts", len(hosts)),
			)
		}
		ranges = append(ranges, hosts)
	}

	neighbors := s.readNeighbors(ctx)
	names := s.readHostnames(ctx)
	builder := newDeviceBuilder(s.now, s.cfg.SynthesizeTelemetry, uint64(s.now().UnixNano()))

	devices := make([]models.DiscoveredDevice, 0)
	for i, hosts := range ranges {
		s.logger.Info("scanning range", zap.String("cidr", cidrs[i]), zap.Int("hosts", len(hosts)))
		hits, err := s.sweep(ctx, hosts)
		if err != nil {
			return devices, err
		}
		for _, h := range hits {
			devices = append(devices, s.toDevice(builder, h, neighbors, names))
		}
	}
	return devices, nil
}

// sweep probes hosts through the bounded pool and returns the responders.
func (s *RangeScanner) sweep(ctx context.Context, hosts []string) ([]hostHit, error) {
	results := make([]*ProbeResult, len(hosts))

	var g errgroup.Group
	g.SetLimit(max(1, s.cfg.MaxConcurrency))
	for i, ip := range hosts {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				break
			}
		}
		g.Go(func() error {
			res, ok := s.prober.Probe(ctx, ip)
			s.metrics.observeProbe(ok)
			if !ok {
				return nil
			}
			if s.latency != nil {
				if rtt, err := s.latency.Measure(ctx, ip); err == nil {
					res.Latency = rtt
				}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}

	hits := make([]hostHit, 0)
	for i, res := range results {
		if res != nil {
			hits = append(hits, hostHit{ip: hosts[i], res: res})
		}
	}
	return hits, nil
}

func (s *RangeScanner) readNeighbors(ctx context.Context) NeighborTable {
	if s.neighbors == nil {
		return nil
	}
	table, err := s.neighbors.Neighbors(ctx)
	if err != nil {
		s.logger.Debug("arp cache unavailable", zap.Error(err))
		return nil
	}
	return table
}

func (s *RangeScanner) readHostnames(ctx context.Context) map[string]string {
	if s.hostnames == nil {
		return nil
	}
	names, err := s.hostnames.Hostnames(ctx)
	if err != nil {
		s.logger.Debug("hostname lookup failed", zap.Error(err))
	}
	return names
}

func (s *RangeScanner) toDevice(b *deviceBuilder, h hostHit, neighbors NeighborTable, hostnames map[string]string) models.DiscoveredDevice {
	mac := neighbors[h.ip]
	var vendor string
	if mac != "" && s.oui != nil {
		vendor = s.oui.Lookup(mac)
	}
	hostname := hostnames[h.ip]
	class := Classify(Signals{Headers: h.res.Headers, OpenPorts: h.res.OpenPorts, Hostname: hostname, Vendor: vendor})

	name := ""
	switch {
	case class.Name != "":
		name = fmt.Sprintf("%s (%s)", class.Name, h.ip)
	case hostname != "":
		name = hostname
	}
	extra := map[string]any{}
	if hostname != "" {
		extra["hostname"] = hostname
	}
	if h.res.StatusCode != 0 {
		extra["http_status"] = h.res.StatusCode
	}
	if server := h.res.Headers.Get("Server"); server != "" {
		extra["server"] = server
	}

	return b.build(observation{
		id:           DeviceID(prefixRangeScan, h.ip),
		ip:           h.ip,
		mac:          mac,
		name:         name,
		class:        class,
		openPorts:    h.res.OpenPorts,
		latency:      h.res.Latency,
		method:       models.DiscoveryRangeScan,
		extra:        extra,
		latencyRange: [2]int{10, 109},
	})
}
