package discovery

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/networknest/networknest/pkg/models"
)

const defaultCommunity = "public"

// RouterSettings identify the router to interrogate.
type RouterSettings struct {
	Host          string `json:"host"`
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	SNMPCommunity string `json:"snmpCommunity,omitempty"`
}

// routerStage is one discovery source tried against the router.
type routerStage struct {
	name string
	// when reports whether the stage runs, given the settings and the
	// number of devices found by earlier stages.
	when func(s RouterSettings, found int) bool
	run  func(ctx context.Context, s RouterSettings, b *deviceBuilder) []models.DiscoveredDevice
}

// RouterDiscoverer finds devices through a home router: its SNMP ARP
// table, its admin web interface and a short ping list of common hosts.
type RouterDiscoverer struct {
	cfg       Config
	arp       ARPTableSource
	prober    Prober
	oui       *OUITable
	neighbors NeighborSource // optional
	client    *http.Client
	logger    *zap.Logger
	now       func() time.Time
	stages    []routerStage
}

// RouterOption customizes a RouterDiscoverer.
type RouterOption func(*RouterDiscoverer)

// WithRouterNeighbors sets the ARP cache used to find the router's own MAC.
func WithRouterNeighbors(n NeighborSource) RouterOption {
	return func(r *RouterDiscoverer) { r.neighbors = n }
}

// WithRouterClock overrides the time source used for first_seen.
func WithRouterClock(now func() time.Time) RouterOption {
	return func(r *RouterDiscoverer) { r.now = now }
}

// NewRouterDiscoverer creates a discoverer that reads ARP tables from arp
// and enriches hosts with prober.
func NewRouterDiscoverer(cfg Config, arp ARPTableSource, prober Prober, oui *OUITable, logger *zap.Logger, opts ...RouterOption) *RouterDiscoverer {
	r := &RouterDiscoverer{
		cfg:    cfg,
		arp:    arp,
		prober: prober,
		oui:    oui,
		logger: logger,
		now:    time.Now,
		client: &http.Client{
			Transport: &http.Transport{
				DisableKeepAlives: true,
				TLSClientConfig:   &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // router admin pages use self-signed certs
			},
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.stages = []routerStage{
		{
			name: "snmp",
			when: func(RouterSettings, int) bool { return true },
			run:  r.snmpStage,
		},
		{
			name: "web",
			when: func(s RouterSettings, _ int) bool { return s.Username != "" && s.Password != "" },
			run:  r.webStage,
		},
		{
			name: "arp",
			when: func(_ RouterSettings, found int) bool { return found == 0 },
			run:  r.arpStage,
		},
	}
	return r
}

// Discover runs the router stages in order and merges their results. A
// device is skipped when its MAC or IP was already reported by an earlier
// stage. Stage failures are logged; they never fail the run.
func (r *RouterDiscoverer) Discover(ctx context.Context, s RouterSettings) ([]models.DiscoveredDevice, error) {
	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		return nil, &ValidationError{Field: "host", Reason: "router host is required"}
	}
	if s.SNMPCommunity == "" {
		s.SNMPCommunity = defaultCommunity
	}

	builder := newDeviceBuilder(r.now, r.cfg.SynthesizeTelemetry, uint64(r.now().UnixNano()))
	devices := make([]models.DiscoveredDevice, 0)
	seenMAC := make(map[string]bool)
	seenIP := make(map[string]bool)

	for _, st := range r.stages {
		if !st.when(s, len(devices)) {
			continue
		}
		found := st.run(ctx, s, builder)
		added := 0
		for _, d := range found {
			mac := strings.ToLower(d.MAC)
			if seenMAC[mac] || seenIP[d.IP] {
				continue
			}
			seenMAC[mac] = true
			seenIP[d.IP] = true
			devices = append(devices, d)
			added++
		}
		r.logger.Debug("router stage finished",
			zap.String("stage", st.name),
			zap.Int("found", len(found)),
			zap.Int("added", added),
		)
		if err := ctx.Err(); err != nil {
			return devices, fmt.Errorf("router discovery interrupted: %w", err)
		}
	}
	return devices, nil
}

// target is a host to enrich, with what is already known about it.
type target struct {
	ip    string
	mac   string
	extra map[string]any
}

// probeAll probes targets through the bounded pool. Results are indexed
// like targets; a nil entry means the host did not answer.
func (r *RouterDiscoverer) probeAll(ctx context.Context, targets []target) []*ProbeResult {
	results := make([]*ProbeResult, len(targets))
	var g errgroup.Group
	g.SetLimit(max(1, r.cfg.MaxConcurrency))
	for i, t := range targets {
		g.Go(func() error {
			if res, ok := r.prober.Probe(ctx, t.ip); ok {
				results[i] = res
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// enrich classifies a host from its probe result and position hints.
func (r *RouterDiscoverer) enrich(b *deviceBuilder, t target, res *ProbeResult, id string, method models.DiscoveryMethod) models.DiscoveredDevice {
	var sig Signals
	var latency time.Duration
	if res != nil {
		sig = Signals{Headers: res.Headers, OpenPorts: res.OpenPorts}
		latency = res.Latency
	}
	if t.mac != "" && r.oui != nil {
		sig.Vendor = r.oui.Lookup(t.mac)
	}
	class := Classify(sig)
	applyHostHint(&class, t.ip)

	name := ""
	if class.Name != "" {
		name = fmt.Sprintf("%s (%s)", class.Name, t.ip)
	}
	return b.build(observation{
		id:        id,
		ip:        t.ip,
		mac:       t.mac,
		name:      name,
		class:     class,
		openPorts: sig.OpenPorts,
		latency:   latency,
		method:    method,
		extra:     t.extra,
	})
}

// applyHostHint uses the conventional role of .1 (gateway) and .10
// (server) addresses when the probe alone was inconclusive.
func applyHostHint(c *Classification, ip string) {
	switch c.Type {
	case models.DeviceTypeUnknown, models.DeviceTypeNetworkDevice, models.DeviceTypeWebServer:
	default:
		return
	}
	switch {
	case strings.HasSuffix(ip, ".1"):
		c.Type, c.Name = models.DeviceTypeRouter, "Router"
		if c.Manufacturer == manufacturerUnknown {
			c.Manufacturer = manufacturerVarious
		}
	case strings.HasSuffix(ip, ".10"):
		c.Type, c.Name = models.DeviceTypeServer, "Network Server"
	}
}

func (r *RouterDiscoverer) snmpStage(ctx context.Context, s RouterSettings, b *deviceBuilder) []models.DiscoveredDevice {
	if r.arp == nil {
		return nil
	}
	entries, err := r.arp.ARPTable(ctx, s.Host, s.SNMPCommunity)
	if err != nil {
		r.logger.Warn("snmp arp walk failed",
			zap.String("host", s.Host),
			zap.Int("partial_entries", len(entries)),
			zap.Error(err),
		)
		if len(entries) == 0 {
			return nil
		}
	}

	targets := make([]target, len(entries))
	for i, e := range entries {
		targets[i] = target{ip: e.IP, mac: e.MAC, extra: map[string]any{"interface": e.IfIndex}}
	}
	results := r.probeAll(ctx, targets)

	devices := make([]models.DiscoveredDevice, 0, len(targets))
	for i, t := range targets {
		devices = append(devices, r.enrich(b, t, results[i], DeviceID(prefixSNMP, t.mac), models.DiscoverySNMP))
	}
	return devices
}

func (r *RouterDiscoverer) webStage(ctx context.Context, s RouterSettings, b *deviceBuilder) []models.DiscoveredDevice {
	for _, tmpl := range r.cfg.Router.WebURLTemplates {
		u := strings.ReplaceAll(tmpl, "{host}", s.Host)
		resp, err := r.fetchAdmin(ctx, u, s)
		if err != nil {
			r.logger.Debug("router web interface unreachable", zap.String("url", u), zap.Error(err))
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			r.logger.Debug("router web interface refused", zap.String("url", u), zap.Int("status", resp.StatusCode))
			continue
		}
		return []models.DiscoveredDevice{r.routerRecord(ctx, s.Host, u, resp, b)}
	}
	return nil
}

func (r *RouterDiscoverer) fetchAdmin(ctx context.Context, u string, s RouterSettings) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Router.WebTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(s.Username, s.Password)
	req.Header.Set("User-Agent", r.cfg.Probe.UserAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	return resp, nil
}

func (r *RouterDiscoverer) routerRecord(ctx context.Context, host, u string, resp *http.Response, b *deviceBuilder) models.DiscoveredDevice {
	ip := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		ip = h
	}

	mac := ""
	if r.neighbors != nil {
		if table, err := r.neighbors.Neighbors(ctx); err == nil {
			mac = table[ip]
		}
	}

	ports := []int{urlPort(u)}
	var latency time.Duration
	if res, ok := r.prober.Probe(ctx, ip); ok {
		ports = res.OpenPorts
		latency = res.Latency
	}

	manufacturer := resp.Header.Get("Server")
	if manufacturer == "" {
		manufacturer = manufacturerUnknown
	}
	key := ip
	if mac != "" {
		key = mac
	}
	return b.build(observation{
		id:   DeviceID(prefixRouter, key),
		ip:   ip,
		mac:  mac,
		name: "Home Router",
		class: Classification{
			Type:         models.DeviceTypeRouter,
			Manufacturer: manufacturer,
			Services:     ServicesForPorts(ports),
		},
		openPorts: ports,
		latency:   latency,
		method:    models.DiscoveryRouterWeb,
		extra:     map[string]any{"interface_url": u},
	})
}

func urlPort(u string) int {
	parsed, err := url.Parse(u)
	if err != nil {
		return 80
	}
	if p, err := strconv.Atoi(parsed.Port()); err == nil {
		return p
	}
	if parsed.Scheme == "https" {
		return 443
	}
	return 80
}

func (r *RouterDiscoverer) arpStage(ctx context.Context, s RouterSettings, b *deviceBuilder) []models.DiscoveredDevice {
	host := s.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	base, ok := subnetBase(host)
	if !ok {
		r.logger.Warn("router host is not an IPv4 address, skipping ping list", zap.String("host", s.Host))
		return nil
	}

	suffixes := r.cfg.Router.ARPHostSuffixes
	live := make([]bool, len(suffixes))
	var g errgroup.Group
	g.SetLimit(max(1, r.cfg.MaxConcurrency))
	for i, suffix := range suffixes {
		g.Go(func() error {
			live[i] = r.ping(ctx, fmt.Sprintf("%s.%d", base, suffix))
			return nil
		})
	}
	_ = g.Wait()

	var neighbors NeighborTable
	if r.neighbors != nil {
		neighbors, _ = r.neighbors.Neighbors(ctx)
	}

	targets := make([]target, 0, len(suffixes))
	for i, suffix := range suffixes {
		if live[i] {
			ip := fmt.Sprintf("%s.%d", base, suffix)
			targets = append(targets, target{ip: ip, mac: neighbors[ip]})
		}
	}
	results := r.probeAll(ctx, targets)

	devices := make([]models.DiscoveredDevice, 0, len(targets))
	for i, t := range targets {
		devices = append(devices, r.enrich(b, t, results[i], DeviceID(prefixARP, t.ip), models.DiscoveryARP))
	}
	return devices
}

// ping reports whether ip answers an HTTP HEAD with success or an auth
// challenge.
func (r *RouterDiscoverer) ping(ctx context.Context, ip string) bool {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Router.ARPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, webURL(ip, r.cfg.Probe.WebPort), http.NoBody)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", r.cfg.Probe.UserAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return true
	}
	return false
}
