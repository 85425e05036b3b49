package discovery

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ProbeResult is what a successful probe observed about one host.
type ProbeResult struct {
	IP         string
	Headers    http.Header // set when the primary web probe answered
	StatusCode int
	OpenPorts  []int
	Latency    time.Duration
}

// Prober tests whether a single host is reachable.
type Prober interface {
	// Probe returns false when neither the web probe nor any port answered.
	// Transport errors are never returned; they mean "not found".
	Probe(ctx context.Context, ip string) (*ProbeResult, bool)
}

// HostProber probes a host with an HTTP HEAD request and falls back to
// concurrent TCP connects over a fixed port list.
type HostProber struct {
	cfg    ProbeConfig
	client *http.Client
	dialer *net.Dialer
	logger *zap.Logger
}

// NewHostProber creates a HostProber from cfg.
func NewHostProber(cfg ProbeConfig, logger *zap.Logger) *HostProber {
	transport := &http.Transport{
		DisableKeepAlives:   true,
		MaxIdleConnsPerHost: -1,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // LAN devices use self-signed certs
	}
	return &HostProber{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			// Any answer proves the host is alive; do not chase redirects.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		dialer: &net.Dialer{},
		logger: logger,
	}
}

// Probe implements Prober.
func (p *HostProber) Probe(ctx context.Context, ip string) (*ProbeResult, bool) {
	if res, ok := p.probeWeb(ctx, ip); ok {
		return res, true
	}
	if ctx.Err() != nil {
		return nil, false
	}
	return p.probePorts(ctx, ip)
}

func (p *HostProber) probeWeb(ctx context.Context, ip string) (*ProbeResult, bool) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PrimaryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, webURL(ip, p.cfg.WebPort), http.NoBody)
	if err != nil {
		return nil, false
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("web probe failed", zap.String("ip", ip), zap.Error(err))
		return nil, false
	}
	resp.Body.Close()

	return &ProbeResult{
		IP:         ip,
		Headers:    resp.Header,
		StatusCode: resp.StatusCode,
		OpenPorts:  []int{p.cfg.WebPort},
		Latency:    time.Since(start),
	}, true
}

func (p *HostProber) probePorts(ctx context.Context, ip string) (*ProbeResult, bool) {
	var (
		mu      sync.Mutex
		open    []int
		fastest time.Duration
		wg      sync.WaitGroup
	)
	for _, port := range p.cfg.Ports {
		wg.Go(func() {
			rtt, ok := p.dial(ctx, ip, port)
			if !ok {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			open = append(open, port)
			if fastest == 0 || rtt < fastest {
				fastest = rtt
			}
		})
	}
	wg.Wait()

	if len(open) == 0 {
		return nil, false
	}
	slices.Sort(open)
	return &ProbeResult{IP: ip, OpenPorts: open, Latency: fastest}, true
}

func (p *HostProber) dial(ctx context.Context, ip string, port int) (time.Duration, bool) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PortTimeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return 0, false
	}
	conn.Close()
	return time.Since(start), true
}

func webURL(ip string, port int) string {
	if port == 80 || port == 0 {
		return "http://" + ip + "/"
	}
	return "http://" + net.JoinHostPort(ip, strconv.Itoa(port)) + "/"
}
