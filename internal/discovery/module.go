package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/networknest/networknest/internal/auth"
	"github.com/networknest/networknest/internal/monitoring"
	"github.com/networknest/networknest/internal/plugin"
	"github.com/networknest/networknest/internal/server"
	"github.com/networknest/networknest/pkg/models"
)

// Discovery methods as recorded in discovery_runs.
const (
	MethodScan   = "scan"
	MethodRouter = "router"
	MethodUniFi  = "unifi"
)

// maxBodyBytes caps discovery request bodies.
const maxBodyBytes = 64 << 10

// Plugin exposes device discovery over HTTP and persists its results.
type Plugin struct {
	cfg        Config
	logger     *zap.Logger
	scanner    *RangeScanner
	router     *RouterDiscoverer
	controller *ControllerDiscoverer
	history    *monitoring.HistoryRepository
	runs       *monitoring.RunRepository
	metrics    *Metrics
	limiters   *userLimiters
}

// New creates a discovery plugin.
func New() *Plugin {
	return &Plugin{}
}

func (p *Plugin) Name() string    { return "discovery" }
func (p *Plugin) Version() string { return "0.1.0" }

func (p *Plugin) Init(deps plugin.Dependencies) error {
	p.logger = deps.Logger
	if deps.Store == nil {
		return errors.New("discovery requires a store")
	}

	p.cfg = DefaultConfig()
	if err := deps.Config.Unmarshal(&p.cfg); err != nil {
		return fmt.Errorf("decode discovery config: %w", err)
	}

	if err := monitoring.EnsureSchema(context.Background(), deps.Store); err != nil {
		return err
	}
	p.history = monitoring.NewHistoryRepository(deps.Store)
	p.runs = monitoring.NewRunRepository(deps.Store)
	p.metrics = NewMetrics(deps.Metrics)
	p.limiters = newUserLimiters(p.cfg.RunsPerMinute)

	oui := NewOUITable()
	prober := NewHostProber(p.cfg.Probe, p.logger.Named("prober"))
	neighbors := SystemNeighbors{}

	scanOpts := []ScannerOption{WithNeighbors(neighbors), WithMetrics(p.metrics)}
	if p.cfg.ICMPLatency {
		scanOpts = append(scanOpts, WithLatencyMeter(NewICMPMeter(p.cfg.Probe.PrimaryTimeout, 1)))
	}
	if p.cfg.MDNS {
		scanOpts = append(scanOpts, WithHostnames(NewMDNSBrowser(p.cfg.MDNSTimeout, p.logger.Named("mdns"))))
	}
	p.scanner = NewRangeScanner(p.cfg, prober, oui, p.logger.Named("scan"), scanOpts...)
	p.router = NewRouterDiscoverer(p.cfg, NewSNMPWalker(p.cfg.Router), prober, oui,
		p.logger.Named("router"), WithRouterNeighbors(neighbors))
	p.controller = NewControllerDiscoverer(p.cfg, oui, p.logger.Named("controller"))

	p.logger.Info("discovery module initialized",
		zap.Strings("default_ranges", p.cfg.DefaultRanges),
		zap.Int("max_concurrency", p.cfg.MaxConcurrency),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (p *Plugin) ValidateConfig() error {
	return p.cfg.Validate()
}

func (p *Plugin) Start(_ context.Context) error {
	p.logger.Info("discovery module started")
	return nil
}

func (p *Plugin) Stop() error {
	p.logger.Info("discovery module stopped")
	return nil
}

func (p *Plugin) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: http.MethodPost, Path: "/scan", Handler: p.handleScan},
		{Method: http.MethodPost, Path: "/discover", Handler: p.handleDiscover},
		{Method: http.MethodGet, Path: "/devices", Handler: p.handleDevices},
		{Method: http.MethodGet, Path: "/runs", Handler: p.handleRuns},
	}
}

// ScanRequest is the body of POST /scan.
type ScanRequest struct {
	IPRanges []string `json:"ipRanges"`
}

// ScanResponse is the result of a range scan.
type ScanResponse struct {
	Success       bool                      `json:"success"`
	Message       string                    `json:"message"`
	Devices       []models.DiscoveredDevice `json:"devices"`
	ScannedRanges []string                  `json:"scannedRanges"`
}

// DiscoverRequest is the body of POST /discover.
type DiscoverRequest struct {
	Type     string          `json:"type"`
	Settings json.RawMessage `json:"settings"`
}

// DiscoverResponse is the result of a router or controller discovery.
type DiscoverResponse struct {
	Success bool                      `json:"success"`
	Message string                    `json:"message"`
	Devices []models.DiscoveredDevice `json:"devices"`
}

// handleScan sweeps the requested CIDR ranges.
//
//	@Summary	Scan IP ranges
//	@Param		request	body		ScanRequest	false	"Ranges to scan; defaults from config"
//	@Success	200		{object}	ScanResponse
//	@Failure	400		{object}	server.Problem
//	@Failure	429		{object}	server.Problem
//	@Router		/discovery/scan [post]
func (p *Plugin) handleScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := decodeBody(r, &req); err != nil {
		server.BadRequest(w, "invalid request body", r.URL.Path)
		return
	}
	ranges := req.IPRanges
	if len(ranges) == 0 {
		ranges = p.cfg.DefaultRanges
	}
	for _, cidr := range ranges {
		if err := ValidateCIDR(cidr); err != nil {
			writeDiscoveryError(w, r, err)
			return
		}
	}

	devices, ok := p.run(w, r, MethodScan, strings.Join(ranges, ","), func(ctx context.Context) ([]models.DiscoveredDevice, error) {
		return p.scanner.ScanRanges(ctx, ranges)
	})
	if !ok {
		return
	}
	server.WriteJSON(w, http.StatusOK, ScanResponse{
		Success:       true,
		Message:       fmt.Sprintf("Network scan completed. Found %d devices on ranges: %s", len(devices), strings.Join(ranges, ", ")),
		Devices:       devices,
		ScannedRanges: ranges,
	})
}

// handleDiscover interrogates a router or a network controller.
//
//	@Summary	Discover via router or controller
//	@Param		request	body		DiscoverRequest	true	"type is router or unifi"
//	@Success	200		{object}	DiscoverResponse
//	@Failure	400		{object}	server.Problem
//	@Failure	502		{object}	server.Problem
//	@Router		/discovery/discover [post]
func (p *Plugin) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req DiscoverRequest
	if err := decodeBody(r, &req); err != nil {
		server.BadRequest(w, "invalid request body", r.URL.Path)
		return
	}

	var (
		target string
		fn     func(ctx context.Context) ([]models.DiscoveredDevice, error)
	)
	switch req.Type {
	case MethodRouter:
		var s RouterSettings
		if err := decodeSettings(req.Settings, &s); err != nil {
			server.BadRequest(w, "invalid router settings", r.URL.Path)
			return
		}
		target = s.Host
		fn = func(ctx context.Context) ([]models.DiscoveredDevice, error) { return p.router.Discover(ctx, s) }
	case MethodUniFi:
		var s ControllerSettings
		if err := decodeSettings(req.Settings, &s); err != nil {
			server.BadRequest(w, "invalid controller settings", r.URL.Path)
			return
		}
		target = s.Host
		fn = func(ctx context.Context) ([]models.DiscoveredDevice, error) { return p.controller.Discover(ctx, s) }
	default:
		server.BadRequest(w, fmt.Sprintf("unsupported discovery type %q", req.Type), r.URL.Path)
		return
	}

	devices, ok := p.run(w, r, req.Type, target, fn)
	if !ok {
		return
	}
	server.WriteJSON(w, http.StatusOK, DiscoverResponse{
		Success: true,
		Message: fmt.Sprintf("%s discovery completed. Found %d devices.", strings.ToUpper(req.Type), len(devices)),
		Devices: devices,
	})
}

// run executes one discovery for the caller: it applies the per-user rate
// limit and run timeout, records the run, and persists the devices on
// success. On failure it writes the error response and returns false.
func (p *Plugin) run(w http.ResponseWriter, r *http.Request, method, target string,
	fn func(ctx context.Context) ([]models.DiscoveredDevice, error),
) ([]models.DiscoveredDevice, bool) {
	userID, _ := auth.UserFromContext(r.Context())
	if !p.limiters.allow(userID) {
		server.RateLimited(w, "too many discovery requests, try again later", r.URL.Path)
		return nil, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), p.cfg.RunTimeout)
	defer cancel()

	start := time.Now()
	run := &models.DiscoveryRun{UserID: userID, Method: method, Target: target}
	if err := p.runs.Create(ctx, run); err != nil {
		p.logger.Warn("failed to record discovery run", zap.Error(err))
	}
	logger := p.logger.With(zap.String("run_id", run.ID), zap.String("method", method), zap.String("target", target))

	devices, err := fn(ctx)
	if err == nil {
		_, err = p.history.ReplaceDevices(ctx, userID, devices)
		if err != nil {
			err = fmt.Errorf("store devices: %w", err)
		}
	}

	status := monitoring.RunCompleted
	errMsg := ""
	if err != nil {
		status, errMsg = monitoring.RunFailed, err.Error()
		devices = nil
	}
	p.metrics.observeRun(method, status, len(devices), time.Since(start))
	// The run record outlives a cancelled request.
	if ferr := p.runs.Finish(context.WithoutCancel(ctx), run.ID, status, len(devices), errMsg); ferr != nil {
		logger.Warn("failed to finish discovery run", zap.Error(ferr))
	}

	if err != nil {
		logger.Warn("discovery failed", zap.Error(err))
		writeDiscoveryError(w, r, err)
		return nil, false
	}
	logger.Info("discovery completed", zap.Int("devices", len(devices)), zap.Duration("elapsed", time.Since(start)))
	return devices, true
}

// writeDiscoveryError maps a discovery failure to a problem response.
func writeDiscoveryError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ValidationError
	var ae *AuthenticationError
	switch {
	case errors.As(err, &ve):
		server.BadRequest(w, ve.Error(), r.URL.Path)
	case errors.As(err, &ae) && ae.Reason == AuthRejected:
		server.Unauthorized(w, ae.Error(), r.URL.Path)
	case errors.As(err, &ae):
		server.BadGateway(w, ae.Error(), r.URL.Path)
	case errors.Is(err, context.DeadlineExceeded):
		server.GatewayTimeout(w, "discovery timed out", r.URL.Path)
	default:
		server.InternalError(w, "discovery failed", r.URL.Path)
	}
}

// handleDevices returns the caller's latest stored devices as JSON, or as
// CSV when format=csv.
func (p *Plugin) handleDevices(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	entries, err := p.history.LatestDevices(r.Context(), userID)
	if err != nil {
		p.logger.Error("failed to load devices", zap.Error(err))
		server.InternalError(w, "failed to load devices", r.URL.Path)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="devices.csv"`)
		if err := writeCSV(w, entries); err != nil {
			p.logger.Error("failed to write csv", zap.Error(err))
		}
		return
	}
	server.WriteJSON(w, http.StatusOK, entries)
}

// handleRuns lists the caller's discovery runs, newest first.
func (p *Plugin) handleRuns(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	res, err := p.runs.List(r.Context(), userID, monitoring.ListOptionsFromQuery(r))
	if err != nil {
		p.logger.Error("failed to list runs", zap.Error(err))
		server.InternalError(w, "failed to list runs", r.URL.Path)
		return
	}
	server.WriteJSON(w, http.StatusOK, res)
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func decodeSettings(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// userLimiters hands out one token-bucket limiter per user.
type userLimiters struct {
	mu       sync.Mutex
	perMin   int
	limiters map[string]*rate.Limiter
}

func newUserLimiters(perMinute int) *userLimiters {
	return &userLimiters{perMin: perMinute, limiters: make(map[string]*rate.Limiter)}
}

func (u *userLimiters) allow(userID string) bool {
	if u == nil || u.perMin <= 0 {
		return true
	}
	u.mu.Lock()
	l, ok := u.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(u.perMin)), u.perMin)
		u.limiters[userID] = l
	}
	u.mu.Unlock()
	return l.Allow()
}
