package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/networknest/networknest/internal/auth"
	"github.com/networknest/networknest/internal/plugin"
	"github.com/networknest/networknest/internal/version"
)

// VersionHeader is set on core responses.
const VersionHeader = "X-NetworkNest-Version"

// Server is the main NetworkNest server.
type Server struct {
	httpServer *http.Server
	registry   *plugin.Registry
	authn      *auth.Authenticator
	gatherer   prometheus.Gatherer
	logger     *zap.Logger
	mux        *http.ServeMux
}

// Option customizes a Server.
type Option func(*Server)

// WithTimeouts overrides the read and write timeouts. Zero keeps the default.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.httpServer.ReadTimeout = read
		}
		if write > 0 {
			s.httpServer.WriteTimeout = write
		}
	}
}

// New creates a new Server instance. Plugin routes are mounted under
// /api/v1/{plugin}; routes not marked Public require a bearer token. A nil
// gatherer disables /metrics.
func New(addr string, reg *plugin.Registry, authn *auth.Authenticator, gatherer prometheus.Gatherer, logger *zap.Logger, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			// Discovery runs may take minutes.
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		registry: reg,
		authn:    authn,
		gatherer: gatherer,
		logger:   logger,
		mux:      mux,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerCoreRoutes()
	s.mountPluginRoutes()
	s.httpServer.Handler = s.Handler()

	return s
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return withCORS(withRequestLog(s.logger, s.mux))
}

// registerCoreRoutes sets up routes that are always available.
func (s *Server) registerCoreRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/plugins", s.handlePlugins)
	if s.gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// mountPluginRoutes registers all plugin routes under /api/v1/{plugin}/.
func (s *Server) mountPluginRoutes() {
	requireToken := func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Unauthorized(w, "authentication required", r.URL.Path)
		})
	}
	if s.authn != nil {
		requireToken = s.authn.Middleware(func(w http.ResponseWriter, r *http.Request, err error) {
			detail := "invalid or expired token"
			if errors.Is(err, auth.ErrMissingToken) {
				detail = "authentication required"
			}
			Unauthorized(w, detail, r.URL.Path)
		})
	}

	for pluginName, routes := range s.registry.AllRoutes() {
		for _, route := range routes {
			pattern := fmt.Sprintf("%s /api/v1/%s%s", route.Method, pluginName, route.Path)
			var h http.Handler = route.Handler
			if !route.Public {
				h = requireToken(h)
			}
			s.mux.Handle(pattern, h)
			s.logger.Debug("mounted route",
				zap.String("plugin", pluginName),
				zap.String("pattern", pattern),
				zap.Bool("public", route.Public),
			)
		}
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns the server health status along with the health of
// every enabled plugin that reports one.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	plugins := map[string]plugin.HealthStatus{}
	for _, p := range s.registry.All() {
		hc, ok := p.(plugin.HealthChecker)
		if !ok || !s.registry.IsEnabled(p.Name()) {
			continue
		}
		hs := hc.Health(r.Context())
		if hs.Status == "unhealthy" {
			status = "degraded"
		}
		plugins[p.Name()] = hs
	}

	w.Header().Set(VersionHeader, version.Short())
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"service": "networknest",
		"version": version.Map(),
		"plugins": plugins,
	})
}

// handlePlugins returns the list of registered plugins.
func (s *Server) handlePlugins(w http.ResponseWriter, _ *http.Request) {
	type pluginResponse struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Enabled bool   `json:"enabled"`
	}
	plugins := s.registry.All()
	info := make([]pluginResponse, 0, len(plugins))
	for _, p := range plugins {
		info = append(info, pluginResponse{
			Name:    p.Name(),
			Version: p.Version(),
			Enabled: s.registry.IsEnabled(p.Name()),
		})
	}
	w.Header().Set(VersionHeader, version.Short())
	WriteJSON(w, http.StatusOK, info)
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func withRequestLog(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// withCORS lets browser dashboards and hub add-ons call the API.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
