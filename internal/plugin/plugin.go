package plugin

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/networknest/networknest/internal/config"
	"github.com/networknest/networknest/internal/store"
)

// Route represents an HTTP route exposed by a plugin.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc

	// Public routes bypass bearer-token authentication. They are expected
	// to authenticate callers themselves (e.g. with an API key).
	Public bool
}

// Dependencies are the shared services handed to a plugin at Init.
type Dependencies struct {
	Config  *config.Config
	Logger  *zap.Logger
	Store   *store.Store
	Metrics prometheus.Registerer
}

// Plugin defines the interface that all NetworkNest modules must implement.
type Plugin interface {
	// Name returns the plugin's unique identifier (e.g., "discovery").
	Name() string

	// Version returns the plugin's semantic version.
	Version() string

	// Init wires the plugin to its configuration, logger, and store.
	Init(deps Dependencies) error

	// Start begins the plugin's background operations.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the plugin.
	Stop() error

	// Routes returns the HTTP routes this plugin exposes.
	Routes() []Route
}
