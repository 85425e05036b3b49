// Package homeassistant issues API keys to home-automation hubs and serves
// them the caller's network snapshot.
package homeassistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/networknest/networknest/internal/auth"
	"github.com/networknest/networknest/internal/monitoring"
	"github.com/networknest/networknest/internal/plugin"
	"github.com/networknest/networknest/internal/server"
)

// APIKeyHeader carries the integration key on public routes.
const APIKeyHeader = "X-API-Key"

// Settings configure the plugin under plugins.homeassistant.
type Settings struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

// Plugin implements the home-automation integration.
type Plugin struct {
	settings Settings
	logger   *zap.Logger
	repo     *Repository
	history  *monitoring.HistoryRepository
	now      func() time.Time
}

// New creates a homeassistant plugin.
func New() *Plugin {
	return &Plugin{now: time.Now}
}

func (p *Plugin) Name() string    { return "homeassistant" }
func (p *Plugin) Version() string { return "0.1.0" }

func (p *Plugin) Init(deps plugin.Dependencies) error {
	if deps.Store == nil {
		return errors.New("homeassistant requires a store")
	}
	p.logger = deps.Logger
	p.settings = Settings{BcryptCost: bcrypt.DefaultCost}
	if err := deps.Config.Unmarshal(&p.settings); err != nil {
		return fmt.Errorf("decode homeassistant config: %w", err)
	}

	ctx := context.Background()
	if err := deps.Store.Migrate(ctx, p.Name(), migrations()); err != nil {
		return fmt.Errorf("homeassistant migrations: %w", err)
	}
	if err := monitoring.EnsureSchema(ctx, deps.Store); err != nil {
		return err
	}
	p.repo = NewRepository(deps.Store)
	p.history = monitoring.NewHistoryRepository(deps.Store)
	p.logger.Info("homeassistant module initialized")
	return nil
}

// ValidateConfig implements plugin.Validator.
func (p *Plugin) ValidateConfig() error {
	if p.settings.BcryptCost < bcrypt.MinCost || p.settings.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

func (p *Plugin) Start(_ context.Context) error { return nil }
func (p *Plugin) Stop() error                   { return nil }

func (p *Plugin) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: http.MethodPost, Path: "/config", Handler: p.handleCreateConfig},
		{Method: http.MethodPut, Path: "/config", Handler: p.handleUpdateConfig},
		{Method: http.MethodGet, Path: "/config", Handler: p.handleGetConfig},
		{Method: http.MethodGet, Path: "/states", Handler: p.withAPIKey(p.handleStates), Public: true},
		{Method: http.MethodGet, Path: "/discovery", Handler: p.withAPIKey(p.handleDescriptor), Public: true},
	}
}

// ConfigRequest is the body of POST and PUT /config.
type ConfigRequest struct {
	InstanceName string `json:"ha_instance_name"`
	InstanceURL  string `json:"ha_instance_url"`
	Enabled      *bool  `json:"enabled,omitempty"`
}

// CreateConfigResponse carries the new API key. It is returned only once.
type CreateConfigResponse struct {
	Config
	APIKey string `json:"api_key"`
}

func (req *ConfigRequest) normalize() error {
	req.InstanceName = strings.TrimSpace(req.InstanceName)
	req.InstanceURL = strings.TrimSpace(req.InstanceURL)
	if req.InstanceName == "" {
		return errors.New("ha_instance_name is required")
	}
	if req.InstanceURL != "" {
		u, err := url.Parse(req.InstanceURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("ha_instance_url must be an http or https URL")
		}
	}
	return nil
}

// handleCreateConfig creates the caller's integration, or replaces it with
// a fresh key.
//
//	@Summary	Issue a home-automation API key
//	@Param		request	body		ConfigRequest	true	"Instance name and optional URL"
//	@Success	201		{object}	CreateConfigResponse
//	@Failure	400		{object}	server.Problem
//	@Router		/homeassistant/config [post]
func (p *Plugin) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	var req ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.BadRequest(w, "invalid request body", r.URL.Path)
		return
	}
	if err := req.normalize(); err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}

	key, err := GenerateKey(p.settings.BcryptCost)
	if err != nil {
		p.logger.Error("failed to generate api key", zap.Error(err))
		server.InternalError(w, "failed to generate api key", r.URL.Path)
		return
	}
	cfg, err := p.repo.Save(r.Context(), userID, req.InstanceName, req.InstanceURL, key)
	if err != nil {
		p.logger.Error("failed to save homeassistant config", zap.Error(err))
		server.InternalError(w, "failed to save configuration", r.URL.Path)
		return
	}

	p.logger.Info("api key issued", zap.String("user_id", userID), zap.String("key_prefix", key.Prefix))
	server.WriteJSON(w, http.StatusCreated, CreateConfigResponse{Config: *cfg, APIKey: key.Plain})
}

// handleUpdateConfig changes name, URL or enabled flag. The key is kept.
func (p *Plugin) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	var req ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.BadRequest(w, "invalid request body", r.URL.Path)
		return
	}
	if err := req.normalize(); err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	cfg, err := p.repo.Update(r.Context(), userID, req.InstanceName, req.InstanceURL, enabled)
	if errors.Is(err, ErrNotFound) {
		server.NotFound(w, "no home assistant integration configured", r.URL.Path)
		return
	}
	if err != nil {
		p.logger.Error("failed to update homeassistant config", zap.Error(err))
		server.InternalError(w, "failed to update configuration", r.URL.Path)
		return
	}
	server.WriteJSON(w, http.StatusOK, cfg)
}

func (p *Plugin) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	cfg, err := p.repo.GetByUser(r.Context(), userID)
	if errors.Is(err, ErrNotFound) {
		server.NotFound(w, "no home assistant integration configured", r.URL.Path)
		return
	}
	if err != nil {
		p.logger.Error("failed to load homeassistant config", zap.Error(err))
		server.InternalError(w, "failed to load configuration", r.URL.Path)
		return
	}
	server.WriteJSON(w, http.StatusOK, cfg)
}

// withAPIKey resolves the X-API-Key header to a user and passes the request
// on with that user in its context.
func (p *Plugin) withAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			server.Unauthorized(w, "API key required", r.URL.Path)
			return
		}
		userID, err := p.repo.Authenticate(r.Context(), key)
		if errors.Is(err, ErrInvalidKey) {
			server.Unauthorized(w, "Invalid API key. Please check your API key and try again.", r.URL.Path)
			return
		}
		if err != nil {
			p.logger.Error("api key lookup failed", zap.Error(err))
			server.InternalError(w, "internal server error", r.URL.Path)
			return
		}
		next(w, r.WithContext(auth.WithUser(r.Context(), userID)))
	}
}

// handleStates returns the snapshot polled by the hub.
//
//	@Summary	Network snapshot for home automation
//	@Param		X-API-Key	header		string	true	"Integration API key"
//	@Success	200			{object}	models.NetworkSnapshot
//	@Failure	401			{object}	server.Problem
//	@Router		/homeassistant/states [get]
func (p *Plugin) handleStates(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	snap, err := p.history.Snapshot(r.Context(), userID, p.now())
	if err != nil {
		p.logger.Error("failed to build snapshot", zap.Error(err))
		server.InternalError(w, "internal server error", r.URL.Path)
		return
	}
	server.WriteJSON(w, http.StatusOK, snap)
}

// handleDescriptor returns the device and sensor layout for the hub. The
// configuration URL points back at this server.
func (p *Plugin) handleDescriptor(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	server.WriteJSON(w, http.StatusOK, BuildDescriptor(userID, scheme+"://"+r.Host))
}
