package monitoring

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/networknest/networknest/internal/auth"
	"github.com/networknest/networknest/internal/plugin"
	"github.com/networknest/networknest/internal/server"
)

// Plugin serves the caller's monitoring history and network snapshot.
type Plugin struct {
	logger  *zap.Logger
	history *HistoryRepository
	ping    func(ctx context.Context) error
	now     func() time.Time
}

// New creates a monitoring plugin.
func New() *Plugin {
	return &Plugin{now: time.Now}
}

func (p *Plugin) Name() string    { return "monitoring" }
func (p *Plugin) Version() string { return "0.1.0" }

func (p *Plugin) Init(deps plugin.Dependencies) error {
	if deps.Store == nil {
		return errors.New("monitoring requires a store")
	}
	p.logger = deps.Logger
	if err := EnsureSchema(context.Background(), deps.Store); err != nil {
		return err
	}
	p.history = NewHistoryRepository(deps.Store)
	p.ping = deps.Store.DB().PingContext
	p.logger.Info("monitoring module initialized")
	return nil
}

func (p *Plugin) Start(_ context.Context) error {
	p.logger.Info("monitoring module started")
	return nil
}

func (p *Plugin) Stop() error {
	p.logger.Info("monitoring module stopped")
	return nil
}

func (p *Plugin) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: http.MethodGet, Path: "/history", Handler: p.handleHistory},
		{Method: http.MethodGet, Path: "/snapshot", Handler: p.handleSnapshot},
	}
}

// Health implements plugin.HealthChecker.
func (p *Plugin) Health(ctx context.Context) plugin.HealthStatus {
	if p.ping == nil {
		return plugin.HealthStatus{Status: "unknown"}
	}
	if err := p.ping(ctx); err != nil {
		return plugin.HealthStatus{Status: "unhealthy", Details: map[string]string{"database": err.Error()}}
	}
	return plugin.HealthStatus{Status: "healthy"}
}

// handleHistory returns the caller's monitoring rows, newest first.
//
//	@Summary	List monitoring history
//	@Param		limit	query	int		false	"Page size (default 50)"
//	@Param		offset	query	int		false	"Rows to skip"
//	@Param		order	query	string	false	"asc or desc"
//	@Router		/monitoring/history [get]
func (p *Plugin) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	res, err := p.history.List(r.Context(), userID, ListOptionsFromQuery(r))
	if err != nil {
		p.logger.Error("list history failed", zap.Error(err))
		server.InternalError(w, "failed to load history", r.URL.Path)
		return
	}
	server.WriteJSON(w, http.StatusOK, res)
}

// handleSnapshot returns the caller's current network snapshot.
func (p *Plugin) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	snap, err := p.history.Snapshot(r.Context(), userID, p.now())
	if err != nil {
		p.logger.Error("build snapshot failed", zap.Error(err))
		server.InternalError(w, "failed to build snapshot", r.URL.Path)
		return
	}
	server.WriteJSON(w, http.StatusOK, snap)
}

// ListOptionsFromQuery reads limit, offset and order query parameters.
func ListOptionsFromQuery(r *http.Request) ListOptions {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return ListOptions{Limit: limit, Offset: offset, SortOrder: q.Get("order")}
}
