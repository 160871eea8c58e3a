package handlers

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"sharpms/dashboard/internal/config"
	"sharpms/dashboard/internal/fetch"
	"sharpms/dashboard/internal/guard"
	"sharpms/dashboard/internal/hub"
	"sharpms/dashboard/internal/middleware"
	"sharpms/dashboard/internal/models"
	"sharpms/dashboard/internal/session"
	"sharpms/dashboard/internal/views"
)

type Sessions interface {
	Session(deviceID string) *session.Session
	Stats() session.Stats
}

type RemoteAPI interface {
	Get(ctx context.Context, token string, path string) (json.RawMessage, error)
	CompleteOnboarding(ctx context.Context, token string, form map[string]any) (*models.User, error)
}

type ViewFetcher interface {
	Get(ctx context.Context, key string, load fetch.LoadFunc) (fetch.Result, error)
}

type Watcher interface {
	Watch(ctx context.Context, view string, deviceID string) error
}

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

type Deps struct {
	Config   *config.AppConfig
	Log      zerolog.Logger
	Sessions Sessions
	API      RemoteAPI
	Fetcher  ViewFetcher
	// Watcher is nil when polling is disabled.
	Watcher Watcher
	Views   *views.Registry
	Hub     *hub.Hub
	Checks  map[string]Check
}

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	routes   guard.Routes
	sessions Sessions
	api      RemoteAPI
	fetcher  ViewFetcher
	watcher  Watcher
	views    *views.Registry
	hub      *hub.Hub
	checks   map[string]Check
}

func NewHandlerSet(d Deps) HandlerSet {
	return HandlerSet{
		log: d.Log,
		cfg: d.Config,
		routes: guard.Routes{
			Login:      d.Config.Routes.Login,
			Dashboard:  d.Config.Routes.Dashboard,
			Onboarding: d.Config.Routes.Onboarding,
		},
		sessions: d.Sessions,
		api:      d.API,
		fetcher:  d.Fetcher,
		watcher:  d.Watcher,
		views:    d.Views,
		hub:      d.Hub,
		checks:   d.Checks,
	}
}

func (h HandlerSet) Register(router *gin.Engine) {
	router.GET("/api/healthz", h.Health)

	app := router.Group("/", middleware.Device(h.cfg.Session, h.sessions, h.log))
	{
		app.GET(h.cfg.Routes.Home, h.Home)
		app.GET(h.routes.Login, h.LoginPage)

		auth := app.Group("/auth")
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
		auth.GET("/session", h.CurrentSession)
	}

	guarded := app.Group("/", middleware.Guard(h.routes))
	{
		guarded.GET(h.routes.Onboarding, h.OnboardingPage)
		guarded.POST(h.routes.Onboarding, h.CompleteOnboarding)
		guarded.GET("/ws", h.WebSocket)

		for _, v := range h.views.All() {
			guarded.GET("/"+v.Name, h.View(v))
		}

		admin := guarded.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
		admin.GET("/sessions", h.AdminSessions)
	}
}
