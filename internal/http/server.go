package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	gommonlog "github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jmehdipour/notifications-delivery/internal/channel"
	"github.com/jmehdipour/notifications-delivery/internal/config"
	"github.com/jmehdipour/notifications-delivery/internal/http/middleware"
	"github.com/jmehdipour/notifications-delivery/internal/repository"
)

// Deps are the optional backends of the API. Routes whose backend is nil
// are not registered, so the worker can serve only health and metrics.
type Deps struct {
	Reports    repository.CHDeliveriesRepository
	Deliveries DeliveryLister
	Producer   Enqueuer
	Status     map[string]channel.StatusChecker // keyed by notification type
	Redis      *redis.Client
	Log        *zap.Logger
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(cfg config.Config, deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	// echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(gommonlog.WARN)
	e.Use(echoMid.Recover(), echoMid.Logger())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	if deps.Reports == nil && deps.Deliveries == nil && deps.Producer == nil && len(deps.Status) == 0 {
		return &Server{e: e, log: log}
	}

	// middlewares
	authMW := middleware.APIKeyMiddleware(cfg.HTTP.APIKeys)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          deps.Redis,
		DefaultRPS:     cfg.RateLimit.RPS,
		KeyPrefix:      "rl:client:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	if deps.Producer != nil {
		v1.POST("/notifications", enqueueHandler(deps.Producer, log))
	}
	if deps.Deliveries != nil {
		v1.GET("/notifications/:id/deliveries", notificationDeliveriesHandler(deps.Deliveries, log))
	}
	if deps.Reports != nil {
		v1.GET("/reports/deliveries", listDeliveriesHandler(deps.Reports, log))
		v1.GET("/reports/summary", summaryHandler(deps.Reports, log))
	}
	if len(deps.Status) > 0 {
		v1.GET("/status/:type/:ref", statusHandler(deps.Status, log))
	}

	return &Server{e: e, log: log}
}

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
