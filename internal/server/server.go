// Package server exposes the back-office HTTP API: alert triage, watchlist
// administration, record search, batch ingestion and the notification socket.
package server

import (
	"context"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/orovista/backoffice/internal/config"
	"github.com/orovista/backoffice/internal/watchlist"
	"github.com/orovista/backoffice/internal/watchlist/alerting"
	"github.com/orovista/backoffice/internal/watchlist/notify"
	"github.com/orovista/backoffice/internal/watchlist/records"
	"github.com/orovista/backoffice/internal/watchlist/registry"
)

// Deps collects everything the HTTP layer delegates to
type Deps struct {
	Engine   *watchlist.Engine
	Triage   *alerting.Triage
	Registry *registry.Store
	Records  *records.Store
	Hub      *notify.Hub
	Gatherer prometheus.Gatherer
}

// Server is the HTTP front of the back office
type Server struct {
	cfg    config.ServerConfig
	logger *zap.Logger
	http   *http.Server
}

// New builds the router and wraps it in an http.Server
func New(cfg config.ServerConfig, deps Deps, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))

	h := &handlers{deps: deps, logger: logger}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	router.GET("/ws", func(c *gin.Context) {
		deps.Hub.ServeWS(c.Writer, c.Request)
	})

	v1 := router.Group("/api/v1")
	{
		alerts := v1.Group("/alerts")
		alerts.GET("", h.listAlerts)
		alerts.GET("/unread-count", h.unreadCount)
		alerts.GET("/:id", h.getAlert)
		alerts.POST("/:id/read", h.markRead)
		alerts.POST("/:id/discard", h.discardAlert)
		alerts.POST("/:id/review", h.attachReview)

		v1.POST("/ingest/batches", h.ingestBatch)

		persons := v1.Group("/watchlist/persons")
		persons.POST("", h.createPerson)
		persons.GET("/:id", h.getPerson)
		persons.PATCH("/:id/status", h.setPersonStatus)

		items := v1.Group("/watchlist/items")
		items.POST("", h.createItem)
		items.GET("/:id", h.getItem)
		items.PATCH("/:id/status", h.setItemStatus)

		recs := v1.Group("/records")
		recs.GET("", h.searchRecords)
		recs.GET("/:id", h.getRecord)
		recs.POST("/:id/sale-date", h.setSaleDate)
	}

	return &Server{
		cfg:    cfg,
		logger: logger,
		http: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Run serves until the listener fails or Shutdown is called
func (s *Server) Run() error {
	s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
