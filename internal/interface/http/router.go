package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/fevertrack/internal/domain/auth"
	"github.com/yanqian/fevertrack/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, authSvc auth.Service) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestContext(handler.logger),
		corsMiddleware(cfg.HTTP.CORSOrigins),
		errorHandlingMiddleware(handler.logger),
		rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1", authMiddleware(authSvc))
	{
		api.POST("/episodes", handler.StartEpisode)
		api.GET("/episodes/:id", handler.GetEpisode)
		api.POST("/episodes/:id/readings", handler.LogReading)
		api.POST("/episodes/:id/resolve", handler.ResolveEpisode)
		api.GET("/episodes/:id/trend", handler.Trend)
		api.GET("/episodes/:id/days/:day", handler.DayDetail)
		api.GET("/episodes/:id/latest", handler.Latest)
		api.GET("/episodes/:id/status", handler.Status)
		api.GET("/patients/:patientId/episodes", handler.ListPatientEpisodes)

		api.GET("/alerts", handler.RecentAlerts)
		api.GET("/alerts/stream", handler.StreamAlerts)
		api.POST("/alerts/:id/read", handler.MarkAlertRead)
		api.DELETE("/alerts/:id", handler.DismissAlert)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, handler.logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
