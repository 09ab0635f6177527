package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewEngine wires the handler, CORS and /metrics into a gin engine.
// A nil gatherer leaves /metrics unregistered.
func NewEngine(h *Handler, gatherer prometheus.Gatherer, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log), cors)

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/auth/challenge", h.Challenge)

		apiGroup.GET("/records", h.ListRecords)
		apiGroup.GET("/records/count", h.CountRecords)
		apiGroup.GET("/records/:id", h.GetRecord)
		apiGroup.GET("/events", h.ListEvents)
		apiGroup.GET("/admin", h.GetAdmin)

		writes := apiGroup.Group("", h.Authenticate)
		writes.POST("/records", h.Propose)
		writes.PUT("/records/:id/status", h.UpdateStatus)
		writes.POST("/records/:id/transfer", h.Transfer)
		writes.POST("/admin", h.TransferAdmin)
	}

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": "API route not found"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return r
}

func cors(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, "+HeaderNonce+", "+HeaderSignature)
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
