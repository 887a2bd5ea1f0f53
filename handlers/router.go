package handlers

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"polymarket-copytrader/middleware"
)

// Router assembles the sync server. Reads are open; writes require the
// process token.
func Router(h *Handler, token string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/api/state", h.GetState)
	r.GET("/api/updates", middleware.ValidateSinceParam(), h.GetUpdates)
	r.GET("/api/movements/:id", h.GetMovement)
	r.GET("/api/ws", h.ServeWS)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	guarded := r.Group("/api", middleware.RequireToken(token))
	guarded.POST("/configure", h.Configure)
	guarded.POST("/plan", h.Plan)
	guarded.POST("/record", h.Record)
	guarded.POST("/settle", h.Settle)
	guarded.POST("/start", h.StartMonitor)
	guarded.POST("/stop", h.StopMonitor)

	return r
}
