package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes registers every route on router. gatherer backs /metrics.
func (h *Handler) SetupRoutes(router *gin.Engine, gatherer prometheus.Gatherer) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sockets": h.Gateway.Registry().Len()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	router.GET("/chat", h.ServeWebSocket)

	api := router.Group("/api")
	api.Use(h.AuthMiddleware())
	{
		api.GET("/conversations", h.GetConversations)
		api.GET("/connections/:id/messages", h.GetMessages)
	}
}
