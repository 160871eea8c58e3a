package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) AdminSessions(c *gin.Context) {
	stats := h.sessions.Stats()
	c.JSON(http.StatusOK, gin.H{
		"total":         stats.Total,
		"authenticated": stats.Authenticated,
		"byState":       stats.ByState,
		"connected":     h.hub.Total(),
	})
}
