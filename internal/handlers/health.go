package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/silentsos/silentsos/internal/broadcast"
)

func (h *Handler) HealthCheck(c *gin.Context) {
	code, status, database := http.StatusOK, "ok", "ok"

	sqlDB, err := h.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		h.log.Error("database health check failed", "error", err)
		code, status, database = http.StatusServiceUnavailable, "degraded", "unavailable"
	}

	resp := gin.H{
		"status":            status,
		"message":           "SilentSOS is running",
		"database":          database,
		"websocket_clients": h.Hub.Clients(broadcast.AlertsGroup),
		"timestamp":         time.Now().Format(time.RFC3339),
	}

	if h.Scheduler != nil {
		resp["jobs"] = h.Scheduler.Status()
	}

	c.JSON(code, resp)
}
