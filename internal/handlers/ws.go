package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/silentsos/silentsos/internal/broadcast"
	"github.com/silentsos/silentsos/internal/types"
	"github.com/silentsos/silentsos/internal/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return types.IsAllowedOrigin(r.Header.Get("Origin"))
	},
}

// AlertsWebSocket subscribes the caller to live alert broadcasts.
func (h *Handler) AlertsWebSocket(ctx *gin.Context) {
	userID, _ := utils.GetCurrentUserID(ctx)

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	h.log.Info("websocket connected", "user_id", userID, "group", broadcast.AlertsGroup)

	h.Hub.Serve(conn, broadcast.AlertsGroup)

	h.log.Info("websocket closed", "user_id", userID, "group", broadcast.AlertsGroup)
}
