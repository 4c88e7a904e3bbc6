package websocket

import (
	"context"
	"net/http"

	"mototaxi-backend/internal/logger"
	"mototaxi-backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Источник проверяет CORS на уровне API, токен обязателен
	},
}

// Handler поднимает websocket для пользователя, уже прошедшего JWTAuth
func Handler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("user_id")
		role := models.Role(c.GetString("role"))
		if userID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Требуется авторизация"})
			return
		}

		if !websocket.IsWebSocketUpgrade(c.Request) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Требуется WebSocket соединение"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			m.log.Warn(logger.Entry{Action: "websocket_upgrade_failed", UserID: userID, Err: err})
			return
		}

		client := newClient(m, conn, userID, role)
		select {
		case m.register <- client:
		case <-m.done:
			conn.Close()
			return
		}

		// соединение живет дольше запроса
		ctx := context.WithoutCancel(c.Request.Context())
		go client.writePump()
		go client.readPump(ctx)
	}
}
