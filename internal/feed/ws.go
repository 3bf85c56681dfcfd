package feed

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"reditto/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // OK for demo; restrict in production
	},
}

// WSHandler upgrades the connection and subscribes it to the
// authenticated user's history feed. Browsers cannot set headers on
// WebSocket requests, so the token also rides on a query parameter.
func WSHandler(hub *Hub, tokens auth.TokenService, repo *auth.Repo, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		raw := c.Query("token")
		if raw == "" {
			h := c.GetHeader("Authorization")
			if strings.HasPrefix(strings.ToLower(h), "bearer ") {
				raw = strings.TrimSpace(h[len("Bearer "):])
			}
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Sessão inválida, faça login novamente"})
			return
		}
		if repo != nil {
			// logout bumps the version, which must kill feed
			// access the same way it kills the REST routes
			version, err := repo.GetTokenVersion(c.Request.Context(), claims.UserID)
			if err != nil || version != claims.TokenVersion {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Sessão inválida, faça login novamente"})
				return
			}
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		hub.Add(ws, claims.UserID)
		logger.Info("feed client connected", "user_id", claims.UserID)

		_ = ws.WriteMessage(
			websocket.TextMessage,
			[]byte(`{"type":"welcome","transport":"websocket"}`+"\n"),
		)

		// Keep connection alive (ignore incoming messages)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.Remove(ws)
		logger.Info("feed client disconnected", "user_id", claims.UserID)
	}
}
