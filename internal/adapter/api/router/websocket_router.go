package router

import (
	"github.com/labstack/echo/v4"

	"tradechat/internal/adapter/api/handler"
)

// SetupWebSocketRouter sets up WebSocket routes
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	// Auth is handled inside the handler via the token query parameter
	e.GET("/ws", wsHandler.HandleWebSocket)
}
