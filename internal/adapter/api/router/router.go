package router

import (
	"github.com/labstack/echo/v4"

	"tradechat/internal/adapter/api/handler"
	"tradechat/internal/adapter/api/middleware"
)

// Setup wires the message routes.
func Setup(e *echo.Echo, messageHandler *handler.MessageHandler, authMiddleware *middleware.AuthMiddleware) {
	messageGroup := e.Group("/v1/messages")
	messageGroup.Use(authMiddleware.Authenticate)

	messageGroup.POST("", messageHandler.SendMessage) // POST /v1/messages - Send message
}
