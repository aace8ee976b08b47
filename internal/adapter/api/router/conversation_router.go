package router

import (
	"github.com/labstack/echo/v4"

	"tradechat/internal/adapter/api/handler"
	"tradechat/internal/adapter/api/middleware"
)

// SetupConversationRouter sets up all conversation routes
func SetupConversationRouter(e *echo.Echo, conversationHandler *handler.ConversationHandler, authMiddleware *middleware.AuthMiddleware) {
	conversationGroup := e.Group("/v1/conversations")
	conversationGroup.Use(authMiddleware.Authenticate)

	conversationGroup.GET("", conversationHandler.ListConversations)          // GET /v1/conversations?filter=all
	conversationGroup.GET("/unread-count", conversationHandler.UnreadCount)   // GET /v1/conversations/unread-count
	conversationGroup.POST("/:userId/archive", conversationHandler.Archive)   // POST /v1/conversations/:userId/archive
	conversationGroup.POST("/:userId/silence", conversationHandler.Silence)   // POST /v1/conversations/:userId/silence
	conversationGroup.POST("/:userId/retrieve", conversationHandler.Retrieve) // POST /v1/conversations/:userId/retrieve
	conversationGroup.PUT("/:userId/read", conversationHandler.MarkRead)      // PUT /v1/conversations/:userId/read
	conversationGroup.DELETE("/:userId", conversationHandler.Delete)          // DELETE /v1/conversations/:userId
}
