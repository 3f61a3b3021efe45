package router

import (
	"github.com/labstack/echo/v4"

	"supportdesk/internal/adapter/api/handler"
	"supportdesk/internal/adapter/api/middleware"
)

// SetupChatRouter sets up the REST side of chat (excluding WebSocket).
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	ticketGroup := e.Group("/v1/tickets")
	ticketGroup.Use(authMiddleware.Authenticate)

	// POST /v1/tickets/:ticketId/chat - resolve (or lazily create) the ticket's chat
	ticketGroup.POST("/:ticketId/chat", chatHandler.GetOrCreateTicketChat)

	chatGroup := e.Group("/v1/chats")
	chatGroup.Use(authMiddleware.Authenticate)

	chatGroup.GET("/:id/messages", chatHandler.GetChatMessages)  // GET /v1/chats/:id/messages - history page
	chatGroup.POST("/:id/messages", chatHandler.CreateMessage)   // POST /v1/chats/:id/messages - durable send
	chatGroup.PUT("/:id/read", chatHandler.MarkChatRead)         // PUT /v1/chats/:id/read - clear unread
}
