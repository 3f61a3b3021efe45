package router

import (
	"github.com/labstack/echo/v4"

	"supportdesk/internal/adapter/api/handler"
	"supportdesk/internal/adapter/api/middleware"
)

type Handlers struct {
	Chat      *handler.ChatHandler
	WebSocket *handler.WebSocketHandler
	File      *handler.FileHandler
	Health    *handler.HealthHandler
	DevToken  *handler.DevTokenHandler
}

func Setup(e *echo.Echo, h Handlers, authMiddleware *middleware.AuthMiddleware, environment string) {
	SetupChatRouter(e, h.Chat, authMiddleware)
	SetupWebSocketRouter(e, h.WebSocket)
	SetupFileRouter(e, h.File, authMiddleware)
	SetupHealthRouter(e, h.Health)
	SetupDevRouter(e, h.DevToken, environment)
}
