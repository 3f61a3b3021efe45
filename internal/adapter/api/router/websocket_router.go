package router

import (
	"github.com/labstack/echo/v4"

	"supportdesk/internal/adapter/api/handler"
)

// SetupWebSocketRouter sets up the realtime endpoint. No auth middleware here;
// the handler verifies the token itself since browsers pass it as a query
// parameter.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	e.GET("/ws", wsHandler.HandleWebSocket)
}
