package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"supportdesk/internal/adapter/api/middleware"
	"supportdesk/internal/domain/repository"
	ws "supportdesk/internal/infrastructure/websocket"
	"supportdesk/pkg/errors"
	"supportdesk/pkg/logger"
)

type WebSocketHandler struct {
	hub      *ws.Hub
	auth     *middleware.AuthMiddleware
	userRepo repository.UserRepository
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict to the dashboard origin before exposing publicly
	},
}

func NewWebSocketHandler(hub *ws.Hub, auth *middleware.AuthMiddleware, userRepo repository.UserRepository) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		auth:     auth,
		userRepo: userRepo,
	}
}

// HandleWebSocket upgrades the connection. Browsers cannot set headers on a
// websocket dial, so the bearer token arrives as a query parameter.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return errors.Unauthorized("Authentication required", nil)
	}

	uid, err := h.auth.GetUIDFromToken(c.Request().Context(), token)
	if err != nil {
		return errors.Unauthorized("Invalid or expired token", err)
	}

	user, err := h.userRepo.GetByID(c.Request().Context(), uid)
	if err != nil {
		return errors.Unauthorized("Unknown user", err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := &ws.Client{
		UserID:    user.ID,
		UserType:  user.Role,
		UserName:  user.Username,
		UserEmail: user.Email,
		Conn:      conn,
		Send:      make(chan []byte, 256),
	}

	h.hub.Register <- client

	go client.ReadPump(h.hub)
	go client.WritePump()

	logger.Info("WebSocket connection established for user %s", user.ID)
	return nil
}
