package handler

import (
	"github.com/labstack/echo/v4"

	"supportdesk/internal/domain/repository"
	"supportdesk/internal/infrastructure/firebase"
	"supportdesk/pkg/errors"
	"supportdesk/pkg/response"
)

// DevTokenHandler mints long-lived tokens so the chat engine can be driven
// from scripts during development. Only routed in the development
// environment.
type DevTokenHandler struct {
	firebaseAuth *firebase.FirebaseAuthClient
	userRepo     repository.UserRepository
}

func NewDevTokenHandler(firebaseAuth *firebase.FirebaseAuthClient, userRepo repository.UserRepository) *DevTokenHandler {
	return &DevTokenHandler{
		firebaseAuth: firebaseAuth,
		userRepo:     userRepo,
	}
}

type devTokenRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *DevTokenHandler) GenerateToken(c echo.Context) error {
	var req devTokenRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	user, err := h.userRepo.GetByEmail(c.Request().Context(), req.Email)
	if err != nil {
		return response.Error(c, errors.NotFound("User", err))
	}

	token, err := h.firebaseAuth.GenerateLongLivedToken(c.Request().Context(), user.ID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"token": token,
		"user": map[string]interface{}{
			"id":       user.ID,
			"email":    user.Email,
			"username": user.Username,
			"role":     user.Role,
		},
	})
}
