package handler

import (
	"github.com/labstack/echo/v4"

	"supportdesk/internal/domain/entity"
	"supportdesk/internal/usecase"
	"supportdesk/pkg/response"
	"supportdesk/pkg/utils"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type createMessageRequest struct {
	Content     string              `json:"content" validate:"required"`
	MessageType string              `json:"messageType" validate:"omitempty,oneof=text image file system-info"`
	Attachments []entity.Attachment `json:"attachments,omitempty"`
}

// GetOrCreateTicketChat returns the conversation bound to a ticket, creating
// it on first access.
func (h *ChatHandler) GetOrCreateTicketChat(c echo.Context) error {
	userID := c.Get("uid").(string)
	ticketID := c.Param("ticketId")

	chat, err := h.chatUseCase.GetOrCreateChatForTicket(c.Request().Context(), userID, ticketID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, chat)
}

// GetChatMessages returns one page of a chat's messages. The order is the
// store's (newest first); clients sort oldest-first before display.
func (h *ChatHandler) GetChatMessages(c echo.Context) error {
	userID := c.Get("uid").(string)
	chatID := c.Param("id")

	limit, offset := utils.ParseLimitOffset(c.QueryParam("limit"), c.QueryParam("offset"), 50, 200)

	messages, total, err := h.chatUseCase.ListChatMessages(c.Request().Context(), userID, chatID, limit, offset)
	if err != nil {
		return response.Error(c, err)
	}

	page := 1
	if limit > 0 {
		page = offset/limit + 1
	}
	return response.Paginated(c, messages, total, page, limit)
}

// CreateMessage is the durable send path for a chat message.
func (h *ChatHandler) CreateMessage(c echo.Context) error {
	var req createMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)
	chatID := c.Param("id")

	message, err := h.chatUseCase.CreateMessage(c.Request().Context(), userID, chatID, usecase.CreateMessageInput{
		Content:     req.Content,
		MessageType: req.MessageType,
		Attachments: req.Attachments,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// MarkChatRead clears the caller's unread state for a chat.
func (h *ChatHandler) MarkChatRead(c echo.Context) error {
	userID := c.Get("uid").(string)
	chatID := c.Param("id")

	if err := h.chatUseCase.MarkChatRead(c.Request().Context(), userID, chatID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "read"})
}
