package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdesk/internal/adapter/api"
	"supportdesk/internal/domain/entity"
	"supportdesk/internal/usecase"
	"supportdesk/pkg/errors"
)

type chatRepoStub struct {
	chat     *entity.Chat
	messages []*entity.Message
}

func (r *chatRepoStub) Create(ctx context.Context, chat *entity.Chat) error {
	chat.ID = "chat-1"
	r.chat = chat
	return nil
}

func (r *chatRepoStub) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	if r.chat == nil || r.chat.ID != id {
		return nil, errors.NotFound("Chat", nil)
	}
	return r.chat, nil
}

func (r *chatRepoStub) GetByTicketID(ctx context.Context, ticketID string) (*entity.Chat, error) {
	if r.chat == nil || r.chat.TicketID != ticketID {
		return nil, errors.NotFound("Chat", nil)
	}
	return r.chat, nil
}

func (r *chatRepoStub) Update(ctx context.Context, chat *entity.Chat) error {
	r.chat = chat
	return nil
}

func (r *chatRepoStub) CreateMessage(ctx context.Context, message *entity.Message) error {
	message.ID = "m-1"
	r.messages = append(r.messages, message)
	return nil
}

func (r *chatRepoStub) GetMessageByID(ctx context.Context, chatID, messageID string) (*entity.Message, error) {
	return nil, errors.NotFound("Message", nil)
}

func (r *chatRepoStub) GetMessagesByChat(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error) {
	return r.messages, int64(len(r.messages)), nil
}

func (r *chatRepoStub) MarkMessagesRead(ctx context.Context, chatID, userID string) error {
	return nil
}

type ticketRepoStub struct{}

func (ticketRepoStub) Create(ctx context.Context, ticket *entity.Ticket) error { return nil }
func (ticketRepoStub) Update(ctx context.Context, ticket *entity.Ticket) error { return nil }
func (ticketRepoStub) GetByID(ctx context.Context, id string) (*entity.Ticket, error) {
	return &entity.Ticket{ID: id, CustomerID: "cust-1", Status: "open"}, nil
}

type userRepoStub struct{}

func (userRepoStub) Create(ctx context.Context, user *entity.User) error             { return nil }
func (userRepoStub) Update(ctx context.Context, user *entity.User) error             { return nil }
func (userRepoStub) UpdatePresence(ctx context.Context, id, onlineStatus string) error { return nil }
func (userRepoStub) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return nil, errors.NotFound("User", nil)
}
func (userRepoStub) GetByID(ctx context.Context, id string) (*entity.User, error) {
	role := entity.RoleAgent
	if strings.HasPrefix(id, "cust") {
		role = entity.RoleCustomer
	}
	return &entity.User{ID: id, Email: id + "@example.com", Username: id, Role: role}, nil
}

func newHandlerFixture() (*echo.Echo, *ChatHandler, *chatRepoStub) {
	e := echo.New()
	e.Validator = api.NewValidator()

	chatRepo := &chatRepoStub{}
	uc := usecase.NewChatUseCase(chatRepo, ticketRepoStub{}, userRepoStub{})
	return e, NewChatHandler(uc), chatRepo
}

func TestGetOrCreateTicketChatEndpoint(t *testing.T) {
	e, h, _ := newHandlerFixture()

	req := httptest.NewRequest(http.MethodPost, "/v1/tickets/T-1/chat", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("uid", "agent-1")
	c.SetParamNames("ticketId")
	c.SetParamValues("T-1")

	require.NoError(t, h.GetOrCreateTicketChat(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool        `json:"success"`
		Data    entity.Chat `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "chat-1", body.Data.ID)
	assert.Equal(t, "T-1", body.Data.TicketID)
}

func TestCreateMessageEndpoint(t *testing.T) {
	e, h, chatRepo := newHandlerFixture()
	chatRepo.chat = &entity.Chat{
		ID:       "chat-1",
		TicketID: "T-1",
		Participants: []entity.Participant{
			{UserID: "agent-1", Status: "active"},
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/chats/chat-1/messages",
		strings.NewReader(`{"content": "hello", "messageType": "text"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("uid", "agent-1")
	c.SetParamNames("id")
	c.SetParamValues("chat-1")

	require.NoError(t, h.CreateMessage(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Success bool           `json:"success"`
		Data    entity.Message `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "m-1", body.Data.ID)
	assert.Equal(t, "hello", body.Data.Content)
	assert.Equal(t, "T-1", body.Data.TicketID)
}

func TestCreateMessageValidation(t *testing.T) {
	e, h, chatRepo := newHandlerFixture()
	chatRepo.chat = &entity.Chat{
		ID:           "chat-1",
		TicketID:     "T-1",
		Participants: []entity.Participant{{UserID: "agent-1", Status: "active"}},
	}

	tests := []struct {
		name string
		body string
	}{
		{"missing content", `{"messageType": "text"}`},
		{"bad message type", `{"content": "x", "messageType": "carrier-pigeon"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/chats/chat-1/messages", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.Set("uid", "agent-1")
			c.SetParamNames("id")
			c.SetParamValues("chat-1")

			require.NoError(t, h.CreateMessage(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
		})
	}
}

func TestCreateMessageForbiddenForNonParticipant(t *testing.T) {
	e, h, chatRepo := newHandlerFixture()
	chatRepo.chat = &entity.Chat{
		ID:           "chat-1",
		TicketID:     "T-1",
		Participants: []entity.Participant{{UserID: "someone-else", Status: "active"}},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/chats/chat-1/messages",
		strings.NewReader(`{"content": "hello"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("uid", "cust-2")
	c.SetParamNames("id")
	c.SetParamValues("chat-1")

	require.NoError(t, h.CreateMessage(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "FORBIDDEN")
}

func TestGetChatMessagesReturnsPaginatedEnvelope(t *testing.T) {
	e, h, chatRepo := newHandlerFixture()
	chatRepo.chat = &entity.Chat{
		ID:           "chat-1",
		TicketID:     "T-1",
		Participants: []entity.Participant{{UserID: "agent-1", Status: "active"}},
	}
	chatRepo.messages = []*entity.Message{
		{ID: "m2", ChatID: "chat-1", Content: "newer"},
		{ID: "m1", ChatID: "chat-1", Content: "older"},
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/chats/chat-1/messages?limit=50", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("uid", "agent-1")
	c.SetParamNames("id")
	c.SetParamValues("chat-1")

	require.NoError(t, h.GetChatMessages(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Items []entity.Message `json:"items"`
			Total int64            `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, int64(2), body.Data.Total)
	require.Len(t, body.Data.Items, 2)
	assert.Equal(t, "m2", body.Data.Items[0].ID)
}

func TestMarkChatReadEndpoint(t *testing.T) {
	e, h, chatRepo := newHandlerFixture()
	chatRepo.chat = &entity.Chat{
		ID:           "chat-1",
		TicketID:     "T-1",
		Participants: []entity.Participant{{UserID: "agent-1", Status: "active"}},
		UnreadCount:  map[string]int{"agent-1": 3},
	}

	req := httptest.NewRequest(http.MethodPut, "/v1/chats/chat-1/read", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("uid", "agent-1")
	c.SetParamNames("id")
	c.SetParamValues("chat-1")

	require.NoError(t, h.MarkChatRead(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, chatRepo.chat.UnreadCount["agent-1"])
}
