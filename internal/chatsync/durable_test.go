package chatsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdesk/internal/domain/entity"
)

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}

func TestRESTClientGetOrCreateChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/tickets/T-1/chat", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(envelope(entity.Chat{ID: "chat-1", TicketID: "T-1"}))
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL, "test-token")
	chat, err := client.GetOrCreateChat(context.Background(), "T-1")
	require.NoError(t, err)
	assert.Equal(t, "chat-1", chat.ID)
	assert.Equal(t, "T-1", chat.TicketID)
}

func TestRESTClientListMessagesUnwrapsPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/chats/chat-1/messages", r.URL.Path)
		assert.Equal(t, "200", r.URL.Query().Get("limit"))

		json.NewEncoder(w).Encode(envelope(map[string]interface{}{
			"items": []entity.Message{
				{ID: "m2", ChatID: "chat-1", Content: "newer"},
				{ID: "m1", ChatID: "chat-1", Content: "older"},
			},
			"total":    2,
			"page":     1,
			"pageSize": 200,
		}))
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL, "test-token")
	messages, err := client.ListMessages(context.Background(), "chat-1", 200)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "m2", messages[0].ID)
}

func TestRESTClientCreateMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chats/chat-1/messages", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["content"])
		assert.Equal(t, entity.MessageTypeText, body["messageType"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(envelope(entity.Message{
			ID: "m1", ChatID: "chat-1", Content: body["content"], MessageType: body["messageType"],
		}))
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL, "test-token")
	msg, err := client.CreateMessage(context.Background(), "chat-1", "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "hello", msg.Content)
}

func TestRESTClientSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error": map[string]string{
				"code":    "FORBIDDEN",
				"message": "Not a participant in this chat",
			},
		})
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL, "test-token")
	_, err := client.GetOrCreateChat(context.Background(), "T-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FORBIDDEN")
	assert.Contains(t, err.Error(), "Not a participant")
}
