package chatsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"supportdesk/internal/domain/entity"
)

// DurableAPI is the request/response fallback behind the live channel: the
// history fetcher uses it when the live path times out, and the send
// pipeline uses it as the write of record.
type DurableAPI interface {
	GetOrCreateChat(ctx context.Context, ticketID string) (*entity.Chat, error)
	ListMessages(ctx context.Context, chatID string, limit int) ([]*entity.Message, error)
	CreateMessage(ctx context.Context, chatID, content, messageType string) (*entity.Message, error)
}

type restClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewRESTClient returns a DurableAPI speaking the backend's REST surface.
func NewRESTClient(baseURL, token string) DurableAPI {
	return &restClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// apiEnvelope is the backend's uniform response wrapper.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *restClient) GetOrCreateChat(ctx context.Context, ticketID string) (*entity.Chat, error) {
	var chat entity.Chat
	err := c.do(ctx, http.MethodPost, "/v1/tickets/"+ticketID+"/chat", nil, &chat)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *restClient) ListMessages(ctx context.Context, chatID string, limit int) ([]*entity.Message, error) {
	var page struct {
		Items []*entity.Message `json:"items"`
	}
	path := "/v1/chats/" + chatID + "/messages?limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (c *restClient) CreateMessage(ctx context.Context, chatID, content, messageType string) (*entity.Message, error) {
	if messageType == "" {
		messageType = entity.MessageTypeText
	}
	body := map[string]string{
		"content":     content,
		"messageType": messageType,
	}

	var message entity.Message
	if err := c.do(ctx, http.MethodPost, "/v1/chats/"+chatID+"/messages", body, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *restClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("chatsync: bad response from %s %s: %w", method, path, err)
	}
	if !env.Success {
		if env.Error != nil {
			return fmt.Errorf("chatsync: %s %s failed: %s (%s)", method, path, env.Error.Message, env.Error.Code)
		}
		return fmt.Errorf("chatsync: %s %s failed with status %d", method, path, resp.StatusCode)
	}

	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}
