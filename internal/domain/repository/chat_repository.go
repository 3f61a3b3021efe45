package repository

import (
	"context"

	"supportdesk/internal/domain/entity"
)

type ChatRepository interface {
	Create(ctx context.Context, chat *entity.Chat) error
	GetByID(ctx context.Context, id string) (*entity.Chat, error)
	GetByTicketID(ctx context.Context, ticketID string) (*entity.Chat, error)
	Update(ctx context.Context, chat *entity.Chat) error

	// Message methods
	CreateMessage(ctx context.Context, message *entity.Message) error
	GetMessageByID(ctx context.Context, chatID, messageID string) (*entity.Message, error)
	// GetMessagesByChat returns at most limit messages, most recent first.
	GetMessagesByChat(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error)
	MarkMessagesRead(ctx context.Context, chatID, userID string) error
}
