package usecase

import (
	"context"
	"log"
	"sort"
	"time"

	"supportdesk/internal/domain/entity"
	"supportdesk/internal/domain/repository"
	"supportdesk/internal/infrastructure/ratelimit"
	"supportdesk/pkg/errors"
)

type ChatUseCase struct {
	chatRepo    repository.ChatRepository
	ticketRepo  repository.TicketRepository
	userRepo    repository.UserRepository
	rateLimiter *ratelimit.RateLimiter
}

func NewChatUseCase(
	chatRepo repository.ChatRepository,
	ticketRepo repository.TicketRepository,
	userRepo repository.UserRepository,
) *ChatUseCase {
	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	return &ChatUseCase{
		chatRepo:    chatRepo,
		ticketRepo:  ticketRepo,
		userRepo:    userRepo,
		rateLimiter: rateLimiter,
	}
}

type CreateMessageInput struct {
	Content     string
	MessageType string
	Attachments []entity.Attachment
}

// GetOrCreateChatForTicket returns the ticket's conversation, creating it
// lazily on first access. The requesting user is added as a participant if
// they are not one yet.
func (uc *ChatUseCase) GetOrCreateChatForTicket(ctx context.Context, userID, ticketID string) (*entity.Chat, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.NotFound("User", err)
	}

	chat, err := uc.chatRepo.GetByTicketID(ctx, ticketID)
	if err == nil {
		return uc.ensureParticipant(ctx, chat, user)
	}
	if !errors.Is(err, "NOT_FOUND") {
		return nil, err
	}

	ticket, err := uc.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, errors.NotFound("Ticket", err)
	}

	if user.Role == entity.RoleCustomer && ticket.CustomerID != user.ID {
		return nil, errors.Forbidden("You do not have access to this ticket's conversation", nil)
	}

	chat = &entity.Chat{
		TicketID: ticketID,
		IsActive: true,
		Participants: []entity.Participant{
			{
				UserID:    user.ID,
				UserType:  user.Role,
				UserName:  user.Username,
				UserEmail: user.Email,
				Status:    "active",
			},
		},
		UnreadCount:   make(map[string]int),
		LastMessageAt: time.Now(),
	}

	// Snapshot the ticket owner as a participant too so the customer's chat
	// surface sees the conversation without a separate join step.
	if ticket.CustomerID != "" && ticket.CustomerID != user.ID {
		if customer, err := uc.userRepo.GetByID(ctx, ticket.CustomerID); err == nil {
			chat.Participants = append(chat.Participants, entity.Participant{
				UserID:    customer.ID,
				UserType:  customer.Role,
				UserName:  customer.Username,
				UserEmail: customer.Email,
				Status:    "active",
			})
		} else {
			log.Printf("GetOrCreateChatForTicket: ticket %s owner %s not found: %v", ticketID, ticket.CustomerID, err)
		}
	}

	if err := uc.chatRepo.Create(ctx, chat); err != nil {
		log.Printf("GetOrCreateChatForTicket: failed to create chat for ticket %s: %v", ticketID, err)
		return nil, err
	}

	return chat, nil
}

// GetChatForTicket is the read-only lookup used when the conversation must
// already exist.
func (uc *ChatUseCase) GetChatForTicket(ctx context.Context, ticketID string) (*entity.Chat, error) {
	return uc.chatRepo.GetByTicketID(ctx, ticketID)
}

// TicketMessages serves the live history request: at most limit messages,
// the most recent ones when the conversation is longer, sorted oldest-first.
func (uc *ChatUseCase) TicketMessages(ctx context.Context, ticketID string, limit int) ([]*entity.Message, error) {
	chat, err := uc.chatRepo.GetByTicketID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, "NOT_FOUND") {
			return []*entity.Message{}, nil
		}
		return nil, err
	}

	messages, _, err := uc.chatRepo.GetMessagesByChat(ctx, chat.ID, limit, 0)
	if err != nil {
		return nil, err
	}

	// Repository order is newest-first so truncation keeps recency; the
	// transcript seed wants oldest-first.
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	return messages, nil
}

// ListChatMessages is the durable REST fallback. The page comes back in
// repository order (newest first); clients sort oldest-first themselves.
func (uc *ChatUseCase) ListChatMessages(ctx context.Context, userID, chatID string, limit, offset int) ([]*entity.Message, int64, error) {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, 0, err
	}
	if !isParticipant(chat, userID) {
		return nil, 0, errors.Forbidden("You are not a participant of this conversation", nil)
	}

	return uc.chatRepo.GetMessagesByChat(ctx, chat.ID, limit, offset)
}

// CreateMessage is the durable send path. The live fan-out happens over the
// socket before this call; this is the write of record.
func (uc *ChatUseCase) CreateMessage(ctx context.Context, userID, chatID string, input CreateMessageInput) (*entity.Message, error) {
	allowed, waitTime := uc.rateLimiter.Allow(userID, "send_message")
	if !allowed {
		log.Printf("CreateMessage rate limited: user %s must wait %v", userID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message", waitTime)
	}

	if input.Content == "" {
		return nil, errors.BadRequest("Message content is required", nil)
	}
	if input.MessageType == "" {
		input.MessageType = entity.MessageTypeText
	}

	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(chat, userID) {
		return nil, errors.Forbidden("You are not a participant of this conversation", nil)
	}

	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.NotFound("User", err)
	}

	message := &entity.Message{
		ChatID:   chat.ID,
		TicketID: chat.TicketID,
		Sender: entity.Sender{
			UserID:    user.ID,
			UserType:  user.Role,
			UserName:  user.Username,
			UserEmail: user.Email,
		},
		Content:     input.Content,
		MessageType: input.MessageType,
		Attachments: input.Attachments,
		IsRead:      false,
		CreatedAt:   time.Now(),
	}

	if err := uc.chatRepo.CreateMessage(ctx, message); err != nil {
		log.Printf("CreateMessage: failed to persist message in chat %s: %v", chatID, err)
		return nil, err
	}

	chat.LastMessage = message.Content
	chat.LastMessageAt = message.CreatedAt
	if chat.UnreadCount == nil {
		chat.UnreadCount = make(map[string]int)
	}
	for _, participant := range chat.Participants {
		if participant.UserID != userID {
			chat.UnreadCount[participant.UserID]++
		}
	}
	if err := uc.chatRepo.Update(ctx, chat); err != nil {
		// The message itself is durable; a stale preview is tolerable.
		log.Printf("CreateMessage: failed to update chat %s preview: %v", chatID, err)
	}

	return message, nil
}

// MarkChatRead clears the caller's unread counter and flags other
// participants' messages as read.
func (uc *ChatUseCase) MarkChatRead(ctx context.Context, userID, chatID string) error {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !isParticipant(chat, userID) {
		return errors.Forbidden("You are not a participant of this conversation", nil)
	}

	if err := uc.chatRepo.MarkMessagesRead(ctx, chatID, userID); err != nil {
		return err
	}

	if chat.UnreadCount != nil && chat.UnreadCount[userID] != 0 {
		chat.UnreadCount[userID] = 0
		if err := uc.chatRepo.Update(ctx, chat); err != nil {
			log.Printf("MarkChatRead: failed to reset unread count for %s in chat %s: %v", userID, chatID, err)
		}
	}

	return nil
}

func (uc *ChatUseCase) ensureParticipant(ctx context.Context, chat *entity.Chat, user *entity.User) (*entity.Chat, error) {
	if isParticipant(chat, user.ID) {
		return chat, nil
	}

	if user.Role == entity.RoleCustomer {
		return nil, errors.Forbidden("You do not have access to this ticket's conversation", nil)
	}

	chat.Participants = append(chat.Participants, entity.Participant{
		UserID:    user.ID,
		UserType:  user.Role,
		UserName:  user.Username,
		UserEmail: user.Email,
		Status:    "active",
	})
	if err := uc.chatRepo.Update(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func isParticipant(chat *entity.Chat, userID string) bool {
	for _, p := range chat.Participants {
		if p.UserID == userID && p.Status != "left" {
			return true
		}
	}
	return false
}
