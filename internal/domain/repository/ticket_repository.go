package repository

import (
	"context"

	"supportdesk/internal/domain/entity"
)

type TicketRepository interface {
	Create(ctx context.Context, ticket *entity.Ticket) error
	GetByID(ctx context.Context, id string) (*entity.Ticket, error)
	Update(ctx context.Context, ticket *entity.Ticket) error
}
