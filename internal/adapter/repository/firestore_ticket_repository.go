package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"supportdesk/internal/domain/entity"
	"supportdesk/internal/domain/repository"
	"supportdesk/pkg/errors"
)

type firestoreTicketRepository struct {
	client *firestore.Client
}

func NewFirestoreTicketRepository(client *firestore.Client) repository.TicketRepository {
	return &firestoreTicketRepository{
		client: client,
	}
}

func (r *firestoreTicketRepository) Create(ctx context.Context, ticket *entity.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.New().String()
	}

	now := time.Now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	if ticket.Status == "" {
		ticket.Status = "open"
	}

	_, err := r.client.Collection("tickets").Doc(ticket.ID).Set(ctx, ticket)
	if err != nil {
		return errors.Internal("Failed to create ticket", err)
	}
	return nil
}

func (r *firestoreTicketRepository) GetByID(ctx context.Context, id string) (*entity.Ticket, error) {
	doc, err := r.client.Collection("tickets").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Ticket", err)
		}
		return nil, errors.Internal("Failed to get ticket", err)
	}

	var ticket entity.Ticket
	if err := doc.DataTo(&ticket); err != nil {
		return nil, errors.Internal("Failed to parse ticket data", err)
	}
	return &ticket, nil
}

func (r *firestoreTicketRepository) Update(ctx context.Context, ticket *entity.Ticket) error {
	ticket.UpdatedAt = time.Now()

	_, err := r.client.Collection("tickets").Doc(ticket.ID).Set(ctx, ticket)
	if err != nil {
		return errors.Internal("Failed to update ticket", err)
	}
	return nil
}
