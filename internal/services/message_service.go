package services

import (
	"context"
	"fmt"

	"sms-notify-server/internal/db"
	"sms-notify-server/internal/models"
)

// MessageService reads the message ledger.
type MessageService struct {
	repo db.MessageRepository
}

func NewMessageService(repo db.MessageRepository) *MessageService {
	return &MessageService{repo: repo}
}

func (s *MessageService) Get(ctx context.Context, id string) (*models.Message, error) {
	if id == "" {
		return nil, ErrMessageNotFound
	}
	msg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	return msg, nil
}

// List returns ledger entries matching filter, newest first.
func (s *MessageService) List(ctx context.Context, filter models.MessageFilter) ([]*models.Message, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, newValidationError("limit", "limit and offset cannot be negative")
	}
	if filter.Direction != "" && !filter.Direction.Valid() {
		return nil, newValidationError("direction", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", filter.Direction))
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, newValidationError("status", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", filter.Status))
	}
	msgs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}
