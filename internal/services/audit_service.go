package services

import (
	"context"
	"fmt"

	"sms-notify-server/internal/db"
	"sms-notify-server/internal/models"
	"sms-notify-server/pkg/logger"

	"go.uber.org/zap"
)

// AuditService writes and lists audit entries. Writes are best-effort.
type AuditService struct {
	repo db.AuditRepository
}

func NewAuditService(repo db.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Record stores entry and logs instead of failing.
func (s *AuditService) Record(ctx context.Context, entry *models.AuditLog) {
	if s == nil || s.repo == nil || entry == nil {
		return
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		logger.Warn("Failed to write audit entry",
			zap.String("action", string(entry.Action)),
			zap.Error(err),
		)
	}
}

func (s *AuditService) List(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	if limit < 0 || offset < 0 {
		return nil, newValidationError("limit", "limit and offset cannot be negative")
	}
	entries, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}
