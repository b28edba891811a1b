package services

import (
	"context"
	"fmt"
	"time"

	"sms-notify-server/internal/db"
	"sms-notify-server/internal/models"
	"sms-notify-server/pkg/logger"
	"sms-notify-server/pkg/utils"

	"go.uber.org/zap"
)

// InboundRouter records messages sent to us by known users.
type InboundRouter struct {
	profiles db.ProfileRepository
	messages db.MessageRepository
	audit    *AuditService
	now      func() time.Time
}

func NewInboundRouter(profiles db.ProfileRepository, messages db.MessageRepository, audit *AuditService) *InboundRouter {
	return &InboundRouter{
		profiles: profiles,
		messages: messages,
		audit:    audit,
		now:      time.Now,
	}
}

// Receive stores an inbound message when from matches exactly one profile.
// An unknown or ambiguous sender returns (nil, nil) and writes nothing.
func (r *InboundRouter) Receive(ctx context.Context, from, body, providerID string) (*models.Message, error) {
	if from == "" {
		logger.Warn("Inbound message without sender", zap.String("provider_id", providerID))
		return nil, nil
	}

	matches, err := r.profiles.FindByPhone(ctx, from, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to look up sender: %w", err)
	}
	if len(matches) != 1 {
		logger.Info("Inbound message from unknown sender",
			zap.String("from", utils.MaskPhone(from)),
			zap.String("provider_id", providerID),
			zap.Int("matches", len(matches)),
		)
		return nil, nil
	}

	msg := models.NewInboundMessage(matches[0].UserID, body, providerID, r.now())
	if err := r.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to record inbound message: %w", err)
	}

	r.audit.Record(ctx, models.NewAuditLog(models.AuditInboundReceived, "", msg, ""))

	logger.Info("Inbound message recorded",
		zap.String("message_id", msg.ID),
		zap.String("user_id", msg.UserID),
		zap.String("provider_id", providerID),
	)
	return msg, nil
}
