package services

import (
	"context"
	"errors"
	"time"

	"sms-notify-server/internal/cache"
	"sms-notify-server/internal/db"
	"sms-notify-server/internal/models"
	"sms-notify-server/pkg/logger"

	"go.uber.org/zap"
)

// Reconciler folds provider status callbacks into the ledger.
type Reconciler struct {
	messages  db.MessageRepository
	campaigns db.CampaignRepository
	lookup    cache.MessageLookup
	audit     *AuditService
	now       func() time.Time
}

func NewReconciler(messages db.MessageRepository, campaigns db.CampaignRepository, lookup cache.MessageLookup, audit *AuditService) *Reconciler {
	if lookup == nil {
		lookup = cache.Noop{}
	}
	return &Reconciler{
		messages:  messages,
		campaigns: campaigns,
		lookup:    lookup,
		audit:     audit,
		now:       time.Now,
	}
}

// ApplyStatus applies a provider-reported status to the message carrying
// providerID and returns it. Unknown ids return nil. Failures are logged,
// never returned: callers acknowledge the provider regardless.
func (r *Reconciler) ApplyStatus(ctx context.Context, providerID, rawStatus, errorCode string) *models.Message {
	if providerID == "" {
		return nil
	}

	// A provider that drops the connection still gets its report applied.
	ctx, cancel := detached(ctx)
	defer cancel()

	msg, err := r.find(ctx, providerID)
	if err != nil {
		logger.Error("Status callback lookup failed",
			zap.String("provider_id", providerID),
			zap.Error(err),
		)
		return nil
	}
	if msg == nil {
		logger.Debug("Status callback for unknown provider id",
			zap.String("provider_id", providerID),
			zap.String("raw_status", rawStatus),
		)
		return nil
	}

	prev := msg.Status
	changed := msg.ApplyProviderStatus(rawStatus, errorCode, r.now())
	if err := r.messages.UpdateDelivery(ctx, msg); err != nil {
		logger.Error("Failed to persist status callback",
			zap.String("message_id", msg.ID),
			zap.String("provider_id", providerID),
			zap.String("raw_status", rawStatus),
			zap.Error(err),
		)
		return msg
	}

	if changed && msg.CampaignID != nil {
		if counter, ok := models.CounterFor(msg.Status); ok {
			if err := r.campaigns.IncrementCounter(ctx, *msg.CampaignID, counter); err != nil {
				logger.Warn("Failed to update campaign counter",
					zap.String("campaign_id", *msg.CampaignID),
					zap.String("counter", string(counter)),
					zap.Error(err),
				)
			}
		}
	}

	r.audit.Record(ctx, models.NewAuditLog(models.AuditStatusUpdate, "", msg, msg.RawProviderStatus))

	logger.Info("Status callback applied",
		zap.String("message_id", msg.ID),
		zap.String("provider_id", providerID),
		zap.String("raw_status", msg.RawProviderStatus),
		zap.String("from", string(prev)),
		zap.String("to", string(msg.Status)),
		zap.Bool("changed", changed),
	)
	return msg
}

// find tries the cache first and falls back to the provider_id index.
func (r *Reconciler) find(ctx context.Context, providerID string) (*models.Message, error) {
	id, err := r.lookup.Lookup(ctx, providerID)
	switch {
	case err == nil:
		msg, err := r.messages.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if msg != nil && msg.ProviderID == providerID {
			return msg, nil
		}
	case !errors.Is(err, cache.ErrMiss):
		logger.Warn("Provider id cache unavailable",
			zap.String("provider_id", providerID),
			zap.Error(err),
		)
	}
	return r.messages.GetByProviderID(ctx, providerID)
}
