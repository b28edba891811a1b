package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sms-notify-server/internal/cache"
	"sms-notify-server/internal/db"
	"sms-notify-server/internal/models"
	"sms-notify-server/internal/provider"
	"sms-notify-server/pkg/logger"
	"sms-notify-server/pkg/utils"

	"go.uber.org/zap"
)

const (
	msgNoPhone       = "User has no phone number."
	msgNotOptedIn    = "User is not opted in to SMS."
	msgBodyLength    = "Ensure this field has between 1 and 1000 characters."
	msgInvalidCampgn = "Invalid campaign."
)

// persistTimeout bounds writes that must land after the provider has been
// called, even if the caller has gone away.
const persistTimeout = 5 * time.Second

// detached returns a context that survives cancellation of ctx.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

// Dispatcher records outbound messages and hands them to the provider.
// The Sender is fixed at construction; a nil Sender fails every send as
// unconfigured.
type Dispatcher struct {
	sender    provider.Sender
	messages  db.MessageRepository
	profiles  db.ProfileRepository
	users     db.UserRepository
	campaigns db.CampaignRepository
	lookup    cache.MessageLookup
	audit     *AuditService
}

func NewDispatcher(
	sender provider.Sender,
	messages db.MessageRepository,
	profiles db.ProfileRepository,
	users db.UserRepository,
	campaigns db.CampaignRepository,
	lookup cache.MessageLookup,
	audit *AuditService,
) *Dispatcher {
	if sender == nil {
		sender = provider.Unconfigured{}
	}
	if lookup == nil {
		lookup = cache.Noop{}
	}
	return &Dispatcher{
		sender:    sender,
		messages:  messages,
		profiles:  profiles,
		users:     users,
		campaigns: campaigns,
		lookup:    lookup,
		audit:     audit,
	}
}

// Send dispatches body to profile's phone number. The caller has already
// checked that the profile can receive SMS.
//
// The QUEUED entry is committed before the provider is called. On provider
// failure the entry is marked FAILED and returned together with a
// *ProviderError.
func (d *Dispatcher) Send(ctx context.Context, actorID string, profile *models.Profile, body string, campaignID *string) (*models.Message, error) {
	msg := models.NewOutboundMessage(profile.UserID, body, campaignID)
	if err := d.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to record message: %w", err)
	}

	providerID, sendErr := d.sender.Send(ctx, profile.PhoneNumber, body)

	// The provider has answered; the outcome is recorded regardless of ctx.
	ctx, cancel := detached(ctx)
	defer cancel()

	if sendErr != nil {
		code := provider.ErrorCode(sendErr)
		msg.MarkFailed(code)
		if err := d.messages.UpdateDelivery(ctx, msg); err != nil {
			logger.Error("Failed to persist failed dispatch",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
		d.bumpCampaign(ctx, msg, models.CounterFailed)

		logger.Warn("SMS dispatch failed",
			zap.String("message_id", msg.ID),
			zap.String("user_id", msg.UserID),
			zap.String("to", utils.MaskPhone(profile.PhoneNumber)),
			zap.String("error_code", code),
			zap.Error(sendErr),
		)
		return msg, &ProviderError{MessageID: msg.ID, Code: code, Err: sendErr}
	}

	msg.MarkSent(providerID)
	if err := d.messages.UpdateDelivery(ctx, msg); err != nil {
		return msg, fmt.Errorf("failed to record provider id: %w", err)
	}

	if err := d.lookup.Store(ctx, providerID, msg.ID); err != nil {
		logger.Warn("Failed to cache provider id",
			zap.String("provider_id", providerID),
			zap.Error(err),
		)
	}
	d.bumpCampaign(ctx, msg, models.CounterSent)
	d.audit.Record(ctx, models.NewAuditLog(models.AuditSendSMS, actorID, msg, ""))

	logger.Info("SMS dispatched",
		zap.String("message_id", msg.ID),
		zap.String("provider_id", providerID),
		zap.String("user_id", msg.UserID),
		zap.String("to", utils.MaskPhone(profile.PhoneNumber)),
	)
	return msg, nil
}

// SendToUser validates req and dispatches it.
func (d *Dispatcher) SendToUser(ctx context.Context, actorID string, req models.SendMessageRequest) (*models.Message, error) {
	if req.CampaignID != nil && *req.CampaignID == "" {
		req.CampaignID = nil
	}
	profile, err := d.checkRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	return d.Send(ctx, actorID, profile, req.Body, req.CampaignID)
}

func validateBody(body string) error {
	if strings.TrimSpace(body) == "" || len([]rune(body)) > models.MaxBodyLength {
		return newValidationError("body", msgBodyLength)
	}
	return nil
}

// eligibleProfile returns the profile of userID, or a field message saying
// why it cannot be texted.
func (d *Dispatcher) eligibleProfile(ctx context.Context, userID string) (*models.Profile, string, error) {
	profile, err := d.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get profile: %w", err)
	}
	if profile == nil || profile.PhoneNumber == "" {
		return nil, msgNoPhone, nil
	}
	if !profile.SMSOptIn {
		return nil, msgNotOptedIn, nil
	}
	return profile, "", nil
}

func (d *Dispatcher) checkRequest(ctx context.Context, req models.SendMessageRequest) (*models.Profile, error) {
	verr := &ValidationError{}
	if err := validateBody(req.Body); err != nil {
		verr.add("body", msgBodyLength)
	}

	var profile *models.Profile
	if req.ToUser == "" {
		verr.add("to_user", msgRequired)
	} else {
		user, err := d.users.GetByID(ctx, req.ToUser)
		if err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		if user == nil {
			verr.add("to_user", msgInvalidUser)
		} else {
			p, reason, err := d.eligibleProfile(ctx, user.ID)
			if err != nil {
				return nil, err
			}
			if reason != "" {
				verr.add("to_user", reason)
			}
			profile = p
		}
	}

	if req.CampaignID != nil {
		c, err := d.campaigns.GetByID(ctx, *req.CampaignID)
		if err != nil {
			return nil, fmt.Errorf("failed to get campaign: %w", err)
		}
		if c == nil {
			verr.add("campaign_id", msgInvalidCampgn)
		}
	}

	if !verr.empty() {
		return nil, verr
	}
	return profile, nil
}

func (d *Dispatcher) bumpCampaign(ctx context.Context, msg *models.Message, counter models.CampaignCounter) {
	if msg.CampaignID == nil {
		return
	}
	if err := d.campaigns.IncrementCounter(ctx, *msg.CampaignID, counter); err != nil {
		logger.Warn("Failed to update campaign counter",
			zap.String("campaign_id", *msg.CampaignID),
			zap.String("counter", string(counter)),
			zap.Error(err),
		)
	}
}
