package services

import (
	"context"
	"fmt"
	"strings"

	"sms-notify-server/internal/db"
	"sms-notify-server/internal/models"
	"sms-notify-server/pkg/logger"

	"go.uber.org/zap"
)

// CampaignService manages campaigns and sends them to their targets.
type CampaignService struct {
	campaigns  db.CampaignRepository
	users      db.UserRepository
	dispatcher *Dispatcher
}

func NewCampaignService(campaigns db.CampaignRepository, users db.UserRepository, dispatcher *Dispatcher) *CampaignService {
	return &CampaignService{campaigns: campaigns, users: users, dispatcher: dispatcher}
}

// Create stores a campaign owned by createdBy. Targets must be existing users;
// duplicates are dropped.
func (s *CampaignService) Create(ctx context.Context, createdBy string, req models.CreateCampaignRequest) (*models.Campaign, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, newValidationError("name", msgRequired)
	}

	seen := make(map[string]bool, len(req.TargetUserIDs))
	targets := make([]string, 0, len(req.TargetUserIDs))
	for _, id := range req.TargetUserIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		if user == nil {
			return nil, newValidationError("targets", fmt.Sprintf("Invalid user %q.", id))
		}
		targets = append(targets, id)
	}

	c := models.NewCampaign(name, createdBy)
	c.IsActive = req.IsActive
	c.ScheduledFor = req.ScheduledFor
	c.TargetUserIDs = targets
	if err := s.campaigns.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	logger.Info("Campaign created",
		zap.String("campaign_id", c.ID),
		zap.String("name", c.Name),
		zap.Int("targets", len(targets)),
	)
	return c, nil
}

func (s *CampaignService) Get(ctx context.Context, id string) (*models.Campaign, error) {
	if id == "" {
		return nil, ErrCampaignNotFound
	}
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	if c == nil {
		return nil, ErrCampaignNotFound
	}
	return c, nil
}

func (s *CampaignService) List(ctx context.Context, limit, offset int) ([]*models.Campaign, error) {
	if limit < 0 || offset < 0 {
		return nil, newValidationError("limit", "limit and offset cannot be negative")
	}
	campaigns, err := s.campaigns.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

// Broadcast sends body to every target of the campaign, one at a time.
// Targets without a phone or opt-in are skipped. Lookup and provider
// failures are reported per target and do not stop the loop.
func (s *CampaignService) Broadcast(ctx context.Context, actorID, campaignID, body string) ([]models.BroadcastResult, error) {
	if err := validateBody(body); err != nil {
		return nil, err
	}

	c, err := s.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	results := make([]models.BroadcastResult, 0, len(c.TargetUserIDs))
	sent, failed, skipped := 0, 0, 0
	for _, userID := range c.TargetUserIDs {
		res := models.BroadcastResult{UserID: userID}

		profile, reason, err := s.dispatcher.eligibleProfile(ctx, userID)
		if err != nil {
			logger.Error("Campaign target lookup failed",
				zap.String("campaign_id", c.ID),
				zap.String("user_id", userID),
				zap.Error(err),
			)
			res.Error = err.Error()
			results = append(results, res)
			failed++
			continue
		}
		if reason != "" {
			res.Skipped = reason
			results = append(results, res)
			skipped++
			continue
		}

		msg, err := s.dispatcher.Send(ctx, actorID, profile, body, &c.ID)
		if msg != nil {
			res.MessageID = msg.ID
			res.Status = msg.Status
		}
		if err != nil {
			res.Error = err.Error()
			failed++
		} else {
			sent++
		}
		results = append(results, res)
	}

	logger.Info("Campaign broadcast finished",
		zap.String("campaign_id", c.ID),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped),
	)
	return results, nil
}
