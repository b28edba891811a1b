package models

import (
	"time"

	"github.com/google/uuid"
)

// Campaign groups outbound messages under a named broadcast.
type Campaign struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	CreatedBy      *string  `json:"created_by,omitempty"`
	IsActive       bool     `json:"is_active"`
	ScheduledFor   *int64   `json:"scheduled_for,omitempty"`
	TargetUserIDs  []string `json:"targets"`
	TotalSent      int      `json:"total_sent"`
	TotalDelivered int      `json:"total_delivered"`
	TotalFailed    int      `json:"total_failed"`
	CreatedAt      int64    `json:"created_at"`
	UpdatedAt      int64    `json:"updated_at"`
}

// CreateCampaignRequest is the payload for creating a campaign.
type CreateCampaignRequest struct {
	Name          string   `json:"name" binding:"required,max=200"`
	IsActive      bool     `json:"is_active"`
	ScheduledFor  *int64   `json:"scheduled_for,omitempty"`
	TargetUserIDs []string `json:"targets"`
}

// BroadcastRequest is the payload for sending a campaign to its targets.
type BroadcastRequest struct {
	Body string `json:"body"`
}

// CampaignCounter names one of the rollup counters.
type CampaignCounter string

const (
	CounterSent      CampaignCounter = "total_sent"
	CounterDelivered CampaignCounter = "total_delivered"
	CounterFailed    CampaignCounter = "total_failed"
)

// NewCampaign returns an empty campaign owned by createdBy (may be empty).
func NewCampaign(name, createdBy string) *Campaign {
	now := time.Now().Unix()
	c := &Campaign{
		ID:            uuid.New().String(),
		Name:          name,
		TargetUserIDs: []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if createdBy != "" {
		c.CreatedBy = &createdBy
	}
	return c
}

// CounterFor returns the counter bumped when a message reaches status.
func CounterFor(status Status) (CampaignCounter, bool) {
	switch status {
	case StatusSent:
		return CounterSent, true
	case StatusDelivered:
		return CounterDelivered, true
	case StatusFailed:
		return CounterFailed, true
	}
	return "", false
}

// BroadcastResult is the outcome of dispatching a campaign to one target.
type BroadcastResult struct {
	UserID    string `json:"user_id"`
	MessageID string `json:"message_id,omitempty"`
	Status    Status `json:"status,omitempty"`
	Skipped   string `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
}
