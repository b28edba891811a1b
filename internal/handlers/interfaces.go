package handlers

import (
	"context"
	"time"

	"sms-notify-server/internal/db"
	"sms-notify-server/internal/models"
)

// UserServiceInterface defines the contract for user service operations
// This interface is used for dependency injection and testing
type UserServiceInterface interface {
	CreateUser(ctx context.Context, username, email, password string) (*models.User, error)
	Authenticate(ctx context.Context, username, password, totpCode string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error

	// 2FA/TOTP methods
	GenerateTOTPSecret(ctx context.Context, userID string) (secret, url string, err error)
	EnableTOTP(ctx context.Context, userID, totpCode string) error
	DisableTOTP(ctx context.Context, userID string) error
}

// ProfileServiceInterface defines the contract for profile operations
type ProfileServiceInterface interface {
	Upsert(ctx context.Context, in models.ProfileInput) (*models.Profile, error)
	Get(ctx context.Context, id string) (*models.Profile, error)
	GetByUser(ctx context.Context, userID string) (*models.Profile, error)
	Update(ctx context.Context, id string, in models.ProfileInput) (*models.Profile, error)
	UpdateByUser(ctx context.Context, userID string, in models.ProfileInput) (*models.Profile, error)
	Verify(ctx context.Context, id string) (*models.Profile, error)
	List(ctx context.Context, q db.ProfileQuery) ([]*models.Profile, error)
}

// MessageServiceInterface reads the message ledger
type MessageServiceInterface interface {
	Get(ctx context.Context, id string) (*models.Message, error)
	List(ctx context.Context, filter models.MessageFilter) ([]*models.Message, error)
}

// DispatcherInterface sends outbound messages
type DispatcherInterface interface {
	SendToUser(ctx context.Context, actorID string, req models.SendMessageRequest) (*models.Message, error)
}

// ReconcilerInterface applies provider status callbacks
type ReconcilerInterface interface {
	ApplyStatus(ctx context.Context, providerID, rawStatus, errorCode string) *models.Message
}

// InboundRouterInterface records inbound messages
type InboundRouterInterface interface {
	Receive(ctx context.Context, from, body, providerID string) (*models.Message, error)
}

// StatsServiceInterface computes dashboard counters
type StatsServiceInterface interface {
	Today(ctx context.Context, loc *time.Location) (*models.Stats, error)
	ForDate(ctx context.Context, day time.Time) (*models.Stats, error)
}

// CampaignServiceInterface defines the contract for campaign operations
type CampaignServiceInterface interface {
	Create(ctx context.Context, createdBy string, req models.CreateCampaignRequest) (*models.Campaign, error)
	Get(ctx context.Context, id string) (*models.Campaign, error)
	List(ctx context.Context, limit, offset int) ([]*models.Campaign, error)
	Broadcast(ctx context.Context, actorID, campaignID, body string) ([]models.BroadcastResult, error)
}

// AuditServiceInterface lists audit entries
type AuditServiceInterface interface {
	List(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
}
