package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction is what an audit entry records.
type AuditAction string

const (
	AuditSendSMS         AuditAction = "SEND_SMS"
	AuditStatusUpdate    AuditAction = "STATUS_UPDATE"
	AuditInboundReceived AuditAction = "INBOUND_RECEIVED"
)

// AuditLog links an action to the actor, the affected user and message.
// Actor is nil for system or provider-driven actions.
type AuditLog struct {
	ID           string      `json:"id"`
	Action       AuditAction `json:"action"`
	ActorID      *string     `json:"actor_id,omitempty"`
	TargetUserID *string     `json:"target_user_id,omitempty"`
	MessageID    *string     `json:"message_id,omitempty"`
	CampaignID   *string     `json:"campaign_id,omitempty"`
	Details      string      `json:"details,omitempty"`
	CreatedAt    int64       `json:"created_at"`
}

// NewAuditLog builds an entry for msg. actorID may be empty.
func NewAuditLog(action AuditAction, actorID string, msg *Message, details string) *AuditLog {
	entry := &AuditLog{
		ID:        uuid.New().String(),
		Action:    action,
		Details:   details,
		CreatedAt: time.Now().Unix(),
	}
	if actorID != "" {
		entry.ActorID = &actorID
	}
	if msg != nil {
		userID, msgID := msg.UserID, msg.ID
		entry.TargetUserID = &userID
		entry.MessageID = &msgID
		entry.CampaignID = msg.CampaignID
	}
	return entry
}
