package models

import (
	"time"

	"github.com/google/uuid"
)

// Direction says whether we sent a message or received it.
type Direction string

const (
	DirectionOutbound Direction = "OUTBOUND"
	DirectionInbound  Direction = "INBOUND"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionOutbound || d == DirectionInbound
}

// Status is the internal delivery status of a ledger entry.
type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusFailed    Status = "FAILED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusSent, StatusDelivered, StatusFailed:
		return true
	}
	return false
}

// Rank orders statuses: QUEUED < SENT < {DELIVERED, FAILED}.
func (s Status) Rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusSent:
		return 1
	case StatusDelivered, StatusFailed:
		return 2
	}
	return -1
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s.Rank() == 2
}

// RawStatusUnknown is recorded when the provider omits the status.
const RawStatusUnknown = "unknown"

// MapProviderStatus maps the provider's raw status vocabulary onto our
// statuses. The match is exact and case-sensitive. ok is false for
// anything we do not recognise.
func MapProviderStatus(raw string) (status Status, ok bool) {
	switch raw {
	case "delivered":
		return StatusDelivered, true
	case "failed", "undelivered":
		return StatusFailed, true
	case "sent", "queued", "accepted":
		return StatusSent, true
	}
	return "", false
}

// Message is one ledger entry: a single SMS, inbound or outbound.
type Message struct {
	ID                string    `json:"id"`
	UserID            string    `json:"to_user"`
	Direction         Direction `json:"direction"`
	Body              string    `json:"body"`
	ProviderID        string    `json:"provider_id"`
	Status            Status    `json:"status"`
	ErrorCode         string    `json:"error_code,omitempty"`
	RawProviderStatus string    `json:"raw_provider_status"`
	CampaignID        *string   `json:"campaign_id,omitempty"`
	CreatedAt         int64     `json:"created_at"`
	UpdatedAt         int64     `json:"updated_at"`
	DeliveredAt       *int64    `json:"delivered_at,omitempty"`
}

// NewOutboundMessage returns a QUEUED outbound entry for userID.
func NewOutboundMessage(userID, body string, campaignID *string) *Message {
	now := time.Now().Unix()
	return &Message{
		ID:         uuid.New().String(),
		UserID:     userID,
		Direction:  DirectionOutbound,
		Body:       body,
		Status:     StatusQueued,
		CampaignID: campaignID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NewInboundMessage returns an entry for a message that reached us at
// receivedAt. Arrival counts as delivery.
func NewInboundMessage(userID, body, providerID string, receivedAt time.Time) *Message {
	ts := receivedAt.Unix()
	return &Message{
		ID:          uuid.New().String(),
		UserID:      userID,
		Direction:   DirectionInbound,
		Body:        body,
		ProviderID:  providerID,
		Status:      StatusDelivered,
		CreatedAt:   ts,
		UpdatedAt:   ts,
		DeliveredAt: &ts,
	}
}

// ApplyProviderStatus folds a provider status callback into the entry and
// reports whether Status moved to a different value.
//
// raw_provider_status is always recorded. Unrecognised statuses leave
// Status alone. A mapped status ranking below the current one is stale and
// ignored, and DELIVERED and FAILED never replace each other. Re-applying
// the current status refreshes its side fields.
func (m *Message) ApplyProviderStatus(raw, errorCode string, at time.Time) bool {
	next, ok := MapProviderStatus(raw)
	if !ok {
		if raw == "" {
			raw = RawStatusUnknown
		}
		m.RawProviderStatus = raw
		return false
	}
	m.RawProviderStatus = raw

	if next.Rank() < m.Status.Rank() {
		return false
	}
	if m.Status.Terminal() && next != m.Status {
		return false
	}

	prev := m.Status
	m.Status = next
	switch next {
	case StatusDelivered:
		ts := at.Unix()
		m.DeliveredAt = &ts
	case StatusFailed:
		if errorCode != "" {
			m.ErrorCode = errorCode
		}
	}
	return prev != next
}

// MarkSent records a successful hand-off to the provider.
func (m *Message) MarkSent(providerID string) {
	m.ProviderID = providerID
	m.Status = StatusSent
	m.RawProviderStatus = "sent"
}

// MarkFailed records a failed hand-off to the provider.
func (m *Message) MarkFailed(code string) {
	m.Status = StatusFailed
	m.ErrorCode = code
}

// MaxBodyLength bounds outbound message bodies.
const MaxBodyLength = 1000

// SendMessageRequest is the payload for dispatching one outbound message.
type SendMessageRequest struct {
	ToUser     string  `json:"to_user"`
	Body       string  `json:"body"`
	CampaignID *string `json:"campaign_id,omitempty"`
}

// MessageFilter narrows ledger listings. Zero values mean "any".
type MessageFilter struct {
	UserID    string
	Direction Direction
	Status    Status
	Limit     int
	Offset    int
}

// Stats is the dashboard rollup for one local calendar day.
type Stats struct {
	OptedInUsers      int    `json:"opted_in_users"`
	MessagesSentToday int    `json:"messages_sent_today"`
	DeliveredToday    int    `json:"delivered_today"`
	Date              string `json:"date"`
	Timezone          string `json:"timezone"`
}
