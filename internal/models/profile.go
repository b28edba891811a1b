package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTimezone is used for profiles created without an explicit zone.
const DefaultTimezone = "UTC"

// Profile maps a user to the phone number we text and their SMS preferences.
// Exactly one profile exists per user.
type Profile struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	PhoneNumber  string `json:"phone_number"` // empty or E.164
	SMSOptIn     bool   `json:"sms_opt_in"`
	TimezoneName string `json:"timezone_name"`
	VerifiedAt   *int64 `json:"verified_at"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`

	// Loaded separately for responses.
	User *UserResponse `json:"user,omitempty"`
}

// ProfileInput is the writable subset of a profile. Nil fields are left
// unchanged on update.
type ProfileInput struct {
	UserID       string  `json:"user_id,omitempty"`
	PhoneNumber  *string `json:"phone_number,omitempty"`
	SMSOptIn     *bool   `json:"sms_opt_in,omitempty"`
	TimezoneName *string `json:"timezone_name,omitempty"`
}

// NewProfile returns an opted-out profile with no phone on file.
func NewProfile(userID, timezone string) *Profile {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	now := time.Now().Unix()
	return &Profile{
		ID:           uuid.New().String(),
		UserID:       userID,
		TimezoneName: timezone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Apply copies the non-nil fields of in onto p.
func (p *Profile) Apply(in ProfileInput) {
	if in.PhoneNumber != nil {
		p.PhoneNumber = *in.PhoneNumber
	}
	if in.SMSOptIn != nil {
		p.SMSOptIn = *in.SMSOptIn
	}
	if in.TimezoneName != nil {
		p.TimezoneName = *in.TimezoneName
	}
}

// Location resolves the profile's timezone, falling back to UTC.
func (p *Profile) Location() *time.Location {
	loc, err := time.LoadLocation(p.TimezoneName)
	if err != nil {
		return time.UTC
	}
	return loc
}
