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

const (
	msgPhoneFormat   = "Use E.164 format, e.g., +15551234567"
	msgTimezone      = "Invalid IANA timezone name"
	msgOptInNeedsNum = "A phone_number is required to opt in to SMS."
	msgRequired      = "This field is required."
	msgInvalidUser   = "Invalid user."
)

// ProfileService validates and stores profiles
type ProfileService struct {
	repo  db.ProfileRepository
	users db.UserRepository
}

func NewProfileService(repo db.ProfileRepository, users db.UserRepository) *ProfileService {
	return &ProfileService{repo: repo, users: users}
}

// ValidatePhoneNumber accepts "" or an E.164 number.
func ValidatePhoneNumber(phone string) error {
	if phone == "" || utils.IsE164(phone) {
		return nil
	}
	return newValidationError("phone_number", msgPhoneFormat)
}

// ValidateTimezone accepts IANA zone names.
func ValidateTimezone(name string) error {
	// LoadLocation maps "" and "Local" to non-IANA zones.
	if name == "" || name == "Local" {
		return newValidationError("timezone_name", msgTimezone)
	}
	if _, err := time.LoadLocation(name); err != nil {
		return newValidationError("timezone_name", msgTimezone)
	}
	return nil
}

// validateInput checks the fields present in in, then the opt-in rule
// against the values the profile will hold once in is applied.
func validateInput(current *models.Profile, in models.ProfileInput) error {
	verr := &ValidationError{}
	if in.PhoneNumber != nil {
		if err := ValidatePhoneNumber(*in.PhoneNumber); err != nil {
			verr.add("phone_number", msgPhoneFormat)
		}
	}
	if in.TimezoneName != nil {
		if err := ValidateTimezone(*in.TimezoneName); err != nil {
			verr.add("timezone_name", msgTimezone)
		}
	}
	if !verr.empty() {
		return verr
	}

	optIn, phone := false, ""
	if current != nil {
		optIn, phone = current.SMSOptIn, current.PhoneNumber
	}
	if in.SMSOptIn != nil {
		optIn = *in.SMSOptIn
	}
	if in.PhoneNumber != nil {
		phone = *in.PhoneNumber
	}
	if optIn && phone == "" {
		return newValidationError("sms_opt_in", msgOptInNeedsNum)
	}
	return nil
}

// Upsert creates the profile for in.UserID, or updates it if one exists.
func (s *ProfileService) Upsert(ctx context.Context, in models.ProfileInput) (*models.Profile, error) {
	if in.UserID == "" {
		return nil, newValidationError("user_id", msgRequired)
	}

	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, newValidationError("user_id", msgInvalidUser)
	}

	existing, err := s.repo.GetByUserID(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if existing != nil {
		return s.apply(ctx, existing, in)
	}

	if err := validateInput(nil, in); err != nil {
		return nil, err
	}

	profile := models.NewProfile(in.UserID, "")
	profile.Apply(in)
	if err := s.repo.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	logger.Info("Profile created",
		zap.String("profile_id", profile.ID),
		zap.String("user_id", profile.UserID),
	)
	return s.reload(ctx, profile.ID)
}

// Get returns a profile by its ID
func (s *ProfileService) Get(ctx context.Context, id string) (*models.Profile, error) {
	if id == "" {
		return nil, ErrProfileNotFound
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

// GetByUser returns the profile owned by userID
func (s *ProfileService) GetByUser(ctx context.Context, userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, ErrProfileNotFound
	}
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

// Update applies in to the profile with the given ID. in.UserID is ignored.
func (s *ProfileService) Update(ctx context.Context, id string, in models.ProfileInput) (*models.Profile, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, p, in)
}

// UpdateByUser applies in to userID's own profile.
func (s *ProfileService) UpdateByUser(ctx context.Context, userID string, in models.ProfileInput) (*models.Profile, error) {
	p, err := s.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, p, in)
}

func (s *ProfileService) apply(ctx context.Context, p *models.Profile, in models.ProfileInput) (*models.Profile, error) {
	if err := validateInput(p, in); err != nil {
		return nil, err
	}
	p.Apply(in)
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.reload(ctx, p.ID)
}

// Verify stamps verified_at the first time it is called; later calls
// leave the original timestamp.
func (s *ProfileService) Verify(ctx context.Context, id string) (*models.Profile, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.VerifiedAt != nil {
		return p, nil
	}

	now := time.Now().Unix()
	p.VerifiedAt = &now
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to verify profile: %w", err)
	}

	logger.Info("Profile verified",
		zap.String("profile_id", p.ID),
		zap.String("user_id", p.UserID),
	)
	return p, nil
}

// List returns profiles matching q
func (s *ProfileService) List(ctx context.Context, q db.ProfileQuery) ([]*models.Profile, error) {
	if q.Limit < 0 || q.Offset < 0 {
		return nil, newValidationError("limit", "limit and offset cannot be negative")
	}
	profiles, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

func (s *ProfileService) reload(ctx context.Context, id string) (*models.Profile, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload profile: %w", err)
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}
