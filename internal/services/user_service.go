package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"

	"sms-notify-server/internal/db"
	"sms-notify-server/internal/models"
	"sms-notify-server/pkg/logger"
	"sms-notify-server/pkg/utils"

	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
)

const (
	// BcryptCost is the cost parameter for bcrypt password hashing
	BcryptCost = 12

	// MaxFailedLoginAttempts is the number of failed attempts before account lockout
	MaxFailedLoginAttempts = 5

	// LockoutDuration is the duration of account lockout after max failed attempts
	LockoutDuration = 30 * time.Minute

	// MinPasswordLength is the minimum length for passwords
	MinPasswordLength = 8

	// MinUsernameLength is the minimum length for usernames
	MinUsernameLength = 3

	// MaxUsernameLength is the maximum length for usernames
	MaxUsernameLength = 50

	totpIssuer = "SMS Notify"
)

var (
	// ErrInvalidCredentials indicates authentication failure
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrAccountLocked indicates the account is temporarily locked
	ErrAccountLocked = errors.New("account is locked due to too many failed login attempts")

	// ErrAccountInactive indicates the account has been deactivated
	ErrAccountInactive = errors.New("user account is inactive")

	// ErrInvalidTOTP indicates TOTP code validation failure
	ErrInvalidTOTP = errors.New("invalid TOTP code")

	// ErrTOTPNotGenerated indicates enable was called before setup
	ErrTOTPNotGenerated = errors.New("TOTP secret not generated")

	// ErrUserNotFound indicates user does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameExists indicates the username is taken
	ErrUsernameExists = errors.New("username already exists")

	// ErrEmailExists indicates the email is taken
	ErrEmailExists = errors.New("email already exists")

	// ErrInvalidUsername indicates username validation failure
	ErrInvalidUsername = errors.New("username must be 3-50 characters and contain only alphanumeric characters and underscores")

	// ErrInvalidEmail indicates email validation failure
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrInvalidPassword indicates password validation failure
	ErrInvalidPassword = errors.New("password must be at least 8 characters")

	// ErrIncorrectOldPassword indicates old password verification failed
	ErrIncorrectOldPassword = errors.New("incorrect old password")
)

var (
	validUsername = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	validEmail    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// UserService provides business logic for accounts and login
type UserService struct {
	repo            db.UserRepository
	profiles        db.ProfileRepository
	encryptionKey   string
	defaultTimezone string
}

// NewUserService creates a UserService. profiles may be nil, in which case
// registration does not create a profile. An empty encryptionKey stores
// TOTP secrets unsealed.
func NewUserService(repo db.UserRepository, profiles db.ProfileRepository, encryptionKey, defaultTimezone string) *UserService {
	return &UserService{
		repo:            repo,
		profiles:        profiles,
		encryptionKey:   encryptionKey,
		defaultTimezone: defaultTimezone,
	}
}

// CreateUser registers a non-staff user together with an empty profile
func (s *UserService) CreateUser(ctx context.Context, username, email, password string) (*models.User, error) {
	return s.createUser(ctx, username, email, password, false)
}

func (s *UserService) createUser(ctx context.Context, username, email, password string, staff bool) (*models.User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		return nil, ErrUsernameExists
	}

	if email != "" {
		existing, err = s.repo.GetByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if existing != nil {
			return nil, ErrEmailExists
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.NewUser(username, email, string(hashed))
	user.IsStaff = staff
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if s.profiles != nil {
		if err := s.profiles.Create(ctx, models.NewProfile(user.ID, s.defaultTimezone)); err != nil {
			logger.Error("Failed to create profile for new user",
				zap.String("user_id", user.ID),
				zap.Error(err),
			)
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}
	}

	logger.Info("User registered",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
		zap.Bool("is_staff", user.IsStaff),
		zap.String("event_type", "user_registration"),
	)

	return user, nil
}

// SeedAdmin creates a staff account unless username is already taken.
// It reports whether a user was created.
func (s *UserService) SeedAdmin(ctx context.Context, username, email, password string) (bool, error) {
	existing, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return false, fmt.Errorf("failed to check admin user: %w", err)
	}
	if existing != nil {
		return false, nil
	}
	if _, err := s.createUser(ctx, username, email, password, true); err != nil {
		return false, err
	}
	return true, nil
}

// Authenticate verifies username/password and optional TOTP code
func (s *UserService) Authenticate(ctx context.Context, username, password, totpCode string) (*models.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		logger.Error("Database error during authentication",
			zap.String("username", username),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		logger.Warn("Authentication failed - user not found",
			zap.String("username", username),
			zap.String("event_type", "invalid_credentials"),
		)
		return nil, ErrInvalidCredentials
	}

	if err := s.checkAccountLock(ctx, user); err != nil {
		logger.Warn("Authentication failed - account locked",
			zap.String("user_id", user.ID),
			zap.String("username", user.Username),
			zap.String("event_type", "account_locked"),
		)
		return nil, err
	}

	if !user.Active {
		logger.Warn("Authentication failed - account inactive",
			zap.String("user_id", user.ID),
			zap.String("username", user.Username),
			zap.String("event_type", "inactive_account"),
		)
		return nil, ErrAccountInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if incErr := s.recordFailedLogin(ctx, user); incErr != nil {
			return nil, fmt.Errorf("authentication failed and failed to increment counter: %w", incErr)
		}
		logger.Warn("Authentication failed - invalid password",
			zap.String("user_id", user.ID),
			zap.String("username", user.Username),
			zap.String("event_type", "failed_login"),
		)
		return nil, ErrInvalidCredentials
	}

	if err := s.verifyTOTP(ctx, user, totpCode); err != nil {
		logger.Warn("Authentication failed - TOTP validation failed",
			zap.String("user_id", user.ID),
			zap.String("username", user.Username),
			zap.String("event_type", "failed_totp_validation"),
			zap.Error(err),
		)
		return nil, err
	}

	now := time.Now().Unix()
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLogin = &now
	if err := s.repo.Update(ctx, user); err != nil {
		logger.Error("Failed to record successful login",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}

	logger.Info("User authenticated successfully",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("event_type", "successful_login"),
	)

	return user, nil
}

// checkAccountLock rejects locked accounts and clears an expired lock in place
func (s *UserService) checkAccountLock(ctx context.Context, user *models.User) error {
	if user.LockedUntil == nil || *user.LockedUntil == 0 {
		return nil
	}
	if user.IsLocked() {
		return ErrAccountLocked
	}

	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to reset failed login: %w", err)
	}
	return nil
}

// recordFailedLogin bumps the counter and locks the account at the threshold
func (s *UserService) recordFailedLogin(ctx context.Context, user *models.User) error {
	user.FailedLoginAttempts++

	if user.FailedLoginAttempts >= MaxFailedLoginAttempts {
		lockUntil := time.Now().Add(LockoutDuration).Unix()
		user.LockedUntil = &lockUntil
		logger.Warn("User account locked due to excessive failed login attempts",
			zap.String("user_id", user.ID),
			zap.String("username", user.Username),
			zap.Int("failed_attempts", user.FailedLoginAttempts),
			zap.Duration("lockout_duration", LockoutDuration),
			zap.String("event_type", "account_lockout"),
		)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		logger.Error("Failed to update failed login attempts in database",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to update failed login attempts: %w", err)
	}
	return nil
}

func (s *UserService) openTOTPSecret(user *models.User) (string, error) {
	if user.TOTPSecret == nil || *user.TOTPSecret == "" {
		return "", ErrTOTPNotGenerated
	}
	if s.encryptionKey == "" {
		return *user.TOTPSecret, nil
	}
	secret, err := utils.OpenSecret(*user.TOTPSecret, s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt TOTP secret: %w", err)
	}
	return secret, nil
}

// verifyTOTP validates the code when 2FA is enabled
func (s *UserService) verifyTOTP(ctx context.Context, user *models.User, code string) error {
	if !user.TOTPEnabled {
		return nil
	}
	if code == "" {
		return ErrInvalidTOTP
	}

	secret, err := s.openTOTPSecret(user)
	if errors.Is(err, ErrTOTPNotGenerated) {
		return ErrInvalidTOTP
	}
	if err != nil {
		return err
	}

	if !totp.Validate(code, secret) {
		if incErr := s.recordFailedLogin(ctx, user); incErr != nil {
			return fmt.Errorf("TOTP validation failed and failed to increment counter: %w", incErr)
		}
		return ErrInvalidTOTP
	}
	return nil
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ChangePassword changes a user's password after verifying the old one
func (s *UserService) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		logger.Warn("Password change failed - incorrect old password",
			zap.String("user_id", id),
			zap.String("event_type", "password_verification_failed"),
		)
		return ErrIncorrectOldPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = string(hashed)
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	logger.Info("Password changed successfully",
		zap.String("user_id", id),
		zap.String("event_type", "password_change"),
	)
	return nil
}

// GenerateTOTPSecret creates and stores a new secret, returning it unsealed
// along with its otpauth:// URL.
func (s *UserService) GenerateTOTPSecret(ctx context.Context, userID string) (secret, url string, err error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", "", err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: user.Username,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	stored := key.Secret()
	if s.encryptionKey != "" {
		stored, err = utils.SealSecret(stored, s.encryptionKey)
		if err != nil {
			return "", "", fmt.Errorf("failed to encrypt TOTP secret: %w", err)
		}
	}

	user.TOTPSecret = &stored
	user.TOTPEnabled = false
	if err := s.repo.Update(ctx, user); err != nil {
		return "", "", fmt.Errorf("failed to update TOTP secret: %w", err)
	}

	return key.Secret(), key.URL(), nil
}

// EnableTOTP turns on 2FA once the user proves they hold the secret
func (s *UserService) EnableTOTP(ctx context.Context, userID, code string) error {
	if code == "" {
		return ErrInvalidTOTP
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	secret, err := s.openTOTPSecret(user)
	if err != nil {
		return err
	}

	if !totp.Validate(code, secret) {
		logger.Warn("Enable 2FA failed - invalid TOTP code",
			zap.String("user_id", userID),
			zap.String("event_type", "invalid_totp_code"),
		)
		return ErrInvalidTOTP
	}

	user.TOTPEnabled = true
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to enable TOTP: %w", err)
	}

	logger.Info("2FA enabled successfully",
		zap.String("user_id", userID),
		zap.String("event_type", "2fa_enabled"),
	)
	return nil
}

// DisableTOTP turns off 2FA and forgets the secret
func (s *UserService) DisableTOTP(ctx context.Context, userID string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	user.TOTPEnabled = false
	user.TOTPSecret = nil
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to disable TOTP: %w", err)
	}

	logger.Info("2FA disabled successfully",
		zap.String("user_id", userID),
		zap.String("event_type", "2fa_disabled"),
	)
	return nil
}

func validateUsername(username string) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return ErrInvalidUsername
	}
	if !validUsername.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	if !validEmail.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}
