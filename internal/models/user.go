package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that owns one Profile. Staff users operate the
// messaging API; everyone else can only see and edit their own profile.
type User struct {
	ID                  string  `json:"id"`
	Username            string  `json:"username"`
	Email               string  `json:"email"`
	PasswordHash        string  `json:"-"`
	TOTPSecret          *string `json:"-"`
	TOTPEnabled         bool    `json:"totp_enabled"`
	IsStaff             bool    `json:"is_staff"`
	Active              bool    `json:"active"`
	FailedLoginAttempts int     `json:"failed_login_attempts"`
	LockedUntil         *int64  `json:"locked_until,omitempty"`
	LastLogin           *int64  `json:"last_login,omitempty"`
	CreatedAt           int64   `json:"created_at"`
	UpdatedAt           int64   `json:"updated_at"`
}

// CreateUserRequest is the registration payload.
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// ChangePasswordRequest is the self-service password change payload.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// TOTPCodeRequest carries a one-time code when enabling 2FA.
type TOTPCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// UserResponse is the public view of a user, embedded in profile responses.
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Active    bool   `json:"active"`
	IsStaff   bool   `json:"is_staff"`
	CreatedAt int64  `json:"created_at"`
}

// NewUser creates an active, non-staff user. passwordHash must already be hashed.
func NewUser(username, email, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsActive reports whether the account may log in right now.
func (u *User) IsActive() bool {
	return u.Active && !u.IsLocked()
}

// IsLocked reports whether a lockout is in effect.
func (u *User) IsLocked() bool {
	if u.LockedUntil == nil {
		return false
	}
	return *u.LockedUntil > time.Now().Unix()
}

// Permissions returns the permission names carried in this user's tokens.
func (u *User) Permissions() []string {
	if u.IsStaff {
		return StaffPermissions()
	}
	return []string{PermProfileSelf}
}

// ToResponse strips credentials and lockout state.
func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Active:    u.Active,
		IsStaff:   u.IsStaff,
		CreatedAt: u.CreatedAt,
	}
}
