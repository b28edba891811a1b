package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sms-notify-server/internal/models"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
}

type userRepository struct {
	d *Database
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(d *Database) UserRepository {
	return &userRepository{d: d}
}

const userColumns = `id, username, email, password_hash, totp_secret, totp_enabled, is_staff,
	active, failed_login_attempts, locked_until, last_login, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.TOTPSecret,
		&user.TOTPEnabled,
		&user.IsStaff,
		&user.Active,
		&user.FailedLoginAttempts,
		&user.LockedUntil,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

// Create creates a new user in the database
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("user cannot be nil")
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now().Unix()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := r.d.Rebind(`
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.d.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.TOTPSecret,
		user.TOTPEnabled,
		user.IsStaff,
		user.Active,
		user.FailedLoginAttempts,
		user.LockedUntil,
		user.LastLogin,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *userRepository) getBy(ctx context.Context, column, value string) (*models.User, error) {
	query := r.d.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`)

	user, err := scanUser(r.d.db.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}
	return user, nil
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}
	return r.getBy(ctx, "id", id)
}

// GetByUsername retrieves a user by username
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}
	return r.getBy(ctx, "username", username)
}

// GetByEmail retrieves a user by email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if email == "" {
		return nil, fmt.Errorf("email cannot be empty")
	}
	return r.getBy(ctx, "email", email)
}

// Update updates an existing user
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("user cannot be nil")
	}
	if user.ID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	user.UpdatedAt = time.Now().Unix()

	query := r.d.Rebind(`
		UPDATE users
		SET username = ?, email = ?, password_hash = ?, totp_secret = ?, totp_enabled = ?, is_staff = ?,
			active = ?, failed_login_attempts = ?, locked_until = ?, last_login = ?, updated_at = ?
		WHERE id = ?
	`)

	result, err := r.d.db.ExecContext(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.TOTPSecret,
		user.TOTPEnabled,
		user.IsStaff,
		user.Active,
		user.FailedLoginAttempts,
		user.LockedUntil,
		user.LastLogin,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

// List retrieves users ordered by creation time
func (r *userRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := r.d.Rebind(`SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, username LIMIT ? OFFSET ?`)
	rows, err := r.d.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}
