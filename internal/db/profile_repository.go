package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sms-notify-server/internal/models"

	"github.com/google/uuid"
)

// ProfileQuery narrows profile listings. Zero values mean "any".
type ProfileQuery struct {
	UserID   string // restrict to one owner
	Search   string // matches username, email, phone number or timezone
	Ordering string // created_at, updated_at or verified_at; "-" prefix for descending
	Limit    int
	Offset   int
}

// ProfileRepository defines the interface for profile data access
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)
	FindByPhone(ctx context.Context, phone string, limit int) ([]*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
	List(ctx context.Context, q ProfileQuery) ([]*models.Profile, error)
	CountOptedIn(ctx context.Context) (int, error)
}

type profileRepository struct {
	d *Database
}

// NewProfileRepository creates a new ProfileRepository
func NewProfileRepository(d *Database) ProfileRepository {
	return &profileRepository{d: d}
}

const profileSelect = `
	SELECT p.id, p.user_id, p.phone_number, p.sms_opt_in, p.timezone_name, p.verified_at,
		p.created_at, p.updated_at,
		u.username, u.email, u.active, u.is_staff, u.created_at
	FROM profiles p
	JOIN users u ON u.id = p.user_id`

var profileOrderings = map[string]string{
	"created_at":  "p.created_at",
	"updated_at":  "p.updated_at",
	"verified_at": "p.verified_at",
}

func scanProfile(row interface{ Scan(...any) error }) (*models.Profile, error) {
	p := &models.Profile{User: &models.UserResponse{}}
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.PhoneNumber,
		&p.SMSOptIn,
		&p.TimezoneName,
		&p.VerifiedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.User.Username,
		&p.User.Email,
		&p.User.Active,
		&p.User.IsStaff,
		&p.User.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.User.ID = p.UserID
	return p, nil
}

// Create inserts a profile. The user_id unique constraint rejects a second profile.
func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if profile == nil {
		return fmt.Errorf("profile cannot be nil")
	}
	if profile.UserID == "" {
		return fmt.Errorf("profile user ID cannot be empty")
	}
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	if profile.TimezoneName == "" {
		profile.TimezoneName = models.DefaultTimezone
	}

	now := time.Now().Unix()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	query := r.d.Rebind(`
		INSERT INTO profiles (id, user_id, phone_number, sms_opt_in, timezone_name, verified_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.d.db.ExecContext(ctx, query,
		profile.ID,
		profile.UserID,
		profile.PhoneNumber,
		profile.SMSOptIn,
		profile.TimezoneName,
		profile.VerifiedAt,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (r *profileRepository) getOne(ctx context.Context, where string, arg any) (*models.Profile, error) {
	query := r.d.Rebind(profileSelect + ` WHERE ` + where)
	p, err := scanProfile(r.d.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// GetByID retrieves a profile by its own ID
func (r *profileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	if id == "" {
		return nil, fmt.Errorf("profile ID cannot be empty")
	}
	return r.getOne(ctx, "p.id = ?", id)
}

// GetByUserID retrieves the profile owned by userID
func (r *profileRepository) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}
	return r.getOne(ctx, "p.user_id = ?", userID)
}

// FindByPhone returns up to limit profiles whose phone number equals phone exactly.
// Phone numbers are not unique, so callers decide what more than one match means.
func (r *profileRepository) FindByPhone(ctx context.Context, phone string, limit int) ([]*models.Profile, error) {
	if phone == "" {
		return nil, fmt.Errorf("phone number cannot be empty")
	}
	if limit <= 0 {
		limit = 2
	}

	query := r.d.Rebind(profileSelect + ` WHERE p.phone_number = ? ORDER BY p.created_at LIMIT ?`)
	return r.query(ctx, query, phone, limit)
}

// Update writes the mutable fields of profile
func (r *profileRepository) Update(ctx context.Context, profile *models.Profile) error {
	if profile == nil {
		return fmt.Errorf("profile cannot be nil")
	}
	if profile.ID == "" {
		return fmt.Errorf("profile ID cannot be empty")
	}

	profile.UpdatedAt = time.Now().Unix()

	query := r.d.Rebind(`
		UPDATE profiles
		SET phone_number = ?, sms_opt_in = ?, timezone_name = ?, verified_at = ?, updated_at = ?
		WHERE id = ?
	`)
	result, err := r.d.db.ExecContext(ctx, query,
		profile.PhoneNumber,
		profile.SMSOptIn,
		profile.TimezoneName,
		profile.VerifiedAt,
		profile.UpdatedAt,
		profile.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("profile not found")
	}
	return nil
}

// List returns profiles matching q
func (r *profileRepository) List(ctx context.Context, q ProfileQuery) ([]*models.Profile, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	var where []string
	var args []any
	if q.UserID != "" {
		where = append(where, "p.user_id = ?")
		args = append(args, q.UserID)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		where = append(where, `(LOWER(u.username) LIKE ? OR LOWER(u.email) LIKE ? OR p.phone_number LIKE ? OR LOWER(p.timezone_name) LIKE ?)`)
		args = append(args, like, like, like, like)
	}

	query := profileSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + profileOrderClause(q.Ordering) + " LIMIT ? OFFSET ?"
	args = append(args, q.Limit, q.Offset)

	return r.query(ctx, r.d.Rebind(query), args...)
}

func profileOrderClause(ordering string) string {
	dir := "ASC"
	field := ordering
	if strings.HasPrefix(field, "-") {
		dir = "DESC"
		field = field[1:]
	}
	column, ok := profileOrderings[field]
	if !ok {
		return "p.created_at DESC, p.id"
	}
	return column + " " + dir + ", p.id"
}

func (r *profileRepository) query(ctx context.Context, query string, args ...any) ([]*models.Profile, error) {
	rows, err := r.d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	profiles := []*models.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}
	return profiles, nil
}

// CountOptedIn counts profiles with sms_opt_in set
func (r *profileRepository) CountOptedIn(ctx context.Context) (int, error) {
	var n int
	query := r.d.Rebind(`SELECT COUNT(*) FROM profiles WHERE sms_opt_in = ?`)
	if err := r.d.db.QueryRowContext(ctx, query, true).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count opted-in profiles: %w", err)
	}
	return n, nil
}
