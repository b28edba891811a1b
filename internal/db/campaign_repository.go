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

// CampaignRepository defines the interface for campaign data access
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	GetByID(ctx context.Context, id string) (*models.Campaign, error)
	List(ctx context.Context, limit, offset int) ([]*models.Campaign, error)
	IncrementCounter(ctx context.Context, id string, counter models.CampaignCounter) error
}

type campaignRepository struct {
	d *Database
}

// NewCampaignRepository creates a new CampaignRepository
func NewCampaignRepository(d *Database) CampaignRepository {
	return &campaignRepository{d: d}
}

const campaignColumns = `id, name, created_by, is_active, scheduled_for,
	total_sent, total_delivered, total_failed, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*models.Campaign, error) {
	c := &models.Campaign{}
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.CreatedBy,
		&c.IsActive,
		&c.ScheduledFor,
		&c.TotalSent,
		&c.TotalDelivered,
		&c.TotalFailed,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

// Create inserts a campaign together with its target set
func (r *campaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	if campaign == nil {
		return fmt.Errorf("campaign cannot be nil")
	}
	if campaign.Name == "" {
		return fmt.Errorf("campaign name cannot be empty")
	}
	if campaign.ID == "" {
		campaign.ID = uuid.New().String()
	}
	if campaign.TargetUserIDs == nil {
		campaign.TargetUserIDs = []string{}
	}

	now := time.Now().Unix()
	campaign.CreatedAt = now
	campaign.UpdatedAt = now

	tx, err := r.d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, r.d.Rebind(`INSERT INTO campaigns (`+campaignColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		campaign.ID,
		campaign.Name,
		campaign.CreatedBy,
		campaign.IsActive,
		campaign.ScheduledFor,
		campaign.TotalSent,
		campaign.TotalDelivered,
		campaign.TotalFailed,
		campaign.CreatedAt,
		campaign.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	insertTarget := r.d.Rebind(`INSERT INTO campaign_targets (campaign_id, user_id) VALUES (?, ?)`)
	for _, userID := range campaign.TargetUserIDs {
		if _, err := tx.ExecContext(ctx, insertTarget, campaign.ID, userID); err != nil {
			return fmt.Errorf("failed to add campaign target %s: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit campaign: %w", err)
	}
	return nil
}

// GetByID retrieves a campaign and its targets
func (r *campaignRepository) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	if id == "" {
		return nil, fmt.Errorf("campaign ID cannot be empty")
	}

	query := r.d.Rebind(`SELECT ` + campaignColumns + ` FROM campaigns WHERE id = ?`)
	c, err := scanCampaign(r.d.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	targets, err := r.targets(ctx, id)
	if err != nil {
		return nil, err
	}
	c.TargetUserIDs = targets
	return c, nil
}

func (r *campaignRepository) targets(ctx context.Context, campaignID string) ([]string, error) {
	rows, err := r.d.db.QueryContext(ctx,
		r.d.Rebind(`SELECT user_id FROM campaign_targets WHERE campaign_id = ? ORDER BY user_id`), campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign targets: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan campaign target: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// List returns campaigns newest first, without targets
func (r *campaignRepository) List(ctx context.Context, limit, offset int) ([]*models.Campaign, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.d.db.QueryContext(ctx,
		r.d.Rebind(`SELECT `+campaignColumns+` FROM campaigns ORDER BY created_at DESC, id LIMIT ? OFFSET ?`),
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*models.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		c.TargetUserIDs = []string{}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating campaigns: %w", err)
	}
	return campaigns, nil
}

// IncrementCounter bumps one rollup counter in a single statement
func (r *campaignRepository) IncrementCounter(ctx context.Context, id string, counter models.CampaignCounter) error {
	var column string
	switch counter {
	case models.CounterSent, models.CounterDelivered, models.CounterFailed:
		column = string(counter)
	default:
		return fmt.Errorf("unknown campaign counter: %q", counter)
	}

	query := r.d.Rebind(`UPDATE campaigns SET ` + column + ` = ` + column + ` + 1, updated_at = ? WHERE id = ?`)
	result, err := r.d.db.ExecContext(ctx, query, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", column, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("campaign not found")
	}
	return nil
}
