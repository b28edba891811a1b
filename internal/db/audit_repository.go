package db

import (
	"context"
	"fmt"
	"time"

	"sms-notify-server/internal/models"

	"github.com/google/uuid"
)

// AuditRepository stores audit log entries
type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
}

type auditRepository struct {
	d *Database
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(d *Database) AuditRepository {
	return &auditRepository{d: d}
}

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if entry == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = time.Now().Unix()
	}

	query := r.d.Rebind(`
		INSERT INTO audit_logs (id, action, actor_id, target_user_id, message_id, campaign_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.d.db.ExecContext(ctx, query,
		entry.ID,
		string(entry.Action),
		entry.ActorID,
		entry.TargetUserID,
		entry.MessageID,
		entry.CampaignID,
		entry.Details,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.d.db.QueryContext(ctx, r.d.Rebind(`
		SELECT id, action, actor_id, target_user_id, message_id, campaign_id, details, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*models.AuditLog{}
	for rows.Next() {
		e := &models.AuditLog{}
		var action string
		if err := rows.Scan(&e.ID, &action, &e.ActorID, &e.TargetUserID, &e.MessageID, &e.CampaignID, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Action = models.AuditAction(action)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return entries, nil
}
