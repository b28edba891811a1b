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

// MessageRepository defines the interface for ledger access
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	GetByProviderID(ctx context.Context, providerID string) (*models.Message, error)
	UpdateDelivery(ctx context.Context, msg *models.Message) error
	List(ctx context.Context, filter models.MessageFilter) ([]*models.Message, error)
	CountOutboundCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
	CountDeliveredBetween(ctx context.Context, from, to time.Time) (int, error)
}

type messageRepository struct {
	d *Database
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(d *Database) MessageRepository {
	return &messageRepository{d: d}
}

const messageColumns = `id, user_id, direction, body, provider_id, status, error_code,
	raw_provider_status, campaign_id, created_at, updated_at, delivered_at`

func scanMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	m := &models.Message{}
	var direction, status string
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&direction,
		&m.Body,
		&m.ProviderID,
		&status,
		&m.ErrorCode,
		&m.RawProviderStatus,
		&m.CampaignID,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}
	m.Direction = models.Direction(direction)
	m.Status = models.Status(status)
	return m, nil
}

// Create inserts a ledger entry and commits it immediately
func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if msg.UserID == "" {
		return fmt.Errorf("message user ID cannot be empty")
	}
	if !msg.Direction.Valid() {
		return fmt.Errorf("invalid message direction: %q", msg.Direction)
	}
	if !msg.Status.Valid() {
		return fmt.Errorf("invalid message status: %q", msg.Status)
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = time.Now().Unix()
	}
	msg.UpdatedAt = msg.CreatedAt

	query := r.d.Rebind(`INSERT INTO messages (` + messageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.d.db.ExecContext(ctx, query,
		msg.ID,
		msg.UserID,
		string(msg.Direction),
		msg.Body,
		msg.ProviderID,
		string(msg.Status),
		msg.ErrorCode,
		msg.RawProviderStatus,
		msg.CampaignID,
		msg.CreatedAt,
		msg.UpdatedAt,
		msg.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *messageRepository) getOne(ctx context.Context, where string, arg any) (*models.Message, error) {
	query := r.d.Rebind(`SELECT ` + messageColumns + ` FROM messages WHERE ` + where)
	m, err := scanMessage(r.d.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return m, nil
}

// GetByID retrieves a message by ID
func (r *messageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	if id == "" {
		return nil, fmt.Errorf("message ID cannot be empty")
	}
	return r.getOne(ctx, "id = ?", id)
}

// GetByProviderID retrieves the most recent message carrying providerID
func (r *messageRepository) GetByProviderID(ctx context.Context, providerID string) (*models.Message, error) {
	if providerID == "" {
		return nil, fmt.Errorf("provider ID cannot be empty")
	}
	return r.getOne(ctx, "provider_id = ? ORDER BY created_at DESC LIMIT 1", providerID)
}

// UpdateDelivery writes the fields the dispatcher and reconciler own and bumps updated_at
func (r *messageRepository) UpdateDelivery(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if msg.ID == "" {
		return fmt.Errorf("message ID cannot be empty")
	}

	msg.UpdatedAt = time.Now().Unix()

	query := r.d.Rebind(`
		UPDATE messages
		SET provider_id = ?, status = ?, error_code = ?, raw_provider_status = ?, delivered_at = ?, updated_at = ?
		WHERE id = ?
	`)
	result, err := r.d.db.ExecContext(ctx, query,
		msg.ProviderID,
		string(msg.Status),
		msg.ErrorCode,
		msg.RawProviderStatus,
		msg.DeliveredAt,
		msg.UpdatedAt,
		msg.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("message not found")
	}
	return nil
}

// List returns messages matching filter, newest first
func (r *messageRepository) List(ctx context.Context, filter models.MessageFilter) ([]*models.Message, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var where []string
	var args []any
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Direction != "" {
		where = append(where, "direction = ?")
		args = append(args, string(filter.Direction))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + messageColumns + ` FROM messages`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.d.db.QueryContext(ctx, r.d.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// CountOutboundCreatedBetween counts outbound messages created in [from, to)
func (r *messageRepository) CountOutboundCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	return r.count(ctx,
		`SELECT COUNT(*) FROM messages WHERE direction = ? AND created_at >= ? AND created_at < ?`,
		string(models.DirectionOutbound), from.Unix(), to.Unix())
}

// CountDeliveredBetween counts delivered messages whose delivered_at falls in [from, to)
func (r *messageRepository) CountDeliveredBetween(ctx context.Context, from, to time.Time) (int, error) {
	return r.count(ctx,
		`SELECT COUNT(*) FROM messages WHERE status = ? AND delivered_at >= ? AND delivered_at < ?`,
		string(models.StatusDelivered), from.Unix(), to.Unix())
}

func (r *messageRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.d.db.QueryRowContext(ctx, r.d.Rebind(query), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}
