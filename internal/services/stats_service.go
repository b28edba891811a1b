package services

import (
	"context"
	"fmt"
	"time"

	"sms-notify-server/internal/db"
	"sms-notify-server/internal/models"
)

// StatsService computes the daily dashboard counters.
type StatsService struct {
	profiles db.ProfileRepository
	messages db.MessageRepository
	now      func() time.Time
}

func NewStatsService(profiles db.ProfileRepository, messages db.MessageRepository) *StatsService {
	return &StatsService{profiles: profiles, messages: messages, now: time.Now}
}

// Today returns the counters for the current calendar day in loc.
func (s *StatsService) Today(ctx context.Context, loc *time.Location) (*models.Stats, error) {
	if loc == nil {
		loc = time.UTC
	}
	return s.ForDate(ctx, s.now().In(loc))
}

// ForDate returns the counters for the calendar day containing day, in
// day's location.
func (s *StatsService) ForDate(ctx context.Context, day time.Time) (*models.Stats, error) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	optedIn, err := s.profiles.CountOptedIn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count opted-in users: %w", err)
	}
	sent, err := s.messages.CountOutboundCreatedBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to count sent messages: %w", err)
	}
	delivered, err := s.messages.CountDeliveredBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to count delivered messages: %w", err)
	}

	return &models.Stats{
		OptedInUsers:      optedIn,
		MessagesSentToday: sent,
		DeliveredToday:    delivered,
		Date:              start.Format("2006-01-02"),
		Timezone:          day.Location().String(),
	}, nil
}
