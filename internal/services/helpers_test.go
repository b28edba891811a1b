package services

import (
	"context"
	"testing"

	"sms-notify-server/internal/db"
	"sms-notify-server/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, to, body string) (string, error) {
	args := m.Called(ctx, to, body)
	return args.String(0), args.Error(1)
}

type testEnv struct {
	database  *db.Database
	users     db.UserRepository
	profiles  db.ProfileRepository
	messages  db.MessageRepository
	campaigns db.CampaignRepository
	audits    db.AuditRepository
	audit     *AuditService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database := db.SetupTestDB(t)
	audits := db.NewAuditRepository(database)
	return &testEnv{
		database:  database,
		users:     db.NewUserRepository(database),
		profiles:  db.NewProfileRepository(database),
		messages:  db.NewMessageRepository(database),
		campaigns: db.NewCampaignRepository(database),
		audits:    audits,
		audit:     NewAuditService(audits),
	}
}

// addUser stores a user and its profile without going through bcrypt.
func (e *testEnv) addUser(t *testing.T, username, phone string, optIn bool) (*models.User, *models.Profile) {
	t.Helper()
	ctx := context.Background()

	user := models.NewUser(username, username+"@example.com", "hash")
	require.NoError(t, e.users.Create(ctx, user))

	profile := models.NewProfile(user.ID, "UTC")
	profile.PhoneNumber = phone
	profile.SMSOptIn = optIn
	require.NoError(t, e.profiles.Create(ctx, profile))
	return user, profile
}

func (e *testEnv) addStaff(t *testing.T, username string) *models.User {
	t.Helper()
	user := models.NewUser(username, username+"@example.com", "hash")
	user.IsStaff = true
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

func (e *testEnv) countMessages(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, e.database.GetDB().QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n))
	return n
}

func (e *testEnv) auditActions(t *testing.T) []models.AuditAction {
	t.Helper()
	entries, err := e.audits.List(context.Background(), 0, 0)
	require.NoError(t, err)
	actions := make([]models.AuditAction, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

func strPtr(s string) *string { return &s }
