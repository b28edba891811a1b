package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"sms-notify-server/internal/db"
	"sms-notify-server/internal/models"
	"sms-notify-server/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockUserService is a mock implementation of UserServiceInterface for testing
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) CreateUser(ctx context.Context, username, email, password string) (*models.User, error) {
	args := m.Called(ctx, username, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, username, password, totpCode string) (*models.User, error) {
	args := m.Called(ctx, username, password, totpCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	args := m.Called(ctx, id, oldPassword, newPassword)
	return args.Error(0)
}

func (m *MockUserService) GenerateTOTPSecret(ctx context.Context, userID string) (string, string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockUserService) EnableTOTP(ctx context.Context, userID, totpCode string) error {
	args := m.Called(ctx, userID, totpCode)
	return args.Error(0)
}

func (m *MockUserService) DisableTOTP(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockProfileService is a mock implementation of ProfileServiceInterface
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) profile(args mock.Arguments) (*models.Profile, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileService) Upsert(ctx context.Context, in models.ProfileInput) (*models.Profile, error) {
	return m.profile(m.Called(ctx, in))
}

func (m *MockProfileService) Get(ctx context.Context, id string) (*models.Profile, error) {
	return m.profile(m.Called(ctx, id))
}

func (m *MockProfileService) GetByUser(ctx context.Context, userID string) (*models.Profile, error) {
	return m.profile(m.Called(ctx, userID))
}

func (m *MockProfileService) Update(ctx context.Context, id string, in models.ProfileInput) (*models.Profile, error) {
	return m.profile(m.Called(ctx, id, in))
}

func (m *MockProfileService) UpdateByUser(ctx context.Context, userID string, in models.ProfileInput) (*models.Profile, error) {
	return m.profile(m.Called(ctx, userID, in))
}

func (m *MockProfileService) Verify(ctx context.Context, id string) (*models.Profile, error) {
	return m.profile(m.Called(ctx, id))
}

func (m *MockProfileService) List(ctx context.Context, q db.ProfileQuery) ([]*models.Profile, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Profile), args.Error(1)
}

// MockMessageService is a mock implementation of MessageServiceInterface
type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Get(ctx context.Context, id string) (*models.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) List(ctx context.Context, filter models.MessageFilter) ([]*models.Message, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Message), args.Error(1)
}

// MockDispatcher is a mock implementation of DispatcherInterface
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) SendToUser(ctx context.Context, actorID string, req models.SendMessageRequest) (*models.Message, error) {
	args := m.Called(ctx, actorID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

// MockReconciler is a mock implementation of ReconcilerInterface
type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) ApplyStatus(ctx context.Context, providerID, rawStatus, errorCode string) *models.Message {
	args := m.Called(ctx, providerID, rawStatus, errorCode)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.Message)
}

// MockInboundRouter is a mock implementation of InboundRouterInterface
type MockInboundRouter struct {
	mock.Mock
}

func (m *MockInboundRouter) Receive(ctx context.Context, from, body, providerID string) (*models.Message, error) {
	args := m.Called(ctx, from, body, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

// MockStatsService is a mock implementation of StatsServiceInterface
type MockStatsService struct {
	mock.Mock
}

func (m *MockStatsService) Today(ctx context.Context, loc *time.Location) (*models.Stats, error) {
	args := m.Called(ctx, loc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stats), args.Error(1)
}

func (m *MockStatsService) ForDate(ctx context.Context, day time.Time) (*models.Stats, error) {
	args := m.Called(ctx, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stats), args.Error(1)
}

// MockCampaignService is a mock implementation of CampaignServiceInterface
type MockCampaignService struct {
	mock.Mock
}

func (m *MockCampaignService) Create(ctx context.Context, createdBy string, req models.CreateCampaignRequest) (*models.Campaign, error) {
	args := m.Called(ctx, createdBy, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Campaign), args.Error(1)
}

func (m *MockCampaignService) Get(ctx context.Context, id string) (*models.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Campaign), args.Error(1)
}

func (m *MockCampaignService) List(ctx context.Context, limit, offset int) ([]*models.Campaign, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Campaign), args.Error(1)
}

func (m *MockCampaignService) Broadcast(ctx context.Context, actorID, campaignID, body string) ([]models.BroadcastResult, error) {
	args := m.Called(ctx, actorID, campaignID, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BroadcastResult), args.Error(1)
}

// MockAuditService is a mock implementation of AuditServiceInterface
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) List(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditLog), args.Error(1)
}

// caller is the authenticated identity a test request runs as.
type caller struct {
	userID string
	staff  bool
}

var (
	anonymous = caller{}
	staffUser = caller{userID: "staff-1", staff: true}
	aliceUser = caller{userID: "alice-1"}
)

// serve runs one request through a single route. Context keys are set the
// way AuthMiddleware sets them.
func serve(t *testing.T, method, route, path string, as caller, body interface{}, h gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Handle(method, route, func(c *gin.Context) {
		if as.userID != "" {
			perms := []string{models.PermProfileSelf}
			if as.staff {
				perms = models.StaffPermissions()
			}
			c.Set(middleware.ContextUserID, as.userID)
			c.Set(middleware.ContextIsStaff, as.staff)
			c.Set(middleware.ContextPermissions, perms)
		}
		c.Next()
	}, h)

	var buf *bytes.Buffer
	switch b := body.(type) {
	case nil:
		buf = bytes.NewBuffer(nil)
	case string:
		buf = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		buf = bytes.NewBuffer(payload)
	}

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}
