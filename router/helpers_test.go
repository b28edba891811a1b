package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"sms-notify-server/internal/cache"
	"sms-notify-server/internal/config"
	"sms-notify-server/internal/db"
	"sms-notify-server/internal/handlers"
	"sms-notify-server/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testPassword = "password123"

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, to, body string) (string, error) {
	args := m.Called(ctx, to, body)
	return args.String(0), args.Error(1)
}

type testApp struct {
	router *Router
	cfg    *config.Config
	sender *mockSender
	users  *services.UserService
}

func newTestApp(t *testing.T, mutate func(*config.Config)) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.JWT.Secret = "router-test-secret"
	cfg.JWT.TokenExpiry = time.Hour
	if mutate != nil {
		mutate(cfg)
	}

	database := db.SetupTestDB(t)
	userRepo := db.NewUserRepository(database)
	profileRepo := db.NewProfileRepository(database)
	messageRepo := db.NewMessageRepository(database)
	campaignRepo := db.NewCampaignRepository(database)
	audit := services.NewAuditService(db.NewAuditRepository(database))

	sender := new(mockSender)
	userService := services.NewUserService(userRepo, profileRepo, "", cfg.DefaultTimezone)
	profileService := services.NewProfileService(profileRepo, userRepo)
	dispatcher := services.NewDispatcher(sender, messageRepo, profileRepo, userRepo, campaignRepo, cache.Noop{}, audit)
	reconciler := services.NewReconciler(messageRepo, campaignRepo, cache.Noop{}, audit)

	r, err := NewRouter(cfg, Handlers{
		Auth:      handlers.NewAuthHandler(cfg, userService),
		Users:     handlers.NewUserHandler(userService),
		Profiles:  handlers.NewProfileHandler(profileService),
		Messages:  handlers.NewMessageHandler(services.NewMessageService(messageRepo), dispatcher, userService),
		Stats:     handlers.NewStatsHandler(services.NewStatsService(profileRepo, messageRepo), profileService),
		Campaigns: handlers.NewCampaignHandler(services.NewCampaignService(campaignRepo, userRepo, dispatcher)),
		Audit:     handlers.NewAuditHandler(audit),
		Webhooks:  handlers.NewWebhookHandler(services.NewInboundRouter(profileRepo, messageRepo, audit), reconciler),
	})
	require.NoError(t, err)

	return &testApp{router: r, cfg: cfg, sender: sender, users: userService}
}

// do sends a JSON request, with a bearer token when token is not empty.
func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) postForm(t *testing.T, path string, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) login(t *testing.T, username string) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	decode(t, w, &resp)
	return resp.Token
}

// register creates a regular user through the API and returns its id and token.
func (a *testApp) register(t *testing.T, username string) (string, string) {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		ID string `json:"id"`
	}
	decode(t, w, &resp)
	return resp.ID, a.login(t, username)
}

func (a *testApp) staffToken(t *testing.T) string {
	t.Helper()
	created, err := a.users.SeedAdmin(context.Background(), "admin", "admin@example.com", testPassword)
	require.NoError(t, err)
	require.True(t, created)
	return a.login(t, "admin")
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
