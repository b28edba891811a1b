package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"sms-notify-server/internal/config"
	"sms-notify-server/internal/models"
	"sms-notify-server/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func testAuthConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.JWT.Secret = "handler-test-secret"
	cfg.JWT.TokenExpiry = time.Hour
	return cfg
}

func TestAuthHandler_Login(t *testing.T) {
	user := &models.User{ID: "user-123", Username: "testuser", Email: "test@example.com", Active: true}

	tests := []struct {
		name           string
		body           interface{}
		mockSetup      func(*MockUserService)
		expectedStatus int
		checkResponse  func(*testing.T, map[string]interface{})
	}{
		{
			name: "successful login",
			body: LoginRequest{Username: "testuser", Password: "password123"},
			mockSetup: func(m *MockUserService) {
				m.On("Authenticate", mock.Anything, "testuser", "password123", "").Return(user, nil)
			},
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp map[string]interface{}) {
				assert.NotEmpty(t, resp["token"])
				assert.Equal(t, float64(3600), resp["expires_in"])
				userResp := resp["user"].(map[string]interface{})
				assert.Equal(t, "user-123", userResp["id"])
				assert.NotContains(t, userResp, "password")
			},
		},
		{
			name: "totp code is passed through",
			body: LoginRequest{Username: "testuser", Password: "password123", TOTPCode: "123456"},
			mockSetup: func(m *MockUserService) {
				m.On("Authenticate", mock.Anything, "testuser", "password123", "123456").Return(user, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "malformed json",
			body:           "{not json",
			mockSetup:      func(m *MockUserService) {},
			expectedStatus: http.StatusBadRequest,
			checkResponse: func(t *testing.T, resp map[string]interface{}) {
				assert.Equal(t, "Invalid request format", resp["error"])
			},
		},
		{
			name:           "missing password",
			body:           map[string]string{"username": "testuser"},
			mockSetup:      func(m *MockUserService) {},
			expectedStatus: http.StatusBadRequest,
			checkResponse: func(t *testing.T, resp map[string]interface{}) {
				assert.Equal(t, "Username and password are required", resp["error"])
			},
		},
		{
			name: "invalid credentials",
			body: LoginRequest{Username: "testuser", Password: "wrong"},
			mockSetup: func(m *MockUserService) {
				m.On("Authenticate", mock.Anything, "testuser", "wrong", "").Return(nil, services.ErrInvalidCredentials)
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "invalid totp",
			body: LoginRequest{Username: "testuser", Password: "password123", TOTPCode: "000000"},
			mockSetup: func(m *MockUserService) {
				m.On("Authenticate", mock.Anything, "testuser", "password123", "000000").Return(nil, services.ErrInvalidTOTP)
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "locked account",
			body: LoginRequest{Username: "testuser", Password: "password123"},
			mockSetup: func(m *MockUserService) {
				m.On("Authenticate", mock.Anything, "testuser", "password123", "").Return(nil, services.ErrAccountLocked)
			},
			expectedStatus: http.StatusLocked,
		},
		{
			name: "inactive account",
			body: LoginRequest{Username: "testuser", Password: "password123"},
			mockSetup: func(m *MockUserService) {
				m.On("Authenticate", mock.Anything, "testuser", "password123", "").Return(nil, services.ErrAccountInactive)
			},
			expectedStatus: http.StatusForbidden,
		},
		{
			name: "storage failure",
			body: LoginRequest{Username: "testuser", Password: "password123"},
			mockSetup: func(m *MockUserService) {
				m.On("Authenticate", mock.Anything, "testuser", "password123", "").Return(nil, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			checkResponse: func(t *testing.T, resp map[string]interface{}) {
				assert.Equal(t, "Internal server error", resp["error"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockUserService)
			tt.mockSetup(mockService)
			handler := NewAuthHandler(testAuthConfig(), mockService)

			w := serve(t, http.MethodPost, "/api/auth/login", "/api/auth/login", anonymous, tt.body, handler.Login)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.checkResponse != nil {
				tt.checkResponse(t, decodeBody(t, w))
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestAuthHandler_LoginTokenFailure(t *testing.T) {
	cfg := testAuthConfig()
	cfg.JWT.Secret = ""

	mockService := new(MockUserService)
	mockService.On("Authenticate", mock.Anything, "testuser", "password123", "").
		Return(&models.User{ID: "user-123", Username: "testuser"}, nil)
	handler := NewAuthHandler(cfg, mockService)

	w := serve(t, http.MethodPost, "/api/auth/login", "/api/auth/login", anonymous,
		LoginRequest{Username: "testuser", Password: "password123"}, handler.Login)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to generate token", decodeBody(t, w)["error"])
}
