package router

import (
	"net/http"
	"net/url"
	"testing"

	"sms-notify-server/internal/config"
	"sms-notify-server/internal/handlers"
	"sms-notify-server/internal/models"
	"sms-notify-server/internal/provider"
	"sms-notify-server/pkg/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(nil, Handlers{})
	assert.EqualError(t, err, "configuration is required")

	_, err = NewRouter(config.DefaultConfig(), Handlers{Auth: &handlers.AuthHandler{}})
	assert.EqualError(t, err, "all handlers are required")
}

func TestRouterBasics(t *testing.T) {
	app := newTestApp(t, nil)

	tests := []struct {
		name           string
		method         string
		path           string
		token          string
		expectedStatus int
		expectedBody   string
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK, ""},
		{"unknown path", http.MethodGet, "/healthz", "", http.StatusNotFound, `{"error":"Not found"}`},
		{"wrong method", http.MethodDelete, "/health", "", http.StatusMethodNotAllowed, `{"error":"Method not allowed"}`},
		{"profile replace not offered", http.MethodPut, "/api/profiles/some-id", "", http.StatusMethodNotAllowed, `{"error":"Method not allowed"}`},
		{"protected without token", http.MethodGet, "/api/profiles/me", "", http.StatusUnauthorized, `{"error":"Authorization header is required"}`},
		{"protected with garbage token", http.MethodGet, "/api/users/me", "not-a-jwt", http.StatusUnauthorized, `{"error":"Invalid token"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(t, tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			}
			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestForceHTTPS(t *testing.T) {
	app := newTestApp(t, func(c *config.Config) { c.Server.ForceHTTPS = true })

	w := app.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusPermanentRedirect, w.Code)
	assert.Equal(t, "https://example.com/health", w.Header().Get("Location"))
}

func TestStaffOnlyRoutes(t *testing.T) {
	app := newTestApp(t, nil)
	_, token := app.register(t, "alice")

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/messages"},
		{http.MethodPost, "/api/messages"},
		{http.MethodGet, "/api/messages/some-id"},
		{http.MethodPost, "/api/messages/test"},
		{http.MethodGet, "/api/stats"},
		{http.MethodGet, "/api/campaigns"},
		{http.MethodPost, "/api/campaigns"},
		{http.MethodPost, "/api/campaigns/some-id/send"},
		{http.MethodGet, "/api/audit"},
		{http.MethodPost, "/api/profiles"},
		{http.MethodPost, "/api/profiles/some-id/verify"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := app.do(t, tt.method, tt.path, token, map[string]string{})
			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.JSONEq(t, `{"error":"Insufficient permissions"}`, w.Body.String())
		})
	}
}

func TestUserSelfService(t *testing.T) {
	app := newTestApp(t, nil)
	userID, token := app.register(t, "alice")

	w := app.do(t, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		User        models.UserResponse `json:"user"`
		Permissions []string            `json:"permissions"`
	}
	decode(t, w, &me)
	assert.Equal(t, userID, me.User.ID)
	assert.Equal(t, []string{models.PermProfileSelf}, me.Permissions)

	// Registration created an empty, opted-out profile.
	w = app.do(t, http.MethodGet, "/api/profiles/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var profile models.Profile
	decode(t, w, &profile)
	assert.Equal(t, userID, profile.UserID)
	assert.False(t, profile.SMSOptIn)
	assert.Empty(t, profile.PhoneNumber)

	w = app.do(t, http.MethodPatch, "/api/profiles/me", token, map[string]interface{}{"sms_opt_in": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "A phone_number is required to opt in to SMS.")

	w = app.do(t, http.MethodPatch, "/api/profiles/me", token, map[string]interface{}{
		"phone_number":  "+15551234567",
		"sms_opt_in":    true,
		"timezone_name": "America/New_York",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &profile)
	assert.True(t, profile.SMSOptIn)
	assert.Equal(t, "America/New_York", profile.TimezoneName)

	w = app.do(t, http.MethodPost, "/api/users/me/password", token, map[string]string{
		"old_password": testPassword,
		"new_password": "new-password-456",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProfileVisibility(t *testing.T) {
	app := newTestApp(t, nil)
	staff := app.staffToken(t)
	_, aliceToken := app.register(t, "alice")
	_, bobToken := app.register(t, "bob")

	var bobProfile models.Profile
	decode(t, app.do(t, http.MethodGet, "/api/profiles/me", bobToken, nil), &bobProfile)

	t.Run("non-owner gets 404", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/api/profiles/"+bobProfile.ID, aliceToken, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = app.do(t, http.MethodPatch, "/api/profiles/"+bobProfile.ID, aliceToken, map[string]string{"timezone_name": "UTC"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("owner and staff can read", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/api/profiles/"+bobProfile.ID, bobToken, nil).Code)
		assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/api/profiles/"+bobProfile.ID, staff, nil).Code)
	})

	t.Run("list is scoped for non-staff", func(t *testing.T) {
		var resp struct {
			Count int `json:"count"`
		}
		decode(t, app.do(t, http.MethodGet, "/api/profiles", aliceToken, nil), &resp)
		assert.Equal(t, 1, resp.Count)

		decode(t, app.do(t, http.MethodGet, "/api/profiles?search=bob", staff, nil), &resp)
		assert.Equal(t, 1, resp.Count)

		decode(t, app.do(t, http.MethodGet, "/api/profiles", staff, nil), &resp)
		assert.Equal(t, 3, resp.Count)
	})

	t.Run("staff verifies", func(t *testing.T) {
		w := app.do(t, http.MethodPost, "/api/profiles/"+bobProfile.ID+"/verify", staff, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var verified models.Profile
		decode(t, w, &verified)
		assert.NotNil(t, verified.VerifiedAt)
	})
}

func TestMessageLifecycle(t *testing.T) {
	app := newTestApp(t, nil)
	staff := app.staffToken(t)
	aliceID, aliceToken := app.register(t, "alice")

	w := app.do(t, http.MethodPatch, "/api/profiles/me", aliceToken, map[string]interface{}{
		"phone_number": "+15551234567",
		"sms_opt_in":   true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	app.sender.On("Send", mock.Anything, "+15551234567", "Your code is 1234").Return("SM100", nil).Once()

	w = app.do(t, http.MethodPost, "/api/messages", staff, map[string]string{
		"to_user": aliceID,
		"body":    "Your code is 1234",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sent models.Message
	decode(t, w, &sent)
	assert.Equal(t, models.StatusSent, sent.Status)
	assert.Equal(t, "SM100", sent.ProviderID)
	assert.Equal(t, models.DirectionOutbound, sent.Direction)

	status := func(raw string) {
		t.Helper()
		w := app.postForm(t, config.StatusWebhookPath, url.Values{"MessageSid": {"SM100"}, "MessageStatus": {raw}}, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "OK", w.Body.String())
	}
	getMessage := func() models.Message {
		t.Helper()
		var msg models.Message
		w := app.do(t, http.MethodGet, "/api/messages/"+sent.ID, staff, nil)
		require.Equal(t, http.StatusOK, w.Code)
		decode(t, w, &msg)
		return msg
	}

	status("delivered")
	msg := getMessage()
	assert.Equal(t, models.StatusDelivered, msg.Status)
	assert.NotNil(t, msg.DeliveredAt)

	// A late "sent" callback must not move the message backwards.
	status("sent")
	msg = getMessage()
	assert.Equal(t, models.StatusDelivered, msg.Status)
	assert.Equal(t, "sent", msg.RawProviderStatus)

	var stats models.Stats
	w = app.do(t, http.MethodGet, "/api/stats", staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &stats)
	assert.Equal(t, 1, stats.OptedInUsers)
	assert.Equal(t, 1, stats.MessagesSentToday)
	assert.Equal(t, 1, stats.DeliveredToday)
	assert.Equal(t, "UTC", stats.Timezone)

	w = app.postForm(t, config.InboundWebhookPath, url.Values{
		"From":       {"+15551234567"},
		"Body":       {"STOP"},
		"MessageSid": {"SM200"},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	var list struct {
		Messages []models.Message `json:"messages"`
		Count    int              `json:"count"`
	}
	decode(t, app.do(t, http.MethodGet, "/api/messages?direction=inbound", staff, nil), &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "STOP", list.Messages[0].Body)
	assert.Equal(t, aliceID, list.Messages[0].UserID)

	decode(t, app.do(t, http.MethodGet, "/api/messages?user_id="+aliceID, staff, nil), &list)
	assert.Equal(t, 2, list.Count)

	w = app.do(t, http.MethodGet, "/api/messages?status=bogus", staff, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var audit struct {
		Entries []models.AuditLog `json:"entries"`
	}
	decode(t, app.do(t, http.MethodGet, "/api/audit", staff, nil), &audit)
	actions := map[models.AuditAction]int{}
	for _, e := range audit.Entries {
		actions[e.Action]++
	}
	assert.Equal(t, 1, actions[models.AuditSendSMS])
	// Every applied callback is audited, including the stale one.
	assert.Equal(t, 2, actions[models.AuditStatusUpdate])
	assert.Equal(t, 1, actions[models.AuditInboundReceived])

	app.sender.AssertExpectations(t)
}

func TestSendRejections(t *testing.T) {
	app := newTestApp(t, nil)
	staff := app.staffToken(t)
	aliceID, _ := app.register(t, "alice")

	t.Run("not opted in", func(t *testing.T) {
		w := app.do(t, http.MethodPost, "/api/messages", staff, map[string]string{"to_user": aliceID, "body": "hi"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "User has no phone number.")
	})

	t.Run("test send to unknown user", func(t *testing.T) {
		w := app.do(t, http.MethodPost, "/api/messages/test", staff, map[string]string{"username": "ghost"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	app.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestProviderFailure(t *testing.T) {
	app := newTestApp(t, nil)
	staff := app.staffToken(t)
	aliceID, aliceToken := app.register(t, "alice")
	app.do(t, http.MethodPatch, "/api/profiles/me", aliceToken, map[string]interface{}{
		"phone_number": "+15551234567",
		"sms_opt_in":   true,
	})

	app.sender.On("Send", mock.Anything, "+15551234567", "This is a test message.").
		Return("", &provider.Error{Code: "21610", Message: "unsubscribed recipient", HTTPStatus: http.StatusBadRequest})

	w := app.do(t, http.MethodPost, "/api/messages/test", staff, map[string]string{"username": "alice"})
	require.Equal(t, http.StatusBadGateway, w.Code)

	var resp struct {
		Code    string         `json:"code"`
		Message models.Message `json:"message"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "21610", resp.Code)
	assert.Equal(t, models.StatusFailed, resp.Message.Status)
	assert.Equal(t, aliceID, resp.Message.UserID)
}

func TestCampaignRoutes(t *testing.T) {
	app := newTestApp(t, nil)
	staff := app.staffToken(t)
	aliceID, aliceToken := app.register(t, "alice")
	bobID, _ := app.register(t, "bob")
	app.do(t, http.MethodPatch, "/api/profiles/me", aliceToken, map[string]interface{}{
		"phone_number": "+15551234567",
		"sms_opt_in":   true,
	})

	w := app.do(t, http.MethodPost, "/api/campaigns", staff, map[string]interface{}{
		"name":    "Spring sale",
		"targets": []string{aliceID, bobID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var campaign models.Campaign
	decode(t, w, &campaign)

	app.sender.On("Send", mock.Anything, "+15551234567", "20% off").Return("SM300", nil).Once()

	w = app.do(t, http.MethodPost, "/api/campaigns/"+campaign.ID+"/send", staff, map[string]string{"body": "20% off"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var broadcast struct {
		Results []models.BroadcastResult `json:"results"`
	}
	decode(t, w, &broadcast)
	require.Len(t, broadcast.Results, 2)

	w = app.postForm(t, config.StatusWebhookPath, url.Values{"MessageSid": {"SM300"}, "MessageStatus": {"delivered"}}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	decode(t, app.do(t, http.MethodGet, "/api/campaigns/"+campaign.ID, staff, nil), &campaign)
	assert.Equal(t, 1, campaign.TotalSent)
	assert.Equal(t, 1, campaign.TotalDelivered)

	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodGet, "/api/campaigns/missing", staff, nil).Code)
}

func TestStatusWebhookValidation(t *testing.T) {
	app := newTestApp(t, nil)

	for _, path := range []string{config.StatusWebhookPath, "/webhooks/twilio/status-alt/"} {
		t.Run(path, func(t *testing.T) {
			w := app.postForm(t, path, url.Values{"MessageStatus": {"delivered"}}, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "missing sid", w.Body.String())

			w = app.postForm(t, path, url.Values{"MessageSid": {"SMunknown"}, "MessageStatus": {"delivered"}}, nil)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}

	t.Run("inbound from unknown sender is acknowledged", func(t *testing.T) {
		w := app.postForm(t, config.InboundWebhookPath, url.Values{"From": {"+19990000000"}, "Body": {"hi"}}, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestWebhookSignatures(t *testing.T) {
	const authToken = "twilio-auth-token"
	const baseURL = "https://sms.example.com"
	app := newTestApp(t, func(c *config.Config) {
		c.Twilio.ValidateSignatures = true
		c.Twilio.AuthToken = authToken
		c.PublicBaseURL = baseURL
	})

	form := url.Values{"MessageSid": {"SM1"}, "MessageStatus": {"delivered"}}
	valid := middleware.ComputeTwilioSignature(authToken, baseURL+config.StatusWebhookPath, form)

	tests := []struct {
		name      string
		form      url.Values
		signature string
		want      int
	}{
		{"missing signature", form, "", http.StatusForbidden},
		{"wrong signature", form, "bm90LWEtc2lnbmF0dXJl", http.StatusForbidden},
		{"tampered params", url.Values{"MessageSid": {"SM1"}, "MessageStatus": {"failed"}}, valid, http.StatusForbidden},
		{"valid signature", form, valid, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.signature != "" {
				headers[middleware.TwilioSignatureHeader] = tt.signature
			}
			w := app.postForm(t, config.StatusWebhookPath, tt.form, headers)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	t.Run("usage page is not signed", func(t *testing.T) {
		w := app.do(t, http.MethodGet, config.InboundWebhookPath, "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Twilio inbound SMS webhook - send a POST here.", w.Body.String())
	})
}

func TestStatsDateParameter(t *testing.T) {
	app := newTestApp(t, nil)
	staff := app.staffToken(t)

	var stats models.Stats
	w := app.do(t, http.MethodGet, "/api/stats?date=2024-03-16", staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &stats)
	assert.Equal(t, "2024-03-16", stats.Date)
	assert.Zero(t, stats.MessagesSentToday)

	w = app.do(t, http.MethodGet, "/api/stats?date=16/03/2024", staff, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusAltPath(t *testing.T) {
	assert.Equal(t, "/webhooks/twilio/status-alt/", statusAltPath())
}
