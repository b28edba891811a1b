package handlers

import (
	"net/http"
	"testing"

	"sms-notify-server/internal/models"
	"sms-notify-server/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestCampaignHandler_Create(t *testing.T) {
	req := models.CreateCampaignRequest{Name: "Spring sale", TargetUserIDs: []string{"alice-1"}}

	t.Run("created", func(t *testing.T) {
		campaigns := new(MockCampaignService)
		campaigns.On("Create", mock.Anything, "staff-1", req).
			Return(&models.Campaign{ID: "camp-1", Name: "Spring sale", TargetUserIDs: []string{"alice-1"}}, nil)
		handler := NewCampaignHandler(campaigns)

		w := serve(t, http.MethodPost, "/api/campaigns", "/api/campaigns", staffUser, req, handler.Create)

		assert.Equal(t, http.StatusCreated, w.Code)
		resp := decodeBody(t, w)
		assert.Equal(t, "camp-1", resp["id"])
		assert.Equal(t, []interface{}{"alice-1"}, resp["targets"])
	})

	t.Run("name is required", func(t *testing.T) {
		handler := NewCampaignHandler(new(MockCampaignService))
		w := serve(t, http.MethodPost, "/api/campaigns", "/api/campaigns", staffUser, map[string]string{}, handler.Create)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown target", func(t *testing.T) {
		campaigns := new(MockCampaignService)
		campaigns.On("Create", mock.Anything, "staff-1", mock.Anything).
			Return(nil, &services.ValidationError{Fields: map[string]string{"targets": `Invalid user "ghost".`}})
		handler := NewCampaignHandler(campaigns)

		w := serve(t, http.MethodPost, "/api/campaigns", "/api/campaigns", staffUser,
			models.CreateCampaignRequest{Name: "x", TargetUserIDs: []string{"ghost"}}, handler.Create)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCampaignHandler_ListAndGet(t *testing.T) {
	campaigns := new(MockCampaignService)
	campaigns.On("List", mock.Anything, 20, 40).Return([]*models.Campaign{{ID: "camp-1"}, {ID: "camp-2"}}, nil)
	campaigns.On("Get", mock.Anything, "camp-1").Return(&models.Campaign{ID: "camp-1", TotalSent: 3}, nil)
	campaigns.On("Get", mock.Anything, "missing").Return(nil, services.ErrCampaignNotFound)
	handler := NewCampaignHandler(campaigns)

	w := serve(t, http.MethodGet, "/api/campaigns", "/api/campaigns?limit=20&offset=40", staffUser, nil, handler.List)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decodeBody(t, w)["count"])

	w = serve(t, http.MethodGet, "/api/campaigns/:id", "/api/campaigns/camp-1", staffUser, nil, handler.Get)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decodeBody(t, w)["total_sent"])

	w = serve(t, http.MethodGet, "/api/campaigns/:id", "/api/campaigns/missing", staffUser, nil, handler.Get)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCampaignHandler_Send(t *testing.T) {
	results := []models.BroadcastResult{
		{UserID: "alice-1", MessageID: "msg-1", Status: models.StatusSent},
		{UserID: "bob-1", Skipped: "User is not opted in to SMS."},
	}
	campaigns := new(MockCampaignService)
	campaigns.On("Broadcast", mock.Anything, "staff-1", "camp-1", "20% off").Return(results, nil)
	campaigns.On("Broadcast", mock.Anything, "staff-1", "missing", "20% off").Return(nil, services.ErrCampaignNotFound)
	handler := NewCampaignHandler(campaigns)

	w := serve(t, http.MethodPost, "/api/campaigns/:id/send", "/api/campaigns/camp-1/send", staffUser,
		models.BroadcastRequest{Body: "20% off"}, handler.Send)
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "camp-1", resp["campaign_id"])
	assert.Len(t, resp["results"], 2)

	w = serve(t, http.MethodPost, "/api/campaigns/:id/send", "/api/campaigns/missing/send", staffUser,
		models.BroadcastRequest{Body: "20% off"}, handler.Send)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
