package handlers

import (
	"net/http"

	"sms-notify-server/internal/models"
	"sms-notify-server/pkg/logger"
	"sms-notify-server/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CampaignHandler handles campaign management and broadcast
type CampaignHandler struct {
	campaigns CampaignServiceInterface
}

func NewCampaignHandler(campaigns CampaignServiceInterface) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns}
}

// List handles GET /api/campaigns
func (h *CampaignHandler) List(c *gin.Context) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}

	campaigns, err := h.campaigns.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"campaigns": campaigns,
		"count":     len(campaigns),
	})
}

// Create handles POST /api/campaigns
func (h *CampaignHandler) Create(c *gin.Context) {
	var req models.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	actorID := middleware.CurrentUserID(c)
	campaign, err := h.campaigns.Create(c.Request.Context(), actorID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info("Campaign created",
		zap.String("campaign_id", campaign.ID),
		zap.String("name", campaign.Name),
		zap.String("actor_id", actorID),
	)
	c.JSON(http.StatusCreated, campaign)
}

// Get handles GET /api/campaigns/:id
func (h *CampaignHandler) Get(c *gin.Context) {
	campaign, err := h.campaigns.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// Send handles POST /api/campaigns/:id/send
// Targets are dispatched one by one; per-target failures are reported in
// the results rather than failing the request.
func (h *CampaignHandler) Send(c *gin.Context) {
	var req models.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	campaignID := c.Param("id")
	results, err := h.campaigns.Broadcast(c.Request.Context(), middleware.CurrentUserID(c), campaignID, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"campaign_id": campaignID,
		"results":     results,
	})
}
