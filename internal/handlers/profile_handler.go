package handlers

import (
	"net/http"

	"sms-notify-server/internal/db"
	"sms-notify-server/internal/models"
	"sms-notify-server/internal/services"
	"sms-notify-server/pkg/logger"
	"sms-notify-server/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProfileHandler serves the profile directory
type ProfileHandler struct {
	profiles ProfileServiceInterface
}

func NewProfileHandler(profiles ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// canManage reports whether the caller may see and edit any profile.
func canManage(c *gin.Context) bool {
	return middleware.HasPermission(c, models.PermProfileManage)
}

// List handles GET /api/profiles
// Staff see every profile and may search and order; everyone else gets
// only their own.
func (h *ProfileHandler) List(c *gin.Context) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}

	q := db.ProfileQuery{
		Search:   c.Query("search"),
		Ordering: c.Query("ordering"),
		Limit:    limit,
		Offset:   offset,
	}
	if !canManage(c) {
		q = db.ProfileQuery{UserID: middleware.CurrentUserID(c), Limit: 1}
	}

	profiles, err := h.profiles.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

// Create handles POST /api/profiles
// A user already holding a profile has it updated instead.
func (h *ProfileHandler) Create(c *gin.Context) {
	var in models.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	profile, err := h.profiles.Upsert(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info("Profile saved",
		zap.String("profile_id", profile.ID),
		zap.String("user_id", profile.UserID),
		zap.String("actor_id", middleware.CurrentUserID(c)),
	)
	c.JSON(http.StatusCreated, profile)
}

// Me handles GET /api/profiles/me
func (h *ProfileHandler) Me(c *gin.Context) {
	profile, err := h.profiles.GetByUser(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateMe handles PATCH /api/profiles/me
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	var in models.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	profile, err := h.profiles.UpdateByUser(c.Request.Context(), middleware.CurrentUserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Get handles GET /api/profiles/:id
func (h *ProfileHandler) Get(c *gin.Context) {
	profile, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Update handles PATCH /api/profiles/:id. Omitted fields are left as they are.
func (h *ProfileHandler) Update(c *gin.Context) {
	current, ok := h.load(c)
	if !ok {
		return
	}

	var in models.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	profile, err := h.profiles.Update(c.Request.Context(), current.ID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Verify handles POST /api/profiles/:id/verify
func (h *ProfileHandler) Verify(c *gin.Context) {
	profile, err := h.profiles.Verify(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// load fetches the :id profile if the caller owns it or can manage
// profiles. Other callers get a 404 so ids are not disclosed.
func (h *ProfileHandler) load(c *gin.Context) (*models.Profile, bool) {
	profile, err := h.profiles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if profile.UserID != middleware.CurrentUserID(c) && !canManage(c) {
		logger.Warn("Profile access denied",
			zap.String("profile_id", profile.ID),
			zap.String("user_id", middleware.CurrentUserID(c)),
		)
		respondError(c, services.ErrProfileNotFound)
		return nil, false
	}
	return profile, true
}
