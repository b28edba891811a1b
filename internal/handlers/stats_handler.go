package handlers

import (
	"errors"
	"net/http"
	"time"

	"sms-notify-server/internal/services"
	"sms-notify-server/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// StatsHandler serves the dashboard counters
type StatsHandler struct {
	stats    StatsServiceInterface
	profiles ProfileServiceInterface
}

func NewStatsHandler(stats StatsServiceInterface, profiles ProfileServiceInterface) *StatsHandler {
	return &StatsHandler{stats: stats, profiles: profiles}
}

// Get handles GET /api/stats
// "Today" is the calendar day in the caller's profile timezone. An
// optional ?date=YYYY-MM-DD selects another day in the same zone.
func (h *StatsHandler) Get(c *gin.Context) {
	loc, err := h.callerLocation(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if dateParam := c.Query("date"); dateParam != "" {
		day, err := time.ParseInLocation("2006-01-02", dateParam, loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date parameter, expected YYYY-MM-DD"})
			return
		}
		stats, err := h.stats.ForDate(c.Request.Context(), day)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
		return
	}

	stats, err := h.stats.Today(c.Request.Context(), loc)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *StatsHandler) callerLocation(c *gin.Context) (*time.Location, error) {
	profile, err := h.profiles.GetByUser(c.Request.Context(), middleware.CurrentUserID(c))
	if errors.Is(err, services.ErrProfileNotFound) {
		return time.UTC, nil
	}
	if err != nil {
		return nil, err
	}
	return profile.Location(), nil
}
