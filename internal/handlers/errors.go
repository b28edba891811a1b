package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"sms-notify-server/internal/services"
	"sms-notify-server/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

// respondError maps service errors onto HTTP responses.
func respondError(c *gin.Context, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": verr.Fields})
		return
	}

	var perr *services.ProviderError
	if errors.As(err, &perr) {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      "SMS provider rejected the message",
			"code":       perr.Code,
			"message_id": perr.MessageID,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
	case errors.Is(err, services.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
	case errors.Is(err, services.ErrCampaignNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidTOTP):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrAccountLocked):
		c.JSON(http.StatusLocked, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrAccountInactive):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUsernameExists), errors.Is(err, services.ErrEmailExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidUsername),
		errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrInvalidPassword),
		errors.Is(err, services.ErrIncorrectOldPassword),
		errors.Is(err, services.ErrTOTPNotGenerated):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// parsePagination reads limit and offset query params. It writes a 400 and
// returns false on malformed input.
func parsePagination(c *gin.Context) (limit, offset int, ok bool) {
	limit, offset = defaultLimit, 0

	if limitParam := c.Query("limit"); limitParam != "" {
		l, err := strconv.Atoi(limitParam)
		if err != nil || l <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return 0, 0, false
		}
		if l > maxLimit {
			l = maxLimit
		}
		limit = l
	}

	if offsetParam := c.Query("offset"); offsetParam != "" {
		o, err := strconv.Atoi(offsetParam)
		if err != nil || o < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset parameter"})
			return 0, 0, false
		}
		offset = o
	}

	return limit, offset, true
}
