package handlers

import (
	"net/http"

	"sms-notify-server/internal/models"
	"sms-notify-server/pkg/logger"
	"sms-notify-server/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler handles account requests
type UserHandler struct {
	userService UserServiceInterface
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService UserServiceInterface) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// Register handles user registration (POST /api/users)
// The new account gets an empty, opted-out profile.
func (h *UserHandler) Register(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid registration request", zap.Error(err))
		switch {
		case req.Username == "":
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username is required"})
		case req.Email == "":
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
		case req.Password == "":
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password is required"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		}
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		logger.Warn("User registration failed",
			zap.String("username", req.Username),
			zap.Error(err),
		)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user.ToResponse())
}

// Me returns the authenticated user (GET /api/users/me)
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":         user.ToResponse(),
		"totp_enabled": user.TOTPEnabled,
		"permissions":  user.Permissions(),
	})
}

// ChangePassword handles self-service password change (POST /api/users/me/password)
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	userID := middleware.CurrentUserID(c)
	if err := h.userService.ChangePassword(c.Request.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		logger.Warn("Password change failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

// SetupTOTP generates a fresh secret (POST /api/users/me/totp/setup)
// 2FA stays off until EnableTOTP confirms a code.
func (h *UserHandler) SetupTOTP(c *gin.Context) {
	secret, url, err := h.userService.GenerateTOTPSecret(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": secret, "url": url})
}

// EnableTOTP turns on 2FA (POST /api/users/me/totp/enable)
func (h *UserHandler) EnableTOTP(c *gin.Context) {
	var req models.TOTPCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "TOTP code is required"})
		return
	}

	if err := h.userService.EnableTOTP(c.Request.Context(), middleware.CurrentUserID(c), req.Code); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "2FA enabled"})
}

// DisableTOTP turns off 2FA (POST /api/users/me/totp/disable)
func (h *UserHandler) DisableTOTP(c *gin.Context) {
	if err := h.userService.DisableTOTP(c.Request.Context(), middleware.CurrentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "2FA disabled"})
}
