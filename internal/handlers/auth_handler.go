package handlers

import (
	"net/http"

	"sms-notify-server/internal/config"
	"sms-notify-server/pkg/logger"
	"sms-notify-server/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code,omitempty"`
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	config      *config.Config
	userService UserServiceInterface
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg *config.Config, userService UserServiceInterface) *AuthHandler {
	return &AuthHandler{config: cfg, userService: userService}
}

// Login checks credentials and returns a JWT (POST /api/auth/login)
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to parse login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Username, req.Password, req.TOTPCode)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := middleware.GenerateToken(user, h.config)
	if err != nil {
		logger.Error("Failed to generate token",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int64(h.config.JWT.TokenExpiry.Seconds()),
		"user":       user.ToResponse(),
	})
}
