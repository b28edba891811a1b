package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sms-notify-server/internal/config"
	"sms-notify-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by AuthMiddleware
const (
	ContextUserID      = "userID"
	ContextUsername    = "username"
	ContextIsStaff     = "isStaff"
	ContextPermissions = "permissions"
)

// Claims represents the JWT claims
type Claims struct {
	UserID      string   `json:"user_id"`
	Username    string   `json:"username,omitempty"`
	IsStaff     bool     `json:"is_staff,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware creates a middleware for JWT authentication
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWT.Secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token has expired"})
				c.Abort()
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || claims.UserID == "" || claims.ExpiresAt == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextIsStaff, claims.IsStaff)
		c.Set(ContextPermissions, claims.Permissions)
		c.Next()
	}
}

// GenerateToken issues a token for user carrying its staff flag and permissions
func GenerateToken(user *models.User, cfg *config.Config) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("user ID is required")
	}
	if cfg == nil {
		return "", errors.New("config is required")
	}
	if cfg.JWT.Secret == "" {
		return "", errors.New("JWT secret is required")
	}

	now := time.Now()
	claims := &Claims{
		UserID:      user.ID,
		Username:    user.Username,
		IsStaff:     user.IsStaff,
		Permissions: user.Permissions(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.JWT.TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(cfg.JWT.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// RequirePermission creates middleware that requires a specific permission
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		permList, ok := permissionsFrom(c)
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "No permissions found"})
			c.Abort()
			return
		}

		if !hasPermission(permList, permission) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireAnyPermission creates middleware that requires at least one of the specified permissions
func RequireAnyPermission(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		permList, ok := permissionsFrom(c)
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "No permissions found"})
			c.Abort()
			return
		}

		if !hasAnyPermission(permList, permissions...) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// CurrentUserID returns the authenticated user's ID, or "".
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// HasPermission reports whether the authenticated user holds permission.
func HasPermission(c *gin.Context, permission string) bool {
	permList, ok := permissionsFrom(c)
	return ok && hasPermission(permList, permission)
}

func permissionsFrom(c *gin.Context) ([]string, bool) {
	permissions, exists := c.Get(ContextPermissions)
	if !exists {
		return nil, false
	}
	permList, ok := permissions.([]string)
	return permList, ok
}

// hasPermission checks if a specific permission exists in the list
func hasPermission(permissions []string, required string) bool {
	for _, p := range permissions {
		if p == required {
			return true
		}
	}
	return false
}

// hasAnyPermission checks if at least one of the required permissions exists
func hasAnyPermission(permissions []string, required ...string) bool {
	for _, req := range required {
		if hasPermission(permissions, req) {
			return true
		}
	}
	return false
}
