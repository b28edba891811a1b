package router

import (
	"errors"
	"net/http"
	"strings"

	"sms-notify-server/internal/config"
	"sms-notify-server/internal/handlers"
	"sms-notify-server/internal/models"
	"sms-notify-server/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers bundles everything the route table dispatches to.
type Handlers struct {
	Auth      *handlers.AuthHandler
	Users     *handlers.UserHandler
	Profiles  *handlers.ProfileHandler
	Messages  *handlers.MessageHandler
	Stats     *handlers.StatsHandler
	Campaigns *handlers.CampaignHandler
	Audit     *handlers.AuditHandler
	Webhooks  *handlers.WebhookHandler
}

func (h Handlers) validate() error {
	if h.Auth == nil || h.Users == nil || h.Profiles == nil || h.Messages == nil ||
		h.Stats == nil || h.Campaigns == nil || h.Audit == nil || h.Webhooks == nil {
		return errors.New("all handlers are required")
	}
	return nil
}

type Router struct {
	engine *gin.Engine
}

// NewRouter builds the HTTP route table.
func NewRouter(cfg *config.Config, h Handlers) (*Router, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := h.validate(); err != nil {
		return nil, err
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(middleware.AccessLogMiddleware())
	if cfg.Server.ForceHTTPS {
		engine.Use(middleware.HTTPSRedirectMiddleware())
	}
	engine.Use(middleware.SecurityHeadersMiddleware())
	engine.Use(middleware.CORSMiddleware())
	engine.Use(middleware.RequestSizeLimitMiddleware(cfg.Server.MaxBodyBytes))

	engine.NoRoute(handleNotFound)
	engine.NoMethod(handleMethodNotAllowed)

	engine.GET("/health", handlers.Health)

	registerWebhooks(engine, cfg, h.Webhooks)

	// Public API
	engine.POST("/api/auth/login", h.Auth.Login)
	engine.POST("/api/users", h.Users.Register)

	api := engine.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg))

	me := api.Group("/users/me")
	{
		me.GET("", h.Users.Me)
		me.POST("/password", h.Users.ChangePassword)
		me.POST("/totp/setup", h.Users.SetupTOTP)
		me.POST("/totp/enable", h.Users.EnableTOTP)
		me.POST("/totp/disable", h.Users.DisableTOTP)
	}

	// Ownership checks for profiles live in the handler.
	profiles := api.Group("/profiles")
	{
		profiles.GET("", h.Profiles.List)
		profiles.POST("", middleware.RequirePermission(models.PermProfileManage), h.Profiles.Create)
		profiles.GET("/me", h.Profiles.Me)
		profiles.PATCH("/me", h.Profiles.UpdateMe)
		profiles.GET("/:id", h.Profiles.Get)
		profiles.PATCH("/:id", h.Profiles.Update)
		profiles.POST("/:id/verify", middleware.RequirePermission(models.PermProfileVerify), h.Profiles.Verify)
	}

	messages := api.Group("/messages")
	{
		messages.GET("", middleware.RequirePermission(models.PermMessageRead), h.Messages.List)
		messages.POST("", middleware.RequirePermission(models.PermMessageSend), h.Messages.Create)
		messages.POST("/test", middleware.RequirePermission(models.PermMessageSend), h.Messages.SendTest)
		messages.GET("/:id", middleware.RequireAnyPermission(models.PermMessageRead, models.PermMessageSend), h.Messages.Get)
	}

	api.GET("/stats", middleware.RequirePermission(models.PermStatsRead), h.Stats.Get)

	campaigns := api.Group("/campaigns")
	campaigns.Use(middleware.RequirePermission(models.PermCampaignManage))
	{
		campaigns.GET("", h.Campaigns.List)
		campaigns.POST("", h.Campaigns.Create)
		campaigns.GET("/:id", h.Campaigns.Get)
		campaigns.POST("/:id/send", h.Campaigns.Send)
	}

	api.GET("/audit", middleware.RequirePermission(models.PermAuditRead), h.Audit.List)

	return &Router{engine: engine}, nil
}

// registerWebhooks mounts the provider callbacks. They carry no JWT; when
// signature checks are on, POSTs must be signed with the account token.
func registerWebhooks(engine *gin.Engine, cfg *config.Config, h *handlers.WebhookHandler) {
	engine.GET(config.InboundWebhookPath, h.InboundUsage)

	hooks := engine.Group("")
	if cfg.Twilio.ValidateSignatures {
		hooks.Use(middleware.TwilioSignatureMiddleware(cfg.Twilio.AuthToken, cfg.PublicBaseURL))
	}
	hooks.POST(config.InboundWebhookPath, h.Inbound)
	hooks.POST(config.StatusWebhookPath, h.Status)
	hooks.POST(statusAltPath(), h.Status)
}

// statusAltPath is the legacy alias of the status callback.
func statusAltPath() string {
	return strings.TrimSuffix(config.StatusWebhookPath, "/") + "-alt/"
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}

func handleNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
}

func handleMethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}
