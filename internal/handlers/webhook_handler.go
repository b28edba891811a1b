package handlers

import (
	"net/http"

	"sms-notify-server/pkg/logger"
	"sms-notify-server/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const inboundUsage = "Twilio inbound SMS webhook - send a POST here."

// WebhookHandler receives provider callbacks. Both endpoints acknowledge
// with plain text; the provider retries anything that is not a 2xx, so
// internal failures are logged and swallowed.
type WebhookHandler struct {
	inbound    InboundRouterInterface
	reconciler ReconcilerInterface
}

func NewWebhookHandler(inbound InboundRouterInterface, reconciler ReconcilerInterface) *WebhookHandler {
	return &WebhookHandler{inbound: inbound, reconciler: reconciler}
}

// InboundUsage handles GET on the inbound endpoint.
func (h *WebhookHandler) InboundUsage(c *gin.Context) {
	c.String(http.StatusOK, inboundUsage)
}

// Inbound handles POST /webhooks/twilio/sms/
func (h *WebhookHandler) Inbound(c *gin.Context) {
	from := c.PostForm("From")
	body := c.PostForm("Body")
	sid := c.PostForm("MessageSid")

	msg, err := h.inbound.Receive(c.Request.Context(), from, body, sid)
	switch {
	case err != nil:
		logger.Error("Failed to record inbound SMS",
			zap.String("from", utils.MaskPhone(from)),
			zap.String("provider_id", sid),
			zap.Error(err),
		)
	case msg == nil:
		logger.Info("Inbound SMS from unmatched sender",
			zap.String("from", utils.MaskPhone(from)),
			zap.String("provider_id", sid),
		)
	}

	c.String(http.StatusOK, "OK")
}

// Status handles POST /webhooks/twilio/status/ and its alias
func (h *WebhookHandler) Status(c *gin.Context) {
	sid := c.PostForm("MessageSid")
	if sid == "" {
		c.String(http.StatusBadRequest, "missing sid")
		return
	}

	h.reconciler.ApplyStatus(c.Request.Context(), sid, c.PostForm("MessageStatus"), c.PostForm("ErrorCode"))
	c.String(http.StatusOK, "OK")
}
