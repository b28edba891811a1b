package handlers

import (
	"errors"
	"net/http"
	"strings"

	"sms-notify-server/internal/models"
	"sms-notify-server/internal/services"
	"sms-notify-server/pkg/logger"
	"sms-notify-server/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultTestBody = "This is a test message."

// TestSendRequest names the user who receives a test message.
type TestSendRequest struct {
	Username string `json:"username" binding:"required"`
	Body     string `json:"body"`
}

// MessageHandler serves the message ledger and outbound sends
type MessageHandler struct {
	messages   MessageServiceInterface
	dispatcher DispatcherInterface
	users      UserServiceInterface
}

func NewMessageHandler(messages MessageServiceInterface, dispatcher DispatcherInterface, users UserServiceInterface) *MessageHandler {
	return &MessageHandler{messages: messages, dispatcher: dispatcher, users: users}
}

// List handles GET /api/messages
// Filters: user_id, direction, status, limit, offset. Newest first.
func (h *MessageHandler) List(c *gin.Context) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}

	filter := models.MessageFilter{
		UserID:    c.Query("user_id"),
		Direction: models.Direction(strings.ToUpper(c.Query("direction"))),
		Status:    models.Status(strings.ToUpper(c.Query("status"))),
		Limit:     limit,
		Offset:    offset,
	}

	msgs, err := h.messages.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": msgs,
		"count":    len(msgs),
	})
}

// Get handles GET /api/messages/:id
func (h *MessageHandler) Get(c *gin.Context) {
	msg, err := h.messages.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// Create handles POST /api/messages
// The message is recorded before the provider is called, so a provider
// failure still returns the stored FAILED entry.
func (h *MessageHandler) Create(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	h.send(c, req)
}

// SendTest handles POST /api/messages/test
func (h *MessageHandler) SendTest(c *gin.Context) {
	var req TestSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username is required"})
		return
	}

	user, err := h.users.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User '" + req.Username + "' not found"})
			return
		}
		respondError(c, err)
		return
	}

	body := req.Body
	if body == "" {
		body = defaultTestBody
	}
	h.send(c, models.SendMessageRequest{ToUser: user.ID, Body: body})
}

func (h *MessageHandler) send(c *gin.Context, req models.SendMessageRequest) {
	actorID := middleware.CurrentUserID(c)
	msg, err := h.dispatcher.SendToUser(c.Request.Context(), actorID, req)

	var perr *services.ProviderError
	if errors.As(err, &perr) && msg != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "SMS provider rejected the message",
			"code":    perr.Code,
			"message": msg,
		})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info("Message sent via API",
		zap.String("message_id", msg.ID),
		zap.String("actor_id", actorID),
	)
	c.JSON(http.StatusCreated, msg)
}
