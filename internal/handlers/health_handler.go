package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const serviceName = "sms-notify-server"

// Health handles GET /health
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"service": serviceName,
	})
}
