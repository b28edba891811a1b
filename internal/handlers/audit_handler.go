package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AuditHandler lists the audit trail
type AuditHandler struct {
	audit AuditServiceInterface
}

func NewAuditHandler(audit AuditServiceInterface) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List handles GET /api/audit, newest first
func (h *AuditHandler) List(c *gin.Context) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}

	entries, err := h.audit.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}
