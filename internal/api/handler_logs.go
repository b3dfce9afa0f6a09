package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func limitParam(c *gin.Context) int {
	n, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		return 100
	}
	return n
}

// ListPlayLogs handles GET /api/admin/play-logs.
func (h *Handler) ListPlayLogs(c *gin.Context) {
	logs, err := h.store.ListPlayLogs(c.Request.Context(), orgID(c), limitParam(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// ListAuditLogs handles GET /api/admin/audit-logs.
func (h *Handler) ListAuditLogs(c *gin.Context) {
	logs, err := h.store.ListAuditLogs(c.Request.Context(), orgID(c), limitParam(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}
