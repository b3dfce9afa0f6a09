package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type createEmergencyRequest struct {
	AnnouncementID  string     `json:"announcementId" binding:"required"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	DurationMinutes *int       `json:"durationMinutes" binding:"omitempty,min=1,max=1440"`
}

// GetEmergency handles GET /api/admin/emergency. The body is null when no
// broadcast is in effect.
func (h *Handler) GetEmergency(c *gin.Context) {
	b, err := h.emergency.Active(c.Request.Context(), orgID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if b == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, b)
}

// CreateEmergency handles POST /api/admin/emergency. Either expiresAt or
// durationMinutes may bound the broadcast; without both it runs until
// cancelled.
func (h *Handler) CreateEmergency(c *gin.Context) {
	var req createEmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	expiresAt := req.ExpiresAt
	if expiresAt == nil && req.DurationMinutes != nil {
		t := h.clock.Now().Add(time.Duration(*req.DurationMinutes) * time.Minute)
		expiresAt = &t
	}

	b, err := h.emergency.Create(c.Request.Context(), orgID(c), actorID(c), req.AnnouncementID, expiresAt)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// CancelEmergency handles POST /api/admin/emergency/:id/cancel.
func (h *Handler) CancelEmergency(c *gin.Context) {
	changed, err := h.emergency.Cancel(c.Request.Context(), orgID(c), c.Param("id"), actorID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "active": false, "changed": changed})
}
