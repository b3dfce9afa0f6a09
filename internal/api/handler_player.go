package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carevoice-backend/internal/metrics"
	"carevoice-backend/internal/model"
	"carevoice-backend/internal/mw"
	"carevoice-backend/internal/orgtime"
	"carevoice-backend/internal/store"
	"carevoice-backend/internal/wire"
)

// playerDevice resolves the deviceId query parameter.
func (h *Handler) playerDevice(c *gin.Context) (*model.Device, bool) {
	deviceID := c.Query("deviceId")
	if deviceID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "deviceId is required"})
		return nil, false
	}
	d, err := h.store.GetDevice(c.Request.Context(), deviceID)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return d, true
}

// GetPlayerSchedule handles GET /api/player/schedule?deviceId=.
func (h *Handler) GetPlayerSchedule(c *gin.Context) {
	d, ok := h.playerDevice(c)
	if !ok {
		return
	}

	now := h.clock.Now()
	day, err := h.resolver.ResolveToday(c.Request.Context(), d.OrganizationID, d.RoomID, now)
	if err != nil {
		h.fail(c, err)
		return
	}
	// A cached payload must not be served once the org-local date changes.
	if loc, err := orgtime.Location(day.Timezone); err == nil {
		mw.CacheUntil(c, now, orgtime.NextMidnight(now, loc))
	}
	c.JSON(http.StatusOK, wireSchedule(d, day))
}

// GetPlayerEmergency handles GET /api/player/emergency?deviceId=.
func (h *Handler) GetPlayerEmergency(c *gin.Context) {
	d, ok := h.playerDevice(c)
	if !ok {
		return
	}

	b, err := h.emergency.Active(c.Request.Context(), d.OrganizationID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wireEmergency(b))
}

// PostHeartbeat handles POST /api/player/heartbeat.
func (h *Handler) PostHeartbeat(c *gin.Context) {
	var req wire.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	seen, err := h.devices.Heartbeat(c.Request.Context(), req.DeviceID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wire.HeartbeatResponse{OK: true, LastSeenAt: seen})
}

// PostPlayLog handles POST /api/player/log. Reports for the same device,
// announcement and scheduled instant update a single row.
func (h *Handler) PostPlayLog(c *gin.Context) {
	var req wire.LogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()

	d, err := h.store.GetDevice(ctx, req.DeviceID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if _, err := h.store.GetAnnouncement(ctx, d.OrganizationID, req.AnnouncementID); err != nil {
		h.fail(c, err)
		return
	}

	entry := model.PlayLog{
		OrganizationID: d.OrganizationID,
		RoomID:         d.RoomID,
		DeviceID:       d.ID,
		AnnouncementID: req.AnnouncementID,
		ScheduledAt:    req.ScheduledAt,
		Status:         model.PlayStatus(req.Status),
	}
	if entry.Status == model.PlayPlayed {
		now := h.clock.Now().UTC()
		entry.PlayedAt = &now
	}
	if err := h.store.UpsertPlayLog(ctx, &entry); err != nil {
		h.fail(c, err)
		return
	}
	metrics.PlayLogs.WithLabelValues(req.Status).Inc()
	c.JSON(http.StatusOK, wire.LogResponse{ID: entry.ID, Status: string(entry.Status)})
}

// PostPair handles POST /api/pair.
func (h *Handler) PostPair(c *gin.Context) {
	var req wire.PairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	d, err := h.devices.Redeem(c.Request.Context(), req.PairingCode)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "invalid pairing code"})
		return
	case errors.Is(err, store.ErrExpired):
		c.AbortWithStatusJSON(http.StatusGone, gin.H{"error": "pairing code has expired"})
		return
	case err != nil:
		h.fail(c, err)
		return
	}

	h.log.Info("pairing completed", zap.String("device_id", d.ID))
	c.JSON(http.StatusOK, wire.PairResponse{
		DeviceID:     d.ID,
		DeviceName:   d.Name,
		Room:         wireRoom(d.Room),
		Organization: wireOrganization(d.Organization),
	})
}
