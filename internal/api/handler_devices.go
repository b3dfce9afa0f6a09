package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carevoice-backend/internal/device"
)

// nullableString distinguishes an absent JSON field from an explicit null.
type nullableString struct {
	Set   bool
	Value *string
}

func (n *nullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

type createDeviceRequest struct {
	Name   string  `json:"name" binding:"required,max=100"`
	RoomID *string `json:"roomId"`
}

type updateDeviceRequest struct {
	Name   *string        `json:"name" binding:"omitempty,min=1,max=100"`
	RoomID nullableString `json:"roomId"`
}

func (h *Handler) online(lastSeen *time.Time) bool {
	return device.IsOnline(lastSeen, h.clock.Now())
}

func (h *Handler) ListDevices(c *gin.Context) {
	devices, err := h.store.ListDevices(c.Request.Context(), orgID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	views := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, newDeviceView(d, h.online))
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) GetDevice(c *gin.Context) {
	d, err := h.store.GetOrgDevice(c.Request.Context(), orgID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newDeviceView(*d, h.online))
}

// CreateDevice registers a device and issues its first pairing code.
func (h *Handler) CreateDevice(c *gin.Context) {
	var req createDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	d, err := h.devices.Register(c.Request.Context(), orgID(c), req.Name, req.RoomID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newDeviceView(*d, h.online))
}

func (h *Handler) UpdateDevice(c *gin.Context) {
	var req updateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	var room **string
	if req.RoomID.Set {
		room = &req.RoomID.Value
	}
	d, err := h.store.UpdateDevice(c.Request.Context(), orgID(c), c.Param("id"), req.Name, room)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newDeviceView(*d, h.online))
}

func (h *Handler) DeleteDevice(c *gin.Context) {
	if err := h.store.DeleteDevice(c.Request.Context(), orgID(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RegeneratePairingCode handles POST /api/admin/devices/:id/pairing-code.
func (h *Handler) RegeneratePairingCode(c *gin.Context) {
	d, err := h.devices.RegenerateCode(c.Request.Context(), orgID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pairingCode":      d.PairingCode,
		"pairingExpiresAt": d.PairingExpiresAt,
	})
}
