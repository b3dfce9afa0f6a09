package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carevoice-backend/internal/auth"
	"carevoice-backend/internal/model"
)

func orgID(c *gin.Context) string {
	if claims := auth.ClaimsFrom(c); claims != nil {
		return claims.OrganizationID
	}
	return ""
}

func actorID(c *gin.Context) string {
	if claims := auth.ClaimsFrom(c); claims != nil {
		return claims.UserID
	}
	return ""
}

// GetOrganization handles GET /api/admin/organization.
func (h *Handler) GetOrganization(c *gin.Context) {
	org, err := h.store.GetOrganization(c.Request.Context(), orgID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

type roomRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.store.ListRooms(c.Request.Context(), orgID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	room := model.Room{OrganizationID: orgID(c), Name: req.Name}
	if err := h.store.CreateRoom(c.Request.Context(), &room, h.billing.MaxRooms); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *Handler) UpdateRoom(c *gin.Context) {
	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	room, err := h.store.RenameRoom(c.Request.Context(), orgID(c), c.Param("id"), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) DeleteRoom(c *gin.Context) {
	if err := h.store.DeleteRoom(c.Request.Context(), orgID(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
