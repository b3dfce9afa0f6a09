package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carevoice-backend/internal/model"
)

type announcementRequest struct {
	Title    string  `json:"title" binding:"required,max=100"`
	Type     string  `json:"type" binding:"required,oneof=TTS MP3"`
	Text     *string `json:"text"`
	AudioURL *string `json:"audioUrl" binding:"omitempty,url"`
	Language string  `json:"language" binding:"omitempty,max=16"`
	Voice    *string `json:"voice" binding:"omitempty,max=64"`
}

func (r announcementRequest) apply(a *model.Announcement) {
	a.Title = r.Title
	a.Type = model.AnnouncementType(r.Type)
	a.Text = r.Text
	a.AudioURL = r.AudioURL
	a.Language = r.Language
	a.Voice = r.Voice
}

func (h *Handler) ListAnnouncements(c *gin.Context) {
	list, err := h.store.ListAnnouncements(c.Request.Context(), orgID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetAnnouncement(c *gin.Context) {
	a, err := h.store.GetAnnouncement(c.Request.Context(), orgID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) CreateAnnouncement(c *gin.Context) {
	var req announcementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a := model.Announcement{OrganizationID: orgID(c)}
	req.apply(&a)
	if err := h.store.CreateAnnouncement(c.Request.Context(), &a); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// UpdateAnnouncement replaces every field of an announcement.
func (h *Handler) UpdateAnnouncement(c *gin.Context) {
	var req announcementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	a, err := h.store.GetAnnouncement(ctx, orgID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	req.apply(a)
	if err := h.store.SaveAnnouncement(ctx, a); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAnnouncement(c *gin.Context) {
	if err := h.store.DeleteAnnouncement(c.Request.Context(), orgID(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
