package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"carevoice-backend/internal/model"
	"carevoice-backend/internal/parse"
)

type createScheduleRequest struct {
	Name   string `json:"name" binding:"required,max=100"`
	Active *bool  `json:"active"`
}

type updateScheduleRequest struct {
	Name   *string `json:"name" binding:"omitempty,min=1,max=100"`
	Active *bool   `json:"active"`
}

// scheduleItemRequest accepts weekdays either as daysOfWeek integers or as
// a days expression such as "mon-fri".
type scheduleItemRequest struct {
	AnnouncementID string  `json:"announcementId" binding:"required"`
	RoomID         *string `json:"roomId"`
	TimeOfDay      string  `json:"timeOfDay" binding:"required,hhmm"`
	DaysOfWeek     []int   `json:"daysOfWeek" binding:"omitempty,weekdays"`
	Days           string  `json:"days"`
	Enabled        *bool   `json:"enabled"`
	Order          int     `json:"order"`
}

func (r scheduleItemRequest) weekdays() ([]int, error) {
	if len(r.DaysOfWeek) > 0 {
		return parse.Weekdays(r.DaysOfWeek)
	}
	if r.Days != "" {
		return parse.WeekdayNames(r.Days)
	}
	return nil, errors.New("daysOfWeek is required")
}

func (r scheduleItemRequest) apply(item *model.ScheduleItem) error {
	days, err := r.weekdays()
	if err != nil {
		return err
	}
	item.AnnouncementID = r.AnnouncementID
	item.RoomID = r.RoomID
	item.TimeOfDay = r.TimeOfDay
	item.DaysOfWeek = days
	item.Enabled = r.Enabled == nil || *r.Enabled
	item.Order = r.Order
	return nil
}

type reorderRequest struct {
	Items []struct {
		ID    string `json:"id" binding:"required"`
		Order int    `json:"order"`
	} `json:"items" binding:"required,dive"`
}

func (h *Handler) ListSchedules(c *gin.Context) {
	list, err := h.store.ListSchedules(c.Request.Context(), orgID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetSchedule(c *gin.Context) {
	s, err := h.store.GetSchedule(c.Request.Context(), orgID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) CreateSchedule(c *gin.Context) {
	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s := model.Schedule{
		OrganizationID: orgID(c),
		Name:           req.Name,
		Active:         req.Active == nil || *req.Active,
	}
	if err := h.store.CreateSchedule(c.Request.Context(), &s); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *Handler) UpdateSchedule(c *gin.Context) {
	var req updateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, err := h.store.UpdateSchedule(c.Request.Context(), orgID(c), c.Param("id"), req.Name, req.Active)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) DeleteSchedule(c *gin.Context) {
	if err := h.store.DeleteSchedule(c.Request.Context(), orgID(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CreateScheduleItem(c *gin.Context) {
	var req scheduleItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	item := model.ScheduleItem{ScheduleID: c.Param("id")}
	if err := req.apply(&item); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.store.CreateScheduleItem(c.Request.Context(), orgID(c), &item); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) UpdateScheduleItem(c *gin.Context) {
	var req scheduleItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	item, err := h.store.GetScheduleItem(ctx, orgID(c), c.Param("id"), c.Param("itemId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := req.apply(item); err != nil {
		badRequest(c, err)
		return
	}
	item.Announcement, item.Room = nil, nil
	if err := h.store.SaveScheduleItem(ctx, orgID(c), item); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) DeleteScheduleItem(c *gin.Context) {
	if err := h.store.DeleteScheduleItem(c.Request.Context(), orgID(c), c.Param("id"), c.Param("itemId")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReorderScheduleItems handles PUT /api/admin/schedules/:id/items/order.
func (h *Handler) ReorderScheduleItems(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	order := make(map[string]int, len(req.Items))
	for _, it := range req.Items {
		order[it.ID] = it.Order
	}
	ctx := c.Request.Context()
	if err := h.store.ReorderScheduleItems(ctx, orgID(c), c.Param("id"), order); err != nil {
		h.fail(c, err)
		return
	}
	s, err := h.store.GetSchedule(ctx, orgID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// GetRoomPreview handles GET /api/admin/preview?roomId=: the schedule a
// device in that room would resolve right now.
func (h *Handler) GetRoomPreview(c *gin.Context) {
	var roomID *string
	if id := c.Query("roomId"); id != "" {
		if _, err := h.store.GetRoom(c.Request.Context(), orgID(c), id); err != nil {
			h.fail(c, err)
			return
		}
		roomID = &id
	}
	day, err := h.resolver.ResolveToday(c.Request.Context(), orgID(c), roomID, h.clock.Now())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wireSchedule(&model.Device{}, day))
}
