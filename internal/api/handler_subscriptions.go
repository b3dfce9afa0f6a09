package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"carevoice-backend/internal/model"
)

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

// PutSubscription registers or refreshes the caller's browser push
// endpoint for emergency alerts.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	subscription := model.PushSubscription{
		Endpoint:       req.Endpoint,
		OrganizationID: orgID(c),
		UserID:         actorID(c),
		P256DH:         req.P256DH,
		Auth:           req.Auth,
	}

	err := h.store.DB().WithContext(c.Request.Context()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"organization_id", "user_id", "p256dh", "auth"}),
	}).Create(&subscription).Error
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription removes one of the organization's push endpoints.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := h.store.DB().WithContext(c.Request.Context()).
		Where("endpoint = ? AND organization_id = ?", req.Endpoint, orgID(c)).
		Delete(&model.PushSubscription{}).Error
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSubscription reports whether an endpoint is registered for the
// caller's organization.
func (h *Handler) GetSubscription(c *gin.Context) {
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	var subscription model.PushSubscription
	err := h.store.DB().WithContext(c.Request.Context()).
		First(&subscription, "endpoint = ? AND organization_id = ?", endpoint, orgID(c)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"endpoint": subscription.Endpoint, "createdAt": subscription.CreatedAt})
}
