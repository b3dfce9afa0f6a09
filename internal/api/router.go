package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"carevoice-backend/config"
	"carevoice-backend/internal/auth"
	"carevoice-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg *config.ServerConfig, tokens *auth.Manager) *gin.Engine {
	registerValidators()

	r := gin.New()
	r.Use(gin.Recovery(), mw.Logger(h.log), mw.Metrics())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, mw.DeviceOrIP)

	// Schedule responses are cached per device; emergency state never is.
	cacheStore := cache.New(cfg.ScheduleCacheTTL, 2*cfg.ScheduleCacheTTL)
	caching := mw.Cache(cacheStore, cfg.ScheduleCacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/pair", h.PostPair)

		player := api.Group("/player")
		player.GET("/schedule", caching, h.GetPlayerSchedule)
		player.GET("/emergency", mw.NoStore(), h.GetPlayerEmergency)
		player.POST("/heartbeat", h.PostHeartbeat)
		player.POST("/log", h.PostPlayLog)
	}

	admin := api.Group("/admin", tokens.Authenticate(), auth.RequireActiveSubscription(h.store), mw.NoStore())
	manage := auth.RequireManager()
	{
		admin.GET("/organization", h.GetOrganization)
		admin.GET("/preview", h.GetRoomPreview)

		admin.GET("/rooms", h.ListRooms)
		admin.POST("/rooms", manage, h.CreateRoom)
		admin.PATCH("/rooms/:id", manage, h.UpdateRoom)
		admin.DELETE("/rooms/:id", manage, h.DeleteRoom)

		admin.GET("/devices", h.ListDevices)
		admin.GET("/devices/:id", h.GetDevice)
		admin.POST("/devices", manage, h.CreateDevice)
		admin.PATCH("/devices/:id", manage, h.UpdateDevice)
		admin.DELETE("/devices/:id", manage, h.DeleteDevice)
		admin.POST("/devices/:id/pairing-code", manage, h.RegeneratePairingCode)

		admin.GET("/announcements", h.ListAnnouncements)
		admin.GET("/announcements/:id", h.GetAnnouncement)
		admin.POST("/announcements", manage, h.CreateAnnouncement)
		admin.PUT("/announcements/:id", manage, h.UpdateAnnouncement)
		admin.DELETE("/announcements/:id", manage, h.DeleteAnnouncement)

		admin.GET("/schedules", h.ListSchedules)
		admin.GET("/schedules/:id", h.GetSchedule)
		admin.POST("/schedules", manage, h.CreateSchedule)
		admin.PATCH("/schedules/:id", manage, h.UpdateSchedule)
		admin.DELETE("/schedules/:id", manage, h.DeleteSchedule)
		admin.POST("/schedules/:id/items", manage, h.CreateScheduleItem)
		admin.PUT("/schedules/:id/items/order", manage, h.ReorderScheduleItems)
		admin.PUT("/schedules/:id/items/:itemId", manage, h.UpdateScheduleItem)
		admin.DELETE("/schedules/:id/items/:itemId", manage, h.DeleteScheduleItem)

		admin.GET("/emergency", h.GetEmergency)
		admin.POST("/emergency", manage, h.CreateEmergency)
		admin.POST("/emergency/:id/cancel", manage, h.CancelEmergency)

		admin.GET("/play-logs", h.ListPlayLogs)
		admin.GET("/audit-logs", h.ListAuditLogs)

		admin.GET("/subscriptions", h.GetSubscription)
		admin.PUT("/subscriptions", h.PutSubscription)
		admin.DELETE("/subscriptions", h.DeleteSubscription)
		admin.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
