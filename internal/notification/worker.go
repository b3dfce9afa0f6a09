package notification

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"carevoice-backend/internal/metrics"
	"carevoice-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Alert is the JSON payload delivered to admin browsers.
type Alert struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	BroadcastID string `json:"broadcastId"`
}

// WorkerPool fans emergency broadcast alerts out to the push subscriptions
// of the broadcasting organization.
type WorkerPool struct {
	size    int
	jobs    chan string
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, log *zap.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, size*16),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("push worker started", zap.Int("worker", id))
	for {
		select {
		case broadcastID := <-wp.jobs:
			wp.sendAlertsForBroadcast(ctx, broadcastID)
		case <-ctx.Done():
			wp.log.Debug("push worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues an alert for broadcastID. Alerts are best effort: when the
// queue is full the alert is dropped rather than blocking the caller.
func (wp *WorkerPool) Dispatch(broadcastID string) {
	select {
	case wp.jobs <- broadcastID:
	default:
		wp.log.Warn("push queue full, dropping emergency alert", zap.String("broadcast_id", broadcastID))
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan string {
	return wp.jobs
}

func (wp *WorkerPool) sendAlertsForBroadcast(ctx context.Context, broadcastID string) {
	var broadcast model.EmergencyBroadcast
	if err := wp.db.WithContext(ctx).First(&broadcast, "id = ?", broadcastID).Error; err != nil {
		wp.log.Error("load broadcast for alert", zap.String("broadcast_id", broadcastID), zap.Error(err))
		return
	}

	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).
		Where("organization_id = ?", broadcast.OrganizationID).
		Find(&subscriptions).Error; err != nil {
		wp.log.Error("load push subscriptions", zap.String("org_id", broadcast.OrganizationID), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	alert := Alert{Title: "Emergency broadcast", BroadcastID: broadcastID}
	var announcement model.Announcement
	if err := wp.db.WithContext(ctx).
		Select("title").
		First(&announcement, "id = ?", broadcast.AnnouncementID).Error; err != nil {
		wp.log.Warn("load announcement for alert", zap.String("announcement_id", broadcast.AnnouncementID), zap.Error(err))
	} else if announcement.Title != "" {
		alert.Body = announcement.Title
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		wp.log.Error("encode alert", zap.Error(err))
		return
	}

	wp.log.Info("sending emergency alerts",
		zap.String("broadcast_id", broadcastID),
		zap.Int("subscriptions", len(subscriptions)))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		metrics.PushNotifications.WithLabelValues("error").Inc()
		wp.log.Warn("send push notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		metrics.PushNotifications.WithLabelValues("gone").Inc()
		wp.log.Info("push subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.log.Error("delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
		return
	}
	metrics.PushNotifications.WithLabelValues("sent").Inc()
}
