// Package emergency manages the organization-wide broadcast that overrides
// scheduled playback.
package emergency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"carevoice-backend/internal/metrics"
	"carevoice-backend/internal/model"
	"carevoice-backend/internal/orgtime"
	"carevoice-backend/internal/store"
)

// Store is the part of the entity store the channel uses.
type Store interface {
	GetAnnouncement(ctx context.Context, orgID, announcementID string) (*model.Announcement, error)
	CreateBroadcast(ctx context.Context, b *model.EmergencyBroadcast, actorID string) error
	CancelBroadcast(ctx context.Context, orgID, broadcastID, actorID string) (bool, error)
	ActiveBroadcast(ctx context.Context, orgID string, now time.Time) (*model.EmergencyBroadcast, error)
}

// Notifier is told about every newly created broadcast.
type Notifier interface {
	Dispatch(broadcastID string)
}

// Channel creates, cancels and reads emergency broadcasts.
type Channel struct {
	store    Store
	clock    orgtime.Clock
	notifier Notifier
	log      *zap.Logger
}

// NewChannel builds a Channel. notifier may be nil.
func NewChannel(s Store, clock orgtime.Clock, notifier Notifier, log *zap.Logger) *Channel {
	return &Channel{store: s, clock: clock, notifier: notifier, log: log}
}

// Create makes announcementID the organization's only active broadcast.
// A nil expiresAt lasts until cancelled; a past one is rejected.
func (c *Channel) Create(ctx context.Context, orgID, actorID, announcementID string, expiresAt *time.Time) (*model.EmergencyBroadcast, error) {
	now := c.clock.Now()
	if expiresAt != nil {
		if !expiresAt.After(now) {
			return nil, fmt.Errorf("%w: expiresAt must be in the future", store.ErrInvalid)
		}
		utc := expiresAt.UTC()
		expiresAt = &utc
	}

	announcement, err := c.store.GetAnnouncement(ctx, orgID, announcementID)
	if err != nil {
		return nil, fmt.Errorf("announcement: %w", err)
	}

	b := &model.EmergencyBroadcast{
		OrganizationID: orgID,
		AnnouncementID: announcement.ID,
		ExpiresAt:      expiresAt,
	}
	if err := c.store.CreateBroadcast(ctx, b, actorID); err != nil {
		return nil, err
	}
	b.Announcement = announcement

	metrics.EmergencyBroadcasts.WithLabelValues("create").Inc()
	c.log.Warn("emergency broadcast started",
		zap.String("org_id", orgID),
		zap.String("broadcast_id", b.ID),
		zap.String("announcement", announcement.Title),
		zap.String("actor_id", actorID))

	if c.notifier != nil {
		c.notifier.Dispatch(b.ID)
	}
	return b, nil
}

// Cancel deactivates a broadcast. Cancelling an inactive broadcast succeeds
// and reports false.
func (c *Channel) Cancel(ctx context.Context, orgID, broadcastID, actorID string) (bool, error) {
	changed, err := c.store.CancelBroadcast(ctx, orgID, broadcastID, actorID)
	if err != nil {
		return false, err
	}
	if changed {
		metrics.EmergencyBroadcasts.WithLabelValues("cancel").Inc()
		c.log.Info("emergency broadcast cancelled",
			zap.String("org_id", orgID),
			zap.String("broadcast_id", broadcastID),
			zap.String("actor_id", actorID))
	}
	return changed, nil
}

// Active returns the broadcast in effect now, or nil when there is none.
func (c *Channel) Active(ctx context.Context, orgID string) (*model.EmergencyBroadcast, error) {
	b, err := c.store.ActiveBroadcast(ctx, orgID, c.clock.Now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}
