package model

import (
	"time"

	"gorm.io/gorm"
)

// PlayStatus is the outcome of a playback attempt.
type PlayStatus string

const (
	PlayScheduled PlayStatus = "SCHEDULED"
	PlayPlayed    PlayStatus = "PLAYED"
	PlaySkipped   PlayStatus = "SKIPPED"
	PlayFailed    PlayStatus = "FAILED"
)

// PlayLog records one attempt per (device, announcement, scheduledAt).
type PlayLog struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	OrganizationID string     `gorm:"size:36;index;not null" json:"organizationId"`
	RoomID         *string    `gorm:"size:36" json:"roomId"`
	DeviceID       string     `gorm:"size:36;not null;uniqueIndex:idx_play_log_slot" json:"deviceId"`
	AnnouncementID string     `gorm:"size:36;not null;uniqueIndex:idx_play_log_slot" json:"announcementId"`
	ScheduledAt    time.Time  `gorm:"not null;uniqueIndex:idx_play_log_slot" json:"scheduledAt"`
	PlayedAt       *time.Time `json:"playedAt"`
	Status         PlayStatus `gorm:"size:16;not null" json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	// Associations
	Organization *Organization `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (l *PlayLog) BeforeCreate(*gorm.DB) error {
	if l.ID == "" {
		l.ID = newID()
	}
	return nil
}
