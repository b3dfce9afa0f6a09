package model

import (
	"time"

	"gorm.io/gorm"
)

// EmergencyBroadcast overrides scheduled playback for a whole organization.
// At most one broadcast per organization is active; a nil ExpiresAt lasts
// until cancelled.
type EmergencyBroadcast struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	OrganizationID string     `gorm:"size:36;index;not null" json:"organizationId"`
	AnnouncementID string     `gorm:"size:36;not null" json:"announcementId"`
	Active         bool       `gorm:"not null;default:true" json:"active"`
	ExpiresAt      *time.Time `json:"expiresAt"`
	CreatedAt      time.Time  `json:"createdAt"`

	// Associations
	Organization *Organization `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Announcement *Announcement `gorm:"constraint:OnDelete:CASCADE" json:"announcement,omitempty"`
}

// LiveAt reports whether the broadcast is in effect at now. An active row
// whose expiry has passed is treated as inactive.
func (b EmergencyBroadcast) LiveAt(now time.Time) bool {
	return b.Active && (b.ExpiresAt == nil || b.ExpiresAt.After(now))
}

func (b *EmergencyBroadcast) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = newID()
	}
	return nil
}
