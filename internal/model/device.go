package model

import (
	"time"

	"gorm.io/gorm"
)

// DeviceStatus is the persisted pairing state. Online/offline is never
// persisted; it is derived from LastSeenAt.
type DeviceStatus string

const (
	DeviceUnpaired DeviceStatus = "UNPAIRED"
	DevicePending  DeviceStatus = "PENDING"
	DevicePaired   DeviceStatus = "PAIRED"
	DeviceOffline  DeviceStatus = "OFFLINE"
)

// Device is a playback endpoint (TV, tablet) owned by an organization.
type Device struct {
	ID               string       `gorm:"primaryKey;size:36" json:"id"`
	OrganizationID   string       `gorm:"size:36;index;not null" json:"organizationId"`
	RoomID           *string      `gorm:"size:36;index" json:"roomId"`
	Name             string       `gorm:"size:100;not null" json:"name"`
	PairingCode      *string      `gorm:"size:6;uniqueIndex" json:"pairingCode"`
	PairingExpiresAt *time.Time   `json:"pairingExpiresAt"`
	LastSeenAt       *time.Time   `json:"lastSeenAt"`
	Status           DeviceStatus `gorm:"size:16;not null;default:PENDING" json:"status"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`

	// Associations
	Organization *Organization `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Room         *Room         `gorm:"constraint:OnDelete:SET NULL" json:"room,omitempty"`
}

func (d *Device) BeforeCreate(*gorm.DB) error {
	if d.ID == "" {
		d.ID = newID()
	}
	return nil
}
